package policy

import (
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Action is what a policy does to an expired subscription.
type Action string

const (
	ActionNone           Action = "NONE"
	ActionSuspend        Action = "SUSPEND"
	ActionDeactivate     Action = "DEACTIVATE"
	ActionFallbackToFree Action = "FALLBACK_TO_FREE"
)

// ParseAction parses an expiration action name, ignoring case and
// surrounding whitespace. NONE is not a configurable action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionSuspend, ActionDeactivate, ActionFallbackToFree:
		return a, true
	}
	return "", false
}

// Built-in defaults.
const (
	DefaultAction            = ActionSuspend
	DefaultGraceDays         = 7
	DefaultPastDueWindowDays = 2
	DefaultMaxPastDueDays    = 30
)

// DefaultNotifyDaysBeforeExpiry returns the built-in reminder schedule.
func DefaultNotifyDaysBeforeExpiry() []int {
	return []int{14, 7, 3, 1}
}

// Policy is the effective expiration policy of a tenant.
type Policy struct {
	Action                 Action `json:"action"`
	GraceDays              int    `json:"grace_days"`
	FallbackEditionID      string `json:"fallback_edition_id,omitempty"`
	NotifyDaysBeforeExpiry []int  `json:"notify_days_before_expiry"`
	PastDueWindowDays      int    `json:"past_due_window_days"`
	MaxPastDueDays         int    `json:"max_past_due_days"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		Action:                 DefaultAction,
		GraceDays:              DefaultGraceDays,
		NotifyDaysBeforeExpiry: DefaultNotifyDaysBeforeExpiry(),
		PastDueWindowDays:      DefaultPastDueWindowDays,
		MaxPastDueDays:         DefaultMaxPastDueDays,
	}
}

// GlobalConfig holds process-wide policy settings. Unset values fall back
// to the built-in defaults.
type GlobalConfig struct {
	ExpirationAction       string `env:"SUBSCRIPTION_EXPIRATION_ACTION"`
	GraceDays              *int   `env:"SUBSCRIPTION_GRACE_DAYS"`
	FallbackEditionID      string `env:"SUBSCRIPTION_FALLBACK_EDITION_ID"`
	NotifyDaysBeforeExpiry string `env:"SUBSCRIPTION_NOTIFY_DAYS_BEFORE_EXPIRY"`
	PastDueWindowDays      *int   `env:"SUBSCRIPTION_PAST_DUE_WINDOW_DAYS"`
	MaxPastDueDays         *int   `env:"SUBSCRIPTION_MAX_PAST_DUE_DAYS"`
}

// ParseNotifyDays parses a comma separated list of day counts. Blank,
// non-numeric and non-positive entries are dropped; the result is
// deduplicated and sorted in descending order.
func ParseNotifyDays(s string) []int {
	var out []int
	for part := range strings.SplitSeq(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	slices.Reverse(out)
	return out
}

// Merge resolves the effective policy: the tenant override wins over the
// global configuration, which wins over the defaults. Negative day counts
// are ignored at every layer.
func Merge(override *tenant.ExpirationPolicy, global GlobalConfig) Policy {
	p := DefaultPolicy()

	if a, ok := ParseAction(global.ExpirationAction); ok {
		p.Action = a
	}
	setDays(&p.GraceDays, global.GraceDays)
	if id := strings.TrimSpace(global.FallbackEditionID); id != "" {
		p.FallbackEditionID = id
	}
	if days := ParseNotifyDays(global.NotifyDaysBeforeExpiry); len(days) > 0 {
		p.NotifyDaysBeforeExpiry = days
	}
	setDays(&p.PastDueWindowDays, global.PastDueWindowDays)
	setDays(&p.MaxPastDueDays, global.MaxPastDueDays)

	if override == nil {
		return p
	}

	if a, ok := ParseAction(override.Action); ok {
		p.Action = a
	}
	setDays(&p.GraceDays, override.GraceDays)
	if id := strings.TrimSpace(override.FallbackEditionID); id != "" {
		p.FallbackEditionID = id
	}
	if len(override.NotifyDaysBeforeExpiry) > 0 {
		p.NotifyDaysBeforeExpiry = slices.Clone(override.NotifyDaysBeforeExpiry)
	}
	setDays(&p.PastDueWindowDays, override.PastDueWindowDays)
	setDays(&p.MaxPastDueDays, override.MaxPastDueDays)

	return p
}

func setDays(dst *int, v *int) {
	if v != nil && *v >= 0 {
		*dst = *v
	}
}
