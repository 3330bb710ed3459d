package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the tenant identifier under the key "tenant_id".
// If id is nil, it returns an empty Attr.
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// EditionID records the edition identifier under the key "edition_id".
// An empty id yields an empty Attr.
func EditionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("edition_id", id)
}

// FeatureKey records a feature key under the key "feature_key".
func FeatureKey(key string) slog.Attr {
	return slog.String("feature_key", key)
}

// State records a subscription state under the key "state".
func State(state any) slog.Attr {
	return slog.Any("state", state)
}

// Transition records a state change as a "transition" group with from/to.
func Transition(from, to any) slog.Attr {
	return Group("transition", slog.Any("from", from), slog.Any("to", to))
}

// Action records a policy action under the key "action".
func Action(action any) slog.Attr {
	return slog.Any("action", action)
}

// Actor records who triggered an operation under the key "actor".
func Actor(actor string) slog.Attr {
	return slog.String("actor", actor)
}

// Job records the job name under the key "job".
func Job(name string) slog.Attr {
	return slog.String("job", name)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// ClientIP records the caller address under the key "client_ip".
func ClientIP(ip string) slog.Attr {
	return slog.String("client_ip", ip)
}
