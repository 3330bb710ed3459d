package notify

import (
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"github.com/dmitrymomot/entitlekit/pkg/events"
)

type message struct {
	tag     string
	subject *texttemplate.Template
	body    *template.Template
}

func newMessage(tag, subject, body string) message {
	return message{
		tag:     tag,
		subject: texttemplate.Must(texttemplate.New(tag).Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New(tag).Funcs(funcs).Parse(layout + body)),
	}
}

var funcs = map[string]any{"date": formatDate}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("January 2, 2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format("January 2, 2006")
	}
	return fmt.Sprint(v)
}

const layout = `{{define "footer"}}<p style="color:#6b7280;font-size:12px">You receive this email because you are the billing contact of {{.Tenant.Name}} on {{.Product}}.</p>{{end}}`

var messages = map[string]message{
	events.SubscriptionExpiringSoon: newMessage("subscription-expiring",
		`Your {{.Product}} subscription expires in {{.Payload.days_left}} day{{if ne .Payload.days_left 1}}s{{end}}`,
		`<p>Hi {{.Tenant.Name}},</p>
<p>Your subscription ends on <strong>{{date .Payload.expires_at}}</strong>. Renew before then to keep uninterrupted access.</p>
{{template "footer" .}}`),

	events.SubscriptionExpired: newMessage("subscription-expired",
		`Your {{.Product}} subscription has expired`,
		`<p>Hi {{.Tenant.Name}},</p>
<p>Your subscription has expired and the {{.Payload.action}} policy was applied. Your account is now <strong>{{.Payload.state}}</strong>.</p>
{{template "footer" .}}`),

	events.SubscriptionPaymentFailed: newMessage("payment-failed",
		`We could not process your {{.Product}} payment`,
		`<p>Hi {{.Tenant.Name}},</p>
<p>Your payment{{with .Payload.invoice_id}} for invoice {{.}}{{end}} failed.{{with .Payload.grace_period_end_date}} Please update your payment method before {{date .}}.{{end}}</p>
{{template "footer" .}}`),

	events.SubscriptionPlanChanged: newMessage("plan-changed",
		`Your {{.Product}} plan has changed`,
		`<p>Hi {{.Tenant.Name}},</p>
<p>Your plan is now <strong>{{.Payload.edition_id}}</strong>{{with .Payload.previous_edition_id}} (previously {{.}}){{end}}.</p>
{{template "footer" .}}`),
}
