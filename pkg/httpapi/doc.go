// Package httpapi exposes the read-only support endpoints of the engine.
//
//	GET  /healthz
//	GET  /metrics
//	POST /webhooks/paddle
//	GET  /tenants/{tenantID}/features
//	GET  /tenants/{tenantID}/features/{key}
//	GET  /tenants/{tenantID}/features/{key}/explain
//	GET  /tenants/{tenantID}/subscription
//	GET  /tenants/{tenantID}/subscription/decision
//
// Responses use a {"data": ..., "error": {...}} envelope. Domain errors map to
// status codes in errorFor.
package httpapi
