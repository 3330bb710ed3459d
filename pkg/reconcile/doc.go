// Package reconcile contains the scheduled subscription jobs.
//
//   - notify-expiring publishes SUBSCRIPTION_EXPIRING_SOON reminders
//   - mark-past-due moves lapsed trials and terms to past_due
//   - enforce-grace-policy evaluates and applies expiration policies
//   - consistency-check reports contradictory subscription fields
//
// Each job scans tenants in keyset-paginated pages and processes every tenant
// independently: an error or panic for one tenant is logged, counted in the
// Report and does not stop the scan.
//
// Register adds all four jobs to a jobs.Scheduler with their default schedules.
package reconcile
