// Package mongostore keeps the audit trail in a MongoDB collection. It is an
// alternative to the PostgreSQL audit table for deployments that ship audit
// records to a document store.
package mongostore
