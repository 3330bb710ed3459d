// Package environment names the deployment stage of entitlekitd
// (development, staging, production) and carries it through contexts.
//
// The stage drives logger defaults (text and debug level in development,
// JSON elsewhere) and whether the daemon falls back to in-memory stores and
// the file-based email sender. APP_ENV is parsed with Parse, which accepts the
// short forms "dev", "stage" and "prod".
package environment
