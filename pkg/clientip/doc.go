// Package clientip resolves the address of the caller behind the API's
// reverse proxy. Middleware stores the address in the request context so the
// access log and every record logged through LoggerExtractor carry client_ip.
//
// Forwarding headers are only honoured when they are listed in the Resolver;
// DefaultHeaders covers a plain nginx or load balancer setup.
package clientip
