// Package requestid tags every API request with an X-Request-ID so that
// access logs, resolver warnings and audit writes of one request can be
// correlated. Register LoggerExtractor with logger.New to get request_id on
// every record logged with the request context.
package requestid
