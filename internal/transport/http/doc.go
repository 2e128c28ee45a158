// Package http provides the HTTP client used by the command line tool to talk
// to a grabber server: request and response logging at debug level and
// User-Agent header injection, chained around the default transport.
package http
