// Package progress streams job status to subscribed clients.
//
// The watch loop is independent of the transport: HTTP handlers wrap it with
// Server-Sent Events or WebSocket framing by supplying an emit function.
package progress
