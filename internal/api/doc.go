// Package api exposes the download service over HTTP and WebSocket.
//
// Routes are served by a chi router. Progress is pushed either as
// Server-Sent Events or over a WebSocket, depending on progress_transport.
package api
