// Package app wires the commands of media-grabber: the HTTP server with its
// download pipeline, the command line client that drives a running server,
// and the browser login that captures cookies for the extraction tool.
package app
