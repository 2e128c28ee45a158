// Package logger wraps zap with a process-wide logger and context-first helpers.
//
// Every helper takes a context: a logger stored with ToContext or extended with WithKV
// wins over the global one, so job and request fields follow the work through the call tree.
package logger
