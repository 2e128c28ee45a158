// Package metrics defines the Prometheus collectors of the server.
package metrics
