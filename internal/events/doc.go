// Package events publishes job lifecycle events to a message broker.
package events
