// Package process starts external tools so that cancelling their context also stops
// every process they spawned.
package process
