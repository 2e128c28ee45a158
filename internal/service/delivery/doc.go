// Package delivery streams stored artifacts to HTTP clients with byte-range support.
package delivery
