// Package storage manages the storage root where finished artifacts live.
// It defends against path traversal and reclaims disk space on request.
package storage
