// Package constants holds values shared across packages: file permissions,
// storage layout names, and file extensions.
package constants
