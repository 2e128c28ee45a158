// Package utils provides a collection of helper functions for common tasks,
// such as filename sanitizing, MIME type guessing, URL host matching, and generic slice helpers.
package utils
