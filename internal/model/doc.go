// Package model defines the data shared by the registry, the services, and the HTTP layer:
// jobs and their lifecycle, job results, and format descriptors.
package model
