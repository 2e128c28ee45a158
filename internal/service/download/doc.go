// Package download runs download jobs in the background.
//
// Each job owns a working directory under the storage root, reports its
// progress to the job registry and ends with a single artifact: the downloaded
// file itself, or a zip archive when the source produced several files.
package download
