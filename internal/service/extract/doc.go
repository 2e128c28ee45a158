// Package extract lists the downloadable formats of a media URL.
// It turns the raw format list of the extraction tool into deduplicated,
// sorted and truncated video and audio descriptors.
package extract
