package ytdlp

import (
	"strconv"
	"strings"
)

const (
	// progressLinePrefix marks lines printed by progressTemplate.
	progressLinePrefix = "[mg-progress] "
	// outputLinePrefix marks lines printed by outputTemplate.
	outputLinePrefix = "[mg-output] "
	// titleLinePrefix marks lines printed by titleTemplate.
	titleLinePrefix = "[mg-title] "
	// progressFieldSeparator separates progress template fields.
	progressFieldSeparator = "|"
	// notAvailable is what yt-dlp prints for missing template fields.
	notAvailable = "NA"

	// progressTemplate prints downloaded|total|estimate|speed|eta|index|count.
	progressTemplate = "download:" + progressLinePrefix +
		"%(progress.downloaded_bytes)s|%(progress.total_bytes)s|%(progress.total_bytes_estimate)s|" +
		"%(progress._speed_str)s|%(progress._eta_str)s|%(info.playlist_index)s|%(info.n_entries)s"
	// outputTemplate prints the final path of every produced file.
	outputTemplate = "after_move:" + outputLinePrefix + "%(filepath)s"
	// titleTemplate prints the playlist title, or the media title for single items.
	titleTemplate = "pre_process:" + titleLinePrefix + "%(playlist_title,title)s"

	// progressFieldsCount is the number of fields in progressTemplate.
	progressFieldsCount = 7
)

// lineKind classifies a line of yt-dlp standard output.
type lineKind int

const (
	lineKindOther lineKind = iota
	lineKindProgress
	lineKindOutput
	lineKindTitle
)

// parseLine classifies a stdout line and returns its payload.
func parseLine(line string) (lineKind, string) {
	line = strings.TrimRight(line, "\r")

	switch {
	case strings.HasPrefix(line, progressLinePrefix):
		return lineKindProgress, strings.TrimPrefix(line, progressLinePrefix)
	case strings.HasPrefix(line, outputLinePrefix):
		return lineKindOutput, strings.TrimPrefix(line, outputLinePrefix)
	case strings.HasPrefix(line, titleLinePrefix):
		return lineKindTitle, strings.TrimPrefix(line, titleLinePrefix)
	default:
		return lineKindOther, line
	}
}

// parseProgress decodes the payload of a progress line.
func parseProgress(payload string) (*Progress, bool) {
	fields := strings.Split(payload, progressFieldSeparator)
	if len(fields) != progressFieldsCount {
		return nil, false
	}

	downloaded, ok := parseNumber(fields[0])
	if !ok {
		return nil, false
	}

	total, ok := parseNumber(fields[1])
	if !ok || total <= 0 {
		total, _ = parseNumber(fields[2])
	}

	index, _ := parseNumber(fields[5])
	count, _ := parseNumber(fields[6])

	return &Progress{
		DownloadedBytes: downloaded,
		TotalBytes:      total,
		Speed:           cleanField(fields[3]),
		ETA:             cleanField(fields[4]),
		ItemIndex:       max(int(index), 1),
		ItemCount:       max(int(count), 1),
	}, true
}

// parseNumber parses an integer or float template field.
func parseNumber(field string) (int64, bool) {
	field = strings.TrimSpace(field)
	if field == "" || field == notAvailable {
		return 0, false
	}

	if value, err := strconv.ParseInt(field, 10, 64); err == nil {
		return value, true
	}

	value, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, false
	}

	return int64(value), true
}

// cleanField trims a textual field and blanks missing values.
func cleanField(field string) string {
	field = strings.TrimSpace(field)
	if field == notAvailable || strings.EqualFold(field, "unknown") {
		return ""
	}

	return field
}
