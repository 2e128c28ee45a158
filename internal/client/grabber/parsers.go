package grabber

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oshokin/media-grabber/internal/service/progress"
)

// maxEventSize bounds a single Server-Sent Events line.
const maxEventSize = 1024 * 1024

// errStopReading ends readEvents without an error.
var errStopReading = errors.New("stop reading")

// readEvents parses a Server-Sent Events stream and passes every event to handle.
// The type of the "event:" field wins over the type inside the JSON data.
func readEvents(r io.Reader, handle func(*progress.Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	var (
		eventType string
		data      strings.Builder
	)

	dispatch := func() error {
		defer func() {
			eventType = ""
			data.Reset()
		}()

		if data.Len() == 0 {
			return nil
		}

		var event progress.Event
		if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
			return fmt.Errorf("failed to decode progress event: %w", err)
		}

		if eventType != "" {
			event.Type = progress.EventType(eventType)
		}

		return handle(&event)
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return ignoreStop(err)
			}
		case strings.HasPrefix(line, ":"):
			// Comment line.
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")

			switch field {
			case "event":
				eventType = value
			case "data":
				if data.Len() > 0 {
					data.WriteByte('\n')
				}

				data.WriteString(value)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read progress stream: %w", err)
	}

	return ignoreStop(dispatch())
}

func ignoreStop(err error) error {
	if errors.Is(err, errStopReading) {
		return nil
	}

	return err
}
