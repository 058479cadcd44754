package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type lokiPush struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// buildLogEntry wraps one record in the Loki push API shape.
func buildLogEntry(level, message string, attrs []slog.Attr, now time.Time) lokiPush {
	job := os.Getenv("APP_NAME")
	if job == "" {
		job = "robotics-catalog"
	}

	return lokiPush{
		Streams: []lokiStream{{
			Stream: map[string]string{
				"level": level,
				"job":   job,
			},
			Values: [][2]string{{
				strconv.FormatInt(now.UnixNano(), 10),
				buildLogLine(level, message, attrs, now),
			}},
		}},
	}
}

func buildLogLine(level, message string, attrs []slog.Attr, now time.Time) string {
	line := map[string]any{
		"level":   level,
		"message": message,
		"time":    now.Format(time.RFC3339),
	}
	for _, attr := range attrs {
		line[attr.Key] = attr.Value.Resolve().Any()
	}

	b, err := json.Marshal(line)
	if err != nil {
		return message
	}
	return string(b)
}
