package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

var remoteClient = &http.Client{Timeout: 5 * time.Second}

// sendLog ships the record to REMOTE_LOG_HTTP_URI in the background. Failures
// go to stderr only so logging never feeds back into itself.
func sendLog(level, message string, attrs []slog.Attr) {
	remoteURI := os.Getenv("REMOTE_LOG_HTTP_URI")
	if remoteURI == "" {
		return
	}
	entry := buildLogEntry(level, message, attrs, time.Now())

	go func() {
		payload, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "remote log: marshal: %v\n", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), remoteClient.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, remoteURI, bytes.NewReader(payload))
		if err != nil {
			fmt.Fprintf(os.Stderr, "remote log: build request: %v\n", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := remoteClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "remote log: send: %v\n", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			fmt.Fprintf(os.Stderr, "remote log: status %d\n", resp.StatusCode)
		}
	}()
}
