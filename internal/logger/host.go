package logger

import (
	"os"
	"sync"
)

var (
	hostname     string
	hostnameOnce sync.Once
)

// Hostname is resolved once; "unknown" when the OS refuses.
func Hostname() string {
	hostnameOnce.Do(func() {
		h, err := os.Hostname()
		if err != nil {
			h = "unknown"
		}
		hostname = h
	})
	return hostname
}
