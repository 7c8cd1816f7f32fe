package helpers

import (
	"fmt"
	"os"
	"sync"
	"time"

	"zephuris/divarworker/logger"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// FailureRecorder records URLs that could not be processed
type FailureRecorder interface {
	Record(component, url string, err error)
}

// FailureLog appends failed URLs to a plain text file for later follow-up
type FailureLog struct {
	path string
	mu   sync.Mutex
}

// NewFailureLog creates a failure log writing to path. An empty path
// disables file output.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Record appends one line with timestamp, component, URL and error
func (l *FailureLog) Record(component, url string, err error) {
	if l == nil || l.path == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, fileErr := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if fileErr != nil {
		logger.Warn("Failed to open failure log %s: %v", l.path, fileErr)
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	retry := ""
	if scrapeerrors.IsRetryable(err) {
		retry = " (retryable)"
	}
	fmt.Fprintf(f, "[%s] [%s] %s %v%s\n", timestamp, component, url, err, retry)
}
