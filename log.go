package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// setupLog silences logging by default and enables file-backed debug
// logging when VOX_LOGFILE is set. The returned closer flushes the sink.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	if file := os.Getenv("VOX_LOGFILE"); file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		log.SetTimeFormat(time.Kitchen)
		return f.Close, nil
	}

	return func() error { return nil }, nil
}
