package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/mash-protocol/wifiprov-go/pkg/log"
)

// RunFilter copies matching events to a new trace file and returns how
// many were written.
func RunFilter(path string, filter log.Filter, output string) (int, error) {
	reader, err := log.NewTraceReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
}
