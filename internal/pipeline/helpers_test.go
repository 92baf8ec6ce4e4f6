package pipeline_test

import (
	"io"
	"log/slog"

	"github.com/roach88/querypipe/internal/logging"
)

func discardLogger() *slog.Logger {
	return logging.New(io.Discard, logging.Options{})
}
