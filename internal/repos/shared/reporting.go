package shared

import (
	"fmt"
	"io"
	"sync"
)

// Reporter emits human-readable report lines.
type Reporter interface {
	Printf(format string, args ...any)
}

type writerReporter struct {
	writer     io.Writer
	writeGuard *sync.Mutex
}

// NewWriterReporter constructs a Reporter that serializes writes to the provided writer.
// A nil writer discards output.
func NewWriterReporter(writer io.Writer) Reporter {
	if writer == nil {
		writer = io.Discard
	}
	return writerReporter{writer: writer, writeGuard: &sync.Mutex{}}
}

func (reporter writerReporter) Printf(format string, args ...any) {
	reporter.writeGuard.Lock()
	defer reporter.writeGuard.Unlock()
	fmt.Fprintf(reporter.writer, format, args...)
}
