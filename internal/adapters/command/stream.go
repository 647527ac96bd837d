package command

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// maxPartialLine bounds how much of an unterminated line is held before it is
// flushed to the sink anyway.
const maxPartialLine = 4096

// lineSink forwards complete output lines to a logger at debug level.
// It never returns an error: a panicking or failing sink disables itself and
// the ring buffers keep receiving output.
type lineSink struct {
	mu       sync.Mutex
	ctx      context.Context
	logger   ports.Logger
	partial  bytes.Buffer
	disabled bool
}

func newLineSink(ctx context.Context, logger ports.Logger, cmd ports.Command, stream string) *lineSink {
	return &lineSink{
		ctx:    ctx,
		logger: logger.With(ports.F("cmd", cmd.Name), ports.F("stream", stream)),
	}
}

// Write implements io.Writer.
func (s *lineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return len(p), nil
	}

	s.partial.Write(p)
	for {
		data := s.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(data[:idx])
		s.partial.Next(idx + 1)
		s.emit(line)
	}
	if s.partial.Len() > maxPartialLine {
		s.emit(s.partial.String())
		s.partial.Reset()
	}
	return len(p), nil
}

// Flush emits any unterminated trailing line. A nil sink is a no-op.
func (s *lineSink) Flush() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled || s.partial.Len() == 0 {
		return
	}
	s.emit(s.partial.String())
	s.partial.Reset()
}

func (s *lineSink) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	defer func() {
		if recover() != nil {
			s.disabled = true
		}
	}()
	s.logger.Debug(s.ctx, line)
}
