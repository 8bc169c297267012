package logscan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/ternarybob/vigil/internal/models"
)

const (
	readBufferSize = 64 * 1024
	ctxCheckEvery  = 1024
)

// Extractor turns raw log lines into classified events.
type Extractor struct {
	markers []models.Marker
	stamps  *TimestampParser
}

// NewExtractor builds an extractor. Markers are matched in order and the
// first one contained in a line decides its kind.
func NewExtractor(markers []models.Marker, stamps *TimestampParser) *Extractor {
	if stamps == nil {
		stamps = NewTimestampParser(nil, nil)
	}
	return &Extractor{markers: markers, stamps: stamps}
}

// Classify returns the event for a single line, or false when the line has no
// marker or no parseable timestamp.
func (x *Extractor) Classify(line string, lineNo int) (models.LogEvent, bool) {
	text := strings.TrimRight(line, "\r\n")
	if text == "" {
		return models.LogEvent{}, false
	}

	kind, ok := x.kind(text)
	if !ok {
		return models.LogEvent{}, false
	}

	ts, ok := x.stamps.Parse(text)
	if !ok {
		return models.LogEvent{}, false
	}

	return models.LogEvent{Kind: kind, Timestamp: ts, Line: lineNo, Text: text}, true
}

func (x *Extractor) kind(text string) (models.EventKind, bool) {
	for _, m := range x.markers {
		if strings.Contains(text, m.Substring) {
			return m.Kind, true
		}
	}
	return "", false
}

// Scan lazily yields the events of r in source order. A read failure is
// yielded once with a zero event and ends the sequence.
func (x *Extractor) Scan(ctx context.Context, r io.Reader) iter.Seq2[models.LogEvent, error] {
	return x.scan(ctx, r, &position{}, false)
}

// position tracks how far a scan has consumed its reader.
type position struct {
	offset int64
	line   int
}

// scan reads r line by line, advancing pos past every consumed line. With
// completeOnly a trailing line without a newline is left unconsumed so that
// an incremental reader picks it up once the writer finishes it.
func (x *Extractor) scan(ctx context.Context, r io.Reader, pos *position, completeOnly bool) iter.Seq2[models.LogEvent, error] {
	return func(yield func(models.LogEvent, error) bool) {
		br := bufio.NewReaderSize(r, readBufferSize)
		for n := 0; ; n++ {
			if n%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					yield(models.LogEvent{}, err)
					return
				}
			}

			// ReadString grows past the buffer size, so multi-megabyte lines
			// (stack traces) are read whole instead of failing the scan.
			line, err := br.ReadString('\n')
			if err != nil && err != io.EOF {
				yield(models.LogEvent{}, fmt.Errorf("failed to read line %d: %w", pos.line+1, err))
				return
			}
			if line == "" {
				return
			}
			complete := strings.HasSuffix(line, "\n")
			if !complete && completeOnly {
				return
			}

			pos.offset += int64(len(line))
			pos.line++

			if ev, ok := x.Classify(line, pos.line); ok {
				if !yield(ev, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
		}
	}
}
