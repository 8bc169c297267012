package logscan

import (
	"time"
)

// DefaultLayouts are tried in order against the start of each line.
var DefaultLayouts = []string{
	"2006-01-02 15:04:05,000",
	"2006-01-02 15:04:05",
}

// TimestampParser reads the wall-clock timestamp that prefixes a log line.
type TimestampParser struct {
	layouts  []string
	location *time.Location
}

// NewTimestampParser returns a parser for layouts in loc. A nil loc means
// time.Local; no layouts means DefaultLayouts.
func NewTimestampParser(layouts []string, loc *time.Location) *TimestampParser {
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	if loc == nil {
		loc = time.Local
	}
	return &TimestampParser{layouts: layouts, location: loc}
}

// Parse tries each layout against the line prefix of the layout's length.
func (p *TimestampParser) Parse(line string) (time.Time, bool) {
	for _, layout := range p.layouts {
		if len(line) < len(layout) {
			continue
		}
		ts, err := time.ParseInLocation(layout, line[:len(layout)], p.location)
		if err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
