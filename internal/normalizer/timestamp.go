package normalizer

import (
	"strings"
	"time"
)

// DefaultTimestampLayouts are tried in order: with microseconds first, then without.
var DefaultTimestampLayouts = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
}

// TimestampParser parses notification times against an ordered list of layouts.
type TimestampParser struct {
	layouts []string
}

// NewTimestampParser returns a parser for the given layouts, or the defaults when none are given.
func NewTimestampParser(layouts ...string) *TimestampParser {
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}
	cp := make([]string, len(layouts))
	copy(cp, layouts)
	return &TimestampParser{layouts: cp}
}

// Parse returns the time for the first matching layout.
// Values carry no zone and are read as UTC. ok is false when nothing matches.
func (p *TimestampParser) Parse(value string) (t time.Time, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range p.layouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Layouts returns the configured layouts in match order.
func (p *TimestampParser) Layouts() []string {
	cp := make([]string, len(p.layouts))
	copy(cp, p.layouts)
	return cp
}
