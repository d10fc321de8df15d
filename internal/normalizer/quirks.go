package normalizer

import (
	"bytes"
	"regexp"
)

// doubledQuotes matches a token wrapped in two pairs of quotes, e.g. ""c1"".
// The inner text may not start with whitespace or a JSON structural character,
// which keeps empty strings such as ["",""] or {"a":"","b":""} out of reach.
var doubledQuotes = regexp.MustCompile(`""([^"\s,:\[\]{}][^"]*)""`)

// CleanDoubledQuotes rewrites ""value"" to "value".
//
// The CallGear sender occasionally double-quotes keys and values. This is a plain
// text substitution with no knowledge of JSON string escaping, so it must run
// before parsing. Applying it to already clean text returns the text unchanged.
func CleanDoubledQuotes(raw []byte) []byte {
	if !bytes.Contains(raw, []byte(`""`)) {
		return raw
	}
	return doubledQuotes.ReplaceAll(raw, []byte(`"${1}"`))
}
