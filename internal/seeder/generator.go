// Package seeder generates CallGear-style notifications and posts them to a
// running webhook, for smoke and load testing.
package seeder

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/goccy/go-json"
)

var statuses = []string{"Open", "Closed", "Missed", "Transferred"}

// Generator builds notification bodies in the shapes the vendor actually sends.
type Generator struct {
	faker *gofakeit.Faker
	// Quirks enables the vendor's doubled-quote corruption on some bodies.
	Quirks bool
}

// NewGenerator returns a Generator; a zero seed picks a random one.
func NewGenerator(seed int64, quirks bool) *Generator {
	return &Generator{faker: gofakeit.New(seed), Quirks: quirks}
}

// Body returns one JSON request body.
func (g *Generator) Body() []byte {
	f := g.faker
	event := map[string]interface{}{
		"chat_id":              fmt.Sprintf("chat-%d", f.Number(100000, 999999)),
		"visitor_phone_number": f.Phone(),
		"employee_full_name":   f.Name(),
	}

	ts := f.DateRange(time.Now().Add(-72*time.Hour), time.Now()).UTC()
	switch f.Number(0, 3) {
	case 0:
		event["notification_time"] = ts.Format("2006-01-02 15:04:05.000000")
	case 1:
		event["notification_time"] = ts.Format("2006-01-02 15:04:05")
	case 2:
		event["notification_time"] = ts.Format(time.RFC3339)
	}

	switch f.Number(0, 3) {
	case 0:
		event["messages"] = f.Sentence(8)
	case 1:
		event["messages"] = []map[string]string{
			{"author": "visitor", "text": f.Question()},
			{"author": "employee", "text": f.Sentence(6)},
		}
	case 2:
		event["messages"] = map[string]interface{}{"text": f.Sentence(5), "attachments": f.Number(0, 3)}
	}

	if f.Bool() {
		event["visitor_info"] = map[string]string{
			"visitor_name": f.FirstName(),
			"visitor_id":   f.UUID(),
		}
	}

	if f.Bool() {
		event["status"] = f.RandomString(statuses)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return []byte("{}")
	}

	if g.Quirks && f.Number(0, 3) == 0 {
		data = doubleQuote(data, "chat_id")
	}
	return data
}

// doubleQuote rewrites "key":"value" as "key":""value"".
func doubleQuote(data []byte, key string) []byte {
	s := string(data)
	marker := fmt.Sprintf(`"%s":"`, key)
	i := strings.Index(s, marker)
	if i < 0 {
		return data
	}
	start := i + len(marker)
	end := strings.Index(s[start:], `"`)
	if end < 0 {
		return data
	}
	value := s[start : start+end]
	return []byte(s[:i] + fmt.Sprintf(`"%s":""%s""`, key, value) + s[start+end+1:])
}
