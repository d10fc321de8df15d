package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgear-sync/cg-webhook/internal/models"
)

func TestNormalize_EndToEndPayload(t *testing.T) {
	n := New()
	body := `{"notification_time":"2024-01-02 03:04:05","chat_id":"c1","messages":"hi","visitor_info":{"visitor_name":"A","visitor_id":"v1"}}`

	record, err := n.Normalize([]byte(body))
	require.NoError(t, err)

	require.NotNil(t, record.NotificationTime)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), *record.NotificationTime)
	require.NotNil(t, record.ChatIdentifier)
	assert.Equal(t, "c1", *record.ChatIdentifier)
	assert.JSONEq(t, `{"text":"hi"}`, string(record.Messages))
	require.NotNil(t, record.VisitorName)
	assert.Equal(t, "A", *record.VisitorName)
	require.NotNil(t, record.VisitorID)
	assert.Equal(t, "v1", *record.VisitorID)
	assert.Equal(t, "Open", record.Status)
	assert.Nil(t, record.VisitorPhoneNumber)
	assert.Nil(t, record.EmployeeFullName)
}

func TestNormalize_Malformed(t *testing.T) {
	n := New()

	bodies := []string{
		"not json at all", "", "   ", `{"chat_id":`, `{"chat_id" "c1"}`,
		// leading zeros and bare trailing dots are outside the number grammar
		`{"messages":01}`, `[01,2]`, `{"a":-01}`, `1.`, `{"chat_id":007}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			record, err := n.Normalize([]byte(body))
			require.Error(t, err)
			assert.Nil(t, record)
			assert.True(t, errors.Is(err, ErrMalformedPayload))
			assert.NotEqual(t, ErrMalformedPayload.Error(), err.Error(), "parser detail must be kept")
		})
	}
}

func TestFromEvent_InvalidValuesTreatedAsAbsent(t *testing.T) {
	record := New().FromEvent(models.InboundEvent{
		FieldMessages:         json.RawMessage(`01`),
		FieldEmployeeFullName: json.RawMessage(`{"a":1.}`),
	})
	assert.Nil(t, record.Messages)
	assert.Nil(t, record.EmployeeFullName)
	assert.Equal(t, DefaultStatus, record.Status)
}

func TestNormalize_RepairsDoubledQuotes(t *testing.T) {
	record, err := New().Normalize([]byte(`{""chat_id"":""c1"",""status"":""Closed""}`))
	require.NoError(t, err)
	require.NotNil(t, record.ChatIdentifier)
	assert.Equal(t, "c1", *record.ChatIdentifier)
	assert.Equal(t, "Closed", record.Status)
}

func TestNormalize_Messages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "plain text wrapped", body: `{"messages":"hello"}`, want: `{"text":"hello"}`},
		{name: "object unchanged", body: `{"messages":{"a":1}}`, want: `{"a":1}`},
		{name: "array unchanged", body: `{"messages":[{"text":"a"},{"text":"b"}]}`, want: `[{"text":"a"},{"text":"b"}]`},
		{name: "whitespace compacted", body: `{"messages": { "a" : [1, 2] }}`, want: `{"a":[1,2]}`},
		{name: "number kept", body: `{"messages":42}`, want: `42`},
		{name: "empty string wrapped", body: `{"messages":""}`, want: `{"text":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := New().Normalize([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(record.Messages))
			assert.True(t, json.Valid(record.Messages))
		})
	}

	t.Run("absent is null", func(t *testing.T) {
		record, err := New().Normalize([]byte(`{}`))
		require.NoError(t, err)
		assert.Nil(t, record.Messages)
	})

	t.Run("explicit null is null", func(t *testing.T) {
		record, err := New().Normalize([]byte(`{"messages":null}`))
		require.NoError(t, err)
		assert.Nil(t, record.Messages)
	})
}

func TestNormalize_NotificationTime(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *time.Time
	}{
		{
			name: "fractional seconds",
			body: `{"notification_time":"2024-01-02 03:04:05.123456"}`,
			want: ptrTime(time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC)),
		},
		{
			name: "whole seconds",
			body: `{"notification_time":"2024-01-02 03:04:05"}`,
			want: ptrTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		},
		{name: "unparseable", body: `{"notification_time":"not-a-date"}`},
		{name: "absent", body: `{}`},
		{name: "wrong type", body: `{"notification_time":1704164645}`},
		{name: "null", body: `{"notification_time":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := New().Normalize([]byte(tt.body))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, record.NotificationTime)
				return
			}
			require.NotNil(t, record.NotificationTime)
			assert.True(t, tt.want.Equal(*record.NotificationTime))
		})
	}
}

func TestNormalize_VisitorInfo(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantName *string
		wantID   *string
	}{
		{name: "missing", body: `{}`},
		{name: "null", body: `{"visitor_info":null}`},
		{name: "wrong shape", body: `{"visitor_info":"A"}`},
		{name: "array", body: `{"visitor_info":["A","v1"]}`},
		{name: "partial", body: `{"visitor_info":{"visitor_name":"A"}}`, wantName: ptrString("A")},
		{name: "numeric id", body: `{"visitor_info":{"visitor_name":"A","visitor_id":12345}}`, wantName: ptrString("A"), wantID: ptrString("12345")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := New().Normalize([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, record.VisitorName)
			assert.Equal(t, tt.wantID, record.VisitorID)
		})
	}
}

func TestNormalize_Status(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{body: `{}`, want: "Open"},
		{body: `{"status":null}`, want: "Open"},
		{body: `{"status":"Closed"}`, want: "Closed"},
		{body: `{"status":"SomethingNew"}`, want: "SomethingNew"},
		{body: `{"status":""}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			record, err := New().Normalize([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, record.Status)
		})
	}
}

func TestNormalize_MistypedPassThrough(t *testing.T) {
	record, err := New().Normalize([]byte(`{"chat_id":987,"visitor_phone_number":true,"employee_full_name":{"first":"J"}}`))
	require.NoError(t, err)
	assert.Equal(t, ptrString("987"), record.ChatIdentifier)
	assert.Equal(t, ptrString("true"), record.VisitorPhoneNumber)
	assert.Equal(t, ptrString(`{"first":"J"}`), record.EmployeeFullName)
}

func TestNormalize_NonObjectDocument(t *testing.T) {
	for _, body := range []string{`[]`, `[1,2]`, `"text"`, `42`, `null`, `true`} {
		t.Run(body, func(t *testing.T) {
			record, err := New().Normalize([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, DefaultStatus, record.Status)
			assert.Nil(t, record.ChatIdentifier)
			assert.Nil(t, record.Messages)
		})
	}
}

// Any structurally valid object must normalize, whatever its field values.
func TestNormalize_NeverFailsOnValidJSON(t *testing.T) {
	faker := gofakeit.New(20240102)
	n := New()

	values := []func() interface{}{
		func() interface{} { return faker.Name() },
		func() interface{} { return faker.Phone() },
		func() interface{} { return faker.Number(-1000, 1000) },
		func() interface{} { return faker.Bool() },
		func() interface{} { return nil },
		func() interface{} { return faker.Date().Format("2006-01-02 15:04:05.000000") },
		func() interface{} { return faker.Date().Format(time.RFC1123) },
		func() interface{} { return []string{faker.Word(), faker.Word()} },
		func() interface{} { return map[string]interface{}{"visitor_name": faker.Name(), "visitor_id": faker.UUID()} },
		func() interface{} { return faker.Sentence(8) },
	}
	fields := []string{
		FieldNotificationTime, FieldChatID, FieldVisitorPhoneNumber, FieldMessages,
		FieldEmployeeFullName, FieldVisitorInfo, FieldStatus, "extra_" + faker.Word(),
	}

	for i := 0; i < 500; i++ {
		event := map[string]interface{}{}
		for _, field := range fields {
			if faker.Bool() {
				event[field] = values[faker.Number(0, len(values)-1)]()
			}
		}
		body, err := json.Marshal(event)
		require.NoError(t, err)

		record, err := n.Normalize(body)
		require.NoError(t, err, "body %s", body)
		require.NotNil(t, record)
		if record.Messages != nil {
			assert.True(t, json.Valid(record.Messages), "messages %s", record.Messages)
		}
	}
}

func ptrString(s string) *string { return &s }

func ptrTime(t time.Time) *time.Time { return &t }
