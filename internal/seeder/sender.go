package seeder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result counts responses by HTTP status.
type Result struct {
	Sent     int
	ByStatus map[int]int
	Errors   int
}

// Sender posts generated bodies to a webhook URL.
type Sender struct {
	client    *http.Client
	url       string
	generator *Generator
}

func NewSender(url string, generator *Generator, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		client:    &http.Client{Timeout: timeout},
		url:       url,
		generator: generator,
	}
}

// Run posts count bodies, waiting interval between them. It stops early when ctx is done.
func (s *Sender) Run(ctx context.Context, count int, interval time.Duration) (Result, error) {
	result := Result{ByStatus: make(map[int]int)}

	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(interval):
			}
		}

		status, err := s.post(ctx, s.generator.Body())
		result.Sent++
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors++
			continue
		}
		result.ByStatus[status]++
	}

	return result, nil
}

func (s *Sender) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
