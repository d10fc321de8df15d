package dlq

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/callgear-sync/cg-webhook/internal/logging"
	"github.com/callgear-sync/cg-webhook/internal/middleware"
)

// Queue writes rejected payloads to a directory, one JSON file each.
type Queue struct {
	basePath string
	logger   *logging.Logger
	mu       sync.Mutex
	written  uint64
}

// NewQueue creates a Queue rooted at basePath, creating the directory if needed.
func NewQueue(basePath string, logger *logging.Logger) (*Queue, error) {
	if basePath == "" {
		basePath = "./dlq"
	}
	if logger == nil {
		logger = logging.Default()
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}

	return &Queue{
		basePath: basePath,
		logger:   logger,
	}, nil
}

func (q *Queue) Write(ctx context.Context, payload []byte, err error, reason string) error {
	if q == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	failed := newFailedPayload(payload, err, reason, middleware.RequestIDFrom(ctx))

	filename := fmt.Sprintf("failed_%s_%d_%06d.json", reason, failed.Timestamp.UnixNano(), q.written)
	filePath := filepath.Join(q.basePath, filename)

	data, marshalErr := json.MarshalIndent(failed, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("marshal dlq entry: %w", marshalErr)
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("write dlq entry: %w", err)
	}

	q.written++
	q.logger.InfoContext(ctx, "captured rejected payload",
		logging.Reason(reason),
		logging.Bytes(len(payload)),
		"file", filename,
	)

	return nil
}

// Stats reports how many entries this process wrote and how many files are pending.
func (q *Queue) Stats() map[string]interface{} {
	if q == nil {
		return map[string]interface{}{
			"enabled": false,
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := q.entries()
	if err != nil {
		return map[string]interface{}{
			"enabled":       true,
			"backend":       "file",
			"written":       q.written,
			"pending_files": 0,
			"error":         err.Error(),
		}
	}

	return map[string]interface{}{
		"enabled":       true,
		"backend":       "file",
		"written":       q.written,
		"pending_files": len(files),
		"base_path":     q.basePath,
	}
}

// List returns up to limit captured payloads, oldest first. A limit of zero lists all.
func (q *Queue) List(ctx context.Context, limit int) ([]FailedPayload, error) {
	if q == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	names, err := q.entries()
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}

	var out []FailedPayload
	for _, name := range names {
		if limit > 0 && len(out) >= limit {
			break
		}

		data, err := os.ReadFile(filepath.Join(q.basePath, name))
		if err != nil {
			q.logger.WarnContext(ctx, "failed to read dlq file", "file", name, logging.Error(err))
			continue
		}

		var failed FailedPayload
		if err := json.Unmarshal(data, &failed); err != nil {
			q.logger.WarnContext(ctx, "failed to parse dlq file", "file", name, logging.Error(err))
			continue
		}
		out = append(out, failed)
	}

	return out, nil
}

// Purge deletes entries older than maxAge and returns how many were removed.
func (q *Queue) Purge(maxAge time.Duration) (int, error) {
	if q == nil {
		return 0, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	names, err := q.entries()
	if err != nil {
		return 0, fmt.Errorf("read dlq directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, name := range names {
		path := filepath.Join(q.basePath, name)
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}

	return removed, nil
}

func (q *Queue) Close() error {
	return nil
}

func (q *Queue) entries() ([]string, error) {
	files, err := os.ReadDir(q.basePath)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), "failed_") || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return entryTime(names[i]) < entryTime(names[j])
	})
	return names, nil
}

// entryTime extracts the nanosecond timestamp from failed_<reason>_<nanos>_<seq>.json.
func entryTime(name string) string {
	parts := strings.Split(strings.TrimSuffix(name, ".json"), "_")
	if len(parts) < 3 {
		return name
	}
	return strings.Join(parts[len(parts)-2:], "_")
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
