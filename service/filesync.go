package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xiaodingfeng/contract-review/pkg/logger"
)

// FileSync downloads a saved document from the editor's document server
// and replaces the contract's stored file. Writes for the same document
// key are serialized so two overlapping save callbacks cannot interleave
// their bytes, and the replacement is atomic: a failed download never
// leaves a truncated file behind.
type FileSync struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileSync(timeoutSeconds, maxRetries int) *FileSync {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &FileSync{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		maxRetries: maxRetries,
		backoff:    time.Second,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding a document key. Locks are kept for
// the lifetime of the process; the set of keys is bounded by the number
// of contracts.
func (s *FileSync) lockFor(documentKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[documentKey]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[documentKey] = lock
	}
	return lock
}

// Replace fetches downloadURL and atomically installs the bytes at
// destPath. Transient download failures are retried; write failures are
// not.
func (s *FileSync) Replace(ctx context.Context, documentKey, downloadURL, destPath string) error {
	lock := s.lockFor(documentKey)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn(ctx, "retrying document download",
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-time.After(time.Duration(attempt) * s.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var transient bool
		lastErr, transient = s.fetchAndReplace(ctx, downloadURL, destPath)
		if lastErr == nil {
			return nil
		}
		if !transient {
			return lastErr
		}
	}
	return lastErr
}

func (s *FileSync) fetchAndReplace(ctx context.Context, downloadURL, destPath string) (err error, transient bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err), false
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download document: %w", err), true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download document: status %d", resp.StatusCode), resp.StatusCode >= 500
	}

	// Stream into a temp file in the destination directory, then rename
	// over the target. Rename within one directory is atomic, so readers
	// either see the old bytes or the new ones, never a partial write.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".saving-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err), false
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write document: %w", err), true
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync document: %w", err), false
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err), false
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace document: %w", err), false
	}

	return nil, false
}
