package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/irt-tools/cat-service/internal/config"
)

// ResultStore archives exported result files. Stores are best-effort by
// contract: callers treat failures as warnings, never as session aborts.
type ResultStore interface {
	Store(ctx context.Context, name string, data []byte) error
}

// New builds the store the study configuration selects.
func New(cfg config.StorageConfig, fallbackDir string) (ResultStore, error) {
	switch cfg.Destination {
	case config.StorageWebDAV:
		return NewWebDAVStore(cfg.WebDAVURL, cfg.ShareToken, cfg.SharePasswd)
	default:
		dir := cfg.LocalDir
		if dir == "" {
			dir = fallbackDir
		}
		return NewLocalStore(dir), nil
	}
}

// LocalStore writes result files into a directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Store(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}

// WebDAVStore uploads result files to a shared WebDAV folder with a single
// PUT per file. On public share endpoints the share token doubles as the
// basic-auth username.
type WebDAVStore struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

func NewWebDAVStore(baseURL, shareToken, password string) (*WebDAVStore, error) {
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid webdav url %q", baseURL)
	}
	return &WebDAVStore{
		baseURL:  baseURL,
		username: shareToken,
		password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *WebDAVStore) Store(ctx context.Context, name string, data []byte) error {
	target, err := url.JoinPath(s.baseURL, name)
	if err != nil {
		return fmt.Errorf("failed to build upload url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.SetBasicAuth(s.username, s.password)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}
	return nil
}
