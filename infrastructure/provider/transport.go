package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hibikido/hibikido/internal/database"
)

// CachingTransport is an http.RoundTripper that caches POST request/response
// pairs in a SQLite database under dir, keyed by the SHA-256 of
// method + URL + request body. Only 2xx responses are cached. Cache read and
// write errors are non-fatal; they silently fall through to the inner
// transport.
type CachingTransport struct {
	inner http.RoundTripper
	db    database.Database
}

// cacheEntry is one cached response row.
type cacheEntry struct {
	Key        string `gorm:"primaryKey;size:64"`
	StatusCode int
	Header     []byte
	Body       []byte
	CreatedAt  time.Time
}

// TableName returns the table name for cache entries.
func (cacheEntry) TableName() string {
	return "http_cache"
}

// NewCachingTransport creates a CachingTransport backed by a cache database
// under dir. If inner is nil, http.DefaultTransport is used.
func NewCachingTransport(dir string, inner http.RoundTripper) (*CachingTransport, error) {
	if inner == nil {
		inner = http.DefaultTransport
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	// The cache is an accelerator, not a log; its own errors never reach
	// callers, so its database stays quiet too.
	db, err := database.New(context.Background(), "sqlite:///"+filepath.Join(dir, "http_cache.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if err := db.GORM().AutoMigrate(&cacheEntry{}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}

	return &CachingTransport{inner: inner, db: db}, nil
}

// RoundTrip implements http.RoundTripper.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	key := cacheKey(req.Method, req.URL.String(), body)

	if resp, ok := t.readCache(key, req); ok {
		return resp, nil
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()

	t.writeCache(key, resp.StatusCode, resp.Header, respBody)

	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	return resp, nil
}

// Close releases the cache database.
func (t *CachingTransport) Close() error {
	return t.db.Close()
}

// cacheKey derives the cache row key from the request identity.
func cacheKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("\n"))
	h.Write([]byte(url))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (t *CachingTransport) readCache(key string, req *http.Request) (*http.Response, bool) {
	var entry cacheEntry
	if err := t.db.GORM().First(&entry, "`key` = ?", key).Error; err != nil {
		return nil, false
	}

	var header http.Header
	if err := json.Unmarshal(entry.Header, &header); err != nil {
		return nil, false
	}

	resp := &http.Response{
		StatusCode: entry.StatusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(entry.Body)),
		Request:    req,
	}
	return resp, true
}

func (t *CachingTransport) writeCache(key string, statusCode int, header http.Header, body []byte) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return
	}
	entry := cacheEntry{
		Key:        key,
		StatusCode: statusCode,
		Header:     headerJSON,
		Body:       body,
	}
	_ = t.db.GORM().Save(&entry).Error
}
