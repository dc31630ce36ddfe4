// Package fetch downloads statement workbooks from gs:// or http(s) URLs.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// DefaultMaxBytes bounds a downloaded workbook.
const DefaultMaxBytes int64 = 32 << 20

var (
	// ErrUnsupportedScheme is returned for URLs that are neither gs:// nor http(s)://.
	ErrUnsupportedScheme = errors.New("unsupported source url scheme")
	// ErrUnavailable wraps any failure to retrieve a well-formed source URL.
	ErrUnavailable = errors.New("source unavailable")
	// ErrTooLarge is returned when the source exceeds the configured size limit.
	ErrTooLarge = errors.New("source exceeds size limit")
)

// ObjectOpener opens a GCS object for reading.
type ObjectOpener interface {
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// GCSOpener is the ObjectOpener backed by a shared storage client.
type GCSOpener struct {
	Client *storage.Client
}

// Open implements ObjectOpener.
func (o GCSOpener) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return o.Client.Bucket(bucket).Object(object).NewReader(ctx)
}

// Fetcher downloads sources. The zero value only supports http(s) URLs.
type Fetcher struct {
	Objects  ObjectOpener
	HTTP     *http.Client
	MaxBytes int64
}

// New creates a Fetcher. client may be nil when gs:// sources are not needed.
func New(client *storage.Client, timeout time.Duration, maxBytes int64) *Fetcher {
	f := &Fetcher{
		HTTP:     &http.Client{Timeout: timeout},
		MaxBytes: maxBytes,
	}
	if client != nil {
		f.Objects = GCSOpener{Client: client}
	}
	return f
}

// Fetch returns the bytes behind sourceURL.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return nil, fmt.Errorf("Fetch: parsing url: %w", ErrUnsupportedScheme)
	}

	switch strings.ToLower(u.Scheme) {
	case "gs":
		return f.fetchGCS(ctx, u)
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	default:
		return nil, fmt.Errorf("Fetch: %q: %w", u.Scheme, ErrUnsupportedScheme)
	}
}

func (f *Fetcher) fetchGCS(ctx context.Context, u *url.URL) ([]byte, error) {
	bucket := u.Host
	object := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return nil, fmt.Errorf("fetchGCS: invalid GCS URI (no object path): %s: %w", u, ErrUnsupportedScheme)
	}
	if f.Objects == nil {
		return nil, fmt.Errorf("fetchGCS: no storage client configured: %w", ErrUnavailable)
	}

	rc, err := f.Objects.Open(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("fetchGCS: reading object %s/%s: %v: %w", bucket, object, err, ErrUnavailable)
	}
	defer rc.Close()

	return f.readLimited(rc)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetchHTTP: building request: %v: %w", err, ErrUnavailable)
	}

	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetchHTTP: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetchHTTP: status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	return f.readLimited(resp.Body)
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("readLimited: reading bytes: %v: %w", err, ErrUnavailable)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("readLimited: more than %d bytes: %w", limit, ErrTooLarge)
	}
	return data, nil
}

// FileName extracts the base file name from a source URL.
// e.g., "gs://bucket/folder/statement.xlsx" → "statement.xlsx"
func FileName(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Path == "" {
		return ""
	}
	return path.Base(u.Path)
}
