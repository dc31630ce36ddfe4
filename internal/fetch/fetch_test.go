package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockOpener struct {
	OpenFunc func(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

func (m *mockOpener) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return m.OpenFunc(ctx, bucket, object)
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.xlsx":
			_, _ = w.Write([]byte("workbook"))
		case "/big.xlsx":
			_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &Fetcher{HTTP: srv.Client(), MaxBytes: 32}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "ok", path: "/ok.xlsx", want: "workbook"},
		{name: "not found", path: "/missing.xlsx", wantErr: ErrUnavailable},
		{name: "too large", path: "/big.xlsx", wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Fetch(context.Background(), srv.URL+tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Fetch() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetch_GCS(t *testing.T) {
	var gotBucket, gotObject string
	f := &Fetcher{
		Objects: &mockOpener{
			OpenFunc: func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
				gotBucket, gotObject = bucket, object
				if object == "missing.xlsx" {
					return nil, errors.New("object doesn't exist")
				}
				return io.NopCloser(bytes.NewReader([]byte("gcs-bytes"))), nil
			},
		},
	}

	data, err := f.Fetch(context.Background(), "gs://statements/2024/05/export.xlsx")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "gcs-bytes" {
		t.Errorf("Fetch() = %q", data)
	}
	if gotBucket != "statements" || gotObject != "2024/05/export.xlsx" {
		t.Errorf("opened %s/%s", gotBucket, gotObject)
	}

	if _, err := f.Fetch(context.Background(), "gs://statements/missing.xlsx"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing object error = %v, want ErrUnavailable", err)
	}
	if _, err := f.Fetch(context.Background(), "gs://statements"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("bucket-only uri error = %v, want ErrUnsupportedScheme", err)
	}
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	f := &Fetcher{}
	for _, raw := range []string{"ftp://host/file.xlsx", "/tmp/local.xlsx", "file:///tmp/x.xlsx"} {
		if _, err := f.Fetch(context.Background(), raw); !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("Fetch(%q) error = %v, want ErrUnsupportedScheme", raw, err)
		}
	}
}

func TestFetch_NoStorageClient(t *testing.T) {
	f := New(nil, 0, 0)
	if _, err := f.Fetch(context.Background(), "gs://b/o.xlsx"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Fetch() error = %v, want ErrUnavailable", err)
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/statement.xlsx":    "statement.xlsx",
		"https://host/dl/export.csv?token=abc": "export.csv",
		"gs://bucket":                          "",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}
