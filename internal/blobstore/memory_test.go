package blobstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_ReadWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Read(ctx, "missing.json"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Read(missing) error = %v, want ErrNotExist", err)
	}

	data := []byte(`{"a":1}`)
	if err := s.Write(ctx, "p/2024-05.json", data, "application/json"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data[0] = 'X'

	got, err := s.Read(ctx, "p/2024-05.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("stored bytes were aliased: %q", got)
	}
	if ct := s.ContentType("p/2024-05.json"); ct != "application/json" {
		t.Errorf("ContentType = %q", ct)
	}
	if s.Writes() != 1 {
		t.Errorf("Writes = %d, want 1", s.Writes())
	}
}

func TestMemoryStore_WriteHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	if err := s.Write(ctx, "x", nil, ""); err == nil {
		t.Error("Write() on cancelled context should fail")
	}
	if len(s.Names()) != 0 {
		t.Errorf("Names = %v, want none", s.Names())
	}
}
