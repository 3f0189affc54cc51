package s3blob

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeWriter struct {
	puts       map[string][]byte
	multiparts map[string][]byte
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		puts:       make(map[string][]byte),
		multiparts: make(map[string][]byte),
	}
}

func (f *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.puts[path] = b
	return nil
}

func (f *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.multiparts[path] = b
	return nil
}

func TestArchivePayloadKeyLayout(t *testing.T) {
	writer := newFakeWriter()
	a := NewPayloadArchiver(writer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	payload := []byte(`{"balances": []}`)
	if err := a.ArchivePayload(context.Background(), "run-1", "balances", payload); err != nil {
		t.Fatalf("ArchivePayload: %v", err)
	}

	if len(writer.puts) != 1 || len(writer.multiparts) != 0 {
		t.Fatalf("puts = %d multiparts = %d", len(writer.puts), len(writer.multiparts))
	}
	for key, stored := range writer.puts {
		wantPrefix := "raw/" + time.Now().UTC().Format("2006-01-02") + "/run-1/"
		if !strings.HasPrefix(key, wantPrefix) || !strings.HasSuffix(key, "balances.json") {
			t.Errorf("key = %q", key)
		}
		if !bytes.Equal(stored, payload) {
			t.Errorf("stored = %s", stored)
		}
	}
}

func TestArchivePayloadLargeUsesMultipart(t *testing.T) {
	writer := newFakeWriter()
	a := NewPayloadArchiver(writer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	payload := bytes.Repeat([]byte("x"), multipartThreshold)
	if err := a.ArchivePayload(context.Background(), "run-2", "positions", payload); err != nil {
		t.Fatalf("ArchivePayload: %v", err)
	}

	if len(writer.multiparts) != 1 || len(writer.puts) != 0 {
		t.Errorf("puts = %d multiparts = %d, want multipart path", len(writer.puts), len(writer.multiparts))
	}
}
