package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"docsign-backend/internal/shared/storage/object"
)

func TestSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	key, size, mime, err := store.Save(ctx, "user-1", "contract.pdf", strings.NewReader("%PDF-1.4\nbody"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len("%PDF-1.4\nbody")) {
		t.Fatalf("unexpected size %d", size)
	}
	if mime != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", mime)
	}
	if !strings.HasSuffix(key, "_contract.pdf") {
		t.Fatalf("unexpected key %q", key)
	}

	if got, err := store.Size(ctx, key); err != nil || got != size {
		t.Fatalf("Size = %d, %v; want %d", got, err, size)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if _, err := store.Open(ctx, key); err == nil {
		t.Fatalf("expected open after delete to fail")
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../etc/passwd", "/abs/path", "."} {
		if _, err := store.Open(context.Background(), key); !errors.Is(err, object.ErrInvalidKey) {
			t.Fatalf("Open(%q): expected ErrInvalidKey, got %v", key, err)
		}
		if _, err := store.SaveWithKey(context.Background(), key, "text/plain", strings.NewReader("x")); !errors.Is(err, object.ErrInvalidKey) {
			t.Fatalf("SaveWithKey(%q): expected ErrInvalidKey, got %v", key, err)
		}
	}
}
