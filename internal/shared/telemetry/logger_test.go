package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriteEmitsOneJSONLinePerCall(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Info("shares.signed", map[string]any{"document_id": "doc-1", "msg": "overridden"})
	Error("shares.failed", Err(nil, errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["level"] != "info" || first["msg"] != "shares.signed" || first["document_id"] != "doc-1" {
		t.Fatalf("unexpected entry: %v", first)
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second["level"] != "error" || second["error"] != "boom" {
		t.Fatalf("unexpected entry: %v", second)
	}
}

func TestRequestIDTravelsInContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if RequestID(ctx) != "req-1" {
		t.Fatalf("expected req-1, got %q", RequestID(ctx))
	}
	if WithRequestID(ctx, "") != ctx {
		t.Fatalf("empty id should not wrap the context")
	}

	base := map[string]any{"document_id": "doc-1"}
	fields := Fields(ctx, base)
	if fields["request_id"] != "req-1" || fields["document_id"] != "doc-1" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := base["request_id"]; ok {
		t.Fatalf("Fields must not modify its input")
	}
	if _, ok := Fields(context.Background(), nil)["request_id"]; ok {
		t.Fatalf("no request id expected")
	}
}
