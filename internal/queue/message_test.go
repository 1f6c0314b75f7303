package queue

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		Type:          TypeSignatureCompleted,
		DocumentID:    "doc-123",
		UserID:        "user-9",
		CertificateID: "cert-1",
		SignedAt:      "2026-01-30T21:59:00Z",
		RequestID:     "request-456",
		EnqueuedAt:    "2026-01-30T22:00:00Z",
		Version:       CurrentVersion,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestMessageValidate(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{name: "signature", msg: Message{Type: TypeSignatureCompleted, DocumentID: "d", UserID: "u"}, ok: true},
		{name: "shared", msg: Message{Type: TypeDocumentShared, DocumentID: "d"}, ok: true},
		{name: "unknown type", msg: Message{Type: "document.archived", DocumentID: "d"}},
		{name: "missing document", msg: Message{Type: TypeDocumentShared}},
		{name: "signature without user", msg: Message{Type: TypeSignatureCompleted, DocumentID: "d"}},
		{name: "bad signedAt", msg: Message{Type: TypeSignatureCompleted, DocumentID: "d", UserID: "u", SignedAt: "yesterday"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidMessage) {
				t.Fatalf("expected ErrInvalidMessage, got %v", err)
			}
		})
	}
}

func TestSignedTimeFallsBack(t *testing.T) {
	fallback := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := (Message{}).SignedTime(fallback); !got.Equal(fallback) {
		t.Fatalf("expected fallback, got %v", got)
	}
	msg := Message{SignedAt: "2026-01-30T21:59:00+01:00"}
	want := time.Date(2026, 1, 30, 20, 59, 0, 0, time.UTC)
	if got := msg.SignedTime(fallback); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMemoryClientRecordsMessages(t *testing.T) {
	c := NewMemoryClient()
	if err := c.Send(context.Background(), Message{Type: TypeDocumentShared, DocumentID: "d"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := c.Sent()
	if len(sent) != 1 || sent[0].DocumentID != "d" {
		t.Fatalf("unexpected sent messages %+v", sent)
	}
}
