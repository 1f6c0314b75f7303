package workerproc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign-backend/internal/queue"
	"docsign-backend/internal/shares"
)

type fakeApplier struct {
	got []shares.SignatureCompletion
	err error
}

func (f *fakeApplier) CompleteSignature(_ context.Context, done shares.SignatureCompletion) (shares.RosterView, error) {
	f.got = append(f.got, done)
	return shares.RosterView{DocumentID: done.DocumentID}, f.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	require.NoError(t, err)
	return string(body)
}

func stageOf(t *testing.T, err error) *MessageError {
	t.Helper()
	var me *MessageError
	require.ErrorAs(t, err, &me)
	return me
}

func TestParseMessageStages(t *testing.T) {
	_, _, err := ParseMessage("  ")
	assert.Equal(t, StageEmpty, stageOf(t, err).Stage)

	_, meta, err := ParseMessage("{oops")
	assert.Equal(t, StageDecode, stageOf(t, err).Stage)
	assert.Len(t, meta.BodySHA, 64)

	_, _, err = ParseMessage(`{"type":"signature.completed","userId":"u1","requestId":"r1"}`)
	me := stageOf(t, err)
	assert.Equal(t, StageMissingID, me.Stage)
	assert.Equal(t, "r1", me.RequestID)

	_, _, err = ParseMessage(`{"type":"document.archived","documentId":"d1"}`)
	me = stageOf(t, err)
	assert.Equal(t, StageInvalid, me.Stage)
	assert.Equal(t, "d1", me.DocumentID)
	assert.ErrorIs(t, err, queue.ErrInvalidMessage)
}

func TestHandleMessageAppliesSignature(t *testing.T) {
	applier := &fakeApplier{}
	body := encode(t, queue.Message{
		Type:          queue.TypeSignatureCompleted,
		DocumentID:    "doc-1",
		UserID:        "alice",
		CertificateID: "cert-1",
		SignedAt:      "2026-03-04T05:06:07Z",
		RequestID:     "req-1",
	})

	require.NoError(t, HandleMessage(context.Background(), applier, body))
	require.Len(t, applier.got, 1)
	got := applier.got[0]
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "cert-1", got.CertificateID)
	assert.True(t, got.SignedAt.Equal(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)))
}

func TestHandleMessageUsesParsedMessageFromContext(t *testing.T) {
	applier := &fakeApplier{}
	msg := queue.Message{Type: queue.TypeSignatureCompleted, DocumentID: "doc-2", UserID: "bob"}
	ctx := WithParsedMessage(context.Background(), msg)

	require.NoError(t, HandleMessage(ctx, applier, "ignored"))
	require.Len(t, applier.got, 1)
	assert.Equal(t, "doc-2", applier.got[0].DocumentID)
	assert.True(t, applier.got[0].SignedAt.IsZero())
}

func TestHandleMessageAcknowledgesShareNotifications(t *testing.T) {
	applier := &fakeApplier{}
	body := encode(t, queue.Message{Type: queue.TypeDocumentShared, DocumentID: "doc-1", Recipients: []string{"a", "b"}})
	require.NoError(t, HandleMessage(context.Background(), applier, body))
	assert.Empty(t, applier.got)
}

func TestUnrecoverableClassification(t *testing.T) {
	process := func(err error) error { return &MessageError{Stage: StageProcess, Err: err} }
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"empty", &MessageError{Stage: StageEmpty}, true},
		{"decode", &MessageError{Stage: StageDecode, Err: errors.New("bad")}, true},
		{"missing document", &MessageError{Stage: StageMissingID}, true},
		{"invalid", &MessageError{Stage: StageInvalid, Err: queue.ErrInvalidMessage}, true},
		{"unknown document", process(shares.ErrNotFound), true},
		{"viewer signature", process(shares.ErrForbidden), true},
		{"out of turn", process(shares.ErrNotYourTurn), false},
		{"database down", process(errors.New("connection refused")), false},
		{"plain error", errors.New("share service not configured"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Unrecoverable(tc.err))
		})
	}
}

func TestHandleMessageWrapsProcessErrors(t *testing.T) {
	applier := &fakeApplier{err: shares.ErrNotYourTurn}
	body := encode(t, queue.Message{Type: queue.TypeSignatureCompleted, DocumentID: "doc-1", UserID: "bob", RequestID: "req-9"})

	err := HandleMessage(context.Background(), applier, body)
	me := stageOf(t, err)
	assert.Equal(t, StageProcess, me.Stage)
	assert.Equal(t, "req-9", me.RequestID)
	assert.ErrorIs(t, err, shares.ErrNotYourTurn)
	assert.False(t, Unrecoverable(err))
}
