// Package workerproc decodes queue payloads and applies them to the share
// workflow. It is shared by the long-running worker and the Lambda handler.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"docsign-backend/internal/queue"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shares"
)

// SignatureApplier records signatures reported by the signing engine.
type SignatureApplier interface {
	CompleteSignature(ctx context.Context, done shares.SignatureCompletion) (shares.RosterView, error)
}

// MessageMeta identifies a payload in logs without printing it.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// Stage names where message handling stopped. The values double as log
// event suffixes.
type Stage string

const (
	StageEmpty     Stage = "empty_body"
	StageDecode    Stage = "decode_failed"
	StageMissingID Stage = "missing_id"
	StageInvalid   Stage = "invalid"
	StageProcess   Stage = "process_failed"
)

// MessageError reports why a message was not applied.
type MessageError struct {
	Stage      Stage
	Meta       MessageMeta
	DocumentID string
	UserID     string
	RequestID  string
	Err        error
}

func (e *MessageError) Error() string {
	if e.Err == nil {
		return string(e.Stage)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *MessageError) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the message cannot succeed.
// A signature reported out of turn is retried, since the earlier signer's
// completion may still be in flight.
func Unrecoverable(err error) bool {
	var me *MessageError
	if !errors.As(err, &me) {
		return false
	}
	if me.Stage != StageProcess {
		return true
	}
	return errors.Is(err, shares.ErrNotFound) ||
		errors.Is(err, shares.ErrInvalidInput) ||
		errors.Is(err, shares.ErrForbidden)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	fail := func(stage Stage, msg queue.Message, err error) (queue.Message, MessageMeta, error) {
		return msg, meta, &MessageError{Stage: stage, Meta: meta, DocumentID: msg.DocumentID, RequestID: msg.RequestID, Err: err}
	}
	if strings.TrimSpace(body) == "" {
		return fail(StageEmpty, queue.Message{}, nil)
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return fail(StageDecode, queue.Message{}, err)
	}
	if strings.TrimSpace(msg.DocumentID) == "" {
		return fail(StageMissingID, msg, nil)
	}
	if err := msg.Validate(); err != nil {
		return fail(StageInvalid, msg, err)
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message so HandleMessage skips parsing.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

// HandleMessage parses, validates and applies a message payload.
func HandleMessage(ctx context.Context, applier SignatureApplier, body string) error {
	if applier == nil {
		return errors.New("share service not configured")
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	if !ok {
		var err error
		if msg, _, err = ParseMessage(body); err != nil {
			return err
		}
	}

	ctx = telemetry.WithRequestID(ctx, msg.RequestID)
	switch msg.Type {
	case queue.TypeSignatureCompleted:
		return applySignature(ctx, applier, msg)
	case queue.TypeDocumentShared:
		telemetry.Info("worker.notification.shared", telemetry.Fields(ctx, map[string]any{
			"document_id": msg.DocumentID,
			"owner_id":    msg.UserID,
			"recipients":  len(msg.Recipients),
		}))
		return nil
	}
	return &MessageError{Stage: StageInvalid, Meta: ComputeMeta(body), DocumentID: msg.DocumentID, RequestID: msg.RequestID, Err: queue.ErrInvalidMessage}
}

func applySignature(ctx context.Context, applier SignatureApplier, msg queue.Message) error {
	view, err := applier.CompleteSignature(ctx, shares.SignatureCompletion{
		DocumentID:    msg.DocumentID,
		UserID:        msg.UserID,
		CertificateID: msg.CertificateID,
		SignedAt:      msg.SignedTime(time.Time{}),
	})
	if err != nil {
		return &MessageError{Stage: StageProcess, DocumentID: msg.DocumentID, UserID: msg.UserID, RequestID: msg.RequestID, Err: err}
	}
	telemetry.Info("worker.signature.applied", telemetry.Fields(ctx, map[string]any{
		"document_id": msg.DocumentID,
		"user_id":     msg.UserID,
		"signed":      view.Progress.Signed,
		"total":       view.Progress.Total,
	}))
	return nil
}
