package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message types carried on the queues.
const (
	// TypeDocumentShared is sent outbound so a notifier can tell participants.
	TypeDocumentShared = "document.shared"
	// TypeSignatureCompleted arrives from the signing engine once a user's
	// signature has been applied to the PDF.
	TypeSignatureCompleted = "signature.completed"
)

const CurrentVersion = 1

var ErrInvalidMessage = errors.New("invalid queue message")

// Message is the payload exchanged with queue producers and consumers.
type Message struct {
	Type          string   `json:"type"`
	DocumentID    string   `json:"documentId"`
	UserID        string   `json:"userId,omitempty"`
	CertificateID string   `json:"certificateId,omitempty"`
	Recipients    []string `json:"recipients,omitempty"`
	SignedAt      string   `json:"signedAt,omitempty"`
	RequestID     string   `json:"requestId,omitempty"`
	EnqueuedAt    string   `json:"enqueuedAt"`
	Version       int      `json:"version"`
}

// Validate checks the fields every consumer relies on.
func (m Message) Validate() error {
	switch m.Type {
	case TypeDocumentShared, TypeSignatureCompleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	if strings.TrimSpace(m.DocumentID) == "" {
		return fmt.Errorf("%w: documentId is required", ErrInvalidMessage)
	}
	if m.Type == TypeSignatureCompleted && strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidMessage)
	}
	if m.SignedAt != "" {
		if _, err := time.Parse(time.RFC3339, m.SignedAt); err != nil {
			return fmt.Errorf("%w: signedAt: %v", ErrInvalidMessage, err)
		}
	}
	return nil
}

// SignedTime parses SignedAt, falling back to fallback when it is empty.
func (m Message) SignedTime(fallback time.Time) time.Time {
	if m.SignedAt == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, m.SignedAt)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
