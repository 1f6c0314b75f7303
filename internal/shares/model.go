// Package shares runs the share and sign workflow of a document on top of
// the signing-order engine.
package shares

import (
	"time"

	"docsign-backend/internal/documents"
	"docsign-backend/internal/signing"
)

// ParticipantInput is one entry of a submitted share. Order of the slice is
// the signing order; Step is informational.
type ParticipantInput struct {
	UserID     string `json:"userId"`
	Step       int    `json:"step"`
	Parallel   bool   `json:"parallel"`
	Permission string `json:"permission"`
}

type ShareRequest struct {
	DocumentID   string
	Message      string
	Downloadable bool
	Participants []ParticipantInput
}

type Progress struct {
	Signed int `json:"signed"`
	Total  int `json:"total"`
}

// RosterView is a document's participants plus the turn state derived for
// the caller.
type RosterView struct {
	DocumentID string               `json:"documentId"`
	Status     documents.Status     `json:"status"`
	Signers    []signing.Assignment `json:"signers"`
	Viewers    []signing.Assignment `json:"viewers"`
	ActiveStep int                  `json:"activeStep,omitempty"`
	Done       bool                 `json:"done"`
	Progress   Progress             `json:"progress"`
	IsMyTurn   bool                 `json:"isMyTurn"`
	Blocking   []signing.Assignment `json:"blocking"`
}

// SignatureCompletion is reported by the external signing engine once a
// signature has been applied to the PDF.
type SignatureCompletion struct {
	DocumentID    string
	UserID        string
	CertificateID string
	SignedAt      time.Time
}

func newRosterView(doc documents.Document, list []signing.Assignment, userID string) RosterView {
	roster := signing.NewRoster(list)
	turn := signing.Derive(roster.Signers, userID)
	view := RosterView{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Signers:    roster.Signers,
		Viewers:    roster.Viewers,
		ActiveStep: turn.ActiveStep,
		Done:       turn.Done,
		Progress:   Progress{Signed: turn.Signed, Total: turn.Total},
		IsMyTurn:   turn.IsUsersTurn,
		Blocking:   turn.Blocking,
	}
	if view.Signers == nil {
		view.Signers = []signing.Assignment{}
	}
	if view.Viewers == nil {
		view.Viewers = []signing.Assignment{}
	}
	if view.Blocking == nil {
		view.Blocking = []signing.Assignment{}
	}
	return view
}

// statusFor maps roster progress onto the document lifecycle.
func statusFor(list []signing.Assignment) documents.Status {
	if len(list) == 0 {
		return documents.StatusDraft
	}
	if signing.Completed(list) {
		return documents.StatusCompleted
	}
	if signed, _ := signing.Progress(list); signed > 0 {
		return documents.StatusInProgress
	}
	return documents.StatusShared
}
