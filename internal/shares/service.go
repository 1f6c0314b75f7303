package shares

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"docsign-backend/internal/audit"
	"docsign-backend/internal/certificates"
	"docsign-backend/internal/documents"
	"docsign-backend/internal/events"
	"docsign-backend/internal/queue"
	"docsign-backend/internal/shared/metrics"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/signing"
	"docsign-backend/internal/users"
)

// Documents is the slice of the documents service the workflow needs.
type Documents interface {
	Find(ctx context.Context, documentID string) (documents.Document, error)
	UpdateSharing(ctx context.Context, documentID string, status documents.Status, message string, downloadable bool) error
	UpdateStatus(ctx context.Context, documentID string, status documents.Status) error
}

type Directory interface {
	Lookup(ctx context.Context, userIDs []string) (map[string]users.User, error)
}

type Certificates interface {
	ValidFor(ctx context.Context, userID, certificateID string, at time.Time) (certificates.Certificate, error)
}

type Service struct {
	Repo   Repo
	Docs   Documents
	Users  Directory
	Certs  Certificates
	Audit  audit.Recorder
	Events events.Publisher
	Notify queue.Client
	Now    func() time.Time
}

// Share replaces the participants of an owned document. Entries that
// already signed keep their signature and may not be removed or placed after
// someone who has not signed.
func (s *Service) Share(ctx context.Context, ownerID string, req ShareRequest) (RosterView, error) {
	doc, err := s.owned(ctx, ownerID, req.DocumentID)
	if err != nil {
		return RosterView{}, err
	}
	submitted, err := s.resolveParticipants(ctx, ownerID, req.Participants)
	if err != nil {
		return RosterView{}, err
	}

	list, err := s.Repo.Update(ctx, doc.ID, func(current []signing.Assignment) ([]signing.Assignment, error) {
		return reconcile(current, submitted)
	})
	if err != nil {
		return RosterView{}, s.mapErr(err)
	}

	status := statusFor(list)
	if err := s.Docs.UpdateSharing(ctx, doc.ID, status, req.Message, req.Downloadable); err != nil {
		return RosterView{}, s.mapErr(err)
	}
	doc.Status = status
	doc.Message = strings.TrimSpace(req.Message)
	doc.Downloadable = req.Downloadable

	metrics.IncSharesCreated()
	metrics.ObserveShareRosterSize(len(list))

	signed, total := signing.Progress(list)
	s.record(ctx, doc.ID, ownerID, audit.ActionShared, map[string]any{
		"participants": len(list),
		"signers":      total,
		"signed":       signed,
		"downloadable": req.Downloadable,
	})
	s.publish(ctx, events.TypeDocumentUpdated, doc, list)
	s.notifyShared(ctx, doc, ownerID, list)

	telemetry.Info("shares.shared", telemetry.Fields(ctx, map[string]any{
		"document_id":  doc.ID,
		"participants": len(list),
		"steps":        signing.StepCount(list),
		"status":       status,
	}))
	return newRosterView(doc, list, ownerID), nil
}

// Roster returns the participants and the caller's turn state.
func (s *Service) Roster(ctx context.Context, userID, documentID string) (RosterView, error) {
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return RosterView{}, err
	}
	list, err := s.Repo.List(ctx, doc.ID)
	if err != nil {
		return RosterView{}, err
	}
	if doc.OwnerID != userID && signing.Index(list, userID) < 0 {
		return RosterView{}, ErrNotFound
	}
	return newRosterView(doc, list, userID), nil
}

// Sign records the caller's signature when it is their turn. certificateID is
// optional; when set it must be one of the caller's certificates and valid now.
func (s *Service) Sign(ctx context.Context, userID, documentID, certificateID string) (RosterView, error) {
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return RosterView{}, err
	}
	at := s.now()
	if err := s.checkCertificate(ctx, userID, certificateID, at); err != nil {
		return RosterView{}, err
	}
	list, err := s.applySignature(ctx, doc, userID, certificateID, at)
	if err != nil {
		return RosterView{}, err
	}
	doc.Status = statusFor(list)
	return newRosterView(doc, list, userID), nil
}

// CompleteSignature applies a completion reported through the queue. A
// signature that was already recorded is treated as success.
func (s *Service) CompleteSignature(ctx context.Context, done SignatureCompletion) (RosterView, error) {
	if strings.TrimSpace(done.DocumentID) == "" || strings.TrimSpace(done.UserID) == "" {
		return RosterView{}, fmt.Errorf("%w: documentId and userId are required", ErrInvalidInput)
	}
	doc, err := s.find(ctx, done.DocumentID)
	if err != nil {
		return RosterView{}, err
	}
	at := done.SignedAt
	if at.IsZero() {
		at = s.now()
	}
	if err := s.checkCertificate(ctx, done.UserID, done.CertificateID, at); err != nil {
		return RosterView{}, err
	}

	list, err := s.applySignature(ctx, doc, done.UserID, done.CertificateID, at)
	if errors.Is(err, ErrAlreadySigned) {
		return s.Roster(ctx, done.UserID, done.DocumentID)
	}
	if err != nil {
		return RosterView{}, err
	}
	doc.Status = statusFor(list)
	return newRosterView(doc, list, done.UserID), nil
}

// CanView reports whether userID participates in documentID.
func (s *Service) CanView(ctx context.Context, documentID, userID string) (bool, error) {
	return s.Repo.IsParticipant(ctx, documentID, userID)
}

// SharedWith lists the ids of documents userID participates in.
func (s *Service) SharedWith(ctx context.Context, userID string) ([]string, error) {
	return s.Repo.DocumentsFor(ctx, userID)
}

func (s *Service) applySignature(ctx context.Context, doc documents.Document, userID, certificateID string, at time.Time) ([]signing.Assignment, error) {
	list, err := s.Repo.Update(ctx, doc.ID, func(current []signing.Assignment) ([]signing.Assignment, error) {
		roster := signing.NewRoster(current)
		a, ok := roster.Find(userID)
		switch {
		case !ok:
			return nil, ErrNotFound
		case !a.Signs():
			return nil, ErrForbidden
		case a.HasSigned:
			return nil, ErrAlreadySigned
		case !signing.IsUsersTurn(roster.Signers, userID):
			return nil, ErrNotYourTurn
		}
		signers, _ := signing.MarkSigned(roster.Signers, userID, at)
		roster.Signers = signers
		return roster.All(), nil
	})
	if err != nil {
		if errors.Is(err, ErrNotYourTurn) {
			metrics.IncSignaturesRejected()
		}
		return nil, s.mapErr(err)
	}

	status := statusFor(list)
	if err := s.Docs.UpdateStatus(ctx, doc.ID, status); err != nil {
		return nil, s.mapErr(err)
	}
	doc.Status = status
	metrics.IncSignaturesCompleted()

	details := map[string]any{"signedAt": at.UTC().Format(time.RFC3339)}
	if certificateID != "" {
		details["certificateId"] = certificateID
	}
	s.record(ctx, doc.ID, userID, audit.ActionSigned, details)

	eventType := events.TypeDocumentSigned
	if status == documents.StatusCompleted {
		eventType = events.TypeDocumentCompleted
		s.record(ctx, doc.ID, userID, audit.ActionCompleted, nil)
	}
	s.publish(ctx, eventType, doc, list)

	signed, total := signing.Progress(list)
	telemetry.Info("shares.signed", telemetry.Fields(ctx, map[string]any{
		"document_id": doc.ID,
		"user_id":     userID,
		"signed":      signed,
		"total":       total,
		"status":      status,
	}))
	return list, nil
}

// resolveParticipants validates the submitted entries and fills in user
// details. Later duplicates of a user are dropped.
func (s *Service) resolveParticipants(ctx context.Context, ownerID string, in []ParticipantInput) ([]signing.Assignment, error) {
	out := make([]signing.Assignment, 0, len(in))
	for i, p := range in {
		userID := strings.TrimSpace(p.UserID)
		if userID == "" {
			return nil, fmt.Errorf("%w: participant %d has no userId", ErrInvalidInput, i)
		}
		if userID == ownerID {
			return nil, fmt.Errorf("%w: cannot share a document with its owner", ErrInvalidInput)
		}
		perm := signing.PermissionViewAndSign
		if strings.TrimSpace(p.Permission) != "" {
			parsed, ok := signing.ParsePermission(p.Permission)
			if !ok {
				return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, p.Permission)
			}
			perm = parsed
		}
		out = append(out, signing.Assignment{
			UserID:     userID,
			Step:       p.Step,
			Parallel:   p.Parallel && perm == signing.PermissionViewAndSign,
			Permission: perm,
		})
	}
	out = signing.Dedupe(out)
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, a := range out {
		ids = append(ids, a.UserID)
	}
	known, err := s.Users.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		u, ok := known[out[i].UserID]
		if !ok || u.Disabled {
			return nil, fmt.Errorf("%w: unknown user %q", ErrInvalidInput, out[i].UserID)
		}
		out[i].Username = u.Username
		out[i].Email = u.Email
	}
	return out, nil
}

// reconcile merges a submitted list into the stored one. Signature state is
// carried over from stored entries, everything else comes from the request.
func reconcile(current, submitted []signing.Assignment) ([]signing.Assignment, error) {
	var signers, viewers []signing.Candidate
	order := make(map[string]int, len(submitted))
	parallel := make(map[string]bool, len(submitted))
	for i, a := range submitted {
		order[a.UserID] = i
		parallel[a.UserID] = a.Parallel
		c := signing.Candidate{UserID: a.UserID, Username: a.Username, Email: a.Email}
		if a.Signs() {
			signers = append(signers, c)
		} else {
			viewers = append(viewers, c)
		}
	}

	before := signing.NewRoster(current)
	roster := before.
		SetAssignments(signers, signing.PermissionViewAndSign).
		SetAssignments(viewers, signing.PermissionView)

	for _, a := range before.Signers {
		if !a.HasSigned {
			continue
		}
		if i := signing.Index(roster.Signers, a.UserID); i < 0 {
			return nil, fmt.Errorf("%w: %s already signed and cannot be removed", ErrConflict, a.UserID)
		}
	}

	sort.SliceStable(roster.Signers, func(i, j int) bool {
		return order[roster.Signers[i].UserID] < order[roster.Signers[j].UserID]
	})
	sort.SliceStable(roster.Viewers, func(i, j int) bool {
		return order[roster.Viewers[i].UserID] < order[roster.Viewers[j].UserID]
	})
	for i := range roster.Signers {
		roster.Signers[i].Parallel = parallel[roster.Signers[i].UserID]
		if u, ok := byUser(submitted, roster.Signers[i].UserID); ok {
			roster.Signers[i].Username = u.Username
			roster.Signers[i].Email = u.Email
		}
	}
	roster.Signers = signing.Renumber(roster.Signers)

	if err := checkSignedFirst(roster.Signers); err != nil {
		return nil, err
	}
	return roster.All(), nil
}

// checkSignedFirst rejects orders that would put a recorded signature in a
// step after one that is still open.
func checkSignedFirst(signers []signing.Assignment) error {
	open, ok := signing.ActiveStep(signers)
	if !ok {
		return nil
	}
	for _, a := range signers {
		if a.HasSigned && a.Step > open {
			return fmt.Errorf("%w: %s signed at a later step than an open signer", ErrConflict, a.UserID)
		}
	}
	return nil
}

func byUser(list []signing.Assignment, userID string) (signing.Assignment, bool) {
	if i := signing.Index(list, userID); i >= 0 {
		return list[i], true
	}
	return signing.Assignment{}, false
}

func (s *Service) owned(ctx context.Context, ownerID, documentID string) (documents.Document, error) {
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return documents.Document{}, err
	}
	if doc.OwnerID != ownerID {
		return documents.Document{}, ErrNotFound
	}
	return doc, nil
}

func (s *Service) find(ctx context.Context, documentID string) (documents.Document, error) {
	doc, err := s.Docs.Find(ctx, documentID)
	if err != nil {
		return documents.Document{}, s.mapErr(err)
	}
	return doc, nil
}

func (s *Service) checkCertificate(ctx context.Context, userID, certificateID string, at time.Time) error {
	if certificateID == "" || s.Certs == nil {
		return nil
	}
	if _, err := s.Certs.ValidFor(ctx, userID, certificateID, at); err != nil {
		if certificates.IsClientError(err) {
			return fmt.Errorf("%w: certificate: %v", ErrInvalidInput, err)
		}
		return err
	}
	return nil
}

func (s *Service) mapErr(err error) error {
	if errors.Is(err, documents.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) record(ctx context.Context, documentID, actorID string, action audit.Action, details map[string]any) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, audit.Entry{
		DocumentID: documentID,
		ActorID:    actorID,
		Action:     action,
		Details:    details,
	}); err != nil {
		telemetry.Warn("shares.audit.failed", telemetry.Err(map[string]any{
			"document_id": documentID,
			"action":      action,
		}, err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, doc documents.Document, list []signing.Assignment) {
	if s.Events == nil {
		return
	}
	ev := events.Event{
		Type:        eventType,
		DocumentID:  doc.ID,
		Document:    documents.ToResponse(doc),
		SignerSteps: list,
		OccurredAt:  s.now(),
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		telemetry.Warn("shares.publish.failed", telemetry.Err(map[string]any{"document_id": doc.ID}, err))
	}
}

func (s *Service) notifyShared(ctx context.Context, doc documents.Document, ownerID string, list []signing.Assignment) {
	if s.Notify == nil || len(list) == 0 {
		return
	}
	recipients := make([]string, 0, len(list))
	for _, a := range list {
		recipients = append(recipients, a.UserID)
	}
	msg := queue.Message{
		Type:       queue.TypeDocumentShared,
		DocumentID: doc.ID,
		UserID:     ownerID,
		Recipients: recipients,
		RequestID:  telemetry.RequestID(ctx),
		EnqueuedAt: s.now().Format(time.RFC3339),
		Version:    queue.CurrentVersion,
	}
	if err := s.Notify.Send(ctx, msg); err != nil {
		telemetry.Warn("shares.notify.failed", telemetry.Err(map[string]any{"document_id": doc.ID}, err))
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
