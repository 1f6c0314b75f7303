package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsign-backend/internal/audit"
	"docsign-backend/internal/pdfmeta"
	"docsign-backend/internal/shared/metrics"
	"docsign-backend/internal/shared/storage/object"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shared/util"
	"docsign-backend/internal/uploads"
)

const (
	defaultListLimit      = 20
	maxListLimit          = 50
	defaultMaxUploadBytes = 20 << 20
)

// Service contains business logic for documents.
type Service struct {
	Store           object.ObjectStore
	Repo            DocumentsRepo
	StorageProvider string
	Audit           audit.Recorder
	Access          AccessChecker
	MaxUploadBytes  int64
	Now             func() time.Time
}

// Upload validates the PDF, saves it to object storage and records the document.
func (s *Service) Upload(ctx context.Context, ownerID, fileName string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || ownerID == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	limit := s.maxUploadBytes()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return Document{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, limit)
	}
	info, err := inspect(data)
	if err != nil {
		return Document{}, err
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, ownerID, fileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, err
	}
	if mimeType != pdfmeta.MimeType {
		mimeType = pdfmeta.MimeType
	}

	now := s.now()
	doc := Document{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		FileName:        fileName,
		MimeType:        mimeType,
		SizeBytes:       size,
		PageCount:       info.Pages,
		StorageProvider: s.storageProvider(),
		StorageKey:      storageKey,
		Status:          StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	metrics.IncDocumentsUploaded()
	s.record(ctx, doc.ID, ownerID, audit.ActionUploaded, map[string]any{
		"fileName":  doc.FileName,
		"pageCount": doc.PageCount,
		"sizeBytes": doc.SizeBytes,
	})
	return doc, nil
}

// CreateFromS3 records a document uploaded through a presigned URL. The key
// must sit under the caller's upload prefix.
func (s *Service) CreateFromS3(ctx context.Context, ownerID, key, fileName, contentType string, sizeBytes int64) (Document, error) {
	key = path.Clean(strings.TrimSpace(key))
	if !strings.HasPrefix(key, uploads.OwnerPrefix(ownerID)) {
		return Document{}, fmt.Errorf("%w: s3Key does not belong to caller", ErrInvalidInput)
	}
	if !strings.EqualFold(strings.TrimSpace(contentType), pdfmeta.MimeType) {
		return Document{}, fmt.Errorf("%w: only PDF documents are supported", ErrInvalidInput)
	}
	if sizeBytes <= 0 || sizeBytes > s.maxUploadBytes() {
		return Document{}, fmt.Errorf("%w: sizeBytes out of range", ErrInvalidInput)
	}
	if _, err := util.SanitizeFileName(fileName); err != nil {
		return Document{}, fmt.Errorf("%w: invalid file name", ErrInvalidInput)
	}

	if sizer, ok := s.Store.(object.Sizer); ok {
		stored, err := sizer.Size(ctx, key)
		if err != nil {
			return Document{}, fmt.Errorf("%w: uploaded object not found", ErrInvalidInput)
		}
		if stored > s.maxUploadBytes() {
			return Document{}, fmt.Errorf("%w: uploaded object too large", ErrInvalidInput)
		}
	}
	body, err := s.Store.Open(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("%w: uploaded object not found", ErrInvalidInput)
	}
	data, err := io.ReadAll(io.LimitReader(body, s.maxUploadBytes()+1))
	_ = body.Close()
	if err != nil {
		return Document{}, fmt.Errorf("read uploaded object: %w", err)
	}
	info, err := inspect(data)
	if err != nil {
		return Document{}, err
	}

	now := s.now()
	doc := Document{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		FileName:        strings.TrimSpace(fileName),
		MimeType:        pdfmeta.MimeType,
		SizeBytes:       int64(len(data)),
		PageCount:       info.Pages,
		StorageProvider: "s3",
		StorageKey:      key,
		Status:          StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	metrics.IncDocumentsUploaded()
	s.record(ctx, doc.ID, ownerID, audit.ActionUploaded, map[string]any{
		"fileName":  doc.FileName,
		"pageCount": doc.PageCount,
		"source":    "s3",
	})
	return doc, nil
}

// Find loads a document without any access check.
func (s *Service) Find(ctx context.Context, documentID string) (Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return Document{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, documentID)
}

// Get returns the document when userID owns it or participates in it.
// Strangers get ErrNotFound so ids cannot be probed.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := s.Find(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if _, err := s.access(ctx, userID, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Authorize reports ErrNotFound unless userID may view documentID.
func (s *Service) Authorize(ctx context.Context, userID, documentID string) error {
	_, err := s.Get(ctx, userID, documentID)
	return err
}

// List returns the owner's documents, newest first.
func (s *Service) List(ctx context.Context, ownerID string, q ListQuery) ([]Document, int, error) {
	if ownerID == "" {
		return nil, 0, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	q.Limit, q.Offset = util.Page(q.Limit, q.Offset, defaultListLimit, maxListLimit)
	return s.Repo.ListByOwner(ctx, ownerID, q)
}

// ListShared returns documents other users shared with userID.
func (s *Service) ListShared(ctx context.Context, userID string, q ListQuery) ([]Document, int, error) {
	if s.Access == nil {
		return []Document{}, 0, nil
	}
	ids, err := s.Access.SharedWith(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	q.Limit, q.Offset = util.Page(q.Limit, q.Offset, defaultListLimit, maxListLimit)
	return s.Repo.ListByIDs(ctx, ids, q)
}

// Open streams the PDF. Participants need the document to be downloadable.
func (s *Service) Open(ctx context.Context, userID, documentID string) (Document, io.ReadCloser, error) {
	doc, err := s.Find(ctx, documentID)
	if err != nil {
		return Document{}, nil, err
	}
	owner, err := s.access(ctx, userID, doc)
	if err != nil {
		return Document{}, nil, err
	}
	if !owner && !doc.Downloadable {
		return Document{}, nil, ErrForbidden
	}
	body, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		return Document{}, nil, fmt.Errorf("open document key=%s: %w", doc.StorageKey, err)
	}
	s.record(ctx, doc.ID, userID, audit.ActionDownloaded, nil)
	return doc, body, nil
}

// Delete soft-deletes an owned document.
func (s *Service) Delete(ctx context.Context, ownerID, documentID string) error {
	if err := s.Repo.SoftDelete(ctx, ownerID, documentID, s.now()); err != nil {
		return err
	}
	s.record(ctx, documentID, ownerID, audit.ActionDeleted, nil)
	return nil
}

// UpdateSharing stores the share dialog settings and resulting status.
func (s *Service) UpdateSharing(ctx context.Context, documentID string, status Status, message string, downloadable bool) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.Repo.UpdateSharing(ctx, documentID, status, strings.TrimSpace(message), downloadable, s.now())
}

func (s *Service) UpdateStatus(ctx context.Context, documentID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.Repo.UpdateStatus(ctx, documentID, status, s.now())
}

// access reports whether userID owns doc; non-owners must be participants.
func (s *Service) access(ctx context.Context, userID string, doc Document) (bool, error) {
	if userID == "" {
		return false, ErrNotFound
	}
	if doc.OwnerID == userID {
		return true, nil
	}
	if s.Access == nil {
		return false, ErrNotFound
	}
	ok, err := s.Access.CanView(ctx, doc.ID, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotFound
	}
	return false, nil
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
		telemetry.Warn("documents.audit.failed", telemetry.Err(map[string]any{
			"document_id": documentID,
			"action":      action,
		}, err))
	}
}

func inspect(data []byte) (pdfmeta.Info, error) {
	info, err := pdfmeta.Inspect(data)
	if err != nil {
		if errors.Is(err, pdfmeta.ErrNotPDF) || errors.Is(err, pdfmeta.ErrEmpty) {
			return pdfmeta.Info{}, fmt.Errorf("%w: only PDF documents are supported", ErrInvalidInput)
		}
		return pdfmeta.Info{}, err
	}
	return info, nil
}

func (s *Service) storageProvider() string {
	if s.StorageProvider == "" {
		return "local"
	}
	return s.StorageProvider
}

func (s *Service) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
