package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsign-backend/internal/shared/storage/object"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shared/util"
)

// maxCertificateSize bounds uploads; real certificates are a few KB.
const maxCertificateSize = 64 << 10

type Service struct {
	Store object.ObjectStore
	Repo  Repo
	Now   func() time.Time
}

func NewService(store object.ObjectStore, repo Repo) *Service {
	return &Service{Store: store, Repo: repo}
}

// Upload parses a PEM or DER certificate, stores its DER bytes and records it
// for userID.
func (s *Service) Upload(ctx context.Context, userID, label string, r io.Reader) (Certificate, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxCertificateSize+1))
	if err != nil {
		return Certificate{}, fmt.Errorf("read certificate: %w", err)
	}
	if len(raw) == 0 || len(raw) > maxCertificateSize {
		return Certificate{}, fmt.Errorf("%w: empty or oversized file", ErrInvalidInput)
	}
	parsed, der, err := Parse(raw)
	if err != nil {
		return Certificate{}, err
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = parsed.Subject.CommonName
	}
	cert := Certificate{
		ID:                uuid.NewString(),
		UserID:            userID,
		Label:             label,
		Subject:           parsed.Subject.String(),
		Issuer:            parsed.Issuer.String(),
		SerialNumber:      serialHex(parsed),
		NotBefore:         parsed.NotBefore.UTC(),
		NotAfter:          parsed.NotAfter.UTC(),
		FingerprintSHA256: Fingerprint(der),
		CreatedAt:         s.now(),
	}
	cert.StorageKey = fmt.Sprintf("certificates/%s/%s.der", util.HashUserKey(userID), cert.ID)

	if _, err := s.Store.SaveWithKey(ctx, cert.StorageKey, "application/pkix-cert", bytes.NewReader(der)); err != nil {
		return Certificate{}, fmt.Errorf("store certificate: %w", err)
	}
	if err := s.Repo.Create(ctx, cert); err != nil {
		if delErr := s.Store.Delete(ctx, cert.StorageKey); delErr != nil {
			telemetry.Warn("certificates.cleanup.failed", telemetry.Err(map[string]any{"certificate_id": cert.ID}, delErr))
		}
		return Certificate{}, err
	}
	telemetry.Info("certificates.uploaded", map[string]any{
		"certificate_id": cert.ID,
		"user_id":        userID,
		"not_after":      cert.NotAfter,
	})
	return cert, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Certificate, error) {
	return s.Repo.ListByUser(ctx, userID)
}

// Get returns a certificate owned by userID; other users' certificates are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (Certificate, error) {
	cert, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	if cert.UserID != userID {
		return Certificate{}, ErrNotFound
	}
	return cert, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	cert, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	if cert.StorageKey != "" {
		if err := s.Store.Delete(ctx, cert.StorageKey); err != nil {
			telemetry.Warn("certificates.object.delete_failed", telemetry.Err(map[string]any{"certificate_id": id}, err))
		}
	}
	return nil
}

// ValidFor checks that certificate id belongs to userID and is valid at at.
func (s *Service) ValidFor(ctx context.Context, userID, id string, at time.Time) (Certificate, error) {
	cert, err := s.Get(ctx, userID, id)
	if err != nil {
		return Certificate{}, err
	}
	if !cert.ValidAt(at) {
		return Certificate{}, ErrExpired
	}
	return cert, nil
}

// IsClientError reports whether err should surface to callers as a 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrExpired)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
