// Package certificates stores the X.509 signing certificates users attach to
// their signatures.
package certificates

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("certificate not found")
	ErrConflict     = errors.New("certificate already uploaded")
	ErrInvalidInput = errors.New("invalid certificate")
	ErrExpired      = errors.New("certificate not valid at signing time")
)

type Certificate struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	Label             string    `json:"label"`
	Subject           string    `json:"subject"`
	Issuer            string    `json:"issuer"`
	SerialNumber      string    `json:"serialNumber"`
	NotBefore         time.Time `json:"notBefore"`
	NotAfter          time.Time `json:"notAfter"`
	FingerprintSHA256 string    `json:"fingerprintSha256"`
	StorageKey        string    `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ValidAt reports whether at falls inside the certificate validity window.
func (c Certificate) ValidAt(at time.Time) bool {
	return !at.Before(c.NotBefore) && !at.After(c.NotAfter)
}

type Repo interface {
	Create(ctx context.Context, cert Certificate) error
	Get(ctx context.Context, id string) (Certificate, error)
	ListByUser(ctx context.Context, userID string) ([]Certificate, error)
	Delete(ctx context.Context, userID, id string) error
}
