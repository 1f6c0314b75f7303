// Package signing computes signing order for a document's participants.
//
// An assignment list is an ordered slice of Assignment values. List order is
// the only source of grouping: a maximal run of adjacent parallel signers
// shares one step, every other signer gets a step of its own. All functions
// are pure and return fresh slices; callers own the single mutable reference.
package signing

import (
	"strings"
	"time"
)

// Permission is the share grant a participant holds on a document.
type Permission string

const (
	PermissionView        Permission = "view"
	PermissionViewAndSign Permission = "view_and_sign"
)

// Valid reports whether p is a known permission tier.
func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionViewAndSign
}

// ParsePermission normalizes the permission spellings seen on the wire.
func ParsePermission(raw string) (Permission, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "view", "viewer", "read":
		return PermissionView, true
	case "view_and_sign", "view-and-sign", "viewandsign", "sign", "signer":
		return PermissionViewAndSign, true
	default:
		return "", false
	}
}

// Assignment is one user's participation in a document's signing workflow.
type Assignment struct {
	UserID     string     `json:"userId" yaml:"userId"`
	Username   string     `json:"username,omitempty" yaml:"username,omitempty"`
	Email      string     `json:"email,omitempty" yaml:"email,omitempty"`
	Step       int        `json:"step" yaml:"step"`
	Parallel   bool       `json:"parallel" yaml:"parallel"`
	HasSigned  bool       `json:"hasSigned" yaml:"hasSigned"`
	SignedAt   *time.Time `json:"signedAt,omitempty" yaml:"signedAt,omitempty"`
	Permission Permission `json:"permission" yaml:"permission"`
}

// Signs reports whether the assignment takes part in step numbering.
func (a Assignment) Signs() bool {
	return a.Permission == PermissionViewAndSign
}

// Candidate is a selectable user offered by the share directory.
type Candidate struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Index returns the position of userID in list, or -1.
func Index(list []Assignment, userID string) int {
	for i := range list {
		if list[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Dedupe drops later entries whose user id already appeared.
func Dedupe(list []Assignment) []Assignment {
	seen := make(map[string]struct{}, len(list))
	out := make([]Assignment, 0, len(list))
	for _, a := range list {
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		out = append(out, copyAssignment(a))
	}
	return out
}

func clone(list []Assignment) []Assignment {
	out := make([]Assignment, len(list))
	for i := range list {
		out[i] = copyAssignment(list[i])
	}
	return out
}

func copyAssignment(a Assignment) Assignment {
	if a.SignedAt != nil {
		t := *a.SignedAt
		a.SignedAt = &t
	}
	return a
}
