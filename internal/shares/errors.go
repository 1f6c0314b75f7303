package shares

import "errors"

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidInput  = errors.New("invalid share request")
	ErrForbidden     = errors.New("participant may not sign")
	ErrNotYourTurn   = errors.New("not your turn to sign")
	ErrAlreadySigned = errors.New("already signed")
	ErrConflict      = errors.New("share conflicts with recorded signatures")
)
