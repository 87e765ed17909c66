package directory

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("directory: identity not found")
	ErrInvalidIdentity = errors.New("directory: invalid identity")
	ErrPhoneTaken      = errors.New("directory: phone already assigned")
)

// Repository is the persistence contract for the identity directory.
type Repository interface {
	ByID(ctx context.Context, id string) (Identity, error)
	ByPhone(ctx context.Context, phone string) (Identity, error)
	Upsert(ctx context.Context, ident Identity) (Identity, error)
}
