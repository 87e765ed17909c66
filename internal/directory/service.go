package directory

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service resolves participants between identity ids and phones.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// ResolvePhone returns the phone registered for identity id.
func (s *Service) ResolvePhone(ctx context.Context, id string) (string, error) {
	ident, err := s.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return ident.Phone, nil
}

// ResolveIdentity returns the identity id registered for phone.
func (s *Service) ResolveIdentity(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrNotFound
	}
	ident, err := s.repo.ByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	return ident.ID, nil
}

// Lookup returns the full identity record, used for speaker display data.
func (s *Service) Lookup(ctx context.Context, id string) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, ErrNotFound
	}
	return s.repo.ByID(ctx, id)
}

// Provision creates or renames a directory entry. Operators use it to seed
// participants; credentials are managed elsewhere.
func (s *Service) Provision(ctx context.Context, ident Identity) (Identity, error) {
	ident.ID = strings.TrimSpace(ident.ID)
	ident.Phone = strings.TrimSpace(ident.Phone)
	ident.Name = strings.TrimSpace(ident.Name)
	if ident.ID == "" || ident.Phone == "" {
		return Identity{}, ErrInvalidIdentity
	}
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = s.clock().UTC()
	}
	return s.repo.Upsert(ctx, ident)
}

// IsNotFound reports whether err is a directory miss.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
