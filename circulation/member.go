package circulation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	minBooksAllowed = 1
	maxBooksAllowed = 10
)

// Member is a registered library patron. Email is unique across members.
type Member struct {
	ID              MemberID
	Name            string
	Email           string
	Membership      MembershipType
	JoinedAt        time.Time
	ExpiresAt       time.Time
	MaxBooksAllowed int
}

// Validate checks the invariants that the engine enforces on insert.
func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("member name must not be empty"))
	}

	if strings.TrimSpace(m.Email) == "" {
		return errors.Join(ErrInvalidEntity, errors.New("member email must not be empty"))
	}

	if !m.Membership.IsValid() {
		return errors.Join(ErrInvalidEntity, fmt.Errorf("unknown membership type %q", m.Membership))
	}

	if m.MaxBooksAllowed < minBooksAllowed || m.MaxBooksAllowed > maxBooksAllowed {
		return errors.Join(ErrInvalidEntity,
			fmt.Errorf("maxBooksAllowed must be between %d and %d", minBooksAllowed, maxBooksAllowed))
	}

	if !m.ExpiresAt.After(m.JoinedAt) {
		return errors.Join(ErrInvalidEntity, errors.New("membership end must be after its start"))
	}

	return nil
}

// IsActiveAt reports whether the membership window covers the given instant.
func (m Member) IsActiveAt(now time.Time) bool {
	return !now.Before(m.JoinedAt) && !now.After(m.ExpiresAt)
}

// AuditTable implements AuditImage.
func (m Member) AuditTable() AuditTable { return AuditTableMembers }
