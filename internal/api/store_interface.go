package api

import (
	"context"
	"errors"

	"github.com/dstlead/dstlead/internal/models"
)

// ErrDuplicateEmail is returned by CreateUser when the address is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Store is the persistence boundary shared by the memory and SQLite backends.
// Lookups return (nil, nil) when nothing matches.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateAccreditation(ctx context.Context, id string, acc models.Accreditation) (*models.User, error)

	ListFAQs(ctx context.Context) ([]*models.FAQ, error)
	AddFAQ(ctx context.Context, f *models.FAQ) error

	AddAudit(ctx context.Context, e models.AuditEntry) error
	// ListAudit returns entries oldest first.
	ListAudit(ctx context.Context) ([]models.AuditEntry, error)
}

var _ Store = (*memoryStore)(nil)
