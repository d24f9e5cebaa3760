package api

import (
	"context"
	"errors"

	"github.com/dstlead/dstlead/internal/models"
	"github.com/dstlead/dstlead/internal/services"
)

// userStoreAdapter serves the account and auth services. It turns the store's
// duplicate-email sentinel into the conflict error callers surface to users.
type userStoreAdapter struct {
	Store
}

func newUserStoreAdapter(store Store) *userStoreAdapter {
	return &userStoreAdapter{Store: store}
}

func (a *userStoreAdapter) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return services.NewInvalidError("user required")
	}
	err := a.Store.CreateUser(ctx, u)
	if errors.Is(err, ErrDuplicateEmail) {
		return services.NewConflictError("email already registered")
	}
	return err
}

var (
	_ services.AccountStore   = (*userStoreAdapter)(nil)
	_ services.AuthStore      = (*userStoreAdapter)(nil)
	_ services.AnalyticsStore = Store(nil)
	_ services.ExportStore    = Store(nil)
	_ services.FAQStore       = Store(nil)
	_ services.AuditStore     = Store(nil)
)
