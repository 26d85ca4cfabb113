// Package tenant owns per-tenant table definitions: the protected default
// columns, caller-defined custom columns, and tenant token issuance.
package tenant

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/store"
)

type Service struct {
	store store.Store
	log   *zap.Logger
}

func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

// CreateTenant allocates a new tenant table with the default columns plus
// the requested custom columns and returns its opaque token.
func (s *Service) CreateTenant(ctx context.Context, customColumns []string) (string, error) {
	seen := make(map[string]bool, len(customColumns))
	for _, name := range customColumns {
		if name == "" || IsProtected(name) || seen[name] {
			return "", ErrInvalidSchema
		}
		seen[name] = true
	}

	token := uuid.NewString()
	if err := s.store.CreateTenant(ctx, token, customColumns); err != nil {
		return "", err
	}

	s.log.Info("tenant created",
		zap.String("token", token),
		zap.Int("custom_columns", len(customColumns)))
	return token, nil
}

// AddColumn appends a custom column; existing rows get the empty string.
func (s *Service) AddColumn(ctx context.Context, token, name string) error {
	if name == "" {
		return ErrInvalidSchema
	}
	if IsProtected(name) {
		return ErrProtectedColumn
	}
	return s.store.AddColumn(ctx, token, name)
}

// RemoveColumn drops a custom column. Default columns are never removable.
func (s *Service) RemoveColumn(ctx context.Context, token, name string) error {
	if IsProtected(name) {
		return ErrProtectedColumn
	}
	return s.store.RemoveColumn(ctx, token, name)
}

// Columns returns the tenant's declared custom columns in order.
func (s *Service) Columns(ctx context.Context, token string) ([]string, error) {
	return s.store.CustomColumns(ctx, token)
}
