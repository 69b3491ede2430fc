// Package identity resolves operator roles, which gate workflow start.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
)

// ErrUnknownOperator indicates the operator is not registered and not in the
// configured admin list.
var ErrUnknownOperator = errors.New("unknown operator")

// Provider resolves an operator id to a role tag.
type Provider interface {
	Role(ctx context.Context, operatorID string) (models.OperatorRole, error)
}

// StoreProvider resolves roles from the operators collection, with a
// configured bootstrap admin list for operators not yet registered.
type StoreProvider struct {
	store  repository.Store
	admins map[string]struct{}
}

// NewStoreProvider builds a provider over the store and the configured
// admin ids.
func NewStoreProvider(store repository.Store, adminIDs []string) *StoreProvider {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &StoreProvider{store: store, admins: admins}
}

// Role returns the operator's role. Inactive operators are refused.
func (p *StoreProvider) Role(ctx context.Context, operatorID string) (models.OperatorRole, error) {
	op, err := p.store.OperatorByID(ctx, operatorID)
	if err == nil {
		if !op.Active {
			return "", fmt.Errorf("%w: %s is deactivated", ErrUnknownOperator, operatorID)
		}
		return op.Role, nil
	}
	if err != repository.ErrNotFound {
		return "", fmt.Errorf("failed to look up operator: %w", err)
	}
	if _, ok := p.admins[operatorID]; ok {
		return models.RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownOperator, operatorID)
}

// StaticProvider maps operator ids to fixed roles; used by tests.
type StaticProvider map[string]models.OperatorRole

// Role implements Provider.
func (p StaticProvider) Role(_ context.Context, operatorID string) (models.OperatorRole, error) {
	role, ok := p[operatorID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOperator, operatorID)
	}
	return role, nil
}
