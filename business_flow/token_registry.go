package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/wilaya-connect/repository"
)

// TokenRegistry manages one citizen's push token set. Both operations are idempotent.
type TokenRegistry interface {
	AddToken(ctx context.Context, citizenID uint, token string) error
	RemoveToken(ctx context.Context, citizenID uint, token string) error
}

// TokenPruneQueue accepts fire-and-forget token removals. Enqueue must not block;
// it reports whether the request was accepted.
type TokenPruneQueue interface {
	Enqueue(citizenID uint, token string) bool
}

type TokenRegistryImpl struct {
	citizenRepo repository.CitizenRepository
}

func NewTokenRegistry(citizenRepo repository.CitizenRepository) TokenRegistry {
	return &TokenRegistryImpl{citizenRepo: citizenRepo}
}

func (r *TokenRegistryImpl) AddToken(ctx context.Context, citizenID uint, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidPushToken
	}
	if err := r.citizenRepo.AddPushToken(ctx, citizenID, token); err != nil {
		return fmt.Errorf("failed to add push token for citizen %d: %w", citizenID, err)
	}
	return nil
}

func (r *TokenRegistryImpl) RemoveToken(ctx context.Context, citizenID uint, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := r.citizenRepo.RemovePushToken(ctx, citizenID, token); err != nil {
		return fmt.Errorf("failed to remove push token for citizen %d: %w", citizenID, err)
	}
	return nil
}
