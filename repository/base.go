// Package repository provides the gorm-backed data access layer
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// BaseRepository holds the id lookup and insert shared by every table.
// Writes join the transaction carried in ctx, if any.
type BaseRepository[T any, F any] struct {
	DB *gorm.DB
}

func NewBaseRepository[T any, F any](db *gorm.DB) *BaseRepository[T, F] {
	return &BaseRepository[T, F]{DB: db}
}

func (r *BaseRepository[T, F]) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB.WithContext(ctx)
}

// ByID returns nil, nil when no row has the given id
func (r *BaseRepository[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	if err := r.getDB(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %T %d: %w", entity, id, err)
	}
	return &entity, nil
}

// Save inserts entity, filling its generated columns
func (r *BaseRepository[T, F]) Save(ctx context.Context, entity *T) error {
	if err := r.getDB(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to insert %T: %w", *entity, err)
	}
	return nil
}

// WithTransaction runs fn with a transaction stored in its context. Repositories
// called with that context share the transaction; a panic or error rolls it back.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) (err error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		}
	}()

	if err := fn(context.WithValue(ctx, TxContextKey, tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
