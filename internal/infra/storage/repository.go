package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/guildwatch/internal/core/domain"
)

var (
	// ErrPersistence wraps failures of the underlying store
	ErrPersistence = errors.New("persistence error")
)

// GuildRepository handles the producer directory
type GuildRepository interface {
	// Upsert inserts a new guild or refreshes URL and location of an existing one.
	// created reports whether the guild was new.
	Upsert(ctx context.Context, guild *domain.Guild) (created bool, err error)

	// ListTracked returns every guild tracked on a chain
	ListTracked(ctx context.Context, chain string) ([]*domain.Guild, error)
}

// ValidationRepository handles the append-only validation history
type ValidationRepository interface {
	// SaveNodeValidation saves one node verdict
	SaveNodeValidation(ctx context.Context, v *domain.NodeValidation) error

	// SaveGuildValidation saves one guild verdict
	SaveGuildValidation(ctx context.Context, v *domain.GuildValidation) error

	// FindLastGuildValidation returns the most recent guild verdict with its
	// nodes, or nil when the guild was never validated.
	FindLastGuildValidation(ctx context.Context, guild, chain string) (*domain.GuildValidation, error)

	// DeleteOlderThan removes validations of a chain created before the threshold
	DeleteOlderThan(ctx context.Context, chain string, before time.Time) (int64, error)
}
