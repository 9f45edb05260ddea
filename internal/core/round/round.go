// Package round carries the per-round context threaded from the orchestrator
// down to every validator.
package round

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/guildwatch/internal/core/config"
)

// Round identifies one validation pass over one chain.
type Round struct {
	ID        uuid.UUID
	Chain     *config.ChainConfig
	StartedAt time.Time
	Log       *slog.Logger
}

// New starts a round for chain.
func New(chain *config.ChainConfig, log *slog.Logger) *Round {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.New()
	return &Round{
		ID:        id,
		Chain:     chain,
		StartedAt: time.Now(),
		Log:       log.With("round", id.String(), "chain", chain.Name),
	}
}

// ForGuild returns a logger tagged with the guild name.
func (r *Round) ForGuild(guild string) *slog.Logger {
	return r.Log.With("guild", guild)
}
