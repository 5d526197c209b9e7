package repository

import (
	"context"
	"fmt"

	"github.com/kkkkikiki/codecast/internal/model"
)

// DestinationRepository handles the game-to-channel registration table. The
// discovery pipeline only reads it; mutation belongs to operator commands.
type DestinationRepository struct {
	db DBExecutor
}

// NewDestinationRepository creates a new destination repository
func NewDestinationRepository(db DBExecutor) *DestinationRepository {
	return &DestinationRepository{db: db}
}

// ListDestinations returns the channel ids registered for a game.
func (r *DestinationRepository) ListDestinations(ctx context.Context, game model.Game) ([]string, error) {
	query := `
		SELECT channel_id
		FROM code_channels
		WHERE game = $1
		ORDER BY channel_id
	`

	var channels []string
	if err := r.db.SelectContext(ctx, &channels, query, game); err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	return channels, nil
}

// Register adds a channel for a game. Registering the same channel twice is
// a no-op.
func (r *DestinationRepository) Register(ctx context.Context, game model.Game, channelID string) error {
	query := `
		INSERT INTO code_channels (game, channel_id)
		VALUES ($1, $2)
		ON CONFLICT (game, channel_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, game, channelID); err != nil {
		return fmt.Errorf("failed to register destination: %w", err)
	}
	return nil
}

// Unregister removes a channel registration for a game.
func (r *DestinationRepository) Unregister(ctx context.Context, game model.Game, channelID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM code_channels WHERE game = $1 AND channel_id = $2`, game, channelID)
	if err != nil {
		return fmt.Errorf("failed to unregister destination: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrDestinationNotRegistered
	}

	return nil
}
