package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kkkkikiki/codecast/internal/model"
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// SeenCodeRepository owns the seen_codes table: the persisted set of
// (game, code) pairs that have already been announced. No other component
// writes to it.
type SeenCodeRepository struct {
	db DBExecutor
}

// NewSeenCodeRepository creates a new seen-code repository
func NewSeenCodeRepository(db DBExecutor) *SeenCodeRepository {
	return &SeenCodeRepository{db: db}
}

// FilterUnseen returns the subsequence of candidates whose normalized code
// has no record for the game. Both active and expired records count as seen;
// an expired code must not be re-announced.
func (r *SeenCodeRepository) FilterUnseen(ctx context.Context, game model.Game, candidates []model.CandidateCode) ([]model.CandidateCode, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	codes := make([]string, 0, len(candidates))
	for _, c := range candidates {
		codes = append(codes, model.NormalizeCode(c.Code))
	}

	query := `
		SELECT code
		FROM seen_codes
		WHERE game = $1 AND code = ANY($2)
	`

	var existing []string
	if err := r.db.SelectContext(ctx, &existing, query, game, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("failed to query seen codes: %w", err)
	}

	seen := make(map[string]struct{}, len(existing))
	for _, code := range existing {
		seen[code] = struct{}{}
	}

	var unseen []model.CandidateCode
	for _, c := range candidates {
		if _, ok := seen[model.NormalizeCode(c.Code)]; !ok {
			unseen = append(unseen, c)
		}
	}
	return unseen, nil
}

// RecordNew creates one active record per candidate. Inserting a (game, code)
// pair that already exists is a no-op, so FilterUnseen followed by RecordNew
// is idempotent even with racing writers.
func (r *SeenCodeRepository) RecordNew(ctx context.Context, game model.Game, candidates []model.CandidateCode) error {
	if len(candidates) == 0 {
		return nil
	}

	now := time.Now()
	valuesClause := make([]string, len(candidates))
	args := make([]interface{}, 0, len(candidates)*5)

	for i, c := range candidates {
		valuesClause[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			i*5+1, i*5+2, i*5+3, i*5+4, i*5+5)
		args = append(args, game, model.NormalizeCode(c.Code), c.Rewards, model.CodeStatusActive, now)
	}

	query := fmt.Sprintf(`
		INSERT INTO seen_codes (game, code, rewards, status, discovered_at)
		VALUES %s
		ON CONFLICT (game, code) DO NOTHING
	`, strings.Join(valuesClause, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record new codes: %w", err)
	}

	return nil
}

// MarkExpired transitions matching records to expired. Unknown codes are
// skipped; the transition is never reversed.
func (r *SeenCodeRepository) MarkExpired(ctx context.Context, game model.Game, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized = append(normalized, model.NormalizeCode(code))
	}

	query := `
		UPDATE seen_codes
		SET status = $1
		WHERE game = $2 AND code = ANY($3)
	`

	if _, err := r.db.ExecContext(ctx, query, model.CodeStatusExpired, game, pq.Array(normalized)); err != nil {
		return fmt.Errorf("failed to mark codes expired: %w", err)
	}

	return nil
}

// ListByGame returns every record for a game, newest first.
func (r *SeenCodeRepository) ListByGame(ctx context.Context, game model.Game) ([]model.SeenCodeRecord, error) {
	query := `
		SELECT game, code, rewards, status, discovered_at
		FROM seen_codes
		WHERE game = $1
		ORDER BY discovered_at DESC
	`

	var records []model.SeenCodeRecord
	if err := r.db.SelectContext(ctx, &records, query, game); err != nil {
		return nil, fmt.Errorf("failed to list seen codes: %w", err)
	}
	return records, nil
}
