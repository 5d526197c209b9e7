package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kkkkikiki/codecast/internal/dispatch"
	"github.com/kkkkikiki/codecast/internal/model"
)

// codeTokenPattern accepts plausible redeem codes after normalization.
var codeTokenPattern = regexp.MustCompile(`^[A-Z0-9]{3,20}$`)

// ParseManualEntry parses an operator-authored code list of the form
// "CODE1 reward-text-1,CODE2 reward-text-2". Every entry must start with a
// parseable code token or the whole input is rejected.
func ParseManualEntry(game model.Game, input string) ([]model.CandidateCode, error) {
	entries := strings.Split(input, ",")

	candidates := make([]model.CandidateCode, 0, len(entries))
	for _, entry := range entries {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			return nil, &model.MalformedInputError{Entry: entry}
		}

		code := model.NormalizeCode(fields[0])
		if !codeTokenPattern.MatchString(code) {
			return nil, &model.MalformedInputError{Entry: entry}
		}

		candidates = append(candidates, model.CandidateCode{
			Game:    game,
			Code:    code,
			Rewards: strings.Join(fields[1:], " "),
		})
	}

	return candidates, nil
}

// BroadcastManual delivers operator-supplied codes to the game's registered
// destinations, bypassing the fetch and diff steps. When record is true the
// codes are also written to the seen-code store so the automated pipeline
// will not re-announce them.
func (s *DiscoveryService) BroadcastManual(ctx context.Context, game model.Game, candidates []model.CandidateCode, record bool) ([]dispatch.Outcome, error) {
	destinations, err := s.registry.ListDestinations(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}

	outcomes := s.deliverer.Deliver(ctx, game, candidates, destinations)

	if record {
		if err := s.store.RecordNew(ctx, game, candidates); err != nil {
			return outcomes, &model.PersistenceError{Game: game, Op: "record", Err: err}
		}
	}
	return outcomes, nil
}

// ExpireCodes marks codes as expired so a later fetch cannot re-announce
// them even if the upstream still lists them.
func (s *DiscoveryService) ExpireCodes(ctx context.Context, game model.Game, codes []string) error {
	if err := s.store.MarkExpired(ctx, game, codes); err != nil {
		return &model.PersistenceError{Game: game, Op: "expire", Err: err}
	}
	return nil
}
