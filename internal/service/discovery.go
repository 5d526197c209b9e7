// Package service orchestrates the discovery pipeline: fetch candidates per
// game, diff against the seen-code store, deliver to registered
// destinations, then persist.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kkkkikiki/codecast/internal/dispatch"
	"github.com/kkkkikiki/codecast/internal/metrics"
	"github.com/kkkkikiki/codecast/internal/model"
)

// SeenCodeStore is the persisted set of already-announced codes.
type SeenCodeStore interface {
	FilterUnseen(ctx context.Context, game model.Game, candidates []model.CandidateCode) ([]model.CandidateCode, error)
	RecordNew(ctx context.Context, game model.Game, candidates []model.CandidateCode) error
	MarkExpired(ctx context.Context, game model.Game, codes []string) error
}

// DestinationRegistry lists the delivery targets registered for a game.
type DestinationRegistry interface {
	ListDestinations(ctx context.Context, game model.Game) ([]string, error)
}

// Deliverer fans an announcement out to destinations.
type Deliverer interface {
	Deliver(ctx context.Context, game model.Game, codes []model.CandidateCode, destinations []string) []dispatch.Outcome
}

// Source fetches candidate codes for one game; it never fails, only returns
// an empty list.
type Source interface {
	Fetch(ctx context.Context, game model.Game) []model.CandidateCode
}

// DiscoveryService runs discovery cycles. It is driven by the scheduler and
// holds no cycle state between runs.
type DiscoveryService struct {
	store     SeenCodeStore
	registry  DestinationRegistry
	deliverer Deliverer
	sources   map[model.Game]Source
}

// NewDiscoveryService creates the pipeline over its collaborators. Games
// absent from sources are skipped each cycle.
func NewDiscoveryService(store SeenCodeStore, registry DestinationRegistry, deliverer Deliverer, sources map[model.Game]Source) *DiscoveryService {
	return &DiscoveryService{
		store:     store,
		registry:  registry,
		deliverer: deliverer,
		sources:   sources,
	}
}

// RunCycle executes one full fetch -> diff -> deliver -> persist pass for
// all games. Per-game fetches run concurrently and are joined before
// diffing. A cycle never aborts mid-pipeline: source failures yield empty
// candidate lists, delivery failures are isolated per destination, and
// persistence is attempted for every unseen code regardless of delivery
// outcome.
func (s *DiscoveryService) RunCycle(ctx context.Context) {
	cycleID := uuid.NewString()[:8]
	start := time.Now()
	status := "success"

	log.Printf("[Discovery] cycle %s: checking for new codes", cycleID)

	games := model.AllGames()
	candidates := make([][]model.CandidateCode, len(games))

	var wg sync.WaitGroup
	for i, game := range games {
		src, ok := s.sources[game]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, game model.Game, src Source) {
			defer wg.Done()
			candidates[i] = src.Fetch(ctx, game)
		}(i, game, src)
	}
	wg.Wait()

	for i, game := range games {
		if len(candidates[i]) == 0 {
			continue
		}
		if !s.processGame(ctx, cycleID, game, candidates[i]) {
			status = "degraded"
		}
	}

	metrics.RecordCycleDuration(status, time.Since(start).Seconds())
	log.Printf("[Discovery] cycle %s: complete (%s)", cycleID, status)
}

// processGame diffs one game's candidates and, for unseen codes, delivers
// then persists. Returns false when the store degraded the cycle.
func (s *DiscoveryService) processGame(ctx context.Context, cycleID string, game model.Game, candidates []model.CandidateCode) bool {
	unseen, err := s.store.FilterUnseen(ctx, game, candidates)
	if err != nil {
		// Without a trustworthy diff we cannot deliver safely; skip the
		// game for this cycle, the next one retries from scratch.
		perr := &model.PersistenceError{Game: game, Op: "filter", Err: err}
		log.Printf("[Discovery] cycle %s: %v", cycleID, perr)
		return false
	}
	if len(unseen) == 0 {
		return true
	}

	destinations, err := s.registry.ListDestinations(ctx, game)
	if err != nil {
		// Same treatment as a diff failure: persisting now would mark the
		// codes seen without a single delivery attempt, silent loss. Skip
		// the game; the next cycle rediscovers and retries.
		perr := &model.PersistenceError{Game: game, Op: "list destinations", Err: err}
		log.Printf("[Discovery] cycle %s: %v", cycleID, perr)
		return false
	}

	log.Printf("[Discovery] cycle %s: found %d new %s codes", cycleID, len(unseen), game)
	metrics.CodesDiscovered.WithLabelValues(game.String()).Add(float64(len(unseen)))

	if len(destinations) == 0 {
		log.Printf("[Discovery] cycle %s: no destinations registered for %s", cycleID, game)
	} else {
		outcomes := s.deliverer.Deliver(ctx, game, unseen, destinations)
		sent := 0
		for _, o := range outcomes {
			if o.Status == dispatch.StatusSent {
				sent++
			}
		}
		log.Printf("[Discovery] cycle %s: delivered %s codes to %d/%d destinations",
			cycleID, game, sent, len(destinations))
	}

	// Persist after delivery, even if every destination failed. A crash
	// before this point re-announces next cycle (duplicate notice); a store
	// failure here is logged and likewise self-heals by re-announcing.
	if err := s.store.RecordNew(ctx, game, unseen); err != nil {
		perr := &model.PersistenceError{Game: game, Op: "record", Err: err}
		log.Printf("[Discovery] cycle %s: %v", cycleID, perr)
		return false
	}
	return true
}
