package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkkkikiki/codecast/internal/dispatch"
	"github.com/kkkkikiki/codecast/internal/model"
	"github.com/kkkkikiki/codecast/internal/render"
)

// memStore is an in-memory SeenCodeStore honoring the repository contract:
// active and expired both count as seen, inserts are idempotent.
type memStore struct {
	mu         sync.Mutex
	records    map[model.Game]map[string]*model.SeenCodeRecord
	failFilter error
	failRecord error
}

func newMemStore() *memStore {
	return &memStore{records: map[model.Game]map[string]*model.SeenCodeRecord{}}
}

func (m *memStore) seed(game model.Game, code, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[game] == nil {
		m.records[game] = map[string]*model.SeenCodeRecord{}
	}
	key := model.NormalizeCode(code)
	m.records[game][key] = &model.SeenCodeRecord{Game: game, Code: key, Status: status}
}

func (m *memStore) get(game model.Game, code string) *model.SeenCodeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[game][model.NormalizeCode(code)]
}

func (m *memStore) count(game model.Game) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[game])
}

func (m *memStore) FilterUnseen(_ context.Context, game model.Game, candidates []model.CandidateCode) ([]model.CandidateCode, error) {
	if m.failFilter != nil {
		return nil, m.failFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var unseen []model.CandidateCode
	for _, c := range candidates {
		if _, ok := m.records[game][model.NormalizeCode(c.Code)]; !ok {
			unseen = append(unseen, c)
		}
	}
	return unseen, nil
}

func (m *memStore) RecordNew(_ context.Context, game model.Game, candidates []model.CandidateCode) error {
	if m.failRecord != nil {
		return m.failRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[game] == nil {
		m.records[game] = map[string]*model.SeenCodeRecord{}
	}
	for _, c := range candidates {
		key := model.NormalizeCode(c.Code)
		if _, ok := m.records[game][key]; ok {
			continue
		}
		m.records[game][key] = &model.SeenCodeRecord{
			Game: game, Code: key, Rewards: c.Rewards, Status: model.CodeStatusActive,
		}
	}
	return nil
}

func (m *memStore) MarkExpired(_ context.Context, game model.Game, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, code := range codes {
		if rec, ok := m.records[game][model.NormalizeCode(code)]; ok {
			rec.Status = model.CodeStatusExpired
		}
	}
	return nil
}

type memRegistry struct {
	destinations map[model.Game][]string
	err          error
}

func (m *memRegistry) ListDestinations(_ context.Context, game model.Game) ([]string, error) {
	return m.destinations[game], m.err
}

// countingNotifier records every send; destinations in failing always error.
type countingNotifier struct {
	mu       sync.Mutex
	failing  map[string]bool
	attempts map[string]int
	payloads map[string][]render.Payload
}

func newCountingNotifier(failing ...string) *countingNotifier {
	n := &countingNotifier{
		failing:  map[string]bool{},
		attempts: map[string]int{},
		payloads: map[string][]render.Payload{},
	}
	for _, dest := range failing {
		n.failing[dest] = true
	}
	return n
}

func (n *countingNotifier) Send(_ context.Context, destination string, payload render.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts[destination]++
	if n.failing[destination] {
		return errors.New("send failed")
	}
	n.payloads[destination] = append(n.payloads[destination], payload)
	return nil
}

func (n *countingNotifier) attemptCount(dest string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attempts[dest]
}

func (n *countingNotifier) delivered(dest string) []render.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.payloads[dest]
}

// staticSource serves fixed candidates per game and counts fetches.
type staticSource struct {
	mu      sync.Mutex
	codes   map[model.Game][]model.CandidateCode
	fetches int
}

func (s *staticSource) Fetch(_ context.Context, game model.Game) []model.CandidateCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.codes[game]
}

type pipeline struct {
	store    *memStore
	registry *memRegistry
	notifier *countingNotifier
	source   *staticSource
	svc      *DiscoveryService
}

func newPipeline(notifier *countingNotifier, codes map[model.Game][]model.CandidateCode, destinations map[model.Game][]string) *pipeline {
	store := newMemStore()
	registry := &memRegistry{destinations: destinations}
	src := &staticSource{codes: codes}

	sources := map[model.Game]Source{}
	for game := range codes {
		sources[game] = src
	}

	svc := NewDiscoveryService(store, registry, dispatch.NewDispatcher(notifier), sources)
	return &pipeline{store: store, registry: registry, notifier: notifier, source: src, svc: svc}
}

func TestCycleDeliversAndPersistsNewCode(t *testing.T) {
	// End-to-end scenario: empty store, one new zzz code, one destination.
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameZenless: {{Game: model.GameZenless, Code: "POLY100", Rewards: "100 Polychrome"}},
		},
		map[model.Game][]string{model.GameZenless: {"ch-zzz"}},
	)

	p.svc.RunCycle(context.Background())

	payloads := notifier.delivered("ch-zzz")
	require.Len(t, payloads, 1)
	assert.Equal(t, []string{"POLY100"}, payloads[0].CodeLines)
	assert.Contains(t, payloads[0].Message, "POLY100")
	assert.Contains(t, payloads[0].Message, "100 Polychrome")

	rec := p.store.get(model.GameZenless, "POLY100")
	require.NotNil(t, rec)
	assert.Equal(t, model.CodeStatusActive, rec.Status)
}

func TestCycleSkipsAlreadySeenCodes(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameGenshin: {
				{Game: model.GameGenshin, Code: "CODE1", Rewards: "60 Primogems"},
				{Game: model.GameGenshin, Code: "CODE2", Rewards: "100 Primogems"},
			},
		},
		map[model.Game][]string{model.GameGenshin: {"ch-gi"}},
	)
	p.store.seed(model.GameGenshin, "CODE1", model.CodeStatusActive)

	p.svc.RunCycle(context.Background())

	// Exactly CODE2 is delivered; CODE1 is not re-announced.
	payloads := notifier.delivered("ch-gi")
	require.Len(t, payloads, 1)
	assert.Equal(t, []string{"CODE2"}, payloads[0].CodeLines)
	assert.NotContains(t, payloads[0].Message, "CODE1")

	assert.NotNil(t, p.store.get(model.GameGenshin, "CODE2"))
	assert.Equal(t, 2, p.store.count(model.GameGenshin))
}

func TestCycleIdempotentAcrossRuns(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameStarRail: {{Game: model.GameStarRail, Code: "JADE500", Rewards: "500 Stellar Jade"}},
		},
		map[model.Game][]string{model.GameStarRail: {"ch-hsr"}},
	)

	p.svc.RunCycle(context.Background())
	require.Len(t, notifier.delivered("ch-hsr"), 1)

	// The same candidate set on the next cycle produces nothing new.
	p.svc.RunCycle(context.Background())
	assert.Len(t, notifier.delivered("ch-hsr"), 1)
	assert.Equal(t, 1, p.store.count(model.GameStarRail))
}

func TestCycleExcludesExpiredCodes(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameGenshin: {{Game: model.GameGenshin, Code: "OLDCODE", Rewards: "60 Primogems"}},
		},
		map[model.Game][]string{model.GameGenshin: {"ch-gi"}},
	)
	p.store.seed(model.GameGenshin, "OLDCODE", model.CodeStatusExpired)

	p.svc.RunCycle(context.Background())

	// Expired still counts as seen: no delivery.
	assert.Empty(t, notifier.delivered("ch-gi"))
}

func TestCyclePersistsDespiteAllDeliveriesFailing(t *testing.T) {
	notifier := newCountingNotifier("ch-bad", "ch-worse")
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameStarRail: {{Game: model.GameStarRail, Code: "JADE500", Rewards: "500 Stellar Jade"}},
		},
		map[model.Game][]string{model.GameStarRail: {"ch-bad", "ch-worse"}},
	)

	p.svc.RunCycle(context.Background())

	// Each destination exhausted its 3 attempts independently.
	assert.Equal(t, 3, notifier.attemptCount("ch-bad"))
	assert.Equal(t, 3, notifier.attemptCount("ch-worse"))

	// The code is persisted as seen regardless of delivery outcome.
	rec := p.store.get(model.GameStarRail, "JADE500")
	require.NotNil(t, rec)
	assert.Equal(t, model.CodeStatusActive, rec.Status)
}

func TestCycleDeliveryIsolation(t *testing.T) {
	notifier := newCountingNotifier("ch-bad")
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameStarRail: {{Game: model.GameStarRail, Code: "JADE500", Rewards: "500 Stellar Jade"}},
		},
		map[model.Game][]string{model.GameStarRail: {"ch-bad", "ch-good"}},
	)

	p.svc.RunCycle(context.Background())

	assert.Equal(t, 3, notifier.attemptCount("ch-bad"))
	require.Len(t, notifier.delivered("ch-good"), 1)
	assert.NotNil(t, p.store.get(model.GameStarRail, "JADE500"))
}

func TestCycleSkipsGameOnFilterError(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameZenless: {{Game: model.GameZenless, Code: "POLY100", Rewards: "100 Polychrome"}},
		},
		map[model.Game][]string{model.GameZenless: {"ch-zzz"}},
	)
	p.store.failFilter = errors.New("connection refused")

	p.svc.RunCycle(context.Background())

	// Without a trustworthy diff nothing is delivered or persisted; the
	// next cycle retries from scratch.
	assert.Empty(t, notifier.delivered("ch-zzz"))

	p.store.failFilter = nil
	p.svc.RunCycle(context.Background())
	assert.Len(t, notifier.delivered("ch-zzz"), 1)
	assert.NotNil(t, p.store.get(model.GameZenless, "POLY100"))
}

func TestCycleSkipsGameOnRegistryError(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameZenless: {{Game: model.GameZenless, Code: "POLY100", Rewards: "100 Polychrome"}},
		},
		map[model.Game][]string{model.GameZenless: {"ch-zzz"}},
	)
	p.registry.err = errors.New("connection refused")

	p.svc.RunCycle(context.Background())

	// A registry outage must not mark codes seen with zero delivery
	// attempts: nothing is delivered and nothing is persisted.
	assert.Empty(t, notifier.delivered("ch-zzz"))
	assert.Nil(t, p.store.get(model.GameZenless, "POLY100"))

	// The next cycle rediscovers the code and announces it.
	p.registry.err = nil
	p.svc.RunCycle(context.Background())
	assert.Len(t, notifier.delivered("ch-zzz"), 1)
	assert.NotNil(t, p.store.get(model.GameZenless, "POLY100"))
}

func TestCycleReannouncesAfterRecordFailure(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameZenless: {{Game: model.GameZenless, Code: "POLY100", Rewards: "100 Polychrome"}},
		},
		map[model.Game][]string{model.GameZenless: {"ch-zzz"}},
	)
	p.store.failRecord = errors.New("disk full")

	p.svc.RunCycle(context.Background())
	require.Len(t, notifier.delivered("ch-zzz"), 1)
	assert.Nil(t, p.store.get(model.GameZenless, "POLY100"))

	// Duplicate notice is preferred over silent loss: the code comes back
	// next cycle because it was never marked seen.
	p.store.failRecord = nil
	p.svc.RunCycle(context.Background())
	assert.Len(t, notifier.delivered("ch-zzz"), 2)
	assert.NotNil(t, p.store.get(model.GameZenless, "POLY100"))
}

func TestCycleNormalizesBeforeDiff(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameGenshin: {{Game: model.GameGenshin, Code: " code1 ", Rewards: "60 Primogems"}},
		},
		map[model.Game][]string{model.GameGenshin: {"ch-gi"}},
	)
	p.store.seed(model.GameGenshin, "CODE1", model.CodeStatusActive)

	p.svc.RunCycle(context.Background())

	// " code1 " and "CODE1" are the same canonical code.
	assert.Empty(t, notifier.delivered("ch-gi"))
	assert.Equal(t, 1, p.store.count(model.GameGenshin))
}

func TestCycleWithNoDestinationsStillPersists(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameWuwa: {{Game: model.GameWuwa, Code: "BACKTOSCHOOL", Rewards: "100 Astrite"}},
		},
		map[model.Game][]string{},
	)

	p.svc.RunCycle(context.Background())

	assert.NotNil(t, p.store.get(model.GameWuwa, "BACKTOSCHOOL"))
}

func TestRenderedMessageCarriesRedeemLink(t *testing.T) {
	notifier := newCountingNotifier()
	p := newPipeline(notifier,
		map[model.Game][]model.CandidateCode{
			model.GameZenless: {{Game: model.GameZenless, Code: "POLY100", Rewards: "100 Polychrome"}},
		},
		map[model.Game][]string{model.GameZenless: {"ch-zzz"}},
	)

	p.svc.RunCycle(context.Background())

	payloads := notifier.delivered("ch-zzz")
	require.Len(t, payloads, 1)
	assert.True(t, strings.Contains(payloads[0].Message,
		"https://zenless.hoyoverse.com/redemption?code=POLY100"))
}
