package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/kkkkikiki/codecast/internal/metrics"
	"github.com/kkkkikiki/codecast/internal/model"
)

// Source fetches candidate codes for one game. Implementations never return
// an error; a failed fetch yields an empty list and a logged diagnostic.
type Source interface {
	Name() string
	Fetch(ctx context.Context, game model.Game) []model.CandidateCode
}

// StructuredAPISource pulls codes from the JSON code API. Only entries the
// upstream marks currently valid are kept.
type StructuredAPISource struct {
	client  *Client
	baseURL string
}

// NewStructuredAPISource creates an API-backed source
func NewStructuredAPISource(client *Client, baseURL string) *StructuredAPISource {
	return &StructuredAPISource{client: client, baseURL: baseURL}
}

func (s *StructuredAPISource) Name() string { return "api" }

// apiResponse mirrors the code API payload; fields we do not use are ignored.
type apiResponse struct {
	Codes []struct {
		Code    string `json:"code"`
		Status  string `json:"status"`
		Rewards string `json:"rewards"`
	} `json:"codes"`
}

// Fetch returns the currently valid codes for the game, or an empty list on
// any failure.
func (s *StructuredAPISource) Fetch(ctx context.Context, game model.Game) []model.CandidateCode {
	candidates, err := s.fetch(ctx, game)
	if err != nil {
		ferr := &model.SourceFetchError{Game: game, Source: s.Name(), Err: err}
		log.Printf("[Source] %v", ferr)
		metrics.RecordSourceFetchError(game.String(), s.Name())
		return nil
	}
	return candidates
}

func (s *StructuredAPISource) fetch(ctx context.Context, game model.Game) ([]model.CandidateCode, error) {
	info := game.Info()
	if info.APIName == "" {
		return nil, fmt.Errorf("game %s is not served by the code API", game)
	}

	endpoint := fmt.Sprintf("%s?game=%s", s.baseURL, url.QueryEscape(info.APIName))
	body, err := s.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var candidates []model.CandidateCode
	for _, c := range resp.Codes {
		if c.Status != "OK" {
			continue
		}
		candidates = append(candidates, model.CandidateCode{
			Game:    game,
			Code:    model.NormalizeCode(c.Code),
			Rewards: c.Rewards,
		})
	}
	return dedupe(candidates), nil
}

// dedupe collapses duplicate codes within one fetch, first occurrence wins.
// Comparison is on the normalized code.
func dedupe(candidates []model.CandidateCode) []model.CandidateCode {
	if len(candidates) < 2 {
		return candidates
	}
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := model.NormalizeCode(c.Code)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
