package source

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kkkkikiki/codecast/internal/metrics"
	"github.com/kkkkikiki/codecast/internal/model"
)

// extractStrategy is one way of pulling code/reward pairs out of a fetched
// document. Strategies are pure and independently testable.
type extractStrategy struct {
	name    string
	extract func(doc *goquery.Document, game model.Game) []model.CandidateCode
}

// ScrapedHTMLSource extracts codes from a wiki-style page whose markup
// drifts over time. Strategies are tried in order; the first one producing
// any result wins. The fallback trades precision for resilience.
type ScrapedHTMLSource struct {
	client     *Client
	pageURL    string
	strategies []extractStrategy
}

// NewScrapedHTMLSource creates a scraping source for the given page.
func NewScrapedHTMLSource(client *Client, pageURL string) *ScrapedHTMLSource {
	return &ScrapedHTMLSource{
		client:  client,
		pageURL: pageURL,
		strategies: []extractStrategy{
			{name: "list-items", extract: extractFromListItems},
			{name: "text-pattern", extract: extractFromText},
		},
	}
}

func (s *ScrapedHTMLSource) Name() string { return "scrape" }

// Fetch returns the codes found on the page, or an empty list on any
// failure. A page that parses but yields nothing is not an error; the page
// may legitimately list no active codes.
func (s *ScrapedHTMLSource) Fetch(ctx context.Context, game model.Game) []model.CandidateCode {
	candidates, err := s.fetch(ctx, game)
	if err != nil {
		ferr := &model.SourceFetchError{Game: game, Source: s.Name(), Err: err}
		log.Printf("[Source] %v", ferr)
		metrics.RecordSourceFetchError(game.String(), s.Name())
		return nil
	}
	return candidates
}

func (s *ScrapedHTMLSource) fetch(ctx context.Context, game model.Game) ([]model.CandidateCode, error) {
	body, err := s.client.Get(ctx, s.pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, strat := range s.strategies {
		if candidates := dedupe(strat.extract(doc, game)); len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, nil
}

// listItemPattern matches "CODE - rewards" lines, e.g.
// "BACKTOSCHOOL - 100 Astrite, 4 Premium Resonance Potions".
var listItemPattern = regexp.MustCompile(`(?i)^([A-Z0-9]{6,20})\s*[-–]\s*(.+)$`)

// extractFromListItems is the primary strategy: the page lists codes as
// "- CODE - rewards" bullet points. Entries whose reward text does not
// mention the game's premium currency are discarded as false positives.
func extractFromListItems(doc *goquery.Document, game model.Game) []model.CandidateCode {
	currency := strings.ToLower(game.Info().Currency)

	var candidates []model.CandidateCode
	doc.Find("ul li, ol li").Each(func(_ int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		m := listItemPattern.FindStringSubmatch(text)
		if m == nil {
			return
		}

		code := model.NormalizeCode(m[1])
		rewards := strings.TrimSpace(m[2])
		if code == "" || rewards == "" {
			return
		}
		if !strings.Contains(strings.ToLower(rewards), currency) {
			return
		}

		candidates = append(candidates, model.CandidateCode{
			Game:    game,
			Code:    code,
			Rewards: rewards,
		})
	})
	return candidates
}

// extractFromText is the fallback strategy: scan the page's visible text for
// "CODE - <amount> <currency> ..." fragments. Runs only when the structural
// strategy finds nothing, i.e. after a markup drift.
func extractFromText(doc *goquery.Document, game model.Game) []model.CandidateCode {
	currency := game.Info().Currency
	pattern := regexp.MustCompile(
		`(?i)\b([A-Z]{6,20})\b\s*[-–]\s*(\d+\s*` + regexp.QuoteMeta(currency) + `[^.]*)`)

	bodyText := doc.Find("body").Text()

	var candidates []model.CandidateCode
	for _, m := range pattern.FindAllStringSubmatch(bodyText, -1) {
		candidates = append(candidates, model.CandidateCode{
			Game:    game,
			Code:    model.NormalizeCode(m[1]),
			Rewards: strings.TrimSpace(m[2]),
		})
	}
	return candidates
}
