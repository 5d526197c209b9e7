package model

import "fmt"

// Game identifies one of the supported live-service titles.
type Game string

const (
	GameGenshin  Game = "gi"
	GameStarRail Game = "hsr"
	GameZenless  Game = "zzz"
	GameWuwa     Game = "wuwa"
)

// GameInfo holds per-game metadata used by sources and rendering.
type GameInfo struct {
	// Name is the display name of the game.
	Name string
	// APIName is the game identifier used by the structured code API.
	// Empty for games that are not served by the API.
	APIName string
	// RedeemURLPrefix is the web redemption URL prefix; appending a code
	// yields the full redemption link. Empty for games with no web redemption.
	RedeemURLPrefix string
	// Currency is the premium currency name, used by the scraper to filter
	// false positives and by rendering.
	Currency string
	// PlayerName is how the game addresses its players.
	PlayerName string
}

// gameTable is the closed set of supported games. Adding a game means adding
// an entry here and to AllGames; lookups never consult anything else.
var gameTable = map[Game]GameInfo{
	GameGenshin: {
		Name:            "Genshin Impact",
		APIName:         "genshin",
		RedeemURLPrefix: "https://genshin.hoyoverse.com/en/gift?code=",
		Currency:        "Primogem",
		PlayerName:      "Traveler",
	},
	GameStarRail: {
		Name:            "Honkai Star Rail",
		APIName:         "hkrpg",
		RedeemURLPrefix: "https://hsr.hoyoverse.com/gift?code=",
		Currency:        "Stellar Jade",
		PlayerName:      "Trailblazer",
	},
	GameZenless: {
		Name:            "Zenless Zone Zero",
		APIName:         "nap",
		RedeemURLPrefix: "https://zenless.hoyoverse.com/redemption?code=",
		Currency:        "Polychrome",
		PlayerName:      "Proxy",
	},
	GameWuwa: {
		Name:       "Wuthering Waves",
		Currency:   "Astrite",
		PlayerName: "Rover",
		// No web redemption for Wuthering Waves.
	},
}

// allGames is the fixed iteration order for discovery cycles.
var allGames = []Game{GameGenshin, GameStarRail, GameZenless, GameWuwa}

// AllGames returns every supported game in a stable order.
func AllGames() []Game {
	games := make([]Game, len(allGames))
	copy(games, allGames)
	return games
}

// ParseGame validates a game identifier from external input.
func ParseGame(s string) (Game, error) {
	g := Game(s)
	if _, ok := gameTable[g]; !ok {
		return "", fmt.Errorf("unknown game %q", s)
	}
	return g, nil
}

// Info returns the metadata for the game. The zero GameInfo is returned for
// identifiers outside the closed set; ParseGame guards all external input.
func (g Game) Info() GameInfo {
	return gameTable[g]
}

// RedeemURL returns the web redemption link for a code, or "" when the game
// has no web redemption.
func (g Game) RedeemURL(code string) string {
	info := gameTable[g]
	if info.RedeemURLPrefix == "" {
		return ""
	}
	return info.RedeemURLPrefix + code
}

func (g Game) String() string {
	return string(g)
}
