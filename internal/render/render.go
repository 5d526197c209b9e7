// Package render builds the notification payload for newly discovered
// codes. The pipeline renders once per game batch; notifiers treat the
// result as opaque.
package render

import (
	"fmt"
	"strings"

	"github.com/kkkkikiki/codecast/internal/model"
)

// Payload is one rendered announcement for a game's batch of new codes.
// CodeLines carries each bare code separately so notifiers can send them as
// standalone messages for easy copy-paste.
type Payload struct {
	Game      model.Game
	Message   string
	CodeLines []string
}

// NewCodesDiscovered renders the announcement for a batch of new codes.
func NewCodesDiscovered(game model.Game, codes []model.CandidateCode) Payload {
	info := game.Info()

	var b strings.Builder
	fmt.Fprintf(&b, "Hey %s, new redeem codes for %s are out!\n\n", info.PlayerName, info.Name)
	b.WriteString("Redeem Codes:\n")

	codeLines := make([]string, 0, len(codes))
	for _, c := range codes {
		code := model.NormalizeCode(c.Code)
		codeLines = append(codeLines, code)

		if url := game.RedeemURL(code); url != "" {
			fmt.Fprintf(&b, "%s -> %s\n", code, url)
		} else {
			fmt.Fprintf(&b, "%s\n", code)
		}
		if c.Rewards != "" {
			fmt.Fprintf(&b, "    %s\n", c.Rewards)
		}
	}

	return Payload{
		Game:      game,
		Message:   b.String(),
		CodeLines: codeLines,
	}
}
