package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/kkkkikiki/codecast/internal/dispatch"
	"github.com/kkkkikiki/codecast/internal/model"
)

// AdminRegistry is the mutable view of the destination registry, used only
// by the operator surface. The pipeline itself reads via DestinationRegistry.
type AdminRegistry interface {
	DestinationRegistry
	Register(ctx context.Context, game model.Game, channelID string) error
	Unregister(ctx context.Context, game model.Game, channelID string) error
}

// SeenCodeLister exposes the announcement history for a game.
type SeenCodeLister interface {
	ListByGame(ctx context.Context, game model.Game) ([]model.SeenCodeRecord, error)
}

// Trigger starts a discovery cycle in the background unless one is in
// flight.
type Trigger interface {
	TriggerAsync(ctx context.Context) bool
}

// Admin is the operator HTTP surface: manual code entry, code expiry,
// destination registration and manual cycle triggering.
type Admin struct {
	svc      *DiscoveryService
	registry AdminRegistry
	lister   SeenCodeLister
	trigger  Trigger
	token    string
}

// NewAdmin creates the operator surface. An empty token disables the
// operator check (development only).
func NewAdmin(svc *DiscoveryService, registry AdminRegistry, lister SeenCodeLister, trigger Trigger, token string) *Admin {
	return &Admin{svc: svc, registry: registry, lister: lister, trigger: trigger, token: token}
}

// RegisterRoutes attaches the operator endpoints to the mux.
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /games/{game}/codes", a.authorized(a.handleManualCodes))
	mux.HandleFunc("POST /games/{game}/codes/expire", a.authorized(a.handleExpireCodes))
	mux.HandleFunc("GET /games/{game}/codes", a.authorized(a.handleListCodes))
	mux.HandleFunc("GET /games/{game}/channels", a.authorized(a.handleListChannels))
	mux.HandleFunc("POST /games/{game}/channels", a.authorized(a.handleRegisterChannel))
	mux.HandleFunc("DELETE /games/{game}/channels", a.authorized(a.handleUnregisterChannel))
	mux.HandleFunc("POST /discovery/run", a.authorized(a.handleRunDiscovery))
}

// authorized is the single allow/deny operator check.
func (a *Admin) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.token != "" {
			got := r.Header.Get("X-Operator-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
				writeError(w, http.StatusForbidden, "not authorized")
				return
			}
		}
		next(w, r)
	}
}

func (a *Admin) gameFromPath(w http.ResponseWriter, r *http.Request) (model.Game, bool) {
	game, err := model.ParseGame(r.PathValue("game"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return game, true
}

// handleManualCodes accepts a plain-text body of the form
// "CODE1 reward-1,CODE2 reward-2" and broadcasts it immediately. The codes
// are recorded as seen unless record=false is passed.
func (a *Admin) handleManualCodes(w http.ResponseWriter, r *http.Request) {
	game, ok := a.gameFromPath(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	candidates, err := ParseManualEntry(game, strings.TrimSpace(string(body)))
	if err != nil {
		var malformed *model.MalformedInputError
		if errors.As(err, &malformed) {
			writeError(w, http.StatusBadRequest, malformed.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	record := r.URL.Query().Get("record") != "false"
	outcomes, err := a.svc.BroadcastManual(r.Context(), game, candidates, record)
	if err != nil {
		log.Printf("[Admin] manual broadcast for %s: %v", game, err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"game":     game,
		"codes":    len(candidates),
		"outcomes": outcomeViews(outcomes),
	})
}

func (a *Admin) handleExpireCodes(w http.ResponseWriter, r *http.Request) {
	game, ok := a.gameFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		Codes []string `json:"codes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Codes) == 0 {
		writeError(w, http.StatusBadRequest, `expected body {"codes": ["CODE1", ...]}`)
		return
	}

	if err := a.svc.ExpireCodes(r.Context(), game, req.Codes); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"game": game, "expired": len(req.Codes)})
}

func (a *Admin) handleListCodes(w http.ResponseWriter, r *http.Request) {
	game, ok := a.gameFromPath(w, r)
	if !ok {
		return
	}

	records, err := a.lister.ListByGame(r.Context(), game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"game": game, "codes": records})
}

func (a *Admin) handleListChannels(w http.ResponseWriter, r *http.Request) {
	game, ok := a.gameFromPath(w, r)
	if !ok {
		return
	}

	channels, err := a.registry.ListDestinations(r.Context(), game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if channels == nil {
		channels = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"game": game, "channels": channels})
}

func (a *Admin) handleRegisterChannel(w http.ResponseWriter, r *http.Request) {
	a.mutateChannel(w, r, a.registry.Register)
}

func (a *Admin) handleUnregisterChannel(w http.ResponseWriter, r *http.Request) {
	a.mutateChannel(w, r, a.registry.Unregister)
}

func (a *Admin) mutateChannel(w http.ResponseWriter, r *http.Request, op func(context.Context, model.Game, string) error) {
	game, ok := a.gameFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		ChannelID string `json:"channel_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" {
		writeError(w, http.StatusBadRequest, `expected body {"channel_id": "..."}`)
		return
	}

	if err := op(r.Context(), game, req.ChannelID); err != nil {
		if errors.Is(err, model.ErrDestinationNotRegistered) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"game": game, "channel_id": req.ChannelID})
}

// handleRunDiscovery starts a cycle in the background and replies as soon
// as it is underway. Returns 409 when a cycle is already in flight; the
// trigger is dropped, not queued. The cycle outlives the request, so it
// runs on a context detached from the request's cancellation.
func (a *Admin) handleRunDiscovery(w http.ResponseWriter, r *http.Request) {
	if !a.trigger.TriggerAsync(context.WithoutCancel(r.Context())) {
		writeError(w, http.StatusConflict, "discovery cycle already in flight")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"started": true})
}

type outcomeView struct {
	Destination string `json:"destination"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
}

func outcomeViews(outcomes []dispatch.Outcome) []outcomeView {
	views := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		v := outcomeView{Destination: o.Destination, Status: string(o.Status), Attempts: o.Attempts}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		views = append(views, v)
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[Admin] failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
