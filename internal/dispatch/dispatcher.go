// Package dispatch fans a rendered announcement out to every registered
// destination with per-destination failure isolation.
package dispatch

import (
	"context"
	"log"
	"sync"

	"github.com/kkkkikiki/codecast/internal/metrics"
	"github.com/kkkkikiki/codecast/internal/model"
	"github.com/kkkkikiki/codecast/internal/render"
)

// maxAttempts is the per-destination delivery retry ceiling.
const maxAttempts = 3

// Status of one per-destination delivery.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Outcome reports how delivery to one destination ended.
type Outcome struct {
	Destination string
	Status      Status
	Attempts    int
	Err         error
}

// Notifier sends one rendered payload to one destination.
type Notifier interface {
	Send(ctx context.Context, destination string, payload render.Payload) error
}

// Dispatcher delivers announcements to destinations independently. It never
// reports a batch-level failure: every destination gets its attempts
// regardless of how the others fare.
type Dispatcher struct {
	notifier Notifier
}

// NewDispatcher creates a dispatcher backed by the given notifier
func NewDispatcher(notifier Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier}
}

// Deliver renders the batch once and sends it to every destination
// concurrently. Each destination is retried up to the ceiling with immediate
// re-attempts; one outcome is returned per destination, in input order.
func (d *Dispatcher) Deliver(ctx context.Context, game model.Game, codes []model.CandidateCode, destinations []string) []Outcome {
	payload := render.NewCodesDiscovered(game, codes)

	outcomes := make([]Outcome, len(destinations))
	var wg sync.WaitGroup
	for i, dest := range destinations {
		wg.Add(1)
		go func(i int, dest string) {
			defer wg.Done()
			outcomes[i] = d.deliverOne(ctx, game, dest, payload)
		}(i, dest)
	}
	wg.Wait()

	return outcomes
}

func (d *Dispatcher) deliverOne(ctx context.Context, game model.Game, dest string, payload render.Payload) Outcome {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := d.notifier.Send(ctx, dest, payload); err != nil {
			lastErr = err
			continue
		}

		metrics.RecordDelivery(game.String(), string(StatusSent))
		return Outcome{Destination: dest, Status: StatusSent, Attempts: attempt}
	}

	derr := &model.DeliveryError{Game: game, Destination: dest, Attempts: maxAttempts, Err: lastErr}
	log.Printf("[Dispatch] %v", derr)
	metrics.RecordDelivery(game.String(), string(StatusFailed))
	return Outcome{Destination: dest, Status: StatusFailed, Attempts: maxAttempts, Err: derr}
}
