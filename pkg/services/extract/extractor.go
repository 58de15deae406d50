package extract

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StaggerDelay separates the two login sequences so the portal never sees
// both sessions authenticate at the same instant.
const StaggerDelay = 1500 * time.Millisecond

// Result is the outcome of one section fetch.
type Result struct {
	Document string
	Err      error
}

// Extractor fetches both sections concurrently, each in its own session.
// The lots fetch starts immediately; the charges fetch starts after the
// stagger delay. Both branches run to completion regardless of the other's
// outcome, and the pair is returned only once both have finished.
type Extractor struct {
	fetcher *Fetcher
	clock   Clock
	stagger time.Duration
}

func NewExtractor(fetcher *Fetcher, clock Clock) *Extractor {
	return &Extractor{fetcher: fetcher, clock: clock, stagger: StaggerDelay}
}

func (e *Extractor) ExtractAll(ctx context.Context, creds Credentials, headless bool) (charges, lots Result) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("starting concurrent extraction with two sessions")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := e.clock.Sleep(ctx, e.stagger); err != nil {
			charges = Result{Err: err}
			return
		}
		doc, err := e.fetcher.Fetch(ctx, ChargesStrategy{}, creds, headless)
		charges = Result{Document: doc, Err: err}
	}()

	go func() {
		defer wg.Done()
		doc, err := e.fetcher.Fetch(ctx, LotsStrategy{}, creds, headless)
		lots = Result{Document: doc, Err: err}
	}()

	wg.Wait()
	logger.Info().
		Bool("charges_ok", charges.Err == nil).
		Bool("lots_ok", lots.Err == nil).
		Msg("concurrent extraction finished")
	return charges, lots
}
