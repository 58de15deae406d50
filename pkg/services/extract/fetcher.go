package extract

import (
	"context"

	"github.com/rs/zerolog"
)

// Fetcher runs one section fetch inside its own browser session: open, log
// in, open the menu, run the section strategy, close. The session is closed
// on every exit path; that is part of the contract, not a cleanup detail.
type Fetcher struct {
	browser Browser
	clock   Clock
	retry   RetryConfig
}

func NewFetcher(browser Browser, clock Clock, retry RetryConfig) *Fetcher {
	return &Fetcher{browser: browser, clock: clock, retry: retry}
}

func (f *Fetcher) Fetch(ctx context.Context, strategy SectionStrategy, creds Credentials, headless bool) (string, error) {
	logger := zerolog.Ctx(ctx).With().Str("section", strategy.Name()).Logger()
	ctx = logger.WithContext(ctx)

	session, err := f.browser.NewSession(ctx, headless)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open browser session")
		return "", &FetchError{Stage: StageOpenBrowser, Section: strategy.Name(), Err: err}
	}
	defer session.Close()

	logger.Info().Msg("session open, logging in")

	flow := &loginFlow{session: session, creds: creds, clock: f.clock, cfg: f.retry}
	if ferr := flow.Run(ctx); ferr != nil {
		ferr.Section = strategy.Name()
		logger.Error().Err(ferr).Str("stage", string(ferr.Stage)).Msg("login flow failed")
		return "", ferr
	}

	logger.Info().Msg("authenticated, navigating to section")

	doc, err := strategy.Fetch(ctx, session)
	if err != nil {
		logger.Error().Err(err).Msg("section navigation failed")
		return "", err
	}

	logger.Info().Int("bytes", len(doc)).Msg("section document retrieved")
	return doc, nil
}
