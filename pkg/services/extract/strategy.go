package extract

import (
	"context"
	"fmt"
	"time"
)

// Section navigation selectors.
const (
	selChargesLink      = `a#A3`
	selLotsLink         = `#A9`
	selLotsExpandedLink = `#z_A1_IMG`
)

// SectionStrategy navigates an authenticated session (menu already open) to
// its section and returns the page source. Strategies hold no state and share
// nothing with each other.
type SectionStrategy interface {
	Name() string
	Fetch(ctx context.Context, session Session) (string, error)
}

// ChargesStrategy opens the owner-balance view.
type ChargesStrategy struct{}

func (ChargesStrategy) Name() string { return "charges" }

func (ChargesStrategy) Fetch(ctx context.Context, session Session) (string, error) {
	if err := session.Click(ctx, selChargesLink); err != nil {
		return "", &FetchError{Stage: StageChargesNav, Section: "charges",
			Err: fmt.Errorf("click balance link: %w", err)}
	}
	if err := session.WaitReady(ctx, 30*time.Second); err != nil {
		return "", &FetchError{Stage: StageChargesNav, Section: "charges",
			Err: fmt.Errorf("wait for balance page: %w", err)}
	}
	html, err := session.Content(ctx)
	if err != nil {
		return "", &FetchError{Stage: StageGetHTML, Section: "charges", Err: err}
	}
	return html, nil
}

// LotsStrategy opens the unit list, expanded to show every lot.
type LotsStrategy struct{}

func (LotsStrategy) Name() string { return "lots" }

func (LotsStrategy) Fetch(ctx context.Context, session Session) (string, error) {
	if err := session.Click(ctx, selLotsLink); err != nil {
		return "", &FetchError{Stage: StageLotsNav, Section: "lots",
			Err: fmt.Errorf("click unit-list link: %w", err)}
	}
	if err := session.WaitVisible(ctx, selLotsExpandedLink, 10*time.Second); err != nil {
		return "", &FetchError{Stage: StageLotsNav, Section: "lots",
			Err: fmt.Errorf("expanded list link not visible: %w", err)}
	}
	if err := session.Click(ctx, selLotsExpandedLink); err != nil {
		return "", &FetchError{Stage: StageLotsNav, Section: "lots",
			Err: fmt.Errorf("click expanded list link: %w", err)}
	}
	if err := session.WaitReady(ctx, 30*time.Second); err != nil {
		return "", &FetchError{Stage: StageLotsNav, Section: "lots",
			Err: fmt.Errorf("wait for unit list: %w", err)}
	}
	html, err := session.Content(ctx)
	if err != nil {
		return "", &FetchError{Stage: StageGetHTML, Section: "lots", Err: err}
	}
	return html, nil
}
