package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Portal selectors. The extranet is a generated UI with stable element ids;
// a change here means the page layout changed.
const (
	selLoginField    = `input[name="A16"]`
	selPasswordField = `input[name="A17"]`
	selSubmitButton  = `span#z_A7_IMG`
	selMenuButton    = `#z_M12_IMG`
)

// RetryConfig bounds the login flow's waits and retries.
type RetryConfig struct {
	NavAttempts  int
	NavPause     time.Duration
	MenuAttempts int
	MenuWait     time.Duration
	MenuPause    time.Duration
	LoadWait     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		NavAttempts:  2,
		NavPause:     5 * time.Second,
		MenuAttempts: 3,
		MenuWait:     15 * time.Second,
		MenuPause:    2 * time.Second,
		LoadWait:     30 * time.Second,
	}
}

type loginState int

const (
	stateInit loginState = iota
	stateNavigating
	stateAuthenticating
	stateWaitingForMenu
	stateAuthenticated
	stateFailed
)

// loginFlow is the bounded-retry state machine that takes a fresh session to
// an authenticated page with the section menu open.
type loginFlow struct {
	session Session
	creds   Credentials
	clock   Clock
	cfg     RetryConfig
	state   loginState
}

// Run drives the flow to stateAuthenticated or returns the stage that could
// not be passed. The session is left open either way; lifecycle belongs to
// the caller.
func (f *loginFlow) Run(ctx context.Context) *FetchError {
	logger := zerolog.Ctx(ctx)

	f.state = stateNavigating
	if err := f.navigate(ctx); err != nil {
		f.state = stateFailed
		return &FetchError{Stage: StageNavigate, Err: err}
	}

	f.state = stateAuthenticating
	if err := f.authenticate(ctx); err != nil {
		f.state = stateFailed
		return &FetchError{Stage: StageLogin, Err: err}
	}

	if err := f.session.WaitReady(ctx, f.cfg.LoadWait); err != nil {
		f.state = stateFailed
		return &FetchError{Stage: StageWaitLoad, Err: err}
	}

	f.state = stateWaitingForMenu
	if err := f.openMenu(ctx); err != nil {
		f.state = stateFailed
		return &FetchError{Stage: StageMenu, Err: err}
	}

	f.state = stateAuthenticated
	logger.Debug().Msg("login flow completed, menu open")
	return nil
}

// navigate reaches the portal URL, retrying once; the server can be slow to
// wake on the first request of the day.
func (f *loginFlow) navigate(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	var lastErr error
	for attempt := 0; attempt < f.cfg.NavAttempts; attempt++ {
		if attempt > 0 {
			logger.Warn().Err(lastErr).Int("attempt", attempt+1).Msg("slow portal, retrying navigation")
			if err := f.clock.Sleep(ctx, f.cfg.NavPause); err != nil {
				return err
			}
		}
		if err := f.session.Navigate(ctx, f.creds.URL); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("navigate to portal after %d attempts: %w", f.cfg.NavAttempts, lastErr)
}

func (f *loginFlow) authenticate(ctx context.Context) error {
	if err := f.session.WaitVisible(ctx, selLoginField, f.cfg.MenuWait); err != nil {
		return fmt.Errorf("login field not visible: %w", err)
	}
	if err := f.session.Fill(ctx, selLoginField, f.creds.Login); err != nil {
		return fmt.Errorf("fill login: %w", err)
	}
	if err := f.session.Fill(ctx, selPasswordField, f.creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := f.session.Click(ctx, selSubmitButton); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	return nil
}

// openMenu waits for the menu button and clicks it, reloading the page
// between bounded attempts.
func (f *loginFlow) openMenu(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	var lastErr error
	for attempt := 0; attempt < f.cfg.MenuAttempts; attempt++ {
		if attempt > 0 {
			logger.Warn().
				Int("attempt", attempt+1).
				Int("max", f.cfg.MenuAttempts).
				Msg("menu not reachable, reloading page")
			if err := f.clock.Sleep(ctx, f.cfg.MenuPause); err != nil {
				return err
			}
			if err := f.session.Reload(ctx); err != nil {
				logger.Warn().Err(err).Msg("page reload failed, continuing")
			} else if err := f.session.WaitReady(ctx, f.cfg.LoadWait); err != nil {
				logger.Warn().Err(err).Msg("page not ready after reload, continuing")
			}
		}

		if err := f.session.WaitVisible(ctx, selMenuButton, f.cfg.MenuWait); err != nil {
			lastErr = fmt.Errorf("menu button not visible: %w", err)
			continue
		}
		if err := f.session.Click(ctx, selMenuButton); err != nil {
			lastErr = fmt.Errorf("click menu button: %w", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("open menu after %d attempts: %w", f.cfg.MenuAttempts, lastErr)
}
