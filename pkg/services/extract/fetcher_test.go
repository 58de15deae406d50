package extract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession scripts per-step failures and counts Close calls.
type fakeSession struct {
	mu sync.Mutex

	navigateErr    error
	navigateFails  int
	waitVisibleErr map[string]error
	fillErr        error
	clickErr       map[string]error
	waitReadyErr   error
	reloadErr      error
	content        string
	contentErr     error

	navigates  int
	reloads    int
	closeCalls int
	filled     map[string]string
	clicked    []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		waitVisibleErr: map[string]error{},
		clickErr:       map[string]error{},
		filled:         map[string]string{},
		content:        "<html></html>",
	}
}

func (s *fakeSession) Navigate(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigates++
	if s.navigateFails > 0 {
		s.navigateFails--
		return errors.New("portal unreachable")
	}
	return s.navigateErr
}

func (s *fakeSession) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitVisibleErr[selector]
}

func (s *fakeSession) Fill(_ context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fillErr != nil {
		return s.fillErr
	}
	s.filled[selector] = value
	return nil
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clickErr[selector]; err != nil {
		return err
	}
	s.clicked = append(s.clicked, selector)
	return nil
}

func (s *fakeSession) WaitReady(_ context.Context, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitReadyErr
}

func (s *fakeSession) Reload(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	return s.reloadErr
}

func (s *fakeSession) Content(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content, s.contentErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

// fakeBrowser hands out scripted sessions in order.
type fakeBrowser struct {
	mu       sync.Mutex
	sessions []*fakeSession
	openErr  error
	opened   int
}

func (b *fakeBrowser) NewSession(_ context.Context, _ bool) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := b.sessions[b.opened%len(b.sessions)]
	b.opened++
	return s, nil
}

// fakeClock records sleep requests without waiting.
type fakeClock struct {
	mu     sync.Mutex
	slept  []time.Duration
	frozen time.Time
}

func (c *fakeClock) Now() time.Time { return c.frozen }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	return nil
}

func testCreds() Credentials {
	return Credentials{Login: "user", Password: "secret", URL: "https://extranet.example"}
}

// fastRetry keeps retry counts real but removes the waits.
func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.NavPause = 0
	cfg.MenuWait = 0
	cfg.MenuPause = 0
	cfg.LoadWait = 0
	return cfg
}

func TestFetcher_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("success closes the session once", func(t *testing.T) {
		session := newFakeSession()
		session.content = "<html>charges</html>"
		browser := &fakeBrowser{sessions: []*fakeSession{session}}
		fetcher := NewFetcher(browser, &fakeClock{}, fastRetry())

		doc, err := fetcher.Fetch(ctx, ChargesStrategy{}, testCreds(), true)
		require.NoError(t, err)
		assert.Equal(t, "<html>charges</html>", doc)
		assert.Equal(t, 1, session.closeCalls)
		assert.Equal(t, "user", session.filled[selLoginField])
		assert.Equal(t, "secret", session.filled[selPasswordField])
	})

	t.Run("browser startup failure", func(t *testing.T) {
		browser := &fakeBrowser{openErr: errors.New("no chrome binary")}
		fetcher := NewFetcher(browser, &fakeClock{}, fastRetry())

		_, err := fetcher.Fetch(ctx, ChargesStrategy{}, testCreds(), true)
		assert.Equal(t, StageOpenBrowser, FailedStage(err))
	})

	t.Run("each failure stage closes the session once", func(t *testing.T) {
		cases := []struct {
			name  string
			setup func(s *fakeSession)
			stage Stage
		}{
			{
				name:  "navigation exhausted",
				setup: func(s *fakeSession) { s.navigateFails = 99 },
				stage: StageNavigate,
			},
			{
				name:  "login field never visible",
				setup: func(s *fakeSession) { s.waitVisibleErr[selLoginField] = errors.New("timeout") },
				stage: StageLogin,
			},
			{
				name:  "submit click fails",
				setup: func(s *fakeSession) { s.clickErr[selSubmitButton] = errors.New("detached") },
				stage: StageLogin,
			},
			{
				name:  "page never loads",
				setup: func(s *fakeSession) { s.waitReadyErr = errors.New("timeout") },
				stage: StageWaitLoad,
			},
			{
				name:  "menu never opens",
				setup: func(s *fakeSession) { s.waitVisibleErr[selMenuButton] = errors.New("timeout") },
				stage: StageMenu,
			},
			{
				name:  "section link missing",
				setup: func(s *fakeSession) { s.clickErr[selChargesLink] = errors.New("not found") },
				stage: StageChargesNav,
			},
			{
				name:  "page source unavailable",
				setup: func(s *fakeSession) { s.contentErr = errors.New("target closed") },
				stage: StageGetHTML,
			},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				session := newFakeSession()
				tc.setup(session)
				browser := &fakeBrowser{sessions: []*fakeSession{session}}
				fetcher := NewFetcher(browser, &fakeClock{}, fastRetry())

				_, err := fetcher.Fetch(ctx, ChargesStrategy{}, testCreds(), true)
				require.Error(t, err)
				assert.Equal(t, tc.stage, FailedStage(err))
				assert.Equal(t, 1, session.closeCalls)
			})
		}
	})

	t.Run("navigation retries before failing", func(t *testing.T) {
		session := newFakeSession()
		session.navigateFails = 1
		browser := &fakeBrowser{sessions: []*fakeSession{session}}
		fetcher := NewFetcher(browser, &fakeClock{}, fastRetry())

		_, err := fetcher.Fetch(ctx, ChargesStrategy{}, testCreds(), true)
		require.NoError(t, err)
		assert.Equal(t, 2, session.navigates)
	})

	t.Run("menu retry reloads the page", func(t *testing.T) {
		session := newFakeSession()
		session.waitVisibleErr[selMenuButton] = errors.New("timeout")
		browser := &fakeBrowser{sessions: []*fakeSession{session}}
		cfg := fastRetry()
		fetcher := NewFetcher(browser, &fakeClock{}, cfg)

		_, err := fetcher.Fetch(ctx, ChargesStrategy{}, testCreds(), true)
		require.Error(t, err)
		assert.Equal(t, StageMenu, FailedStage(err))
		assert.Equal(t, cfg.MenuAttempts-1, session.reloads)
	})
}
