// Package browser drives a Chrome session over the DevTools protocol.
// One Chrome value owns one browser tab; the marketplace flows run
// sequentially against it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/crostore/backend/internal/domain/crosslist"
)

const (
	defaultPageLoadTimeout = 30 * time.Second

	// locationPollInterval paces the URL polling behind WaitLocation.
	locationPollInterval = 250 * time.Millisecond
)

// Config contains configuration for the Chrome session.
type Config struct {
	// RemoteURL attaches to a running Chrome/Chromium instance. If empty,
	// a new browser is launched.
	RemoteURL string
	// UserDataDir is the profile directory. A persistent directory keeps
	// the marketplace logins across runs.
	UserDataDir string
	// Headless mode.
	Headless bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root).
	NoSandbox bool
	// PageLoadTimeout bounds navigations and location reads.
	PageLoadTimeout time.Duration
	// Logger for debug output.
	Logger *zap.Logger
}

// withDefaults returns cfg with zero fields filled in.
func (cfg *Config) withDefaults() *Config {
	out := &Config{}
	if cfg != nil {
		*out = *cfg
	}
	if out.PageLoadTimeout == 0 {
		out.PageLoadTimeout = defaultPageLoadTimeout
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}

// Chrome is a live browser session. It implements crosslist.Session.
type Chrome struct {
	cfg         *Config
	log         *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

var _ crosslist.Session = (*Chrome)(nil)

// NewChrome allocates the browser and opens its tab. The caller owns the
// session and must Close it.
func NewChrome(cfg *Config) (*Chrome, error) {
	cfg = cfg.withDefaults()
	c := &Chrome{cfg: cfg, log: cfg.Logger}

	if cfg.RemoteURL != "" {
		c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if cfg.NoSandbox {
			opts = append(opts, chromedp.Flag("no-sandbox", true))
		}
		if cfg.UserDataDir != "" {
			opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
		}
		c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	c.tabCtx, c.tabCancel = chromedp.NewContext(c.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			c.log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// The browser's lifetime binds to the context of the first Run, so
	// start it here on the undecorated tab context rather than under an
	// operation timeout.
	if err := chromedp.Run(c.tabCtx); err != nil {
		c.tabCancel()
		c.allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return c, nil
}

// opContext derives a per-operation context from the tab, honoring both
// the operation timeout and the caller's cancellation.
func (c *Chrome) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(c.tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// Navigate loads url in the tab and waits for the page load.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := c.opContext(ctx, c.cfg.PageLoadTimeout)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	c.log.Debug("navigated", zap.String("url", url))
	return nil
}

// Location returns the tab's current URL.
func (c *Chrome) Location(ctx context.Context) (string, error) {
	opCtx, cancel := c.opContext(ctx, c.cfg.PageLoadTimeout)
	defer cancel()
	var location string
	if err := chromedp.Run(opCtx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

// WaitLocation polls the tab's URL until it acquires prefix, returning
// crosslist.ErrWaitTimeout when the timeout elapses first.
func (c *Chrome) WaitLocation(ctx context.Context, prefix string, timeout time.Duration) error {
	opCtx, cancel := c.opContext(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(locationPollInterval)
	defer ticker.Stop()
	for {
		var location string
		if err := chromedp.Run(opCtx, chromedp.Location(&location)); err != nil {
			if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
				return crosslist.ErrWaitTimeout
			}
			return fmt.Errorf("read location: %w", err)
		}
		if strings.HasPrefix(location, prefix) {
			return nil
		}
		select {
		case <-opCtx.Done():
			if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
				return crosslist.ErrWaitTimeout
			}
			return opCtx.Err()
		case <-ticker.C:
		}
	}
}

// Click clicks the first element matching the XPath, waiting for it to
// appear. A wait that exhausts the timeout reports
// crosslist.ErrElementNotFound.
func (c *Chrome) Click(ctx context.Context, xpath string, timeout time.Duration) error {
	opCtx, cancel := c.opContext(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.Click(xpath, chromedp.BySearch)); err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", crosslist.ErrElementNotFound, xpath)
		}
		return fmt.Errorf("click %s: %w", xpath, err)
	}
	c.log.Debug("clicked", zap.String("xpath", xpath))
	return nil
}

// WaitVisible waits until the element matching the XPath is visible.
func (c *Chrome) WaitVisible(ctx context.Context, xpath string, timeout time.Duration) error {
	opCtx, cancel := c.opContext(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.WaitVisible(xpath, chromedp.BySearch)); err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", crosslist.ErrWaitTimeout, xpath)
		}
		return fmt.Errorf("wait visible %s: %w", xpath, err)
	}
	return nil
}

// Screenshot captures the current page for failure forensics.
func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := c.opContext(ctx, c.cfg.PageLoadTimeout)
	defer cancel()
	var shot []byte
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, err := page.CaptureScreenshot().Do(ctx)
		if err != nil {
			return err
		}
		shot = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return shot, nil
}

// Close shuts the browser down gracefully and releases the allocator.
func (c *Chrome) Close() error {
	var err error
	if c.tabCtx != nil {
		err = chromedp.Cancel(c.tabCtx)
	}
	if c.tabCancel != nil {
		c.tabCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return err
}
