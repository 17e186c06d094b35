// Package browser drives a single headless Chrome tab through chromedp.
// A Session is a scoped resource: Open launches Chrome, Close tears it down,
// and every interaction in between runs with its own timeout.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Options configures a browser session.
type Options struct {
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	UserAgent         string
	NoSandbox         bool
	ExecPath          string
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

// DefaultOptions returns a headless 1280x720 session with 30s bounds.
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    720,
		NavigationTimeout: 30 * time.Second,
		ActionTimeout:     30 * time.Second,
	}
}

// ConsoleMessage is a console error or uncaught exception reported by the page.
type ConsoleMessage struct {
	Kind string // "console.error", "console.assert" or "exception"
	Text string
	At   time.Time
}

// Session owns one Chrome process and one tab.
type Session struct {
	opts   Options
	logger arbor.ILogger

	ctx         context.Context // tab context; lifetime of the browser
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
	closeErr    error

	mu             sync.Mutex
	console        []ConsoleMessage
	documentStatus int64
}

// Open launches Chrome and returns a session ready for navigation.
// The browser is started eagerly so a missing or broken Chrome install is
// reported here rather than by the first navigation.
func Open(ctx context.Context, opts Options, logger arbor.ILogger) (*Session, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		def := DefaultOptions()
		opts.ViewportWidth, opts.ViewportHeight = def.ViewportWidth, def.ViewportHeight
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultOptions().NavigationTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultOptions().ActionTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		opts:        opts,
		logger:      logger,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	chromedp.ListenTarget(tabCtx, s.handleEvent)

	startTime := time.Now()

	// First Run on the tab context allocates the browser; it must not use a
	// derived timeout context or the browser would die with it.
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		runtime.Enable(),
		emulation.SetDeviceMetricsOverride(int64(opts.ViewportWidth), int64(opts.ViewportHeight), 1.0, false),
	); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug().
		Bool("headless", opts.Headless).
		Int("viewport_width", opts.ViewportWidth).
		Int("viewport_height", opts.ViewportHeight).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session opened")

	return s, nil
}

// Close shuts the tab and the Chrome process down. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		s.cancelTab()
		s.cancelAlloc()
		s.logger.Debug().Msg("Browser session closed")
	})
	return s.closeErr
}

// withTimeout runs fn with a per-call timeout derived from the tab context.
func (s *Session) withTimeout(timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// Navigate loads url and waits for the page load event.
func (s *Session) Navigate(url string) error {
	s.logger.Debug().Str("url", url).Msg("Navigating")
	err := s.withTimeout(s.opts.NavigationTimeout, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Navigate(url))
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// FillByLabel replaces the value of the form control labelled label.
// Keys are sent one by one so framework-controlled inputs see input events.
func (s *Session) FillByLabel(label, value string) error {
	sel := ByLabel(label)
	err := s.withTimeout(s.opts.ActionTimeout, func(ctx context.Context) error {
		return chromedp.Run(ctx,
			chromedp.WaitVisible(sel, chromedp.BySearch),
			chromedp.Focus(sel, chromedp.BySearch),
			chromedp.SetValue(sel, "", chromedp.BySearch),
			chromedp.SendKeys(sel, value, chromedp.BySearch),
		)
	})
	if err != nil {
		return fmt.Errorf("fill field labelled %q: %w", label, err)
	}
	return nil
}

// ClickByRole clicks the first visible element with role and accessible name.
func (s *Session) ClickByRole(role Role, name string) error {
	sel := ByRole(role, name)
	err := s.withTimeout(s.opts.ActionTimeout, func(ctx context.Context) error {
		return chromedp.Run(ctx,
			chromedp.WaitVisible(sel, chromedp.BySearch),
			chromedp.Click(sel, chromedp.BySearch),
		)
	})
	if err != nil {
		return fmt.Errorf("click %s %q: %w", role, name, err)
	}
	return nil
}

// WaitVisibleByRole blocks until an element with role and accessible name is visible.
func (s *Session) WaitVisibleByRole(role Role, name string, timeout time.Duration) error {
	sel := ByRole(role, name)
	err := s.withTimeout(timeout, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.WaitVisible(sel, chromedp.BySearch))
	})
	if err != nil {
		return fmt.Errorf("%s %q not visible within %s: %w", role, name, timeout, err)
	}
	return nil
}

// WaitForURL blocks until the tab's committed URL equals expected.
// The URL is read from the browser's navigation history rather than from page
// script, so full document loads (server redirects, location.href changes)
// do not abort the wait.
func (s *Session) WaitForURL(expected string, timeout time.Duration) error {
	var current string
	err := s.withTimeout(timeout, func(ctx context.Context) error {
		var err error
		current, err = pollURL(ctx, s.readURL, expected, urlPollInterval)
		return err
	})
	if err == nil {
		return nil
	}

	if current == "" {
		current = "unknown"
	}
	return fmt.Errorf("page URL %q did not become %q within %s: %w", current, expected, timeout, err)
}

// CurrentURL returns the tab's current location.
func (s *Session) CurrentURL() (string, error) {
	var location string
	err := s.withTimeout(s.opts.ActionTimeout, func(ctx context.Context) error {
		var err error
		location, err = s.readURL(ctx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

// readURL returns the URL of the current navigation history entry.
func (s *Session) readURL(ctx context.Context) (string, error) {
	var current string
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		index, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		if index < 0 || int(index) >= len(entries) {
			return errors.New("navigation history has no current entry")
		}
		current = entries[index].URL
		return nil
	}))
	return current, err
}

// Screenshot writes a PNG of the page to path, creating parent directories
// and overwriting any existing file. fullPage captures beyond the viewport.
func (s *Session) Screenshot(path string, fullPage bool) error {
	if path == "" {
		return fmt.Errorf("screenshot path is required")
	}

	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// quality 100 selects PNG encoding
		action = chromedp.FullScreenshot(&buf, 100)
	}

	if err := s.withTimeout(s.opts.ActionTimeout, func(ctx context.Context) error {
		return chromedp.Run(ctx, action)
	}); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if len(buf) == 0 {
		return fmt.Errorf("screenshot produced empty image")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create screenshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("save screenshot: %w", err)
	}

	s.logger.Debug().Str("path", path).Int("bytes", len(buf)).Msg("Screenshot saved")
	return nil
}

// ConsoleErrors returns the console errors and exceptions seen so far.
func (s *Session) ConsoleErrors() []ConsoleMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConsoleMessage, len(s.console))
	copy(out, s.console)
	return out
}

// DocumentStatus returns the HTTP status of the last document response, or 0.
func (s *Session) DocumentStatus() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.documentStatus)
}

// handleEvent runs on chromedp's event goroutine and must not block.
func (s *Session) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		if e.Type != runtime.APITypeError && e.Type != runtime.APITypeAssert {
			return
		}
		s.recordConsole("console."+string(e.Type), remoteObjectsText(e.Args))
	case *runtime.EventExceptionThrown:
		if e.ExceptionDetails == nil {
			return
		}
		text := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			text = e.ExceptionDetails.Exception.Description
		}
		s.recordConsole("exception", text)
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && e.Response != nil {
			s.mu.Lock()
			s.documentStatus = e.Response.Status
			s.mu.Unlock()
		}
	}
}

func (s *Session) recordConsole(kind, text string) {
	s.mu.Lock()
	s.console = append(s.console, ConsoleMessage{Kind: kind, Text: text, At: time.Now()})
	s.mu.Unlock()
}

func remoteObjectsText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		switch {
		case len(arg.Value) > 0:
			parts = append(parts, strings.Trim(string(arg.Value), `"`))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}
