// Package verify runs the dashboard login verification: log in through the
// browser, wait for the dashboard, and leave exactly one screenshot behind.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dashverify/internal/browser"
	"github.com/ternarybob/dashverify/internal/common"
	"github.com/ternarybob/dashverify/internal/models"
)

// Browser is the subset of a browser session the runner drives.
// *browser.Session is the production implementation.
type Browser interface {
	Navigate(url string) error
	FillByLabel(label, value string) error
	ClickByRole(role browser.Role, name string) error
	WaitForURL(expected string, timeout time.Duration) error
	WaitVisibleByRole(role browser.Role, name string, timeout time.Duration) error
	Screenshot(path string, fullPage bool) error
	Close() error
}

// consoleReporter is implemented by browsers that capture page console errors.
type consoleReporter interface {
	ConsoleErrors() []browser.ConsoleMessage
}

// documentStatusReporter is implemented by browsers that track the HTTP
// status of the last document they loaded.
type documentStatusReporter interface {
	DocumentStatus() int
}

// Opener acquires a browser session for one run.
type Opener func(ctx context.Context) (Browser, error)

// ChromeOpener returns an Opener launching Chrome through chromedp.
func ChromeOpener(opts browser.Options, logger arbor.ILogger) Opener {
	return func(ctx context.Context) (Browser, error) {
		session, err := browser.Open(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// BrowserOptions maps the browser and timeout configuration onto session options.
func BrowserOptions(cfg *common.Config) browser.Options {
	return browser.Options{
		Headless:          cfg.Browser.Headless,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		UserAgent:         cfg.Browser.UserAgent,
		NoSandbox:         cfg.Browser.NoSandbox,
		ExecPath:          cfg.Browser.ExecPath,
		NavigationTimeout: cfg.Timeouts.NavigationTimeout(),
		ActionTimeout:     cfg.Timeouts.ActionTimeout(),
	}
}

// Plan holds everything one run needs to know about the target application.
type Plan struct {
	LoginURL         string
	ExpectedURL      string
	Email            string
	Password         string
	EmailLabel       string
	PasswordLabel    string
	SubmitButton     string
	DashboardHeading string
	URLTimeout       time.Duration
	DashboardTimeout time.Duration
	SuccessPath      string
	ErrorPath        string
	FullPage         bool
}

// DefaultPlan returns the plan for the local development dashboard.
func DefaultPlan() Plan {
	return PlanFromConfig(common.NewDefaultConfig())
}

// PlanFromConfig builds a plan from a loaded configuration.
func PlanFromConfig(cfg *common.Config) Plan {
	return Plan{
		LoginURL:         cfg.Target.LoginURL,
		ExpectedURL:      cfg.Target.ExpectedURL,
		Email:            cfg.Credentials.Email,
		Password:         cfg.Credentials.Password,
		EmailLabel:       cfg.Locators.EmailLabel,
		PasswordLabel:    cfg.Locators.PasswordLabel,
		SubmitButton:     cfg.Locators.SubmitButton,
		DashboardHeading: cfg.Locators.DashboardHeading,
		URLTimeout:       cfg.Timeouts.URLTimeout(),
		DashboardTimeout: cfg.Timeouts.DashboardTimeout(),
		SuccessPath:      cfg.Output.SuccessPath,
		ErrorPath:        cfg.Output.ErrorPath,
		FullPage:         cfg.Output.FullPage,
	}
}

// Result describes one finished run.
type Result struct {
	RunID          string
	State          State
	FailedAt       State  // last state reached before the failure
	Artifact       string // screenshot written by this run, empty if none
	Err            error  // failure caught inside the flow
	StartedAt      time.Time
	Duration       time.Duration
	ConsoleErrors  []browser.ConsoleMessage
	DocumentStatus int // HTTP status of the page on screen when the run failed, 0 if unknown
}

// Succeeded reports whether the dashboard screenshot was taken.
func (r *Result) Succeeded() bool {
	return r.State == StateScreenshotTaken
}

// Record projects the result into a run history record.
func (r *Result) Record(targetURL string) *models.RunRecord {
	record := &models.RunRecord{
		ID:             r.RunID,
		TargetURL:      targetURL,
		Outcome:        models.RunOutcomeFailure,
		FinalState:     r.State.String(),
		Artifact:       r.Artifact,
		ConsoleErrors:  len(r.ConsoleErrors),
		DocumentStatus: r.DocumentStatus,
		StartedAt:      r.StartedAt,
		Duration:       r.Duration,
	}
	if r.Succeeded() {
		record.Outcome = models.RunOutcomeSuccess
	}
	if r.Err != nil {
		record.Error = r.Err.Error()
		record.FailedAt = r.FailedAt.String()
	}
	return record
}

// step is one transition of the happy path.
type step struct {
	name    string
	reaches State
	run     func(b Browser) error
}

// Runner executes the verification flow against one browser session.
type Runner struct {
	plan   Plan
	open   Opener
	logger arbor.ILogger
	out    io.Writer
}

// NewRunner creates a runner. Status lines go to stdout.
func NewRunner(plan Plan, open Opener, logger arbor.ILogger) *Runner {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Runner{
		plan:   plan,
		open:   open,
		logger: logger,
		out:    os.Stdout,
	}
}

// SetOutput redirects the status lines.
func (r *Runner) SetOutput(w io.Writer) {
	r.out = w
}

func (r *Runner) steps() []step {
	p := r.plan
	return []step{
		{"navigate", StateNavigated, func(b Browser) error {
			return b.Navigate(p.LoginURL)
		}},
		{"fill credentials", StateFormFilled, func(b Browser) error {
			if err := b.FillByLabel(p.EmailLabel, p.Email); err != nil {
				return err
			}
			return b.FillByLabel(p.PasswordLabel, p.Password)
		}},
		{"submit", StateSubmitted, func(b Browser) error {
			return b.ClickByRole(browser.RoleButton, p.SubmitButton)
		}},
		{"wait for landing url", StateURLConfirmed, func(b Browser) error {
			return b.WaitForURL(p.ExpectedURL, p.URLTimeout)
		}},
		{"wait for dashboard", StateDashboardVisible, func(b Browser) error {
			return b.WaitVisibleByRole(browser.RoleHeading, p.DashboardHeading, p.DashboardTimeout)
		}},
		{"capture dashboard", StateScreenshotTaken, func(b Browser) error {
			return b.Screenshot(p.SuccessPath, p.FullPage)
		}},
	}
}

// Run performs one verification.
//
// A failure inside the flow is printed, followed by a screenshot to the error
// path, and reported through Result.Err with a nil error return. A non-nil
// error means the session could not be opened or the error screenshot itself
// failed. The session is closed on every path. The returned Result is never nil.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:     uuid.New().String(),
		State:     StateStart,
		StartedAt: time.Now(),
	}
	logger := r.logger.WithCorrelationId(result.RunID)
	defer func() { result.Duration = time.Since(result.StartedAt) }()

	logger.Info().
		Str("login_url", r.plan.LoginURL).
		Str("expected_url", r.plan.ExpectedURL).
		Msg("Starting dashboard verification")

	b, err := r.open(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open browser session")
		return result, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()
	defer r.collectConsole(result, b, logger)

	failure := r.runSteps(ctx, b, result, logger)
	if failure == nil {
		result.Artifact = r.plan.SuccessPath
		fmt.Fprintf(r.out, "Screenshot saved to %s\n", r.plan.SuccessPath)
		logger.Info().
			Str("artifact", result.Artifact).
			Dur("elapsed", time.Since(result.StartedAt)).
			Msg("Dashboard verification succeeded")
		return result, nil
	}

	result.Err = failure
	result.FailedAt = result.State
	result.State = StateFailed
	if reporter, ok := b.(documentStatusReporter); ok {
		result.DocumentStatus = reporter.DocumentStatus()
	}
	fmt.Fprintf(r.out, "An error occurred: %v\n", failure)
	logger.Error().
		Err(failure).
		Str("failed_at", result.FailedAt.String()).
		Int("document_status", result.DocumentStatus).
		Msg("Dashboard verification failed")

	// Not guarded: a failure here leaves the run in StateFailed and is returned.
	if err := b.Screenshot(r.plan.ErrorPath, false); err != nil {
		logger.Error().Err(err).Str("path", r.plan.ErrorPath).Msg("Failed to capture error screenshot")
		return result, fmt.Errorf("failed to capture error screenshot: %w", err)
	}
	result.State = StateErrorScreenshotTaken
	result.Artifact = r.plan.ErrorPath
	logger.Info().Str("artifact", result.Artifact).Msg("Error screenshot saved")

	return result, nil
}

// runSteps walks the happy path and returns the first failure.
func (r *Runner) runSteps(ctx context.Context, b Browser, result *Result, logger arbor.ILogger) error {
	for _, s := range r.steps() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("verification interrupted before %s: %w", s.name, err)
		}

		stepStart := time.Now()
		if err := s.run(b); err != nil {
			logger.Debug().Str("step", s.name).Err(err).Msg("Step failed")
			return err
		}
		result.State = s.reaches

		logger.Debug().
			Str("step", s.name).
			Str("state", s.reaches.String()).
			Dur("elapsed", time.Since(stepStart)).
			Msg("Step completed")
	}
	return nil
}

func (r *Runner) collectConsole(result *Result, b Browser, logger arbor.ILogger) {
	reporter, ok := b.(consoleReporter)
	if !ok {
		return
	}
	result.ConsoleErrors = reporter.ConsoleErrors()
	for _, msg := range result.ConsoleErrors {
		logger.Warn().Str("kind", msg.Kind).Str("text", msg.Text).Msg("Page reported an error")
	}
}
