package common

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Target      TargetConfig      `toml:"target"`
	Credentials CredentialsConfig `toml:"credentials"`
	Locators    LocatorsConfig    `toml:"locators"`
	Browser     BrowserConfig     `toml:"browser"`
	Timeouts    TimeoutsConfig    `toml:"timeouts"`
	Output      OutputConfig      `toml:"output"`
	Preflight   PreflightConfig   `toml:"preflight"`
	History     HistoryConfig     `toml:"history"`
	Logging     LoggingConfig     `toml:"logging"`
	Exit        ExitConfig        `toml:"exit"`

	// Set once a layer names an expected URL other than the login origin's root.
	// A pinned expected URL no longer follows login URL overrides.
	expectedURLPinned bool
}

// TargetConfig identifies the web application under verification
type TargetConfig struct {
	LoginURL    string `toml:"login_url" validate:"required,url"`    // Page the flow starts on
	ExpectedURL string `toml:"expected_url" validate:"required,url"` // URL the app must land on after login
}

type CredentialsConfig struct {
	Email    string `toml:"email" validate:"required"`
	Password string `toml:"password" validate:"required"`
}

// LocatorsConfig holds the accessible names used to find elements on the page
type LocatorsConfig struct {
	EmailLabel       string `toml:"email_label" validate:"required"`
	PasswordLabel    string `toml:"password_label" validate:"required"`
	SubmitButton     string `toml:"submit_button" validate:"required"`     // Accessible name of the button (role=button)
	DashboardHeading string `toml:"dashboard_heading" validate:"required"` // Accessible name of the heading (role=heading)
}

type BrowserConfig struct {
	Headless       bool   `toml:"headless"`
	ViewportWidth  int    `toml:"viewport_width" validate:"min=1"`
	ViewportHeight int    `toml:"viewport_height" validate:"min=1"`
	UserAgent      string `toml:"user_agent"` // Empty keeps Chrome's own user agent
	NoSandbox      bool   `toml:"no_sandbox"` // Required when running as root in containers
	ExecPath       string `toml:"exec_path"`  // Empty lets chromedp locate Chrome/Chromium
}

// TimeoutsConfig holds duration strings (e.g. "10s") bounding each kind of browser wait
type TimeoutsConfig struct {
	Navigation string `toml:"navigation" validate:"required,duration"` // Page navigation (default: "30s")
	Action     string `toml:"action" validate:"required,duration"`     // Fill and click (default: "30s")
	URL        string `toml:"url" validate:"required,duration"`        // Post-login URL match (default: "5s")
	Dashboard  string `toml:"dashboard" validate:"required,duration"`  // Dashboard heading visibility (default: "10s")
}

type OutputConfig struct {
	SuccessPath string `toml:"success_path" validate:"required"`
	ErrorPath   string `toml:"error_path" validate:"required,nefield=SuccessPath"`
	FullPage    bool   `toml:"full_page"`
}

// PreflightConfig controls the HTTP reachability check run before the browser starts
type PreflightConfig struct {
	Enabled bool   `toml:"enabled"`
	Timeout string `toml:"timeout" validate:"required,duration"`
}

// HistoryConfig controls the optional Badger-backed run history
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output" validate:"dive,oneof=stdout console file"`  // "stdout", "file"
	Dir    string   `toml:"dir"`                                               // Directory for log and crash files (default: "./logs")
}

// ExitConfig controls how the verification outcome maps to the process exit status
type ExitConfig struct {
	Strict bool `toml:"strict"` // Exit 1 when verification fails (default: false, always exit 0)
}

// NewDefaultConfig creates a configuration with default values.
// Running with no config file, no environment and no flags uses exactly these values.
func NewDefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			LoginURL:    "http://localhost:5173/login",
			ExpectedURL: "http://localhost:5173/",
		},
		Credentials: CredentialsConfig{
			Email:    "test@example.com",
			Password: "password",
		},
		Locators: LocatorsConfig{
			EmailLabel:       "Email",
			PasswordLabel:    "Password",
			SubmitButton:     "Login",
			DashboardHeading: "Dashboard",
		},
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			NoSandbox:      os.Geteuid() == 0,
		},
		Timeouts: TimeoutsConfig{
			Navigation: "30s",
			Action:     "30s",
			URL:        "5s",
			Dashboard:  "10s",
		},
		Output: OutputConfig{
			SuccessPath: "jules-scratch/verification/dashboard_redesign.png",
			ErrorPath:   "jules-scratch/verification/error_screenshot.png",
			FullPage:    true,
		},
		Preflight: PreflightConfig{
			Enabled: true,
			Timeout: "3s",
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "./data/history",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
			Dir:    "./logs",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}

		var target targetKeys
		if err := toml.Unmarshal(data, &target); err == nil {
			config.mergeTarget(target)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Target configuration
	// A login URL override moves the expected landing URL to the same origin unless one was set explicitly
	if expectedURL := os.Getenv("DASHVERIFY_EXPECTED_URL"); expectedURL != "" {
		config.Target.ExpectedURL = expectedURL
		config.expectedURLPinned = true
	}
	if loginURL := os.Getenv("DASHVERIFY_LOGIN_URL"); loginURL != "" {
		config.setLoginURL(loginURL)
	}

	// Credentials
	if email := os.Getenv("DASHVERIFY_EMAIL"); email != "" {
		config.Credentials.Email = email
	}
	if password := os.Getenv("DASHVERIFY_PASSWORD"); password != "" {
		config.Credentials.Password = password
	}

	// Browser configuration
	if headless := os.Getenv("DASHVERIFY_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if execPath := os.Getenv("DASHVERIFY_CHROME_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}

	// Output configuration
	if successPath := os.Getenv("DASHVERIFY_SUCCESS_PATH"); successPath != "" {
		config.Output.SuccessPath = successPath
	}
	if errorPath := os.Getenv("DASHVERIFY_ERROR_PATH"); errorPath != "" {
		config.Output.ErrorPath = errorPath
	}

	// Logging configuration
	if level := os.Getenv("DASHVERIFY_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}

	// Exit policy
	if strict := os.Getenv("DASHVERIFY_STRICT"); strict != "" {
		if s, err := strconv.ParseBool(strict); err == nil {
			config.Exit.Strict = s
		}
	}

	// History configuration - setting a path enables the store
	if historyPath := os.Getenv("DASHVERIFY_HISTORY_PATH"); historyPath != "" {
		config.History.Path = historyPath
		config.History.Enabled = true
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// headless is nil when the flag was not given on the command line.
func ApplyFlagOverrides(config *Config, loginURL string, headless *bool, strict bool) {
	// Command-line flags have highest priority
	if loginURL != "" {
		config.setLoginURL(loginURL)
	}
	if headless != nil {
		config.Browser.Headless = *headless
	}
	if strict {
		config.Exit.Strict = true
	}
}

// targetKeys records which [target] keys a single config file sets.
type targetKeys struct {
	Target struct {
		LoginURL    *string `toml:"login_url"`
		ExpectedURL *string `toml:"expected_url"`
	} `toml:"target"`
}

// mergeTarget updates the expected URL bookkeeping after a file was merged.
func (c *Config) mergeTarget(keys targetKeys) {
	switch {
	case keys.Target.ExpectedURL != nil:
		c.expectedURLPinned = *keys.Target.ExpectedURL != DeriveExpectedURL(c.Target.LoginURL)
	case keys.Target.LoginURL != nil:
		// The file only moved the login page; let the expected URL follow it
		c.setLoginURL(*keys.Target.LoginURL)
	}
}

// setLoginURL changes the login URL. Unless the expected URL is pinned it
// moves to the root of the new login URL's origin.
func (c *Config) setLoginURL(loginURL string) {
	c.Target.LoginURL = loginURL
	if c.expectedURLPinned {
		return
	}
	if root := DeriveExpectedURL(loginURL); root != "" {
		c.Target.ExpectedURL = root
	}
}

// DeriveExpectedURL returns the root URL ("scheme://host/") of loginURL,
// or "" when loginURL is not an absolute URL.
func DeriveExpectedURL(loginURL string) string {
	u, err := url.Parse(strings.TrimSpace(loginURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Timeouts are kept as strings in TOML; they must parse to a positive duration
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// Validate checks the final configuration and reports every invalid field
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s: failed '%s=%s'", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s: failed '%s'", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// NavigationTimeout returns the parsed navigation bound
func (t TimeoutsConfig) NavigationTimeout() time.Duration {
	return parseDurationOr(t.Navigation, 30*time.Second)
}

// ActionTimeout returns the parsed fill/click bound
func (t TimeoutsConfig) ActionTimeout() time.Duration {
	return parseDurationOr(t.Action, 30*time.Second)
}

// URLTimeout returns the parsed post-login URL bound
func (t TimeoutsConfig) URLTimeout() time.Duration {
	return parseDurationOr(t.URL, 5*time.Second)
}

// DashboardTimeout returns the parsed dashboard visibility bound
func (t TimeoutsConfig) DashboardTimeout() time.Duration {
	return parseDurationOr(t.Dashboard, 10*time.Second)
}

// RequestTimeout returns the parsed preflight request bound
func (p PreflightConfig) RequestTimeout() time.Duration {
	return parseDurationOr(p.Timeout, 3*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// HasFileOutput reports whether file logging is configured
func (l LoggingConfig) HasFileOutput() bool {
	for _, output := range l.Output {
		if output == "file" {
			return true
		}
	}
	return false
}
