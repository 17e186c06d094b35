package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig_Literals(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "http://localhost:5173/login", config.Target.LoginURL)
	assert.Equal(t, "http://localhost:5173/", config.Target.ExpectedURL)
	assert.Equal(t, "test@example.com", config.Credentials.Email)
	assert.Equal(t, "password", config.Credentials.Password)
	assert.Equal(t, "Email", config.Locators.EmailLabel)
	assert.Equal(t, "Password", config.Locators.PasswordLabel)
	assert.Equal(t, "Login", config.Locators.SubmitButton)
	assert.Equal(t, "Dashboard", config.Locators.DashboardHeading)
	assert.Equal(t, "jules-scratch/verification/dashboard_redesign.png", config.Output.SuccessPath)
	assert.Equal(t, "jules-scratch/verification/error_screenshot.png", config.Output.ErrorPath)
	assert.True(t, config.Browser.Headless)
	assert.False(t, config.Exit.Strict)
	assert.False(t, config.History.Enabled)

	assert.Equal(t, 10*time.Second, config.Timeouts.DashboardTimeout())
	assert.Equal(t, 5*time.Second, config.Timeouts.URLTimeout())
	assert.Equal(t, 30*time.Second, config.Timeouts.ActionTimeout())
	assert.Equal(t, 30*time.Second, config.Timeouts.NavigationTimeout())

	require.NoError(t, config.Validate())
}

func TestLoadFromFiles_NoFiles(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig().Target, config.Target)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	base := writeConfigFile(t, "base.toml", `
[target]
login_url = "http://localhost:3000/login"
expected_url = "http://localhost:3000/"

[timeouts]
dashboard = "20s"
`)
	override := writeConfigFile(t, "override.toml", `
[target]
expected_url = "http://localhost:3000/home"

[credentials]
email = "qa@example.com"
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000/login", config.Target.LoginURL)
	assert.Equal(t, "http://localhost:3000/home", config.Target.ExpectedURL)
	assert.Equal(t, "qa@example.com", config.Credentials.Email)
	assert.Equal(t, "password", config.Credentials.Password, "unset keys keep defaults")
	assert.Equal(t, 20*time.Second, config.Timeouts.DashboardTimeout())
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	bad := writeConfigFile(t, "bad.toml", "[target\nlogin_url = ")
	_, err = LoadFromFiles(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DASHVERIFY_LOGIN_URL", "https://staging.example.com/auth/login")
	t.Setenv("DASHVERIFY_EMAIL", "env@example.com")
	t.Setenv("DASHVERIFY_HEADLESS", "false")
	t.Setenv("DASHVERIFY_STRICT", "true")
	t.Setenv("DASHVERIFY_LOG_LEVEL", "DEBUG")
	t.Setenv("DASHVERIFY_HISTORY_PATH", "/tmp/dashverify-history")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com/auth/login", config.Target.LoginURL)
	assert.Equal(t, "https://staging.example.com/", config.Target.ExpectedURL, "expected URL follows the login origin")
	assert.Equal(t, "env@example.com", config.Credentials.Email)
	assert.False(t, config.Browser.Headless)
	assert.True(t, config.Exit.Strict)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.True(t, config.History.Enabled)
	assert.Equal(t, "/tmp/dashverify-history", config.History.Path)
}

func TestApplyEnvOverrides_ExplicitExpectedURLWins(t *testing.T) {
	t.Setenv("DASHVERIFY_LOGIN_URL", "http://127.0.0.1:8080/login")
	t.Setenv("DASHVERIFY_EXPECTED_URL", "http://127.0.0.1:8080/app")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/app", config.Target.ExpectedURL)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	headless := false

	ApplyFlagOverrides(config, "http://127.0.0.1:4000/login", &headless, true)

	assert.Equal(t, "http://127.0.0.1:4000/login", config.Target.LoginURL)
	assert.Equal(t, "http://127.0.0.1:4000/", config.Target.ExpectedURL)
	assert.False(t, config.Browser.Headless)
	assert.True(t, config.Exit.Strict)

	// Zero values leave the config untouched
	before := *config
	ApplyFlagOverrides(config, "", nil, false)
	assert.Equal(t, before.Target, config.Target)
	assert.Equal(t, before.Browser, config.Browser)
	assert.Equal(t, before.Exit, config.Exit)
}

func TestExplicitExpectedURLSurvivesLoginOverrides(t *testing.T) {
	file := writeConfigFile(t, "app.toml", `
[target]
expected_url = "http://app:8080/home"
`)

	t.Run("file then flag", func(t *testing.T) {
		config, err := LoadFromFiles(file)
		require.NoError(t, err)

		ApplyFlagOverrides(config, "http://app:8080/auth/login", nil, false)
		assert.Equal(t, "http://app:8080/auth/login", config.Target.LoginURL)
		assert.Equal(t, "http://app:8080/home", config.Target.ExpectedURL)
	})

	t.Run("file then env login", func(t *testing.T) {
		t.Setenv("DASHVERIFY_LOGIN_URL", "http://app:8080/auth/login")

		config, err := LoadFromFiles(file)
		require.NoError(t, err)
		assert.Equal(t, "http://app:8080/home", config.Target.ExpectedURL)
	})

	t.Run("env expected then flag", func(t *testing.T) {
		t.Setenv("DASHVERIFY_EXPECTED_URL", "http://app:8080/home")

		config, err := LoadFromFiles()
		require.NoError(t, err)

		ApplyFlagOverrides(config, "http://app:8080/auth/login", nil, false)
		assert.Equal(t, "http://app:8080/home", config.Target.ExpectedURL)
	})
}

func TestLoadFromFiles_ExpectedURLFollowsLoginURL(t *testing.T) {
	t.Run("file sets only the login url", func(t *testing.T) {
		file := writeConfigFile(t, "login.toml", `
[target]
login_url = "http://app:8080/auth/login"
`)
		config, err := LoadFromFiles(file)
		require.NoError(t, err)
		assert.Equal(t, "http://app:8080/", config.Target.ExpectedURL)
	})

	t.Run("expected url equal to the origin root keeps following", func(t *testing.T) {
		file := writeConfigFile(t, "root.toml", `
[target]
login_url = "http://localhost:5173/login"
expected_url = "http://localhost:5173/"
`)
		config, err := LoadFromFiles(file)
		require.NoError(t, err)

		ApplyFlagOverrides(config, "http://127.0.0.1:4000/login", nil, false)
		assert.Equal(t, "http://127.0.0.1:4000/", config.Target.ExpectedURL)
	})

	t.Run("later file pins after an earlier one followed", func(t *testing.T) {
		base := writeConfigFile(t, "base.toml", `
[target]
login_url = "http://app:8080/login"
`)
		override := writeConfigFile(t, "override.toml", `
[target]
expected_url = "http://app:8080/home"
`)
		config, err := LoadFromFiles(base, override)
		require.NoError(t, err)

		ApplyFlagOverrides(config, "http://app:9090/login", nil, false)
		assert.Equal(t, "http://app:8080/home", config.Target.ExpectedURL)
	})
}

func TestDeriveExpectedURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://localhost:5173/login", "http://localhost:5173/"},
		{"https://example.com/a/b?c=d", "https://example.com/"},
		{"  http://host:1/x  ", "http://host:1/"},
		{"/login", ""},
		{"not a url", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveExpectedURL(tt.input))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"missing login url", func(c *Config) { c.Target.LoginURL = "" }, "Target.LoginURL"},
		{"relative expected url", func(c *Config) { c.Target.ExpectedURL = "/home" }, "Target.ExpectedURL"},
		{"bad duration", func(c *Config) { c.Timeouts.Dashboard = "ten seconds" }, "Timeouts.Dashboard"},
		{"zero duration", func(c *Config) { c.Timeouts.URL = "0s" }, "Timeouts.URL"},
		{"same output paths", func(c *Config) { c.Output.ErrorPath = c.Output.SuccessPath }, "Output.ErrorPath"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "Logging.Level"},
		{"unknown log output", func(c *Config) { c.Logging.Output = []string{"syslog"} }, "Logging.Output"},
		{"history without path", func(c *Config) { c.History.Enabled = true; c.History.Path = "" }, "History.Path"},
		{"zero viewport", func(c *Config) { c.Browser.ViewportWidth = 0 }, "Browser.ViewportWidth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid configuration:"))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTimeoutsFallback(t *testing.T) {
	timeouts := TimeoutsConfig{Navigation: "", Action: "bogus", URL: "-1s", Dashboard: "250ms"}

	assert.Equal(t, 30*time.Second, timeouts.NavigationTimeout())
	assert.Equal(t, 30*time.Second, timeouts.ActionTimeout())
	assert.Equal(t, 5*time.Second, timeouts.URLTimeout())
	assert.Equal(t, 250*time.Millisecond, timeouts.DashboardTimeout())
}

func TestLoadFromFiles_DeploymentExampleMatchesDefaults(t *testing.T) {
	config, err := LoadFromFiles(filepath.Join("..", "..", "deployments", "local", "dashverify.toml"))
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, NewDefaultConfig(), config)
}
