package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved target
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Dashverify", GetVersion())

	logger.Info().
		Str("login_url", config.Target.LoginURL).
		Str("expected_url", config.Target.ExpectedURL).
		Bool("headless", config.Browser.Headless).
		Bool("strict", config.Exit.Strict).
		Msg("Verification target")
}
