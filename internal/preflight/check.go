// Package preflight checks that the login page answers over plain HTTP
// before a browser is launched. The check only informs the log; it never
// decides the outcome of a verification run.
package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// maxBodyBytes bounds how much of the page is parsed for its title.
const maxBodyBytes = 1 << 20

// Report is the outcome of one check.
type Report struct {
	URL        string
	Reachable  bool
	StatusCode int
	Title      string
	Elapsed    time.Duration
	Err        error
}

// Check issues a single GET against url. A response with any status counts as
// reachable; only transport failures (refused, DNS, timeout) do not.
func Check(ctx context.Context, client *http.Client, url string) Report {
	if client == nil {
		client = http.DefaultClient
	}
	report := Report{URL: url}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		report.Err = fmt.Errorf("build request: %w", err)
		report.Elapsed = time.Since(start)
		return report
	}

	resp, err := client.Do(req)
	if err != nil {
		report.Err = err
		report.Elapsed = time.Since(start)
		return report
	}
	defer resp.Body.Close()

	report.Reachable = true
	report.StatusCode = resp.StatusCode
	report.Title = pageTitle(resp)
	report.Elapsed = time.Since(start)
	return report
}

func pageTitle(resp *http.Response) string {
	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Run checks url within timeout and logs the result.
func Run(ctx context.Context, client *http.Client, url string, timeout time.Duration, logger arbor.ILogger) Report {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := Check(ctx, client, url)

	if !report.Reachable {
		logger.Warn().
			Err(report.Err).
			Str("url", url).
			Msg("Login page is not reachable, the browser run will likely fail")
		return report
	}

	if report.StatusCode >= http.StatusBadRequest {
		logger.Warn().
			Str("url", url).
			Int("status", report.StatusCode).
			Msg("Login page responded with an error status")
		return report
	}

	logger.Info().
		Str("url", url).
		Int("status", report.StatusCode).
		Str("title", report.Title).
		Dur("elapsed", report.Elapsed).
		Msg("Login page responded")
	return report
}
