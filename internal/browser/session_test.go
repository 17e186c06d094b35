package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dashverify/internal/browser/browsertest"
)

func openTestSession(t *testing.T) *Session {
	t.Helper()
	chromePath := browsertest.RequireChrome(t)

	opts := DefaultOptions()
	opts.ExecPath = chromePath
	opts.NoSandbox = os.Geteuid() == 0
	opts.NavigationTimeout = 15 * time.Second
	opts.ActionTimeout = 5 * time.Second

	session, err := Open(context.Background(), opts, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestSession_LoginFlow(t *testing.T) {
	app := browsertest.NewLoginApp(t, false)
	session := openTestSession(t)

	require.NoError(t, session.Navigate(app.URL+"/login"))
	assert.Equal(t, 200, session.DocumentStatus())

	require.NoError(t, session.FillByLabel("Email", "test@example.com"))
	require.NoError(t, session.FillByLabel("password", "password"), "labels match case-insensitively")
	require.NoError(t, session.ClickByRole(RoleButton, "Login"))
	require.NoError(t, session.WaitForURL(app.URL+"/", 5*time.Second))
	require.NoError(t, session.WaitVisibleByRole(RoleHeading, "Dashboard", 5*time.Second))

	current, err := session.CurrentURL()
	require.NoError(t, err)
	assert.Equal(t, app.URL+"/", current)

	path := filepath.Join(t.TempDir(), "nested", "dashboard.png")
	require.NoError(t, session.Screenshot(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestSession_WaitForURLTimeout(t *testing.T) {
	app := browsertest.NewLoginApp(t, false)
	session := openTestSession(t)

	require.NoError(t, session.Navigate(app.URL+"/login"))

	err := session.WaitForURL(app.URL+"/", 500*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), app.URL+"/login", "error names the URL the page is stuck on")
}

func TestSession_WaitForURLSurvivesFullPageRedirect(t *testing.T) {
	app := browsertest.NewLoginApp(t, false)
	session := openTestSession(t)

	// 302 to a page that loads a new document from script while the wait runs
	require.NoError(t, session.Navigate(app.URL+"/bounce"))
	require.NoError(t, session.WaitForURL(app.URL+"/", 5*time.Second))
	require.NoError(t, session.WaitVisibleByRole(RoleHeading, "Dashboard", 5*time.Second))
}

func TestSession_HiddenHeadingTimesOut(t *testing.T) {
	app := browsertest.NewLoginApp(t, true)
	session := openTestSession(t)

	require.NoError(t, session.Navigate(app.URL+"/"))

	err := session.WaitVisibleByRole(RoleHeading, "Dashboard", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `heading "Dashboard" not visible within 1s`)
}

func TestSession_NavigateConnectionRefused(t *testing.T) {
	session := openTestSession(t)

	err := session.Navigate(browsertest.ClosedURL(t) + "/login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_CONNECTION_REFUSED")

	// The error page can still be captured
	path := filepath.Join(t.TempDir(), "error.png")
	require.NoError(t, session.Screenshot(path, false))
	assert.FileExists(t, path)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	session := openTestSession(t)

	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
}
