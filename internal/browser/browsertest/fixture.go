// Package browsertest provides a local login/dashboard web app and Chrome
// detection for tests that drive a real browser.
package browsertest

import (
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
)

// chromeNames are the executables chromedp looks for on PATH.
var chromeNames = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-unstable",
}

// ChromePath returns the first Chrome/Chromium binary found, or "".
func ChromePath() string {
	if path := os.Getenv("DASHVERIFY_CHROME_PATH"); path != "" {
		return path
	}
	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// RequireChrome skips the test when it cannot launch a browser.
func RequireChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	path := ChromePath()
	if path == "" {
		t.Skip("Chrome/Chromium not found on PATH")
	}
	return path
}

const loginPage = `<!DOCTYPE html>
<html>
<head><title>Login</title></head>
<body>
  <h1>Login or Sign Up</h1>
  <form id="login-form">
    <div>
      <label for="email">Email</label>
      <input id="email" type="email">
    </div>
    <div>
      <label for="password">Password</label>
      <input id="password" type="password">
    </div>
    <p id="error" style="display:none"></p>
    <button type="submit">Login or Sign Up</button>
  </form>
  <script>
    document.getElementById('login-form').addEventListener('submit', function (e) {
      e.preventDefault();
      var email = document.getElementById('email').value;
      var password = document.getElementById('password').value;
      if (email === 'test@example.com' && password === 'password') {
        window.location.href = '/';
        return;
      }
      var err = document.getElementById('error');
      err.textContent = 'Invalid login credentials';
      err.style.display = 'block';
    });
  </script>
</body>
</html>`

// The heading is rendered after a delay to mimic a client-side app fetching data.
const dashboardPage = `<!DOCTYPE html>
<html>
<head><title>Dashboard</title></head>
<body>
  <nav><a href="/">Dashboard</a></nav>
  <main id="app"></main>
  <script>
    setTimeout(function () {
      var h = document.createElement('h1');
      h.textContent = 'Dashboard';
      document.getElementById('app').appendChild(h);
    }, 300);
  </script>
</body>
</html>`

// The heading exists but is never shown.
const hiddenDashboardPage = `<!DOCTYPE html>
<html>
<head><title>Dashboard</title></head>
<body>
  <h1 style="display:none">Dashboard</h1>
  <p>Loading...</p>
</body>
</html>`

// A page that replaces itself with the dashboard through a full document load.
const redirectLaterPage = `<!DOCTYPE html>
<html>
<head><title>Signing in</title></head>
<body>
  <p>Signing in...</p>
  <script>
    setTimeout(function () { window.location.href = '/'; }, 500);
  </script>
</body>
</html>`

// NewLoginApp starts a server with a login page at /login that accepts
// test@example.com / password and redirects to a dashboard at /.
// /redirect-later navigates to / from script after 500ms and /bounce answers
// with a 302 to /redirect-later.
// When hideDashboard is set the dashboard heading never becomes visible.
func NewLoginApp(t *testing.T, hideDashboard bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(loginPage))
	})
	mux.HandleFunc("/redirect-later", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(redirectLaterPage))
	})
	mux.HandleFunc("/bounce", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/redirect-later", http.StatusFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		if hideDashboard {
			_, _ = w.Write([]byte(hiddenDashboardPage))
			return
		}
		_, _ = w.Write([]byte(dashboardPage))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// ClosedURL returns a URL on a port that refuses connections.
func ClosedURL(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}
