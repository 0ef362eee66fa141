package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"github.com/justinas/nosurf"
	"github.com/myrjola/pinearchives/internal/config"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"
)

// waitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func waitForReady(ctx context.Context, endpoint string) error {
	timeout := 1 * time.Second
	client := http.Client{}
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			endpoint,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(250 * time.Millisecond)
		}
	}
}

func testEnviron() map[string]string {
	return map[string]string{
		"PINE_ADDR":       "localhost:0",
		"PINE_SQLITE_URL": ":memory:",
		"PINE_STORE":      "memory",
	}
}

type testServer struct {
	url       string
	client    http.Client
	csrfToken string
}

// startTestServer starts the test server, waits for it to be ready, and returns a client bound to a fresh desk.
// The server is stopped when the test ends.
func startTestServer(t *testing.T, w io.Writer, environ map[string]string) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	cfg, err := config.Parse(environ)
	require.NoError(t, err)

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "Addr" {
				addrCh <- a.Value.String()
			}
			return a
		},
	})))

	// Start the server and wait for it to be ready.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := run(ctx, logger, cfg); runErr != nil {
			cancel()
			assert.NoError(t, runErr)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-ctx.Done():
		t.Fatal("server failed to start")
		return nil
	case addr := <-addrCh:
		serverURL := fmt.Sprintf("http://%s", addr)
		require.NoError(t, waitForReady(ctx, fmt.Sprintf("%s/api/healthy", serverURL)))
		return newTestClient(t, serverURL)
	}
}

// newTestClient opens the desk page with a new cookie jar, which makes the server assign a new player.
func newTestClient(t *testing.T, serverURL string) *testServer {
	t.Helper()
	jar, err := newUnsafeCookieJar()
	require.NoError(t, err)
	s := &testServer{url: serverURL, client: http.Client{Jar: jar, Timeout: 5 * time.Second}}

	doc := s.GetDoc(t, "/")
	csrfToken, ok := doc.Find("form[action='/api/case/new'] input[name=csrf_token]").Attr("value")
	require.True(t, ok, "csrf_token not found in the new case form")
	s.csrfToken = csrfToken
	return s
}

// Get fetches a URL and returns the response.
func (s *testServer) Get(t *testing.T, urlPath string) *http.Response {
	t.Helper()
	resp, err := s.client.Get(s.url + urlPath)
	require.NoError(t, err)
	return resp
}

// GetDoc fetches a URL and returns a goquery document.
func (s *testServer) GetDoc(t *testing.T, urlPath string) *goquery.Document {
	t.Helper()
	resp := s.Get(t, urlPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer func() {
		err := resp.Body.Close()
		require.NoError(t, err)
	}()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

// PostJSON sends body to urlPath with the CSRF token and decodes the JSON response into dst when dst is not nil.
// It returns the status code.
func (s *testServer) PostJSON(t *testing.T, urlPath string, body any, dst any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.url+urlPath, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(nosurf.HeaderName, s.csrfToken)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer func() {
		err = resp.Body.Close()
		require.NoError(t, err)
	}()
	if dst != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp.StatusCode
}
