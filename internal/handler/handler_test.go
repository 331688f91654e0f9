package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upqueue/internal/blobstore"
	"upqueue/internal/models"
	"upqueue/internal/session"
	"upqueue/internal/storage"
	"upqueue/internal/websocket"
)

type testServer struct {
	*httptest.Server
	store    *storage.Storage
	hub      *websocket.Hub
	sessions *session.Manager
	mem      *blobstore.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:    storage.New(""),
		hub:      websocket.NewHub(nil),
		sessions: session.New("secret", time.Hour, nil),
	}

	var router http.Handler
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ts.hub.Run(ctx)

	ts.mem = blobstore.NewMemory(ts.URL)
	router = NewRouter(Deps{
		Store:          ts.store,
		Hub:            ts.hub,
		Sessions:       ts.sessions,
		Blobs:          ts.mem,
		Memory:         ts.mem,
		MaxUploadCount: 10,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := ts.sessions.Token(userID)
	require.NoError(t, err)
	return tok
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/auth/login", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Cookies())
	assert.Equal(t, session.CookieName, resp.Cookies()[0].Name)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["userId"])
}

func TestUserRoutesNeedSession(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/user/getstate", "/api/user/getuploadurls?count=1"} {
		resp := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestGetUploadURLs(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "u1")

	tests := []struct {
		count  string
		status int
		want   int
	}{
		{"1", http.StatusOK, 1},
		{"10", http.StatusOK, 10},
		{"0", http.StatusBadRequest, 0},
		{"11", http.StatusBadRequest, 0},
		{"x", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.count, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, "/api/user/getuploadurls?count="+tt.count, tok, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			var links []models.SlotLink
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&links))
			assert.Len(t, links, tt.want)
		})
	}
}

func TestCompleteAndState(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "u1")

	resp := ts.do(t, http.MethodGet, "/api/user/getstate", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "null", strings.TrimSpace(string(raw)))

	manifest := `[{"Url":"http://s3/a","Key":"ka","Name":"a.png"},{"Url":"http://s3/b","Key":"kb","Name":"b.png"}]`
	resp = ts.do(t, http.MethodPost, "/api/user/completefilesupload", tok, strings.NewReader(manifest))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/user/getstate", tok, nil)
	var items []models.StateItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	assert.Equal(t, []models.StateItem{
		{FileName: "a.png", Status: "PENDING", QueuePosition: 1},
		{FileName: "b.png", Status: "PENDING", QueuePosition: 2},
	}, items)

	for _, bad := range []string{`[]`, `{`, `[{"Name":"x"}]`} {
		resp = ts.do(t, http.MethodPost, "/api/user/completefilesupload", tok, strings.NewReader(bad))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	links, err := ts.mem.Presign(context.Background(), 1)
	require.NoError(t, err)
	path := strings.TrimPrefix(links[0].Url, ts.URL)

	req, _ := http.NewRequest(http.MethodPut, links[0].Url, bytes.NewReader([]byte("content")))
	req.Header.Set("Content-Type", "text/plain")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "content", string(body))

	resp = ts.do(t, http.MethodPut, blobstore.BlobPath+"forged", "", strings.NewReader("x"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, blobstore.BlobPath+"missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPushChannel(t *testing.T) {
	ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/auth/login2"

	t.Run("issues a session when missing", func(t *testing.T) {
		conn, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()
		assert.NotEmpty(t, resp.Cookies())
	})

	t.Run("completion notifies the owner", func(t *testing.T) {
		tok := ts.token(t, "owner")
		header := http.Header{}
		header.Add("Cookie", (&http.Cookie{Name: session.CookieName, Value: tok}).String())

		conn, resp, err := gws.DefaultDialer.Dial(wsURL, header)
		require.NoError(t, err)
		defer conn.Close()
		assert.Empty(t, resp.Cookies())

		require.Eventually(t, func() bool { return ts.hub.Clients("owner") == 1 }, time.Second, 5*time.Millisecond)

		manifest := `[{"Url":"http://s3/a","Key":"ka","Name":"a.png"}]`
		r := ts.do(t, http.MethodPost, "/api/user/completefilesupload", tok, strings.NewReader(manifest))
		require.Equal(t, http.StatusOK, r.StatusCode)

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.UpdateMessage, string(msg))
	})
}
