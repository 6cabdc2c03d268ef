package session

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexidp/dex-mini/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMiddlewareAttachesAuthSession(t *testing.T) {
	store := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	u, err := store.CreateUser("alice", "", "hash")
	require.NoError(t, err)
	sess, err := store.CreateSession(u.ID, "1.2.3.4")
	require.NoError(t, err)

	var found bool
	h := Middleware(store, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		as, ok := FromContext(r.Context())
		found = ok
		if ok {
			assert.Equal(t, u.ID, as.UserID)
			assert.Equal(t, "alice", as.Username)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.UID})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, found)
}

func TestMiddlewareNoCookieProceedsWithoutSession(t *testing.T) {
	store := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var found bool
	h := Middleware(store, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, found)
}

func TestRequireRedirectsWithoutSession(t *testing.T) {
	h := Require("/login", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/oauth2/auth?client_id=x", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login?redirect_uri=")
}
