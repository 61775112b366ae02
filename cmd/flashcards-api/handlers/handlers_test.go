package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raumain/flashcards/internal/app"
	"github.com/Raumain/flashcards/internal/config"
	"github.com/Raumain/flashcards/internal/observability"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code       string         `json:"code"`
		Message    string         `json:"message"`
		Details    map[string]any `json:"details"`
		RetryAfter int            `json:"retryAfter"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.SQLite.Path = ":memory:"
	cfg.Database.SQLite.JournalMode = ""

	a, err := app.New(context.Background(), cfg, observability.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return NewRouter(a)
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type thematicDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	Icon           string `json:"icon"`
	FlashcardCount int    `json:"flashcardCount"`
}

type flashcardDTO struct {
	ID         string `json:"id"`
	ThematicID string `json:"thematicId"`
	Difficulty string `json:"difficulty"`
	Front      struct {
		Question string `json:"question"`
	} `json:"front"`
}

func createThematic(t *testing.T, h http.Handler, user, name string) thematicDTO {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/api/v1/thematics", user, map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[thematicDTO](t, env.Data)
}

func saveCards(t *testing.T, h http.Handler, user, thematicID string, n int) []flashcardDTO {
	t.Helper()
	cards := make([]map[string]any, n)
	for i := range cards {
		cards[i] = map[string]any{
			"front": map[string]any{"question": "Quel est le rôle du nœud sinusal ?"},
			"back":  map[string]any{"answer": "Pacemaker physiologique"},
		}
	}
	rec, env := do(t, h, http.MethodPost, "/api/v1/thematics/"+thematicID+"/flashcards", user, map[string]any{"flashcards": cards})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[[]flashcardDTO](t, env.Data)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRequiresUser(t *testing.T) {
	h := newTestRouter(t)
	for _, path := range []string{"/api/v1/thematics", "/api/v1/flashcards", "/api/v1/metrics", "/api/v1/me"} {
		t.Run(path, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
		})
	}
}

func TestMe(t *testing.T) {
	h := newTestRouter(t)
	rec, env := do(t, h, http.MethodGet, "/api/v1/me", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[map[string]any](t, env.Data)["id"])
}

func TestThematicLifecycle(t *testing.T) {
	h := newTestRouter(t)

	th := createThematic(t, h, "alice", "Cardiologie")
	assert.Equal(t, "#3B82F6", th.Color)
	assert.Equal(t, "📚", th.Icon)

	cards := saveCards(t, h, "alice", th.ID, 2)
	require.Len(t, cards, 2)
	assert.Equal(t, "medium", cards[0].Difficulty)

	rec, env := do(t, h, http.MethodGet, "/api/v1/thematics", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]thematicDTO](t, env.Data)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].FlashcardCount)

	rec, env = do(t, h, http.MethodGet, "/api/v1/thematics/"+th.ID+"/flashcards", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]flashcardDTO](t, env.Data), 2)

	rec, env = do(t, h, http.MethodPatch, "/api/v1/thematics/"+th.ID, "alice", map[string]any{"name": "Cardio", "color": "#EF4444"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[thematicDTO](t, env.Data)
	assert.Equal(t, "Cardio", updated.Name)
	assert.Equal(t, "#EF4444", updated.Color)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/thematics/"+th.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/thematics/"+th.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/flashcards/"+cards[0].ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThematicValidation(t *testing.T) {
	h := newTestRouter(t)
	th := createThematic(t, h, "alice", "Neurologie")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing name", http.MethodPost, "/api/v1/thematics", map[string]any{"name": " "}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad color", http.MethodPatch, "/api/v1/thematics/" + th.ID, map[string]any{"color": "red"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad id", http.MethodGet, "/api/v1/thematics/not-a-uuid", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty save", http.MethodPost, "/api/v1/thematics/" + th.ID + "/flashcards", map[string]any{"flashcards": []any{}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty by-thematics", http.MethodPost, "/api/v1/flashcards/by-thematics", map[string]any{"thematicIds": []string{}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown thematic", http.MethodPatch, "/api/v1/thematics/00000000-0000-0000-0000-000000000001", map[string]any{"name": "x"}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.path, "alice", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, env.Error.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestRecentAndByThematics(t *testing.T) {
	h := newTestRouter(t)
	var ids []string
	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		th := createThematic(t, h, "alice", name)
		saveCards(t, h, "alice", th.ID, 1)
		ids = append(ids, th.ID)
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/thematics/recent", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]thematicDTO](t, env.Data), 5)

	rec, env = do(t, h, http.MethodPost, "/api/v1/flashcards/by-thematics", "alice", map[string]any{"thematicIds": ids[:2]})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]flashcardDTO](t, env.Data), 2)

	rec, env = do(t, h, http.MethodPost, "/api/v1/flashcards/by-thematics", "bob", map[string]any{"thematicIds": ids})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]flashcardDTO](t, env.Data))
}

func TestStudyAndMetrics(t *testing.T) {
	h := newTestRouter(t)
	th := createThematic(t, h, "alice", "Pneumologie")
	cards := saveCards(t, h, "alice", th.ID, 2)

	rec, env := do(t, h, http.MethodGet, "/api/v1/metrics", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[map[string]int](t, env.Data)
	assert.Equal(t, 2, m["totalFlashcards"])
	assert.Equal(t, 0, m["totalSessions"])

	for i := 0; i < 3; i++ {
		rec, _ = do(t, h, http.MethodPost, "/api/v1/study", "alice", map[string]any{"flashcardId": cards[0].ID, "isCorrect": false, "responseTime": 1000})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec, _ = do(t, h, http.MethodPost, "/api/v1/study", "alice", map[string]any{"flashcardId": cards[1].ID, "isCorrect": true, "responseTime": 2000})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/metrics", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m = decode[map[string]int](t, env.Data)
	assert.Equal(t, 4, m["totalSessions"], "metrics cache must be invalidated by study writes")
	assert.Equal(t, 25, m["successRate"])
	assert.Equal(t, 1250, m["avgResponseTime"])
	assert.Equal(t, 1, m["streak"])

	rec, env = do(t, h, http.MethodGet, "/api/v1/study/revision", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	revision := decode[[]map[string]any](t, env.Data)
	require.Len(t, revision, 1)
	assert.Equal(t, cards[0].ID, revision[0]["id"])
	assert.EqualValues(t, 3, revision[0]["errorCount"])
	assert.Equal(t, "Pneumologie", revision[0]["thematicName"])

	rec, env = do(t, h, http.MethodGet, "/api/v1/study/revision?threshold=4", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]map[string]any](t, env.Data))
}

func TestStudyValidation(t *testing.T) {
	h := newTestRouter(t)
	th := createThematic(t, h, "alice", "Hématologie")
	cards := saveCards(t, h, "alice", th.ID, 1)

	tests := []struct {
		name   string
		user   string
		body   any
		path   string
		status int
	}{
		{"missing isCorrect", "alice", map[string]any{"flashcardId": cards[0].ID}, "/api/v1/study", http.StatusBadRequest},
		{"negative response time", "alice", map[string]any{"flashcardId": cards[0].ID, "isCorrect": true, "responseTime": -5}, "/api/v1/study", http.StatusBadRequest},
		{"card of another user", "bob", map[string]any{"flashcardId": cards[0].ID, "isCorrect": true}, "/api/v1/study", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodPost, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/study/revision?threshold=0", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}
