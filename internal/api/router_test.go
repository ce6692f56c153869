package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mermaid-studio/engine/internal/access"
	"github.com/mermaid-studio/engine/internal/api/handlers"
	"github.com/mermaid-studio/engine/internal/realtime"
	"github.com/mermaid-studio/engine/internal/repository"
	"github.com/mermaid-studio/engine/internal/services"
	"github.com/mermaid-studio/engine/internal/testutil"
	"github.com/mermaid-studio/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

type testServer struct {
	srv  *httptest.Server
	auth services.AuthService
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Meta    map[string]any `json:"meta"`
	} `json:"error"`
	Meta *struct {
		RequestID string   `json:"request_id"`
		Notices   []string `json:"notices"`
	} `json:"meta"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	notifier := realtime.NewPublishNotifier(realtime.NewRedisPublisher(rdb), time.Second)
	diagramRepo := repository.NewDiagramRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	checker := access.DefaultChecker{}

	auth := services.NewAuthService(repository.NewUserRepository(db), []byte("router-secret"), "admin@example.com")
	diagrams := services.NewDiagramService(diagramRepo, categoryRepo, tagRepo, checker, notifier)

	router := NewRouter(Dependencies{
		Tokens:          auth,
		AuthHandler:     handlers.NewAuthHandler(auth),
		DiagramsHandler: handlers.NewDiagramsHandler(diagrams),
		SharingHandler:  handlers.NewSharingHandler(services.NewSharingService(diagramRepo, checker, notifier)),
		LabelsHandler:   handlers.NewLabelsHandler(services.NewLabelService(categoryRepo, tagRepo)),
		StreamHandler:   handlers.NewStreamHandler(diagrams, realtime.NewSubscriber(rdb)),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(notifier.Wait)
	return &testServer{srv: srv, auth: auth}
}

// login registers the account and returns a bearer token for it.
func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	res, _ := s.do(t, "", http.MethodPost, "/api/v1/auth/register",
		map[string]string{"email": email, "password": "long enough", "name": email})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, env := s.do(t, "", http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": email, "password": "long enough"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func (s *testServer) do(t *testing.T, token, method, path string, body any) (*http.Response, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var env envelope
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	} else {
		env.Data = raw
	}
	return res, env
}

func (s *testServer) createDiagram(t *testing.T, token string, body map[string]any) string {
	t.Helper()
	res, env := s.do(t, token, http.MethodPost, "/api/v1/diagrams", body)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var d struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d.ID
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	res, env := s.do(t, "", http.MethodGet, "/api/v1/diagrams", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestDiagramLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ada@example.com")

	id := s.createDiagram(t, token, map[string]any{
		"title":       "Checkout",
		"source_text": "sequenceDiagram\nAlice->>Bob: pay",
	})

	res, env := s.do(t, token, http.MethodGet, "/api/v1/diagrams/"+id, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var d struct {
		Title       string `json:"title"`
		DiagramType string `json:"diagram_type"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, "Checkout", d.Title)
	assert.Equal(t, "Sequence Diagram", d.DiagramType)
	assert.NotEmpty(t, env.Meta.RequestID)

	res, _ = s.do(t, token, http.MethodPut, "/api/v1/diagrams/"+id+"/content",
		map[string]any{"source_text": "sequenceDiagram\nAlice->>Bob: refund"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, env = s.do(t, token, http.MethodGet, "/api/v1/diagrams/search?q=checkout", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var hits []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &hits))
	assert.Len(t, hits, 1)

	res, env = s.do(t, token, http.MethodGet, "/api/v1/diagrams/stats", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var stats struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 1, stats.Total)

	res, _ = s.do(t, token, http.MethodDelete, "/api/v1/diagrams/"+id, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, env = s.do(t, token, http.MethodGet, "/api/v1/diagrams/"+id, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestCreateValidationAndNotices(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ada@example.com")

	res, env := s.do(t, token, http.MethodPost, "/api/v1/diagrams", map[string]any{"title": "Empty"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "invalid", env.Error.Code)
	assert.Equal(t, "source_text", env.Error.Meta["field"])

	res, env = s.do(t, token, http.MethodPost, "/api/v1/diagrams", map[string]any{
		"source_text":  "graph TD",
		"diagram_type": "bogus",
	})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "diagram_type", env.Error.Meta["field"])

	res, env = s.do(t, token, http.MethodPost, "/api/v1/diagrams", map[string]any{"source_text": "just some notes"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	require.NotNil(t, env.Meta)
	assert.NotEmpty(t, env.Meta.Notices)

	res, _ = s.do(t, token, http.MethodPost, "/api/v1/diagrams", map[string]any{"source_text": "graph TD", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSharingOverHTTP(t *testing.T) {
	s := newTestServer(t)
	owner := s.login(t, "owner@example.com")
	other := s.login(t, "other@example.com")
	otherP, err := s.auth.ParseToken(other)
	require.NoError(t, err)

	id := s.createDiagram(t, owner, map[string]any{"title": "Plan", "source_text": "gantt\ntitle Plan"})

	res, env := s.do(t, other, http.MethodGet, "/api/v1/diagrams/"+id, nil)
	require.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "forbidden", env.Error.Code)

	res, _ = s.do(t, owner, http.MethodPut, "/api/v1/diagrams/"+id+"/shares/"+otherP.UserID.String(), nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = s.do(t, other, http.MethodGet, "/api/v1/diagrams/"+id, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// A read grant does not allow edits.
	res, _ = s.do(t, other, http.MethodPut, "/api/v1/diagrams/"+id, map[string]any{"title": "Mine"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = s.do(t, owner, http.MethodDelete, "/api/v1/diagrams/"+id+"/shares/"+otherP.UserID.String(), nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, env = s.do(t, owner, http.MethodPut, "/api/v1/diagrams/"+id+"/public", map[string]any{"public": true})
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = s.do(t, other, http.MethodGet, "/api/v1/diagrams/"+id, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, env = s.do(t, other, http.MethodGet, "/api/v1/diagrams?include_shared=true", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Len(t, rows, 1)

	res, env = s.do(t, other, http.MethodGet, "/api/v1/diagrams", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Empty(t, rows)
}

func TestExportSetsHeadersAndETag(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ada@example.com")
	id := s.createDiagram(t, token, map[string]any{"title": "Flow/Chart", "source_text": "graph TD\nA-->B"})

	res, env := s.do(t, token, http.MethodGet, "/api/v1/diagrams/"+id+"/export?format=mermaid", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "graph TD\nA-->B", string(env.Data))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "Flow_Chart.mmd")
	etag := res.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/v1/diagrams/"+id+"/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res2.Body.Close()
	assert.Equal(t, http.StatusNotModified, res2.StatusCode)

	res, env = s.do(t, token, http.MethodGet, "/api/v1/diagrams/"+id+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "unsupported_format", env.Error.Code)
}

func TestLabelMutationsNeedAdmin(t *testing.T) {
	s := newTestServer(t)
	user := s.login(t, "ada@example.com")
	admin := s.login(t, "admin@example.com")

	res, env := s.do(t, user, http.MethodPost, "/api/v1/tags", map[string]any{"name": "Infra"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var tag struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tag))

	res, _ = s.do(t, user, http.MethodPut, "/api/v1/tags/"+tag.ID, map[string]any{"name": "Infrastructure"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res, _ = s.do(t, admin, http.MethodPut, "/api/v1/tags/"+tag.ID, map[string]any{"name": "Infrastructure"})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = s.do(t, admin, http.MethodDelete, "/api/v1/tags/"+tag.ID, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestEventStreamRelaysUpdates(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ada@example.com")
	id := s.createDiagram(t, token, map[string]any{"title": "Live", "source_text": "graph TD\nA-->B"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.srv.URL+"/api/v1/diagrams/"+id+"/events?access_token="+token, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	lines := bufio.NewScanner(res.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": subscribed", lines.Text())

	upd, _ := s.do(t, token, http.MethodPut, "/api/v1/diagrams/"+id, map[string]any{"title": "Live v2"})
	require.Equal(t, http.StatusOK, upd.StatusCode)

	var event, data string
	for lines.Scan() {
		line := lines.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
		if data != "" {
			break
		}
	}
	assert.Equal(t, "updated", event)
	assert.Contains(t, data, `"title":"Live v2"`)
}
