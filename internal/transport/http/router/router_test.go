package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/logger"
	"github.com/vedran77/chorus/internal/repository/memory"
	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/internal/transport/http/middleware"
	"github.com/vedran77/chorus/internal/transport/ws"
)

type testAPI struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	log := logger.Discard()

	hub := ws.NewHub(ws.NewRegistry(), log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	rooms := service.NewRoomService(store.Rooms(), store.Servers())
	messages := service.NewMessageService(store.Messages(), rooms)
	messages.SetPublisher(ws.NewHubPublisher(hub, log))

	h := New(Deps{
		Log:           log,
		Auth:          service.NewAuthService(store.Users(), "test-secret"),
		Servers:       service.NewServerService(store.Servers(), store.Rooms()),
		Channels:      service.NewChannelService(store.Rooms(), store.Servers()),
		Conversations: service.NewConversationService(store.Rooms(), store.Servers()),
		Rooms:         rooms,
		Messages:      messages,
		Hub:           hub,
		RateLimiter:   middleware.NewRateLimiter(0, 0),
		CORSOrigins:   []string{"http://localhost:3000"},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv}
}

func (a *testAPI) do(method, path, token string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *testAPI) register(name string) string {
	a.t.Helper()
	var resp service.AuthResponse
	status := a.do(http.MethodPost, "/api/v1/auth/register", "", service.RegisterInput{
		Email: name + "@example.com", Username: name, DisplayName: name + " user", Password: "Secret123",
	}, &resp)
	require.Equal(a.t, http.StatusCreated, status)
	return resp.AccessToken
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestMessageLifecycleOverREST(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	bob := api.register("bob")

	var server domain.ServerDetails
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/servers", alice, service.CreateServerInput{Name: "Guild"}, &server))
	require.Len(t, server.Channels, 1)
	room := server.Channels[0].ID.String()

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/invites/"+server.InviteCode, bob, nil, nil))

	var msg domain.Message
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/messages?roomId="+room, alice, map[string]string{"content": "hello"}, &msg))
	assert.Equal(t, int64(1), msg.Sequence)
	assert.Equal(t, "alice", msg.AuthorUsername)

	var errResp errorBody
	status := api.do(http.MethodPatch, "/api/messages/"+msg.ID.String()+"?roomId="+room, bob, map[string]string{"content": "mine now"}, &errResp)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errResp.Error.Code)

	var edited domain.Message
	require.Equal(t, http.StatusOK, api.do(http.MethodPatch, "/api/messages/"+msg.ID.String()+"?roomId="+room, alice, map[string]string{"content": "hello all"}, &edited))
	assert.NotNil(t, edited.EditedAt)
	assert.Equal(t, msg.Sequence, edited.Sequence)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/api/messages/"+msg.ID.String()+"?roomId="+room, bob, nil, nil))

	var deleted domain.Message
	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/messages/"+msg.ID.String()+"?roomId="+room, alice, nil, &deleted))
	assert.True(t, deleted.Deleted)
	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/messages/"+msg.ID.String()+"?roomId="+room, alice, nil, &deleted))
	assert.Equal(t, int64(3), deleted.Version)

	var page domain.MessagePage
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/messages?roomId="+room+"&limit=10", bob, nil, &page))
	require.Len(t, page.Messages, 1)
	assert.True(t, page.Messages[0].Deleted)
}

func TestRESTErrors(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")

	var server domain.ServerDetails
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/servers", alice, service.CreateServerInput{Name: "Guild"}, &server))
	room := server.Channels[0].ID.String()

	var e errorBody
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/servers", "", nil, &e))
	assert.Equal(t, "UNAUTHORIZED", e.Error.Code)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/messages", alice, map[string]string{"content": "x"}, &e))
	assert.Equal(t, "MISSING_ROOM", e.Error.Code)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/messages?roomId="+room, alice, map[string]string{"content": ""}, &e))
	assert.Equal(t, "VALIDATION_ERROR", e.Error.Code)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/api/messages/"+server.ID.String()+"?roomId="+room, alice, nil, &e))
	assert.Equal(t, "message not found", e.Error.Message)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/messages?roomId="+room+"&before=abc", alice, nil, &e))
	assert.Equal(t, "INVALID_CURSOR", e.Error.Code)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/servers/"+server.ID.String()+"/channels", alice, map[string]string{"name": "general"}, &e))
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/v1/auth/register", "", service.RegisterInput{
		Email: "alice@example.com", Username: "alice2", DisplayName: "Alice", Password: "Secret123",
	}, &e))

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/rooms/"+server.ID.String()+"/media", alice, nil, &e))
}

func TestEditChecksAuthorBeforeContent(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	bob := api.register("bob")

	var server domain.ServerDetails
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/servers", alice, service.CreateServerInput{Name: "Guild"}, &server))
	room := server.Channels[0].ID.String()
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/invites/"+server.InviteCode, bob, nil, nil))

	var text, file domain.Message
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/messages?roomId="+room, alice, map[string]string{"content": "hello"}, &text))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/messages?roomId="+room, alice, map[string]string{"file_url": "https://cdn.example.com/a.png"}, &file))

	empty := map[string]string{"content": ""}
	var e errorBody
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPatch, "/api/messages/"+text.ID.String()+"?roomId="+room, bob, empty, &e))
	assert.Equal(t, "FORBIDDEN", e.Error.Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPatch, "/api/messages/"+file.ID.String()+"?roomId="+room, alice, empty, &e))
	assert.Equal(t, "FORBIDDEN", e.Error.Code)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPatch, "/api/messages/"+text.ID.String()+"?roomId="+room, alice, empty, &e))
	assert.Equal(t, "VALIDATION_ERROR", e.Error.Code)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	api := newTestAPI(t)

	var health map[string]string
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(api.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 2)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
