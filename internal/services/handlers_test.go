package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	goahttp "goa.design/goa/v3/http"

	"grantdesk/internal/chat"
	"grantdesk/internal/config"
	"grantdesk/internal/database"
	"grantdesk/internal/docstore"
	"grantdesk/internal/domain"
)

type testAPI struct {
	server *httptest.Server
	chat   *chat.Service
	mailer *mockMailer
	tokens map[string]string
	users  map[string]*domain.User
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	config.Set(&config.Config{
		Auth:  config.AuthConfig{SecretKey: "handler-test-secret", TokenExpiryMinutes: 30, Algorithm: "HS256"},
		Email: *testEmailConfig(),
	})
	t.Cleanup(func() { config.Set(nil) })

	conn, err := database.Open(&config.DatabaseConfig{URL: "sqlite:///:memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mailer := &mockMailer{}
	mailer.On("SendHTMLEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	store := docstore.NewGormStore(conn)
	svc := chat.NewService(store, chat.WithObserver(NewResponseNotifier(mailer, testEmailConfig())))
	auth := NewAuthService(conn)

	mux := goahttp.NewMuxer()
	auth.Mount(mux)
	NewInquiryHandlers(svc, auth).Mount(mux)
	NewLiveFeeds(svc, auth, []string{"*"}).Mount(mux)
	mux.Handle(http.MethodGet, "/health", HealthHandler(NewDatabasePinger(store, nil)))

	api := &testAPI{
		server: httptest.NewServer(mux),
		chat:   svc,
		mailer: mailer,
		tokens: map[string]string{},
		users:  map[string]*domain.User{},
	}
	t.Cleanup(api.server.Close)

	for _, u := range []CreateUserInput{
		{Username: "ada", Email: "ada@example.com", Password: "founder-pass"},
		{Username: "bob", Email: "bob@example.com", Password: "founder-pass"},
		{Username: "mira", Email: "mira@grantdesk.io", Password: "advisor-pass", IsStaff: true},
	} {
		user, err := auth.CreateUser(t.Context(), u)
		require.NoError(t, err)
		api.users[u.Username] = user

		var login LoginResult
		status := api.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": u.Username, "password": u.Password}, &login)
		require.Equal(t, http.StatusOK, status)
		api.tokens[u.Username] = login.AccessToken
	}
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *testAPI) startChat(t *testing.T, user, first string) string {
	t.Helper()
	var created map[string]string
	status := a.do(t, http.MethodPost, "/api/v1/chat/sessions", a.tokens[user], map[string]string{"first_message": first}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created["inquiry_id"])
	return created["inquiry_id"]
}

func TestLoginRejectsBadPassword(t *testing.T) {
	api := newTestAPI(t)

	var errBody map[string]interface{}
	status := api.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "ada", "password": "wrong"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, ErrNameUnauthorized, errBody["name"])

	var me domain.User
	status = api.do(t, http.MethodGet, "/api/v1/auth/me", api.tokens["ada"], nil, &me)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, api.users["ada"].UID, me.UID)
}

func TestChatRoundTripOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	id := api.startChat(t, "ada", "Hello")

	var mine []domain.Inquiry
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/inquiries/mine", api.tokens["ada"], nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)
	assert.Equal(t, "ada", mine[0].Name)

	path := "/api/v1/inquiries/" + id + "/messages"
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, path, api.tokens["mira"], map[string]string{"text": "Hi, how can I help?"}, nil))
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, path, api.tokens["mira"], map[string]string{"text": "Are you there?"}, nil))

	var inquiry domain.Inquiry
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/inquiries/"+id, api.tokens["ada"], nil, &inquiry))
	assert.Equal(t, domain.StatusResponded, inquiry.Status)

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, path, api.tokens["ada"], map[string]string{"text": "I need funding"}, nil))

	var msgs []domain.Message
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, path, api.tokens["ada"], nil, &msgs))
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.SenderAdmin, msgs[1].Sender)
	assert.Equal(t, api.users["mira"].UID, *msgs[1].SenderID)
	assert.Equal(t, domain.SenderUser, msgs[3].Sender)

	api.chat.Wait()
	// one admin notification for the new inquiry, one reply email for the responded edge
	api.mailer.AssertNumberOfCalls(t, "SendHTMLEmail", 2)
	api.mailer.AssertCalled(t, "SendHTMLEmail", "ada@example.com", mock.Anything, mock.Anything, mock.Anything)
}

func TestInquiryAccessControl(t *testing.T) {
	api := newTestAPI(t)
	id := api.startChat(t, "ada", "Need help with MVP grant")

	var errBody map[string]interface{}
	status := api.do(t, http.MethodGet, "/api/v1/inquiries/"+id, api.tokens["bob"], nil, &errBody)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, ErrNameForbidden, errBody["name"])

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodGet, "/api/v1/inquiries", api.tokens["bob"], nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, "/api/v1/inquiries", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/v1/inquiries/missing", api.tokens["mira"], nil, nil))

	var all []domain.Inquiry
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/inquiries", api.tokens["mira"], nil, &all))
	assert.Len(t, all, 1)
}

func TestSendMessageRequiresText(t *testing.T) {
	api := newTestAPI(t)
	id := api.startChat(t, "ada", "Hello")

	var errBody map[string]interface{}
	status := api.do(t, http.MethodPost, "/api/v1/inquiries/"+id+"/messages", api.tokens["ada"], map[string]string{"text": "   "}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrNameBadRequest, errBody["name"])
}

func TestSupportRequestAnonymousAndLinked(t *testing.T) {
	api := newTestAPI(t)

	body := map[string]string{"name": "Cleo", "email": "cleo@example.com", "specific_needs": "Horizon Europe consortium"}
	var created createdResult
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/support-requests", "", body, &created))
	assert.NotEmpty(t, created.ID)

	var errBody map[string]interface{}
	status := api.do(t, http.MethodPost, "/api/v1/support-requests", "", map[string]string{"name": "Cleo"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)

	body["email"] = "ada@example.com"
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/support-requests", api.tokens["ada"], body, &created))

	var mine []domain.Inquiry
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/inquiries/mine", api.tokens["ada"], nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)
}

func TestLiveFeedOverWebSocket(t *testing.T) {
	api := newTestAPI(t)
	id := api.startChat(t, "ada", "Hello")

	wsURL := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/api/v1/inquiries/" + id + "/messages/live?token=" + api.tokens["ada"]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readFrame := func() feedFrame {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var frame feedFrame
		require.NoError(t, conn.ReadJSON(&frame))
		return frame
	}

	first := readFrame()
	assert.Equal(t, id, first.InquiryID)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, "Hello", first.Messages[0].Text)

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/inquiries/"+id+"/messages", api.tokens["mira"], map[string]string{"text": "Hi, how can I help?"}, nil))

	var frame feedFrame
	for len(frame.Messages) < 2 {
		frame = readFrame()
	}
	assert.Equal(t, "Hi, how can I help?", frame.Messages[1].Text)
}

func TestLiveFeedRejectsStranger(t *testing.T) {
	api := newTestAPI(t)
	id := api.startChat(t, "ada", "Hello")

	wsURL := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/api/v1/inquiries/" + id + "/messages/last/live?token=" + api.tokens["bob"]
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)
	resp, err := http.Get(api.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartChatUsesAccountEmail(t *testing.T) {
	api := newTestAPI(t)

	var errBody map[string]interface{}
	body := map[string]string{"first_message": "Hello", "email": "victim@example.com"}
	status := api.do(t, http.MethodPost, "/api/v1/chat/sessions", api.tokens["ada"], body, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrNameBadRequest, errBody["name"])

	body["email"] = "  ADA@example.com "
	var created map[string]string
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/chat/sessions", api.tokens["ada"], body, &created))

	id := api.startChat(t, "ada", "Second question")
	for _, inquiryID := range []string{created["inquiry_id"], id} {
		var inquiry domain.Inquiry
		require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/inquiries/"+inquiryID, api.tokens["ada"], nil, &inquiry))
		assert.Equal(t, "ada@example.com", inquiry.Email)
	}

	var all []domain.Inquiry
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/inquiries", api.tokens["mira"], nil, &all))
	assert.Len(t, all, 2)
}
