package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/omnichannel-support/internal/api/http/handlers"
	"github.com/spec-kit/omnichannel-support/internal/auth"
	"github.com/spec-kit/omnichannel-support/internal/channels/inbound"
	"github.com/spec-kit/omnichannel-support/internal/config"
	"github.com/spec-kit/omnichannel-support/internal/domain"
	"github.com/spec-kit/omnichannel-support/internal/events"
	"github.com/spec-kit/omnichannel-support/internal/idempotency"
	"github.com/spec-kit/omnichannel-support/internal/observability"
	"github.com/spec-kit/omnichannel-support/internal/repository"
	"github.com/spec-kit/omnichannel-support/internal/service"
	"github.com/spec-kit/omnichannel-support/internal/worker"
)

const (
	testJWTSecret   = "test-secret"
	testAppSecret   = "fb-app-secret"
	testVerifyToken = "verify-me"
	testTwitterKey  = "twitter-consumer-secret"
)

type syncJobs struct{}

func (syncJobs) Submit(job worker.Job) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = job.Run(ctx)
	return true
}

type recordingDeliverer struct {
	mu   sync.Mutex
	sent []string
}

func (d *recordingDeliverer) Send(_ context.Context, channel domain.Channel, recipient, body string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, string(channel)+"|"+recipient+"|"+body)
	return true
}

type testServer struct {
	app       *fiber.App
	tokens    *auth.TokenManager
	deliverer *recordingDeliverer
	metrics   *observability.Metrics
}

func newTestServer(t *testing.T, authDisabled bool) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	ticketsRepo := repository.NewMemoryTicketRepository()
	customers := service.NewCustomerService(repository.NewMemoryCustomerRepository(), ticketsRepo)
	deliverer := &recordingDeliverer{}
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketsRepo,
		Customers:  customers,
		Dispatcher: events.NewInMemoryDispatcher(),
		Jobs:       syncJobs{},
		Deliverer:  deliverer,
		Logger:     logger,
	})
	intake := service.NewIntakeService(service.IntakeDependencies{
		Tickets:        tickets,
		Idempotency:    idempotency.NewMemoryStore(),
		IdempotencyTTL: time.Hour,
		Metrics:        metrics,
		Logger:         logger,
	})
	channels := config.ChannelsConfig{
		FacebookVerifyToken:   testVerifyToken,
		FacebookAppSecret:     testAppSecret,
		TwitterConsumerSecret: testTwitterKey,
	}
	tokens := auth.NewTokenManager(testJWTSecret, 5)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second, nil)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("support", "test", metrics, nil),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Customers:      handlers.NewCustomersHandler(customers),
		Webhooks:       handlers.NewWebhooksHandler(intake, inbound.Default(), channels, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, authDisabled, "Agents"),
		AgentGroup:     "Agents",
	})
	return &testServer{app: app, tokens: tokens, deliverer: deliverer, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	} else if len(raw) > 0 {
		decoded["raw"] = string(raw)
	}
	return resp.StatusCode, decoded
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"source":          map[string]interface{}{"channel": "web_chat", "origin_platform_id": "sess_1"},
		"customer":        map[string]interface{}{"channel_identity": "a@b.c", "name": "Ada"},
		"subject":         "Login issue",
		"initial_message": "I can't log in",
	}
}

func (s *testServer) createTicket(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, nethttp.MethodPost, "/api/tickets", createBody(), nil)
	require.Equal(t, nethttp.StatusCreated, status)
	return body["ticket_id"].(string)
}

func errorCode(body map[string]interface{}) string {
	envelope, _ := body["error"].(map[string]interface{})
	code, _ := envelope["code"].(string)
	return code
}

func TestCreateAndGetTicket(t *testing.T) {
	srv := newTestServer(t, true)

	status, body := srv.do(t, nethttp.MethodPost, "/api/tickets", createBody(), nil)
	require.Equal(t, nethttp.StatusCreated, status)
	assert.Equal(t, "new", body["status"])
	assert.Equal(t, "medium", body["priority"])
	assert.Equal(t, body["created_at"], body["updated_at"])
	timeline := body["timeline"].([]interface{})
	require.Len(t, timeline, 1)
	first := timeline[0].(map[string]interface{})
	assert.Equal(t, "customer", first["sender_type"])
	assert.Equal(t, "I can't log in", first["content"])

	id := body["ticket_id"].(string)
	status, got := srv.do(t, nethttp.MethodGet, "/api/tickets/"+id, nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, id, got["ticket_id"])
}

func TestCreateTicketMissingFields(t *testing.T) {
	srv := newTestServer(t, true)

	req := createBody()
	delete(req, "subject")
	status, body := srv.do(t, nethttp.MethodPost, "/api/tickets", req, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", errorCode(body))

	status, _ = srv.do(t, nethttp.MethodPost, "/api/tickets", []byte(`{not json`), nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestUnknownTicketAndRoute(t *testing.T) {
	srv := newTestServer(t, true)

	status, body := srv.do(t, nethttp.MethodGet, "/api/tickets/tkt_missing", nil, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = srv.do(t, nethttp.MethodGet, "/api/nothing-here", nil, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestUpdateTicket(t *testing.T) {
	srv := newTestServer(t, true)
	id := srv.createTicket(t)

	status, body := srv.do(t, nethttp.MethodPatch, "/api/tickets/"+id, map[string]interface{}{}, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", errorCode(body))

	status, body = srv.do(t, nethttp.MethodPatch, "/api/tickets/"+id, map[string]interface{}{"status": "open", "tags": []string{"vip"}}, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "open", body["status"])
	assert.Equal(t, []interface{}{"vip"}, body["tags"])
	assert.Len(t, body["timeline"], 1)

	status, body = srv.do(t, nethttp.MethodPut, "/api/tickets/"+id, map[string]interface{}{"assigned_agent_id": "agent_3"}, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "agent_3", body["assigned_agent_id"])

	status, body = srv.do(t, nethttp.MethodPatch, "/api/tickets/"+id, []byte(`{"assigned_agent_id":null}`), nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Nil(t, body["assigned_agent_id"])

	status, _ = srv.do(t, nethttp.MethodPatch, "/api/tickets/tkt_missing", map[string]interface{}{"status": "open"}, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
}

func TestAddMessageDeliversAgentReply(t *testing.T) {
	srv := newTestServer(t, true)
	id := srv.createTicket(t)

	status, body := srv.do(t, nethttp.MethodPost, "/api/tickets/"+id+"/messages", map[string]interface{}{"content": "Try resetting your password"}, nil)
	require.Equal(t, nethttp.StatusOK, status)
	timeline := body["timeline"].([]interface{})
	require.Len(t, timeline, 2)
	reply := timeline[1].(map[string]interface{})
	assert.Equal(t, "agent", reply["sender_type"])
	assert.Equal(t, "dev-agent", reply["agent_id"])

	status, _ = srv.do(t, nethttp.MethodPost, "/api/tickets/"+id+"/message", map[string]interface{}{"content": "note", "visibility": "internal"}, nil)
	require.Equal(t, nethttp.StatusOK, status)

	assert.Equal(t, []string{"web_chat|sess_1|Try resetting your password"}, srv.deliverer.sent)

	status, _ = srv.do(t, nethttp.MethodPost, "/api/tickets/tkt_missing/messages", map[string]interface{}{"content": "x"}, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
}

func TestAssignAndStatus(t *testing.T) {
	srv := newTestServer(t, true)
	id := srv.createTicket(t)

	status, body := srv.do(t, nethttp.MethodPut, "/api/tickets/"+id+"/assign?agent_id=agent_7", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["success"])
	ticket := body["ticket"].(map[string]interface{})
	assert.Equal(t, "agent_7", ticket["assigned_agent_id"])
	timeline := ticket["timeline"].([]interface{})
	require.Len(t, timeline, 2)
	entry := timeline[1].(map[string]interface{})
	assert.Equal(t, "system", entry["sender_type"])
	assert.Equal(t, "internal", entry["visibility"])

	status, _ = srv.do(t, nethttp.MethodPut, "/api/tickets/"+id+"/assign", nil, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)

	status, body = srv.do(t, nethttp.MethodGet, "/api/tickets/"+id+"/status", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, false, body["has_agent_reply"])
	assert.Nil(t, body["last_agent_message"])

	_, _ = srv.do(t, nethttp.MethodPost, "/api/tickets/"+id+"/messages", map[string]interface{}{"content": "on it"}, nil)
	status, body = srv.do(t, nethttp.MethodGet, "/api/tickets/"+id+"/status", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["has_agent_reply"])
	last := body["last_agent_message"].(map[string]interface{})
	assert.Equal(t, "on it", last["content"])
}

func TestListTickets(t *testing.T) {
	srv := newTestServer(t, true)
	for i := 0; i < 3; i++ {
		srv.createTicket(t)
	}

	status, body := srv.do(t, nethttp.MethodGet, "/api/tickets?page=1&page_size=2", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(3), body["total_count"])
	assert.Len(t, body["tickets"], 2)

	status, body = srv.do(t, nethttp.MethodGet, "/api/tickets?status=closed", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, []interface{}{}, body["tickets"])

	for _, query := range []string{"page_size=500", "page=0", "page=abc", "status=archived"} {
		status, _ := srv.do(t, nethttp.MethodGet, "/api/tickets?"+query, nil, nil)
		assert.Equal(t, nethttp.StatusBadRequest, status, query)
	}
}

func TestCustomerEndpoints(t *testing.T) {
	srv := newTestServer(t, true)
	status, body := srv.do(t, nethttp.MethodPost, "/api/tickets", createBody(), nil)
	require.Equal(t, nethttp.StatusCreated, status)
	customerID := body["customer"].(map[string]interface{})["internal_id"].(string)

	status, body = srv.do(t, nethttp.MethodGet, "/api/customers/"+customerID, nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "a@b.c", body["channel_identity"])

	status, body = srv.do(t, nethttp.MethodGet, "/api/customers/"+customerID+"/tickets", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, _ = srv.do(t, nethttp.MethodGet, "/api/customers/cust_missing", nil, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
}

func TestAgentRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, false)
	id := srv.createTicket(t)

	status, body := srv.do(t, nethttp.MethodPatch, "/api/tickets/"+id, map[string]interface{}{"status": "open"}, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	outsider, _, err := srv.tokens.GenerateToken("cust-1", "", []string{"Customers"})
	require.NoError(t, err)
	status, _ = srv.do(t, nethttp.MethodGet, "/api/tickets", nil, map[string]string{"Authorization": "Bearer " + outsider})
	assert.Equal(t, nethttp.StatusForbidden, status)

	agent, _, err := srv.tokens.GenerateToken("agent-9", "agent@example.com", []string{"Agents"})
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + agent}
	status, body = srv.do(t, nethttp.MethodPost, "/api/tickets/"+id+"/messages", map[string]interface{}{"content": "hello"}, headers)
	require.Equal(t, nethttp.StatusOK, status)
	timeline := body["timeline"].([]interface{})
	assert.Equal(t, "agent-9", timeline[1].(map[string]interface{})["agent_id"])

	status, _ = srv.do(t, nethttp.MethodGet, "/api/tickets/"+id, nil, nil)
	assert.Equal(t, nethttp.StatusOK, status)
}

func signHub(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAppSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestFacebookWebhookVerification(t *testing.T) {
	srv := newTestServer(t, true)

	status, body := srv.do(t, nethttp.MethodGet, "/api/webhooks/facebook?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=12345", nil, nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "12345", body["raw"])

	status, _ = srv.do(t, nethttp.MethodGet, "/api/webhooks/facebook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = srv.do(t, nethttp.MethodGet, "/api/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", nil, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)
}

func TestFacebookWebhookIntake(t *testing.T) {
	srv := newTestServer(t, true)
	payload := []byte(`{"object":"page","entry":[{"messaging":[{"sender":{"id":"psid-1"},"message":{"mid":"m_1","text":"where is my order"}}]}]}`)

	status, _ := srv.do(t, nethttp.MethodPost, "/api/webhooks/facebook", payload, map[string]string{"X-Hub-Signature-256": "sha256=deadbeef"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	for i := 0; i < 2; i++ {
		status, body := srv.do(t, nethttp.MethodPost, "/api/webhooks/facebook", payload, map[string]string{"X-Hub-Signature-256": signHub(payload)})
		require.Equal(t, nethttp.StatusOK, status)
		assert.Equal(t, "ok", body["status"])
	}

	status, body := srv.do(t, nethttp.MethodGet, "/api/tickets", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	tickets := body["tickets"].([]interface{})
	require.Len(t, tickets, 1)
	ticket := tickets[0].(map[string]interface{})
	assert.Len(t, ticket["timeline"], 1)
	assert.Equal(t, "facebook", ticket["source"].(map[string]interface{})["channel"])

	malformed := []byte(`{"object":`)
	status, body = srv.do(t, nethttp.MethodPost, "/api/webhooks/facebook", malformed, map[string]string{"X-Hub-Signature-256": signHub(malformed)})
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	snap := srv.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Intake["facebook|created"])
	assert.Equal(t, int64(1), snap.Intake["facebook|duplicate"])
}

func TestTwitterCRC(t *testing.T) {
	srv := newTestServer(t, true)

	status, body := srv.do(t, nethttp.MethodGet, "/api/webhooks/twitter?crc_token=abc", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	mac := hmac.New(sha256.New, []byte(testTwitterKey))
	mac.Write([]byte("abc"))
	assert.Equal(t, "sha256="+base64.StdEncoding.EncodeToString(mac.Sum(nil)), body["response_token"])

	status, _ = srv.do(t, nethttp.MethodGet, "/api/webhooks/twitter", nil, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestChatbotHandoff(t *testing.T) {
	srv := newTestServer(t, true)
	payload := map[string]interface{}{
		"session_id":      "sess_9",
		"customer_email":  "bo@example.com",
		"subject":         "Refund",
		"initial_message": "bot could not help",
		"priority":        "high",
	}

	status, body := srv.do(t, nethttp.MethodPost, "/api/webhooks/chatbot", payload, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["success"])
	id := body["ticket_id"].(string)

	status, ticket := srv.do(t, nethttp.MethodGet, "/api/tickets/"+id, nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "high", ticket["priority"])
	source := ticket["source"].(map[string]interface{})
	assert.Equal(t, true, source["is_bot_handoff"])
	assert.Equal(t, "sess_9", source["origin_platform_id"])
	assert.Contains(t, ticket["tags"], "chatbot_handoff")

	status, _ = srv.do(t, nethttp.MethodPost, "/api/webhooks/chatbot", []byte(`{"subject":"x"}`), nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)

	status, _ = srv.do(t, nethttp.MethodPost, "/api/webhooks/chatbot", map[string]interface{}{"session_id": "s", "initial_message": ""}, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, true)

	status, body := srv.do(t, nethttp.MethodGet, "/health", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = srv.do(t, nethttp.MethodGet, "/ready", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = srv.do(t, nethttp.MethodGet, "/metrics", nil, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Contains(t, body, "requests")
	assert.NotEmpty(t, body["requests"])
}

func TestErrorMetricsUseRouteTemplate(t *testing.T) {
	srv := newTestServer(t, true)

	for i := 0; i < 50; i++ {
		status, _ := srv.do(t, nethttp.MethodGet, fmt.Sprintf("/api/tickets/tkt_missing%03d", i), nil, nil)
		require.Equal(t, nethttp.StatusNotFound, status)
	}
	for i := 0; i < 5; i++ {
		status, _ := srv.do(t, nethttp.MethodGet, fmt.Sprintf("/api/nowhere/%d", i), nil, nil)
		require.Equal(t, nethttp.StatusNotFound, status)
	}

	snap := srv.metrics.Snapshot()
	assert.Len(t, snap.Errors, 2)
	assert.Equal(t, int64(50), snap.Errors["/api/tickets/:id|GET|NOT_FOUND"])
	assert.Equal(t, int64(5), snap.Errors["unmatched|GET|NOT_FOUND"])
	assert.Equal(t, int64(50), snap.Requests["/api/tickets/:id|GET|404"])
	assert.Equal(t, int64(5), snap.Requests["unmatched|GET|404"])
}
