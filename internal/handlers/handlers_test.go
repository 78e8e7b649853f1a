package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-campaigns/internal/middleware"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/internal/repositories"
	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/pkg/logger"
	"whatsapp-campaigns/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCampaignStore struct {
	latest    *models.Campaign
	history   []*models.Campaign
	lastLimit int
}

func (f *fakeCampaignStore) Latest(ctx context.Context, tenant string) (*models.Campaign, error) {
	if f.latest == nil || f.latest.Tenant != tenant {
		return nil, repositories.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeCampaignStore) History(ctx context.Context, tenant string, limit int) ([]*models.Campaign, error) {
	f.lastLimit = limit
	return f.history, nil
}

type fakeRuleStore struct {
	rules []*models.ResponderRule
}

func (f *fakeRuleStore) Create(ctx context.Context, rule *models.ResponderRule) error {
	rule.ID = uuid.New()
	f.rules = append(f.rules, rule)
	return nil
}

func (f *fakeRuleStore) ListBySession(ctx context.Context, sessionID string) ([]*models.ResponderRule, error) {
	var out []*models.ResponderRule
	for _, r := range f.rules {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleStore) Update(ctx context.Context, id uuid.UUID, sessionID, keyword, response string) (*models.ResponderRule, error) {
	for _, r := range f.rules {
		if r.ID == id && r.SessionID == sessionID {
			r.Keyword, r.Response = keyword, response
			return r, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeRuleStore) Delete(ctx context.Context, id uuid.UUID, sessionID string) error {
	for i, r := range f.rules {
		if r.ID == id && r.SessionID == sessionID {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

type notReadySessions struct{}

func (notReadySessions) ReadySession(sessionID string) (*services.Session, error) {
	return nil, services.ErrSessionNotReady
}

// asTenant simulates an authenticated request
func asTenant(tenant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(middleware.TenantKey), tenant)
		c.Next()
	}
}

func serve(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCampaignHandler(t *testing.T) {
	campaign := models.NewCampaign("acme", "acme", models.CampaignSourceBulk, "hi", nil)
	campaign.Record(models.DeliveryAttempt{Recipient: "919000000001", Outcome: models.AttemptSuccess})
	campaign.Record(models.DeliveryAttempt{Recipient: "919000000002", Outcome: models.AttemptFailed, Error: "boom"})

	store := &fakeCampaignStore{latest: campaign, history: []*models.Campaign{campaign}}
	h := NewCampaignHandler(store, 20, logger.Nop())

	router := gin.New()
	router.GET("/campaigns/latest", h.Latest)
	router.GET("/campaigns/history", h.History)
	scoped := router.Group("/scoped", asTenant("globex"))
	scoped.GET("/campaigns/latest", h.Latest)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"latest", "/campaigns/latest?tenant=acme", http.StatusOK},
		{"latest missing tenant", "/campaigns/latest", http.StatusBadRequest},
		{"latest unknown tenant", "/campaigns/latest?tenant=initech", http.StatusNotFound},
		{"latest foreign tenant", "/scoped/campaigns/latest?tenant=acme", http.StatusForbidden},
		{"history", "/campaigns/history?tenant=acme", http.StatusOK},
		{"history bad limit", "/campaigns/history?tenant=acme&limit=zero", http.StatusBadRequest},
		{"history negative limit", "/campaigns/history?tenant=acme&limit=-4", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	w := serve(router, http.MethodGet, "/campaigns/latest?tenant=acme", nil)
	data := decode(t, w)["data"].(map[string]interface{})
	report := data["report"].(map[string]interface{})
	assert.Equal(t, float64(2), report["total"])
	assert.Equal(t, float64(1), report["failed"])
	assert.Equal(t, []interface{}{"919000000002"}, report["failedNumbers"])

	serve(router, http.MethodGet, "/campaigns/history?tenant=acme", nil)
	assert.Equal(t, 20, store.lastLimit)
	serve(router, http.MethodGet, "/campaigns/history?tenant=acme&limit=10000", nil)
	assert.Equal(t, maxHistoryLimit, store.lastLimit)
}

func TestResponderHandler(t *testing.T) {
	store := &fakeRuleStore{}
	h := NewResponderHandler(store, logger.Nop())

	router := gin.New()
	router.POST("/rules", h.CreateRule)
	router.GET("/rules", h.ListRules)
	router.PUT("/rules/:id", h.UpdateRule)
	router.DELETE("/rules/:id", h.DeleteRule)

	w := serve(router, http.MethodPost, "/rules", gin.H{
		"sessionId": "acme", "tenant": "acme", "keyword": "price", "response": "From 10",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, store.rules, 1)
	id := store.rules[0].ID.String()

	w = serve(router, http.MethodPost, "/rules", gin.H{"sessionId": "acme", "keyword": "price"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodPost, "/rules", gin.H{
		"sessionId": "acme", "tenant": "acme", "keyword": strings.Repeat("k", 256), "response": "From 10",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, store.rules, 1)

	w = serve(router, http.MethodGet, "/rules?sessionId=acme", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["data"].(map[string]interface{})["total"])

	w = serve(router, http.MethodGet, "/rules", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodPut, "/rules/"+id, gin.H{"sessionId": "acme", "keyword": "cost", "response": "From 12"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cost", store.rules[0].Keyword)

	// Another session cannot touch the rule
	w = serve(router, http.MethodPut, "/rules/"+id, gin.H{"sessionId": "globex", "keyword": "x", "response": "y"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, http.MethodPut, "/rules/not-a-uuid", gin.H{"sessionId": "acme", "keyword": "x", "response": "y"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, http.MethodDelete, "/rules/"+id, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodDelete, "/rules/"+id+"?sessionId=acme", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.rules)

	w = serve(router, http.MethodDelete, "/rules/"+id+"?sessionId=acme", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessageHandler_SendBulkErrors(t *testing.T) {
	engine := services.NewDeliveryEngine(notReadySessions{}, nil, services.DeliveryOptions{DefaultCountryCode: "91"}, logger.Nop())
	h := NewMessageHandler(engine, nil, nil, 1<<20, logger.Nop())

	router := gin.New()
	router.POST("/send/bulk", h.SendBulk)
	scoped := router.Group("/scoped", asTenant("globex"))
	scoped.POST("/send/bulk", h.SendBulk)

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
	}{
		{"missing session", "/send/bulk", gin.H{"recipients": []string{"9123456789"}, "message": "hi"}, http.StatusBadRequest},
		{"long session", "/send/bulk", gin.H{"sessionId": strings.Repeat("a", 256), "recipients": []string{"9123456789"}, "message": "hi"}, http.StatusBadRequest},
		{"missing recipients", "/send/bulk", gin.H{"sessionId": "acme", "message": "hi"}, http.StatusBadRequest},
		{"missing body", "/send/bulk", gin.H{"sessionId": "acme", "recipients": []string{"9123456789"}}, http.StatusBadRequest},
		{"session not ready", "/send/bulk", gin.H{"sessionId": "acme", "recipients": "9123456789", "message": "hi"}, http.StatusBadRequest},
		{"bad media", "/send/bulk", gin.H{"sessionId": "acme", "recipients": []string{"9123456789"}, "media": gin.H{"name": "a.png", "data": "!!"}}, http.StatusBadRequest},
		{"foreign tenant", "/scoped/send/bulk", gin.H{"sessionId": "acme", "recipients": []string{"9123456789"}, "message": "hi"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, false, decode(t, w)["success"])
		})
	}
}

func TestMessageHandler_MalformedContactsFile(t *testing.T) {
	engine := services.NewDeliveryEngine(notReadySessions{}, nil, services.DeliveryOptions{DefaultCountryCode: "91"}, logger.Nop())
	h := NewMessageHandler(engine, nil, nil, 1<<20, logger.Nop())

	router := gin.New()
	router.POST("/send/bulk", h.SendBulk)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("sessionId", "acme"))
	require.NoError(t, form.WriteField("message", "hi"))
	file, err := form.CreateFormFile("file", "contacts.csv")
	require.NoError(t, err)
	_, err = file.Write([]byte("\"unterminated\n"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/send/bulk", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, decode(t, w)["error"], "invalid contacts file")
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{services.ErrNoValidRecipients, http.StatusBadRequest},
		{services.ErrInvalidScheduleTime, http.StatusBadRequest},
		{services.ErrScheduleNotFound, http.StatusNotFound},
		{services.ErrGroupNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: malformed csv", utils.ErrInvalidContactsFile), http.StatusBadRequest},
		{utils.ErrUnsupportedContactsFile, http.StatusBadRequest},
		{services.ErrManagerStopped, http.StatusServiceUnavailable},
		{services.ErrInitialization, http.StatusInternalServerError},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, logger.Nop(), tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", nil).Code)

	w := serve(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["services"].(map[string]interface{})["database"])
}

type staticWatchers map[string]int

func (w staticWatchers) GetSessionClientCount(sessionID string) int {
	return w[sessionID]
}

func TestSessionHandler_StatusReportsWatchers(t *testing.T) {
	sm := services.NewSessionManager(services.SessionManagerOptions{}, services.NewMemoryRegistry(), nil, nil, nil, logger.Nop())
	t.Cleanup(sm.Stop)
	h := NewSessionHandler(sm, staticWatchers{"acme": 3}, logger.Nop())

	router := gin.New()
	router.GET("/session/:sessionId/status", h.GetStatus)
	router.POST("/session/init", h.InitSession)

	w := serve(router, http.MethodGet, "/session/acme/status", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, string(models.SessionStateUninitialized), data["state"])
	assert.Equal(t, float64(3), data["watchers"])

	w = serve(router, http.MethodPost, "/session/init", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
