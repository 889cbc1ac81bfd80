package call

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boingbox-backend/internal/domain"
	callsvc "boingbox-backend/internal/service/call"
)

type stubRepo struct {
	mu    sync.Mutex
	calls map[uuid.UUID]domain.Call
}

func (r *stubRepo) Create(ctx context.Context, c *domain.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.CallID] = *c
	return nil
}

func (r *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.Participants = append([]domain.CallParticipant(nil), c.Participants...)
	return &c, nil
}

func (r *stubRepo) Update(ctx context.Context, id uuid.UUID, fn func(*domain.Call) error) (*domain.Call, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	return c, r.Create(ctx, c)
}

func (r *stubRepo) ListHistory(ctx context.Context, userID uuid.UUID, statuses []domain.CallStatus, limit, offset int) ([]*domain.Call, error) {
	return nil, nil
}

func (r *stubRepo) ListRingingBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

type everyoneExists struct{}

func (everyoneExists) CountExisting(ctx context.Context, ids []uuid.UUID) (int, error) {
	return len(ids), nil
}

type noGroups struct{}

func (noGroups) MemberRole(ctx context.Context, groupID, userID uuid.UUID) (string, error) {
	return "", nil
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := &stubRepo{calls: make(map[uuid.UUID]domain.Call)}
	h := NewHandler(callsvc.NewService(repo, everyoneExists{}, noGroups{}))

	router := gin.New()
	h.RegisterRoutes(router.Group("/v1"))
	return router
}

type envelope struct {
	Status bool            `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestCallFlowOverHTTP(t *testing.T) {
	router := setupRouter()
	u1, u2 := uuid.New(), uuid.New()

	code, env := do(t, router, http.MethodPost, "/v1/calls/initiate", gin.H{
		"initiator":    u1,
		"participants": []uuid.UUID{u2},
		"type":         "voice",
	})
	require.Equal(t, http.StatusCreated, code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "ringing", created["status"])
	callID := created["callId"].(string)

	code, env = do(t, router, http.MethodPost, "/v1/calls/join", gin.H{"callId": callID, "userId": u2})
	require.Equal(t, http.StatusOK, code)
	var joined map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.Equal(t, "ongoing", joined["status"])
	assert.NotEmpty(t, joined["startTime"])

	code, _ = do(t, router, http.MethodPost, "/v1/calls/end", gin.H{"callId": callID, "userId": u1})
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, router, http.MethodPost, "/v1/calls/join", gin.H{"callId": callID, "userId": u2})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "STATE_CONFLICT", env.Error.Code)

	code, env = do(t, router, http.MethodGet, "/v1/calls/"+callID, nil)
	require.Equal(t, http.StatusOK, code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "ended", got["status"])
}

func TestHandler_Errors(t *testing.T) {
	router := setupRouter()

	code, env := do(t, router, http.MethodGet, "/v1/calls/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Status)

	code, env = do(t, router, http.MethodGet, "/v1/calls/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "CALL_NOT_FOUND", env.Error.Code)

	code, _ = do(t, router, http.MethodPost, "/v1/calls/initiate", gin.H{"initiator": uuid.New()})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodPost, "/v1/calls/join", gin.H{"callId": uuid.New(), "userId": uuid.New()})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHistoryEndpoint(t *testing.T) {
	router := setupRouter()

	code, env := do(t, router, http.MethodGet, "/v1/calls/history/"+uuid.NewString()+"?page=2&limit=5", nil)

	require.Equal(t, http.StatusOK, code)
	var body struct {
		Calls []interface{} `json:"calls"`
		Page  int           `json:"page"`
		Limit int           `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 5, body.Limit)
	assert.NotNil(t, body.Calls)
}
