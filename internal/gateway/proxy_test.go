package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boingbox-backend/pkg/config"
	"boingbox-backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// echoUpstream answers with its name and the path and query it received
func echoUpstream(t *testing.T, name string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		w.Write([]byte(r.Method + " " + r.URL.RequestURI()))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGateway(t *testing.T, cfg config.GatewayConfig) *gin.Engine {
	router := gin.New()
	require.NoError(t, RegisterRoutes(router.Group("/v1"), cfg))
	return router
}

func TestRegisterRoutes_RoutesByPrefix(t *testing.T) {
	chat := echoUpstream(t, "chat")
	video := echoUpstream(t, "video")
	storage := echoUpstream(t, "storage")
	router := newGateway(t, config.GatewayConfig{
		ChatServiceURL:    chat.URL,
		VideoServiceURL:   video.URL,
		StorageServiceURL: storage.URL,
	})

	tests := []struct {
		method   string
		path     string
		upstream string
	}{
		{http.MethodPost, "/v1/messages/addmsg", "chat"},
		{http.MethodPost, "/v1/stories/create", "chat"},
		{http.MethodDelete, "/v1/stories/delete", "chat"},
		{http.MethodPost, "/v1/calls/initiate", "video"},
		{http.MethodGet, "/v1/calls/history/abc?page=2", "video"},
		{http.MethodPost, "/v1/media/upload-url", "storage"},
		{http.MethodGet, "/v1/media/user/abc?type=image", "storage"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.upstream, w.Header().Get("X-Upstream"))
			assert.Equal(t, tt.method+" "+tt.path, w.Body.String())
		})
	}
}

func TestRegisterRoutes_UnknownPath(t *testing.T) {
	chat := echoUpstream(t, "chat")
	router := newGateway(t, config.GatewayConfig{
		ChatServiceURL:    chat.URL,
		VideoServiceURL:   chat.URL,
		StorageServiceURL: chat.URL,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProxy_UpstreamDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	router := newGateway(t, config.GatewayConfig{
		ChatServiceURL:    down.URL,
		VideoServiceURL:   down.URL,
		StorageServiceURL: down.URL,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/calls/initiate", strings.NewReader("{}")))

	require.Equal(t, http.StatusBadGateway, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	assert.Contains(t, body.Error.Message, "video-service")
}

func TestNewProxy_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "chat-service:8082", "://bad"} {
		_, err := NewProxy("chat-service", raw)
		assert.Error(t, err, raw)
	}
}

func TestProxy_DropsUpstreamEdgeHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("X-Request-ID", "upstream-id")
		w.Header().Set("X-Upload-Token", r.Header.Get("X-Upload-Token"))
	}))
	t.Cleanup(upstream.Close)

	p, err := NewProxy("chat-service", upstream.URL)
	require.NoError(t, err)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Next()
	})
	router.GET("/v1/ws", p.Handler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
	req.Header.Set("X-Upload-Token", "tok")
	router.ServeHTTP(w, req)

	assert.Equal(t, []string{"DENY"}, w.Header().Values("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "tok", w.Header().Get("X-Upload-Token"))
}
