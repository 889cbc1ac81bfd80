package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"boingbox-backend/pkg/config"
	apperrors "boingbox-backend/pkg/errors"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/response"
)

// edgeHeaders are set by the gateway's own middleware and dropped from
// upstream responses so they are not sent twice.
var edgeHeaders = []string{
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Credentials",
	"Access-Control-Allow-Headers",
	"Access-Control-Allow-Methods",
	"Access-Control-Max-Age",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"Referrer-Policy",
	"Content-Security-Policy",
	"Strict-Transport-Security",
	"X-Request-ID",
}

// Proxy forwards requests unchanged to one upstream service
type Proxy struct {
	name   string
	target *url.URL
	proxy  *httputil.ReverseProxy
}

// NewProxy creates a proxy for the service reachable at rawURL
func NewProxy(name, rawURL string) (*Proxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s url: %w", name, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid %s url: %q", name, rawURL)
	}

	p := &Proxy{name: name, target: target}
	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
	}
	rp.ModifyResponse = func(resp *http.Response) error {
		for _, h := range edgeHeaders {
			resp.Header.Del(h)
		}
		return nil
	}
	rp.ErrorHandler = p.fail
	p.proxy = rp
	return p, nil
}

// Handler serves the request through the upstream
func (p *Proxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.proxy.ServeHTTP(c.Writer, c.Request)
	}
}

func (p *Proxy) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Warn("Upstream request failed",
		zap.String("service", p.name),
		zap.String("path", r.URL.Path),
		zap.Error(err))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	msg := p.name + " is unavailable"
	body := response.Response{
		Status: false,
		Msg:    msg,
		Error: &response.ErrorDetail{
			Code:    string(apperrors.ErrCodeServiceUnavail),
			Message: msg,
		},
		Meta: response.Meta{Timestamp: time.Now().UTC()},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("Failed to write gateway error", zap.Error(err))
	}
}

// RegisterRoutes maps the public API onto the upstream services
func RegisterRoutes(rg *gin.RouterGroup, cfg config.GatewayConfig) error {
	chat, err := NewProxy("chat-service", cfg.ChatServiceURL)
	if err != nil {
		return err
	}
	video, err := NewProxy("video-service", cfg.VideoServiceURL)
	if err != nil {
		return err
	}
	storage, err := NewProxy("storage-service", cfg.StorageServiceURL)
	if err != nil {
		return err
	}

	rg.GET("/ws", chat.Handler())
	rg.Any("/messages/*path", chat.Handler())
	rg.Any("/stories/*path", chat.Handler())
	rg.Any("/calls/*path", video.Handler())
	rg.Any("/media/*path", storage.Handler())
	return nil
}
