package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	devicesPrefix = "/api/v1/devices/"
	usersPrefix   = "/api/v1/users/"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterDeviceRoutes 设备相关路由
//
//	GET /api/v1/devices/{id}/status
//	GET /api/v1/devices/{id}/statistics
//	GET /api/v1/devices/{id}/statistics/export
//	GET /api/v1/devices/{id}/events?limit=
//	GET /api/v1/devices/{id}/events/stream
func (r *Router) RegisterDeviceRoutes(h *DeviceHandler) {
	r.Handle(devicesPrefix, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}

		rest := strings.TrimPrefix(req.URL.Path, devicesPrefix)
		deviceID, action, ok := strings.Cut(rest, "/")
		if !ok || deviceID == "" {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}

		switch action {
		case "status":
			h.GetStatus(w, req, deviceID)
		case "statistics":
			h.GetStatistics(w, req, deviceID)
		case "statistics/export":
			h.ExportStatistics(w, req, deviceID)
		case "events":
			h.GetEvents(w, req, deviceID)
		case "events/stream":
			h.StreamEvents(w, req, deviceID)
		default:
			writeJSON(w, http.StatusNotFound, Fail("not found"))
		}
	})
}

// RegisterUserRoutes 配对与用户相关路由
//
//	POST   /api/v1/pairings
//	DELETE /api/v1/pairings?user_id=&device_id=
//	GET    /api/v1/users/{id}/devices
//	POST   /api/v1/users/{id}/push-tokens
func (r *Router) RegisterUserRoutes(h *UserHandler) {
	r.Handle("/api/v1/pairings", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			h.CreatePairing(w, req)
		case http.MethodDelete:
			h.DeletePairing(w, req)
		default:
			methodNotAllowed(w)
		}
	})

	r.Handle(usersPrefix, func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, usersPrefix)
		userID, action, ok := strings.Cut(rest, "/")
		if !ok || userID == "" {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}

		switch {
		case action == "devices" && req.Method == http.MethodGet:
			h.ListDevices(w, req, userID)
		case action == "push-tokens" && req.Method == http.MethodPost:
			h.SavePushToken(w, req, userID)
		case action == "devices" || action == "push-tokens":
			methodNotAllowed(w)
		default:
			writeJSON(w, http.StatusNotFound, Fail("not found"))
		}
	})
}

// HealthCheck 依赖检查，如数据库 / Redis ping
type HealthCheck func(ctx context.Context) error

// RegisterSystemRoutes /healthz 与 /metrics
func (r *Router) RegisterSystemRoutes(checks map[string]HealthCheck) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				r.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		if !healthy {
			writeJSON(w, http.StatusServiceUnavailable, Result[map[string]string]{
				Code: ResultError, Type: "error", Message: "unhealthy", Result: status,
			})
			return
		}
		writeJSON(w, http.StatusOK, Ok(status))
	})

	r.HandleHandler("/metrics", promhttp.Handler())
}
