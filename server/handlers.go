package server

import (
	"context"
	"net/http"

	"Soundcheck/config"
	"Soundcheck/core/access"
	"Soundcheck/core/auth"
	"Soundcheck/core/feedback"
	"Soundcheck/core/projects"
	"Soundcheck/core/realtime"
	"Soundcheck/core/tracks"
	"Soundcheck/repository"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// HealthCheck 检查某个依赖是否可用
type HealthCheck func(ctx context.Context) error

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg      *config.Config
	users    repository.UserRepository
	tokens   *auth.Tokens
	guard    *access.Guard
	projects *projects.Service
	tracks   *tracks.Service
	feedback *feedback.Service
	hub      *realtime.Hub
	health   map[string]HealthCheck
	upgrader websocket.Upgrader
}

// Services 处理器依赖的服务集合
type Services struct {
	Users    repository.UserRepository
	Tokens   *auth.Tokens
	Guard    *access.Guard
	Projects *projects.Service
	Tracks   *tracks.Service
	Feedback *feedback.Service
	Hub      *realtime.Hub
	Health   map[string]HealthCheck
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(cfg *config.Config, svc Services) *APIHandler {
	h := &APIHandler{
		cfg:      cfg,
		users:    svc.Users,
		tokens:   svc.Tokens,
		guard:    svc.Guard,
		projects: svc.Projects,
		tracks:   svc.Tracks,
		feedback: svc.Feedback,
		hub:      svc.Hub,
		health:   svc.Health,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || cfg.CORSOrigin == "*" || origin == cfg.CORSOrigin
		},
	}
	return h
}

// Router 注册所有 HTTP 路由
func (h *APIHandler) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware(h.cfg.CORSOrigin))

	// 预检请求由 corsMiddleware 应答
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws", h.WebSocketHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// 用户认证
	api.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.AuthMiddleware(h.MeHandler)).Methods(http.MethodGet)

	// 项目
	api.HandleFunc("/projects", h.AuthMiddleware(h.ListProjectsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/projects", h.AuthMiddleware(h.CreateProjectHandler)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", h.AuthMiddleware(h.GetProjectHandler)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", h.AuthMiddleware(h.UpdateProjectHandler)).Methods(http.MethodPut)
	api.HandleFunc("/projects/{id}/members", h.AuthMiddleware(h.AddMemberHandler)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/members/{userId}", h.AuthMiddleware(h.RemoveMemberHandler)).Methods(http.MethodDelete)

	// 音轨
	api.HandleFunc("/tracks/project/{projectId}", h.AuthMiddleware(h.ListTracksHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks", h.AuthMiddleware(h.UploadTrackHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}", h.AuthMiddleware(h.GetTrackHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}", h.AuthMiddleware(h.UpdateTrackHandler)).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{id}", h.AuthMiddleware(h.DeleteTrackHandler)).Methods(http.MethodDelete)

	// 反馈
	api.HandleFunc("/feedback/track/{trackId}", h.AuthMiddleware(h.ListFeedbackHandler)).Methods(http.MethodGet)
	api.HandleFunc("/feedback", h.AuthMiddleware(h.AddFeedbackHandler)).Methods(http.MethodPost)
	api.HandleFunc("/feedback/{id}/reply", h.AuthMiddleware(h.AddReplyHandler)).Methods(http.MethodPost)
	api.HandleFunc("/feedback/{id}/resolve", h.AuthMiddleware(h.ResolveFeedbackHandler)).Methods(http.MethodPut)

	return router
}

// HealthHandler 依次探测已注册的依赖
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	report := make(map[string]string, len(h.health))
	for name, check := range h.health {
		if err := check(r.Context()); err != nil {
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":   http.StatusText(status),
		"checks":   report,
		"sessions": h.hub.SessionCount(),
	})
}

// currentUser 返回当前用户ID，由 AuthMiddleware 保证存在
func currentUser(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}
