package server

import (
	"net/http"

	"Soundcheck/core/realtime"
	"Soundcheck/logger"
)

// WebSocketHandler 将已认证的请求升级为实时会话。
// 浏览器握手时无法设置请求头，因此也接受 ?token= 参数
func (h *APIHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		var err error
		if raw, err = bearerToken(r); err != nil {
			writeMessage(w, http.StatusUnauthorized, err.Error())
			return
		}
	}
	claims, err := h.tokens.Parse(raw)
	if err != nil {
		logger.Warn("Invalid WebSocket token", logger.ErrorField(err))
		writeMessage(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket",
			logger.String("userID", claims.Subject),
			logger.ErrorField(err))
		return
	}

	client := realtime.NewClient(h.hub, conn, claims.Subject, h.guard)
	logger.Info("WebSocket connected",
		logger.String("userID", client.UserID()),
		logger.String("session", client.ID()))

	client.Serve(r.Context())

	logger.Info("WebSocket disconnected",
		logger.String("userID", client.UserID()),
		logger.String("session", client.ID()))
}
