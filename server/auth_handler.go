package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Soundcheck/core/auth"
	"Soundcheck/logger"
	"Soundcheck/model"

	"github.com/google/uuid"
)

// RegisterRequest 注册请求体
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 登录请求体，username 也可以填邮箱
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// RegisterHandler 处理用户注册
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, r, fmt.Errorf("%w: username and a valid email are required", model.ErrValidation))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, model.ErrConflict) {
			logger.Warn("[Register] 用户名或邮箱已存在",
				logger.String("username", req.Username),
				logger.String("email", req.Email))
		}
		writeError(w, r, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("[Register] 注册成功", logger.String("user", user.ID))
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// LoginHandler 处理用户登录
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	identity := strings.TrimSpace(req.Email)
	if identity == "" {
		identity = strings.TrimSpace(req.Username)
	}
	if identity == "" || req.Password == "" {
		writeError(w, r, fmt.Errorf("%w: username or email and password are required", model.ErrValidation))
		return
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(identity, "@") {
		user, err = h.users.GetByEmail(r.Context(), strings.ToLower(identity))
	} else {
		user, err = h.users.GetByUsername(r.Context(), identity)
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Warn("[Login] 用户不存在", logger.String("identity", identity))
			writeMessage(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, err)
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Warn("[Login] 密码验证失败", logger.String("identity", identity))
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// MeHandler 返回当前登录用户
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
