package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"Soundcheck/logger"
	"Soundcheck/model"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Status: status}})
}

// statusFor 把 model 中的错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrVersionConflict),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, model.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError 以 JSON 返回错误；服务端错误记录日志并返回通用提示
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()

	switch {
	case status == http.StatusServiceUnavailable:
		logger.Warn("store unavailable",
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
		message = "service temporarily unavailable, retry later"
	case status >= http.StatusInternalServerError:
		if errors.Is(err, model.ErrConsistencyViolation) {
			logger.Error("lineage consistency violation",
				logger.String("path", r.URL.Path),
				logger.ErrorField(err))
		} else {
			logger.Error("request failed",
				logger.String("path", r.URL.Path),
				logger.ErrorField(err))
		}
		message = "internal server error"
	case status == http.StatusNotFound:
		// 隐藏资源不暴露“无权限”字样
		message = "not found"
	}
	writeMessage(w, status, message)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", model.ErrValidation, err)
	}
	return nil
}
