package server

import (
	"net/http"

	"Soundcheck/core/feedback"
	"Soundcheck/model"

	"github.com/gorilla/mux"
)

type feedbackRequest struct {
	TrackID          string                 `json:"trackId"`
	TimestampSeconds *float64               `json:"timestampSeconds"`
	Category         model.FeedbackCategory `json:"category"`
	Content          string                 `json:"content"`
}

type replyRequest struct {
	Content string `json:"content"`
}

// ListFeedbackHandler 获取音轨的反馈线程
func (h *APIHandler) ListFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	threads, err := h.feedback.ListByTrack(r.Context(), mux.Vars(r)["trackId"], currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if threads == nil {
		threads = []model.FeedbackThread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

// AddFeedbackHandler 添加反馈
func (h *APIHandler) AddFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Category == "" {
		req.Category = model.CategoryGeneral
	}
	thread, err := h.feedback.AddEntry(r.Context(), feedback.NewEntry{
		TrackID:          req.TrackID,
		AuthorID:         currentUser(r),
		TimestampSeconds: req.TimestampSeconds,
		Category:         req.Category,
		Content:          req.Content,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

// AddReplyHandler 回复反馈
func (h *APIHandler) AddReplyHandler(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := h.feedback.AddReply(r.Context(), mux.Vars(r)["id"], currentUser(r), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// ResolveFeedbackHandler 标记反馈为已解决
func (h *APIHandler) ResolveFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := h.feedback.Resolve(r.Context(), mux.Vars(r)["id"], currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
