package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"Soundcheck/core/tracks"
	"Soundcheck/model"
	"Soundcheck/repository"

	"github.com/gorilla/mux"
)

// 音频大小上限之外允许的表单开销
const formOverhead = 1 << 20

type trackUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	BPM         *int    `json:"bpm"`
	Key         *string `json:"key"`
}

// ListTracksHandler 列出项目中的音轨
func (h *APIHandler) ListTracksHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.tracks.ListByProject(r.Context(), mux.Vars(r)["projectId"], currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.TrackWithCount{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetTrackHandler 获取音轨详情及版本历史
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := h.tracks.Detail(r.Context(), mux.Vars(r)["id"], currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func optionalString(r *http.Request, name string) *string {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return nil
	}
	return &v
}

func optionalInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", model.ErrValidation, name)
	}
	return &n, nil
}

// UploadTrackHandler 上传新音轨或新版本
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return
		}
		writeError(w, r, fmt.Errorf("%w: invalid multipart form: %v", model.ErrValidation, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audioFile")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: audioFile is required", model.ErrValidation))
		return
	}
	defer file.Close()

	bpm, err := optionalInt(r, "bpm")
	if err != nil {
		writeError(w, r, err)
		return
	}
	version, err := optionalInt(r, "versionNumber")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var duration float64
	if raw := strings.TrimSpace(r.FormValue("durationSeconds")); raw != "" {
		if duration, err = strconv.ParseFloat(raw, 64); err != nil {
			writeError(w, r, fmt.Errorf("%w: durationSeconds must be a number", model.ErrValidation))
			return
		}
	}

	in := tracks.Upload{
		ProjectID:       r.FormValue("projectId"),
		UploaderID:      currentUser(r),
		Title:           r.FormValue("title"),
		Description:     optionalString(r, "description"),
		BPM:             bpm,
		Key:             optionalString(r, "key"),
		DurationSeconds: duration,
		Filename:        header.Filename,
		Size:            header.Size,
		Body:            file,
	}
	if version != nil {
		in.VersionNumber = *version
	}

	track, err := h.tracks.Upload(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

// UpdateTrackHandler 更新音轨元数据
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req trackUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	track, err := h.tracks.Update(r.Context(), mux.Vars(r)["id"], currentUser(r), repository.TrackUpdate{
		Title:       req.Title,
		Description: req.Description,
		BPM:         req.BPM,
		Key:         req.Key,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// DeleteTrackHandler 删除音轨版本
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.tracks.Delete(r.Context(), mux.Vars(r)["id"], currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := map[string]interface{}{"message": "track deleted"}
	if result.Promoted != nil {
		resp["promoted"] = result.Promoted
	}
	writeJSON(w, http.StatusOK, resp)
}
