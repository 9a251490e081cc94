package server

import (
	"net/http"

	"Soundcheck/core/projects"
	"Soundcheck/model"

	"github.com/gorilla/mux"
)

type projectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Genre       *string `json:"genre"`
	IsPrivate   bool    `json:"isPrivate"`
}

type projectUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Genre       *string `json:"genre"`
	Status      *string `json:"status"`
	IsPrivate   *bool   `json:"isPrivate"`
}

type addMemberRequest struct {
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
}

// ListProjectsHandler 列出当前用户参与的项目
func (h *APIHandler) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.List(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Project{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateProjectHandler 创建项目
func (h *APIHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := h.projects.Create(r.Context(), currentUser(r), projects.NewProject{
		Name:        req.Name,
		Description: req.Description,
		Genre:       req.Genre,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GetProjectHandler 获取项目详情
func (h *APIHandler) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := h.projects.Get(r.Context(), mux.Vars(r)["id"], currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateProjectHandler 更新项目（仅所有者）
func (h *APIHandler) UpdateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req projectUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := h.projects.Update(r.Context(), mux.Vars(r)["id"], currentUser(r), projects.Changes{
		Name:        req.Name,
		Description: req.Description,
		Genre:       req.Genre,
		Status:      req.Status,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// AddMemberHandler 添加项目成员
func (h *APIHandler) AddMemberHandler(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	member, err := h.projects.AddMember(r.Context(), mux.Vars(r)["id"], currentUser(r), req.UserID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// RemoveMemberHandler 移除项目成员
func (h *APIHandler) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.projects.RemoveMember(r.Context(), vars["id"], currentUser(r), vars["userId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
