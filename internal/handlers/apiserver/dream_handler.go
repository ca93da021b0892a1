package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dreamjournal/internal/middleware"
	"dreamjournal/internal/models"
	"dreamjournal/internal/services"

	"github.com/gorilla/mux"
)

// DreamHandler 封装了梦境记录 CRUD 的 HTTP 处理器方法。
type DreamHandler struct {
	DreamService services.DreamService
}

// NewDreamHandler 创建一个新的 DreamHandler 实例。
func NewDreamHandler(dreamService services.DreamService) *DreamHandler {
	return &DreamHandler{DreamService: dreamService}
}

// CreateDreamRequest 是创建梦境记录请求的结构体。
// tags 同时接受 JSON 数组和逗号分隔字符串两种形式。
type CreateDreamRequest struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	DateOfDream *time.Time     `json:"dateOfDream"`
	Tags        models.TagList `json:"tags"`
	Mood        string         `json:"mood"`
	Rating      *int           `json:"rating"`
}

// UpdateDreamRequest 是部分更新请求的结构体；缺失字段保持不变。
type UpdateDreamRequest struct {
	Title       *string         `json:"title"`
	Content     *string         `json:"content"`
	DateOfDream *time.Time      `json:"dateOfDream"`
	Tags        *models.TagList `json:"tags"`
	Mood        *string         `json:"mood"`
	Rating      *int            `json:"rating"`
}

// Create 处理创建梦境记录的请求。
func (h *DreamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	var req CreateDreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	dream, err := h.DreamService.Create(r.Context(), userID, services.CreateDreamInput{
		Title:       req.Title,
		Content:     req.Content,
		DateOfDream: req.DateOfDream,
		Tags:        req.Tags,
		Mood:        req.Mood,
		Rating:      req.Rating,
	})
	if err != nil {
		if errors.Is(err, services.ErrDreamContentRequired) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			writeJSONError(w, "创建梦境记录失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, dream)
}

// List 返回当前用户的全部梦境记录，按创建时间倒序。
func (h *DreamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	dreams, err := h.DreamService.List(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "获取梦境记录列表失败", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, dreams)
}

// Get 返回当前用户的单条梦境记录。
func (h *DreamHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	dreamID, ok := parseUintPathVar(w, r, "dreamID")
	if !ok {
		return
	}

	dream, err := h.DreamService.Get(r.Context(), userID, dreamID)
	if err != nil {
		if errors.Is(err, services.ErrDreamNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "获取梦境记录失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, dream)
}

// Update 处理部分更新请求。
func (h *DreamHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	dreamID, ok := parseUintPathVar(w, r, "dreamID")
	if !ok {
		return
	}

	var req UpdateDreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	dream, err := h.DreamService.Update(r.Context(), userID, dreamID, services.UpdateDreamInput{
		Title:       req.Title,
		Content:     req.Content,
		DateOfDream: req.DateOfDream,
		Tags:        req.Tags,
		Mood:        req.Mood,
		Rating:      req.Rating,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDreamNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrDreamContentRequired):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			writeJSONError(w, "更新梦境记录失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, dream)
}

// Delete 删除当前用户的一条梦境记录。
func (h *DreamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	dreamID, ok := parseUintPathVar(w, r, "dreamID")
	if !ok {
		return
	}

	if err := h.DreamService.Delete(r.Context(), userID, dreamID); err != nil {
		if errors.Is(err, services.ErrDreamNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "删除梦境记录失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "梦境记录已删除"})
}

// parseUintPathVar 解析路由路径参数为 uint，失败时已写出 400 响应。
func parseUintPathVar(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeJSONError(w, "路径参数 "+name+" 无效", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}
