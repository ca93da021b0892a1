package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"dreamjournal/internal/middleware"
	"dreamjournal/internal/services"

	"github.com/gorilla/mux"
)

// UserHandler 封装了用户资料相关的 HTTP 处理器方法。
type UserHandler struct {
	UserService services.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{UserService: userService}
}

// UpdateProfileRequest 是更新用户资料请求的结构体。空字段表示不修改。
type UpdateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

// GetProfile 返回当前登录用户的资料。
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	user, err := h.UserService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "获取用户资料失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateProfile 更新当前登录用户的 name / email。
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(req); err != nil {
		writeJSONError(w, "邮箱格式无效", http.StatusBadRequest)
		return
	}

	user, err := h.UserService.UpdateProfile(r.Context(), userID, req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrUserAlreadyExists):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			writeJSONError(w, "更新用户资料失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, user)
}

// FindByEmail 按邮箱精确查找用户，用于发起好友请求前的定位。
// GET /api/v1/user/findByEmail/{email}
func (h *UserHandler) FindByEmail(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	if email == "" {
		writeJSONError(w, "邮箱不能为空", http.StatusBadRequest)
		return
	}

	info, err := h.UserService.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "查找用户失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, info)
}
