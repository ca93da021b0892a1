package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"dreamjournal/internal/auth"
	"dreamjournal/internal/middleware"
	"dreamjournal/internal/models"
	"dreamjournal/internal/services"

	"github.com/go-playground/validator/v10"
)

// validate 是所有请求体校验共享的 validator 实例。
var validate = validator.New()

// AuthHandler 封装了认证相关的 HTTP 处理器方法。
type AuthHandler struct {
	AuthService    services.AuthService
	TokenBlacklist auth.TokenBlacklist
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService services.AuthService, tokenBlacklist auth.TokenBlacklist) *AuthHandler {
	return &AuthHandler{
		AuthService:    authService,
		TokenBlacklist: tokenBlacklist,
	}
}

// RegisterRequest 是用户注册请求的结构体。
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest 是用户登录请求的结构体。
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse 是成功登录后返回的结构体。
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ErrorResponse 是 API 错误响应的通用结构体。
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register 处理用户注册请求。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(req); err != nil {
		writeJSONError(w, "姓名、邮箱和密码不能为空，且邮箱格式须有效、密码至少6位", http.StatusBadRequest)
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserAlreadyExists) {
			writeJSONError(w, err.Error(), http.StatusConflict)
		} else {
			// 对于其他内部错误，不暴露详细信息给客户端
			writeJSONError(w, "注册失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, user)
}

// Login 处理用户登录请求。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Email == "" || req.Password == "" {
		writeJSONError(w, "邮箱和密码不能为空", http.StatusBadRequest)
		return
	}

	token, user, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) || errors.Is(err, services.ErrInvalidCredentials) {
			writeJSONError(w, "邮箱或密码错误", http.StatusUnauthorized)
		} else {
			writeJSONError(w, "登录失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Logout 处理用户登出请求，将当前 Token 加入黑名单直至其原本的过期时间。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证或无法解析用户声明", http.StatusUnauthorized)
		return
	}

	if claims.ID == "" { // JTI
		writeJSONError(w, "Token 缺少 JTI，无法执行登出", http.StatusInternalServerError)
		return
	}
	if claims.ExpiresAt == nil {
		writeJSONError(w, "Token 缺少过期时间，无法执行登出", http.StatusInternalServerError)
		return
	}

	if err := h.TokenBlacklist.Add(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		writeJSONError(w, "登出过程中发生内部错误", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "登出成功"})
}

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// 头部可能已发送，无法再写 http.Error
			return
		}
	}
}

// writeJSONError 是一个辅助函数，用于发送 JSON 格式的错误响应。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
