package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"dreamjournal/internal/models"
	"dreamjournal/internal/services"
)

// AdminHandler 封装了管理端 HTTP 处理器方法。
// 除 Login 外，所有方法都在管理员认证中间件之后执行。
type AdminHandler struct {
	AdminService services.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService services.AdminService) *AdminHandler {
	return &AdminHandler{AdminService: adminService}
}

// AdminLoginRequest 是管理员登录请求的结构体。
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminLoginResponse 是管理员登录成功后返回的结构体。
type AdminLoginResponse struct {
	Token string        `json:"token"`
	Admin *models.Admin `json:"admin"`
}

// Login 处理管理员登录请求。
// 凭证无效与账户不存在返回同一错误，避免泄露管理员邮箱的存在性。
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Email == "" || req.Password == "" {
		writeJSONError(w, "邮箱和密码不能为空", http.StatusBadRequest)
		return
	}

	token, admin, err := h.AdminService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidAdminCredentials) {
			writeJSONError(w, err.Error(), http.StatusUnauthorized)
		} else {
			writeJSONError(w, "管理员登录失败", http.StatusInternalServerError)
		}
		return
	}

	admin.PasswordHash = ""
	writeJSONResponse(w, http.StatusOK, AdminLoginResponse{Token: token, Admin: admin})
}

// AdminRegisterRequest 是创建管理员账户请求的结构体。
type AdminRegisterRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	SuperAdmin bool   `json:"superAdmin"`
}

// Register 创建一个新的管理员账户。只有已认证的管理员才能调用。
func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req AdminRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(req); err != nil {
		writeJSONError(w, "姓名、邮箱和密码不能为空，且邮箱格式须有效、密码至少6位", http.StatusBadRequest)
		return
	}

	admin, err := h.AdminService.CreateAdmin(r.Context(), req.Name, req.Email, req.Password, req.SuperAdmin)
	if err != nil {
		if errors.Is(err, services.ErrAdminAlreadyExists) {
			writeJSONError(w, err.Error(), http.StatusConflict)
		} else {
			writeJSONError(w, "创建管理员失败", http.StatusInternalServerError)
		}
		return
	}

	admin.PasswordHash = ""
	writeJSONResponse(w, http.StatusCreated, admin)
}

// Dashboard 返回用户与梦境记录的聚合计数。
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.AdminService.DashboardStats(r.Context())
	if err != nil {
		writeJSONError(w, "获取统计数据失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, stats)
}

// ListUsers 返回全部用户（不含密码哈希）。
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.AdminService.ListAllUsers(r.Context())
	if err != nil {
		writeJSONError(w, "获取用户列表失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// ListDreams 返回全部梦境记录，所有者信息已展平。
func (h *AdminHandler) ListDreams(w http.ResponseWriter, r *http.Request) {
	dreams, err := h.AdminService.ListAllDreams(r.Context())
	if err != nil {
		writeJSONError(w, "获取梦境记录列表失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, dreams)
}
