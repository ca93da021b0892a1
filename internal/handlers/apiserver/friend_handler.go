package apiserver

import (
	"context"
	"errors"
	"net/http"

	"dreamjournal/internal/middleware"
	"dreamjournal/internal/models"
	"dreamjournal/internal/services"
)

// FriendHandler 封装了好友关系协议的 HTTP 处理器方法。
// 所有路由都要求已认证的用户上下文。
type FriendHandler struct {
	FriendService services.FriendService
	UserService   services.UserService
}

// NewFriendHandler 创建一个新的 FriendHandler 实例。
func NewFriendHandler(friendService services.FriendService, userService services.UserService) *FriendHandler {
	return &FriendHandler{
		FriendService: friendService,
		UserService:   userService,
	}
}

// writeFriendError 将好友协议的哨兵错误映射为 HTTP 状态码。
// 目标用户不存在 -> 404；前置状态不满足 -> 400；其余 -> 500。
func writeFriendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrFriendUserNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrFriendRequestSelf),
		errors.Is(err, services.ErrAlreadyFriends),
		errors.Is(err, services.ErrFriendRequestExists),
		errors.Is(err, services.ErrPeerRequestPending),
		errors.Is(err, services.ErrNoPendingRequest),
		errors.Is(err, services.ErrNoSentRequest),
		errors.Is(err, services.ErrNotFriend):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		writeJSONError(w, "好友操作失败", http.StatusInternalServerError)
	}
}

// SendRequest 处理 POST /friends/request/{userID}。
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.FriendService.SendRequest, "好友请求已发送")
}

// AcceptRequest 处理 POST /friends/accept/{userID}。
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.FriendService.AcceptRequest, "好友请求已接受")
}

// RejectRequest 处理 POST /friends/reject/{userID}。
func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.FriendService.RejectRequest, "好友请求已拒绝")
}

// CancelRequest 处理 POST /friends/cancel/{userID}。
func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.FriendService.CancelRequest, "好友请求已撤回")
}

// RemoveFriend 处理 DELETE /friends/{userID}。
func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.FriendService.RemoveFriend, "好友已移除")
}

// transition 是五个状态转移端点共享的骨架：解析路径中的对端ID，
// 调用对应的协议操作，并写出统一格式的成功/失败响应。
func (h *FriendHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, selfID, otherID uint) error,
	successMessage string,
) {
	selfID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	otherID, ok := parseUintPathVar(w, r, "userID")
	if !ok {
		return
	}

	if err := op(r.Context(), selfID, otherID); err != nil {
		writeFriendError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": successMessage})
}

// ListFriends 处理 GET /friends。
func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.FriendService.ListFriends)
}

// ListIncomingRequests 处理 GET /friends/requests。
func (h *FriendHandler) ListIncomingRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.FriendService.ListIncomingRequests)
}

// ListSentRequests 处理 GET /friends/sent。
func (h *FriendHandler) ListSentRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.FriendService.ListSentRequests)
}

func (h *FriendHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error),
) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	infos, err := op(r.Context(), userID)
	if err != nil {
		writeFriendError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, infos)
}

// FriendProgress 处理 GET /friends/progress/{userID}，
// 返回已确认好友的梦境记录。非好友访问返回 400。
func (h *FriendHandler) FriendProgress(w http.ResponseWriter, r *http.Request) {
	selfID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	friendID, ok := parseUintPathVar(w, r, "userID")
	if !ok {
		return
	}

	dreams, err := h.FriendService.FriendProgress(r.Context(), selfID, friendID)
	if err != nil {
		writeFriendError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, dreams)
}

// SearchUsers 处理 GET /friends/search?q=...，用于查找潜在好友。
func (h *FriendHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	selfID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "查询参数 q 不能为空", http.StatusBadRequest)
		return
	}

	results, err := h.UserService.SearchUsers(r.Context(), query, selfID)
	if err != nil {
		writeJSONError(w, "搜索用户失败", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, results)
}
