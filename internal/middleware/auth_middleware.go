package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"dreamjournal/internal/auth"
	"dreamjournal/internal/config"
	"dreamjournal/internal/services"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

// UserIDKey 是用于在上下文中存储用户ID（或管理员ID）的键。
const UserIDKey contextKey = "userID"

// ClaimsKey 是用于在上下文中存储完整 JWT claims 的键。
const ClaimsKey contextKey = "claims"

// AuthMiddleware 是一个 HTTP 中间件，用于验证用户 JWT 并将用户信息添加到上下文中。
// 令牌必须是 user 类型且不在 Redis 黑名单中。
func AuthMiddleware(next http.Handler, authCfg config.AuthConfig, blacklist auth.TokenBlacklist) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r, authCfg, blacklist)
		if !ok {
			return
		}
		if claims.TokenType != auth.TokenTypeUser {
			writeMiddlewareError(w, "令牌类型无效", http.StatusUnauthorized)
			return
		}

		// 将用户信息存入请求上下文
		ctx := context.WithValue(r.Context(), UserIDKey, claims.SubjectID)
		ctx = context.WithValue(ctx, ClaimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminAuthMiddleware 验证管理员 JWT。除了令牌类型检查外，
// 还会重新确认管理员记录仍然存在，被移除的管理员立即失效。
func AdminAuthMiddleware(next http.Handler, authCfg config.AuthConfig, blacklist auth.TokenBlacklist, adminService services.AdminService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r, authCfg, blacklist)
		if !ok {
			return
		}
		if claims.TokenType != auth.TokenTypeAdmin {
			writeMiddlewareError(w, "需要管理员令牌", http.StatusForbidden)
			return
		}

		if _, err := adminService.GetAdmin(r.Context(), claims.SubjectID); err != nil {
			log.Printf("警告: 管理员令牌校验失败, ID %d 不存在: %v", claims.SubjectID, err)
			writeMiddlewareError(w, "管理员不存在或已被移除", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.SubjectID)
		ctx = context.WithValue(ctx, ClaimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFromRequest 提取并校验 Bearer 令牌，失败时已写出错误响应。
func claimsFromRequest(w http.ResponseWriter, r *http.Request, authCfg config.AuthConfig, blacklist auth.TokenBlacklist) (*auth.Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeMiddlewareError(w, "请求未包含授权令牌", http.StatusUnauthorized)
		return nil, false
	}

	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
		writeMiddlewareError(w, "授权头部格式无效，应为 Bearer {token}", http.StatusUnauthorized)
		return nil, false
	}

	claims, err := auth.ValidateToken(r.Context(), headerParts[1], authCfg.JWTSecretKey, blacklist)
	if err != nil {
		writeMiddlewareError(w, "令牌无效", http.StatusUnauthorized)
		return nil, false
	}
	return claims, true
}

// GetUserIDFromContext 从上下文中获取用户ID。
// 如果用户ID不存在或类型不正确，返回0和false。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetClaimsFromContext 从上下文中获取完整的 JWT claims。
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

func writeMiddlewareError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
