package auth

import (
	"context"
	"fmt"
	"time"

	"dreamjournal/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType 区分普通用户令牌与管理员令牌。
type TokenType string

const (
	TokenTypeUser  TokenType = "user"
	TokenTypeAdmin TokenType = "admin"
)

// Claims 是 JWT 中的自定义声明，嵌入了 jwt.RegisteredClaims。
// SubjectID 是令牌持有者的身份ID（用户或管理员，由 TokenType 区分）。
type Claims struct {
	SubjectID uint      `json:"subjectId"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"type"`
	jwt.RegisteredClaims
}

// GenerateToken 为指定主体签发一个新的 JWT，携带 JTI 以支持登出黑名单。
func GenerateToken(subjectID uint, email string, tokenType TokenType, authCfg config.AuthConfig) (string, error) {
	jwtID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("生成 JWT ID 失败: %w", err)
	}

	expirationTime := time.Now().Add(authCfg.JWTExpiry)
	claims := &Claims{
		SubjectID: subjectID,
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			ID:        jwtID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "dream-journal-server",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("生成 JWT 失败: %w", err)
	}
	return tokenString, nil
}

// ValidateToken 验证给定的 JWT 字符串的有效性。
// 如果令牌有效且未被吊销，返回 Claims；否则返回错误。
// blacklist 可以为 nil（跳过吊销检查）。
func ValidateToken(ctx context.Context, tokenString string, jwtKey string, blacklist TokenBlacklist) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 确保签名算法是我们期望的
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名算法: %v", token.Header["alg"])
		}
		return []byte(jwtKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("解析或验证 JWT 失败: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("JWT 无效")
	}

	if blacklist != nil {
		if claims.ID == "" {
			return nil, fmt.Errorf("JWT 缺少 JTI (ID) 声明，无法检查黑名单")
		}
		isRevoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			// 为了安全，黑名单不可用时拒绝令牌
			return nil, fmt.Errorf("检查 Token 黑名单失败: %w", err)
		}
		if isRevoked {
			return nil, fmt.Errorf("JWT 已被吊销")
		}
	}

	return claims, nil
}
