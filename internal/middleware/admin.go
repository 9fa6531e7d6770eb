package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/httperror"
)

const adminSubject = "formsmith-admin"

type adminClaims struct {
	jwt.RegisteredClaims
}

// IssueAdminToken 는 대시보드 세션용 HS256 JWT 를 발급한다.
func IssueAdminToken(cfg *config.Config, now time.Time) (string, time.Time, error) {
	if cfg == nil || strings.TrimSpace(cfg.Admin.JWTSecret) == "" {
		return "", time.Time{}, errors.New("admin jwt secret is not configured")
	}

	ttl := time.Duration(cfg.Admin.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	expiresAt := now.Add(ttl)

	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Admin.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// AdminAuth 는 /api/admin/ 경로를 JWT 로 보호하는 미들웨어다.
// 로그인 엔드포인트는 라우터에서 이 미들웨어 밖에 둔다.
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := ""
		if cfg != nil {
			secret = strings.TrimSpace(cfg.Admin.JWTSecret)
		}
		if secret == "" {
			status, payload := httperror.Response(
				httperror.NewInternalError("admin auth is not configured"), GetRequestID(c))
			c.AbortWithStatusJSON(status, payload)
			return
		}

		tokenText := extractAdminToken(c)
		if tokenText == "" {
			rejectAdmin(c, "missing token")
			return
		}

		claims := &adminClaims{}
		token, err := jwt.ParseWithClaims(tokenText, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject != adminSubject {
			rejectAdmin(c, "invalid token")
			return
		}

		c.Next()
	}
}

func extractAdminToken(c *gin.Context) string {
	value := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return strings.TrimSpace(c.GetHeader("X-Admin-Token"))
}

func rejectAdmin(c *gin.Context, reason string) {
	details := map[string]any{"path": c.Request.URL.Path, "reason": reason}
	status, payload := httperror.Response(httperror.NewUnauthorized(details), GetRequestID(c))
	c.AbortWithStatusJSON(status, payload)
}
