package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const jwtTTL = 12 * time.Hour

type loginRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

type adminClaims struct {
	jwt.RegisteredClaims
}

// handleLogin exchanges the operator's admin API key for a short-lived
// bearer token. The key itself is never stored in plaintext; only its
// bcrypt hash (config.AdminAPIKeyHash) is compared against.
func (s *Server) handleLogin(c *gin.Context) {
	if s.apiKeyHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API key not configured"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.apiKeyHash), []byte(req.APIKey)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
		return
	}

	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(jwtTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.AdminJWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed, "expires_in": int(jwtTTL.Seconds())})
}

// jwtMiddleware requires a valid `Authorization: Bearer <token>` header
// signed with the admin JWT secret.
func (s *Server) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		if tokenStr == "" || tokenStr == auth {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := &adminClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.AdminJWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}

// totpGuard is applied to manual order routes. A request that carries
// `?live=true` must present a valid TOTP code; a request without it skips
// the check entirely. The query parameter does not select the broker
// account: orders go to the account (paper or live) the engine was
// started with.
func (s *Server) totpGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("live") != "true" {
			c.Next()
			return
		}
		if s.cfg.LiveTradingTOTPSecret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "live trading TOTP secret not configured"})
			return
		}
		code := c.GetHeader("X-TOTP-Code")
		if code == "" || !totp.Validate(code, s.cfg.LiveTradingTOTPSecret) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid or missing TOTP code for live trading"})
			return
		}
		c.Next()
	}
}
