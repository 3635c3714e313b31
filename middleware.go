package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// JWTService issues and validates the service-to-service bearer tokens
// that gate the administrative booking API, kept in shape from the
// teacher's JWTService/Claims, generalized from a single UserID/Email
// pair to a tenant-scoped caller identity.
type JWTService struct {
	secretKey string
}

func NewJWTService(secretKey string) *JWTService {
	return &JWTService{secretKey: secretKey}
}

// Claims identifies the caller and the tenant it is scoped to.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Subject  string `json:"sub"`
	jwt.RegisteredClaims
}

func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// AuthMiddleware validates the bearer token and sets tenant_id/subject in
// the gin context for downstream handlers.
func AuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			writeAppError(c, model.NewAppError(model.ErrAuthentication, "authorization header is required"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeAppError(c, model.NewAppError(model.ErrAuthentication, "authorization header must be a bearer token"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			writeAppError(c, model.NewAppError(model.ErrAuthentication, "invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("tenant_id", claims.TenantID)
		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing, unchanged from the
// teacher's implementation.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware logs HTTP requests via gin's own logger, unchanged from
// the teacher's implementation.
func LoggingMiddleware() gin.HandlerFunc {
	return gin.Logger()
}

// availabilityLimiter enforces the §6 20/min-per-(ip,tenant) rate limit on
// the public availability endpoint using golang.org/x/time/rate, the same
// token-bucket package the notification dispatcher uses for its per-channel
// throttles — generalized here to a per-caller keyed limiter map.
type availabilityLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newAvailabilityLimiter() *availabilityLimiter {
	return &availabilityLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (l *availabilityLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/20), 20)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func RateLimitMiddleware(l *availabilityLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + "|" + c.Query("tenant_id")
		if !l.allow(key) {
			c.Header("Retry-After", "60")
			writeAppError(c, model.NewAppError(model.ErrRateLimitExceeded, "too many requests"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// writeAppError renders an AppError in the §7 envelope shape, the single
// place every handler funnels error responses through.
func writeAppError(c *gin.Context, err error) {
	if appErr, ok := err.(*model.AppError); ok {
		c.JSON(appErr.Code.HTTPStatus(), model.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{
		Code:    model.ErrInternal,
		Message: err.Error(),
	})
}
