package middleware

import (
  "net/http"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/requestdata"
  "github.com/tempero-labs/dispenser-backend/internal/services"
)

type AuthMiddleware struct {
  log           *logger.Logger
  authService   services.AuthService
  deviceService services.DeviceService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService, deviceService services.DeviceService) *AuthMiddleware {
  return &AuthMiddleware{
    log:           log.With("Middleware", "AuthMiddleware"),
    authService:   authService,
    deviceService: deviceService,
  }
}

// RequireUser admits only requests carrying a valid user-tagged token.
func (am *AuthMiddleware) RequireUser() gin.HandlerFunc {
  return am.require(requestdata.PrincipalUser)
}

// RequireDevice admits only requests carrying a valid device-tagged token.
func (am *AuthMiddleware) RequireDevice() gin.HandlerFunc {
  return am.require(requestdata.PrincipalDevice)
}

func (am *AuthMiddleware) require(kind requestdata.PrincipalKind) gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractToken(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
    if err != nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
      return
    }
    rd := requestdata.GetRequestData(ctx)
    if rd == nil || rd.Kind != kind || rd.UserID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
      return
    }
    // Any authenticated device call counts as liveness; a device that only
    // polls or reports must not read as offline. Best effort: a failed
    // refresh never blocks the request.
    if rd.Kind == requestdata.PrincipalDevice && rd.DeviceID != uuid.Nil {
      if err := am.deviceService.MarkSeen(ctx, rd.DeviceID); err != nil {
        am.log.Warn("Failed to refresh device last_seen", "device_id", rd.DeviceID, "error", err)
      }
    }
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

// OptionalUser verifies identity when a token is presented and lets the
// request through anonymously otherwise. Used by the job monitor endpoint.
func (am *AuthMiddleware) OptionalUser() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractToken(c)
    if tokenString == "" {
      c.Next()
      return
    }
    ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
    if err != nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
      return
    }
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

func extractToken(c *gin.Context) string {
  if qToken := c.Query("token"); qToken != "" {
    return qToken
  }
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  return ""
}
