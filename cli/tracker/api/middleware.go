package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/auth"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const identityKey = "identity"

// Authenticate токен ищется так же, как при открытии канала реального времени
func Authenticate(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authenticator.Authenticate(c.Request)
		if err != nil {
			message := auth.ErrInvalidCredential.Error()
			if errors.Is(err, auth.ErrMissingCredential) {
				message = auth.ErrMissingCredential.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
			return
		}

		c.Set(identityKey, identity)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFromContext(c.Request.Context())
		if !ok || !identity.HasRole(roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// CORS разрешает запросы веб-клиента с учётными данными
func CORS(frontendURL string) gin.HandlerFunc {
	frontendURL = strings.TrimRight(frontendURL, "/")
	return func(c *gin.Context) {
		if frontendURL == "" {
			c.Next()
			return
		}

		if origin := c.GetHeader("Origin"); strings.EqualFold(strings.TrimRight(origin, "/"), frontendURL) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Logger журнал запросов через logrus
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"ip":      c.ClientIP(),
		}).Debug("HTTP-запрос")
	}
}
