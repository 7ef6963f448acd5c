package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/response"
	"github.com/stemsi/exstem-live/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for token claims.
	ContextKeyClaims = "claims"
)

// RequireHost accepts only a host token issued for the :session_id in the path.
func RequireHost(tokens *service.TokenService) gin.HandlerFunc {
	return requireToken(tokens, service.TokenTypeHost, response.ErrHostAccessOnly)
}

// RequireParticipant accepts only a participant token issued for the
// :session_id in the path.
func RequireParticipant(tokens *service.TokenService) gin.HandlerFunc {
	return requireToken(tokens, service.TokenTypeParticipant, response.ErrParticipantAccessOnly)
}

func requireToken(tokens *service.TokenService, typ service.TokenType, wrongType response.ErrCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != typ {
			response.AbortFail(c, http.StatusForbidden, wrongType)
			return
		}

		// A token only reaches the session it was issued for.
		if raw := c.Param("session_id"); raw != "" {
			sessionID, err := uuid.Parse(raw)
			if err != nil {
				response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
				return
			}
			if sessionID != claims.SessionID {
				response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
				return
			}
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the token claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	// Join links opened on a second screen carry the token in the query.
	return c.Query("token")
}
