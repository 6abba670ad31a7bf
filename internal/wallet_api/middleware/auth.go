package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccountIDKey is the gin context key holding the authenticated account id
const AccountIDKey = "account_id"

// TokenParser resolves an access token to the account it was issued for
type TokenParser interface {
	Parse(raw string) (uuid.UUID, error)
}

// Authenticate requires a valid bearer access token
func Authenticate(tokens TokenParser, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
			return
		}

		accountID, err := tokens.Parse(token)
		if err != nil {
			logger.Warn("Rejected access token",
				"error", err,
				"path", c.Request.URL.Path,
				"correlation_id", GetCorrelationID(c),
			)
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Access token is invalid or expired")
			return
		}

		c.Set(AccountIDKey, accountID)
		c.Next()
	}
}

// GetAccountID returns the account id set by Authenticate
func GetAccountID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(AccountIDKey)
	if !exists {
		return uuid.Nil, false
	}
	accountID, ok := value.(uuid.UUID)
	return accountID, ok && accountID != uuid.Nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
