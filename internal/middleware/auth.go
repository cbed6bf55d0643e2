package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RGU-Computing/clood/internal/pkg/errcode"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/pkg/jwt"
	"github.com/RGU-Computing/clood/internal/pkg/response"
)

const ContextSubjectKey = "subject"

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*jwt.Claims, error)
}

// TokenAuth accepts "Bearer <token>" or the bare token in Authorization.
func TokenAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			response.Fail(c, http.StatusUnauthorized, errcode.ErrUnauthorized, appErr.Unauthorized())
			c.Abort()
			return
		}
		raw := header
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			raw = parts[1]
		}
		claims, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, errcode.ErrUnauthorized, appErr.Unauthorized())
			c.Abort()
			return
		}
		subject := claims.Subject
		if subject == "" {
			subject = "token:" + claims.Name
		}
		c.Set(ContextSubjectKey, subject)
		c.Next()
	}
}
