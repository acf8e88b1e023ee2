package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yatube/yatube/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user ID in
	// the Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside the Gin context.
	ContextUsernameKey = "username"
	// AuthCookieName carries the JWT for browser-style navigation, so the
	// login-redirect flow works without an Authorization header.
	AuthCookieName = "yatube_token"
	// LoginPath is where anonymous requests to protected pages are sent; the
	// original path is preserved in the next parameter.
	LoginPath = "/auth/login/"
)

// tokenFromRequest extracts the JWT from the Authorization header or, failing
// that, the auth cookie.
func tokenFromRequest(ctx *gin.Context) string {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := ctx.Cookie(AuthCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// authenticate validates the request's token and stores the identity in the
// context. Returns false for missing, revoked, or invalid tokens.
func authenticate(ctx *gin.Context) bool {
	token := tokenFromRequest(ctx)
	if token == "" {
		return false
	}
	if utils.IsTokenBlacklisted(token) {
		return false
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		return false
	}
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	return true
}

// AuthRequired ensures the request is authenticated, answering 401 JSON when
// it is not. Used on the API-style auth endpoints.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !authenticate(ctx) {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// LoginRequired ensures the request is authenticated, redirecting anonymous
// callers to the login page with a next parameter pointing back at the
// original path.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !authenticate(ctx) {
			target := LoginPath + "?next=" + url.QueryEscape(ctx.Request.URL.RequestURI())
			ctx.Redirect(http.StatusFound, target)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// Identify resolves the caller's identity when a valid token is present but
// never blocks the request. Public pages use it for the follow affordance.
func Identify() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		_ = authenticate(ctx)
		ctx.Next()
	}
}
