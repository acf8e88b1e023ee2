package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/yatube/yatube/config"
	"github.com/yatube/yatube/middleware"
	"github.com/yatube/yatube/models"
	"github.com/yatube/yatube/store"
	"github.com/yatube/yatube/utils"
)

const tokenTTL = 72 * time.Hour

// AuthController handles registration, login/logout and GitHub sign-in.
type AuthController struct {
	store *store.Store
}

// NewAuthController creates an AuthController.
func NewAuthController(st *store.Store) *AuthController {
	return &AuthController{store: st}
}

// Register creates a local account.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	username := strings.TrimSpace(req.Username)
	if !validUsername(username) {
		utils.Error(ctx, http.StatusBadRequest, 40011, "username must be 3-32 characters of letters, digits, underscore or hyphen")
		return
	}
	if !validPassword(req.Password) {
		utils.Error(ctx, http.StatusBadRequest, 40012, "password must be at least 8 characters")
		return
	}

	if _, err := a.store.UserByUsername(username); err == nil {
		utils.Error(ctx, http.StatusConflict, 40910, "username already taken")
		return
	} else if !store.IsNotFound(err) {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to check username")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to hash password")
		return
	}

	user := models.User{
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
	}
	if err := a.store.CreateUser(&user); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to create user")
		return
	}

	utils.Success(ctx, gin.H{"user": publicUser(user)})
}

// Login verifies credentials, issues a JWT, and sets it as a cookie so the
// browser-style pages can authenticate via redirects. The next parameter,
// when present, tells the client where the user originally wanted to go.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40013, "invalid request payload")
		return
	}

	user, err := a.store.UserByUsername(strings.TrimSpace(req.Username))
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to issue token")
		return
	}

	setAuthCookie(ctx, token)
	utils.Success(ctx, gin.H{
		"token": token,
		"user":  publicUser(*user),
		"next":  ctx.Query("next"),
	})
}

// LoginPage is the landing target for anonymous requests bounced off
// protected routes. It echoes the next parameter so the client can resume
// navigation after a successful login.
func (a *AuthController) LoginPage(ctx *gin.Context) {
	utils.Respond(ctx, http.StatusOK, 0, "login required", gin.H{"next": ctx.Query("next")})
}

// Logout revokes the current token until its natural expiry.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	token := ""
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 {
		token = strings.TrimSpace(parts[1])
	}
	if token == "" {
		if cookie, err := ctx.Cookie(middleware.AuthCookieName); err == nil {
			token = cookie
		}
	}
	if token != "" {
		if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
			utils.BlacklistToken(token, claims.ExpiresAt.Time)
		}
	}
	ctx.SetCookie(middleware.AuthCookieName, "", -1, "/", "", false, true)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's own record.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	user, err := a.store.UserByID(userID)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40412, "user not found")
		return
	}
	utils.Success(ctx, gin.H{"user": publicUser(*user)})
}

// OAuthRedirect sends the browser to GitHub's consent screen with a
// single-use state token.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	conf, err := a.githubConfig()
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, "github sign-in not configured")
		return
	}
	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)
	ctx.Redirect(http.StatusFound, conf.AuthCodeURL(state))
}

// OAuthCallback exchanges the code, provisions the account on first sign-in,
// and logs the user in via cookie.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	if !utils.ConsumeState(ctx.Query("state")) {
		utils.Error(ctx, http.StatusBadRequest, 40014, "invalid oauth state")
		return
	}
	conf, err := a.githubConfig()
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, "github sign-in not configured")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()
	token, err := conf.Exchange(reqCtx, ctx.Query("code"))
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50210, "oauth exchange failed")
		return
	}

	ghUser, err := fetchGitHubUser(reqCtx, token.AccessToken)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50211, "failed to fetch github profile")
		return
	}

	user, err := a.findOrCreateOAuthUser(ghUser)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to provision user")
		return
	}

	jwtToken, err := utils.GenerateToken(user.ID, user.Username, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to issue token")
		return
	}
	setAuthCookie(ctx, jwtToken)
	ctx.Redirect(http.StatusFound, "/")
}

func (a *AuthController) githubConfig() (*oauth2.Config, error) {
	cfg := config.Get()
	if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
		return nil, errors.New("github oauth not configured")
	}
	return &oauth2.Config{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		Endpoint:     github.Endpoint,
		RedirectURL:  cfg.OAuthRedirectBase + "/auth/oauth/github/callback",
		Scopes:       []string{"read:user", "user:email"},
	}, nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func fetchGitHubUser(ctx context.Context, accessToken string) (*githubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user endpoint returned %d", resp.StatusCode)
	}

	var user githubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	if user.Login == "" {
		return nil, errors.New("github profile missing login")
	}
	return &user, nil
}

func (a *AuthController) findOrCreateOAuthUser(gh *githubUser) (*models.User, error) {
	providerID := fmt.Sprintf("%d", gh.ID)
	if user, err := a.store.UserByProvider("github", providerID); err == nil {
		return user, nil
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	user := models.User{
		Username:   a.ensureUniqueUsername(sanitizeUsername(gh.Login)),
		Email:      gh.Email,
		Provider:   "github",
		ProviderID: providerID,
		AvatarURL:  gh.AvatarURL,
	}
	if err := a.store.CreateUser(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ensureUniqueUsername appends a numeric suffix until the name is free.
func (a *AuthController) ensureUniqueUsername(base string) string {
	if base == "" {
		base = "user"
	}
	candidate := base
	for i := 2; ; i++ {
		if _, err := a.store.UserByUsername(candidate); store.IsNotFound(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func sanitizeUsername(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 32 {
		s = s[:32]
	}
	return s
}

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func validPassword(s string) bool {
	return len(s) >= 8
}

func setAuthCookie(ctx *gin.Context, token string) {
	ctx.SetCookie(middleware.AuthCookieName, token, int(tokenTTL.Seconds()), "/", "", false, true)
}

// publicUser strips private fields from a user for responses.
func publicUser(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"avatar_url": user.AvatarURL,
		"created_at": user.CreatedAt,
	}
}
