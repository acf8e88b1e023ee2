package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yatube/yatube/config"
	"github.com/yatube/yatube/store"
	"github.com/yatube/yatube/utils"
)

// FollowController serves the personalized feed and the follow/unfollow
// operations.
type FollowController struct {
	store    *store.Store
	pageSize int
}

// NewFollowController creates a FollowController.
func NewFollowController(st *store.Store) *FollowController {
	return &FollowController{store: st, pageSize: config.Get().PageSize}
}

// Feed returns the paginated posts of every author the caller follows.
func (f *FollowController) Feed(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	feed, err := f.store.FollowFeed(userID, ctx.Query("page"), f.pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load follow feed")
		return
	}
	utils.Success(ctx, gin.H{"items": feed.Posts, "pagination": feed.Page})
}

// Follow creates the follow edge towards the named author and redirects to
// the follow feed. Following twice is a no-op; following yourself creates no
// edge and just bounces back to the profile.
func (f *FollowController) Follow(ctx *gin.Context) {
	username := ctx.Param("username")
	author, err := f.store.UserByUsername(username)
	if err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40440, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load user")
		return
	}

	userID, _ := getUserID(ctx)
	if err := f.store.Follow(userID, author.ID); err != nil {
		if errors.Is(err, store.ErrSelfFollow) {
			ctx.Redirect(http.StatusFound, "/profile/"+username+"/")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to follow user")
		return
	}

	ctx.Redirect(http.StatusFound, "/follow/")
}

// Unfollow removes the follow edge towards the named author and redirects to
// their profile. A missing edge is not an error.
func (f *FollowController) Unfollow(ctx *gin.Context) {
	username := ctx.Param("username")
	author, err := f.store.UserByUsername(username)
	if err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40441, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load user")
		return
	}

	userID, _ := getUserID(ctx)
	if err := f.store.Unfollow(userID, author.ID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to unfollow user")
		return
	}

	ctx.Redirect(http.StatusFound, "/profile/"+username+"/")
}
