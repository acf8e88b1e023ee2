package main

import (
	"github.com/yatube/yatube/config"
	"github.com/yatube/yatube/models"
	"github.com/yatube/yatube/routes"
	"github.com/yatube/yatube/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Group{}, &models.Post{}, &models.Comment{}, &models.Follow{})

	// Rendered index pages live under this prefix for the configured window.
	cache := utils.NewPageCache("cache:index_page:")

	r := routes.SetupRouter(db, cache)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
