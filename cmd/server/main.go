package main

import (
	_ "kanban/docs"
	"kanban/internal/config"
	"kanban/internal/server"

	log "github.com/sirupsen/logrus"
)

// @title           Kanban API
// @version         1.0
// @description     Boards, ordered lists and cards, comments and live board sessions.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	cfg := config.Load()

	s, err := server.Init(cfg)
	if err != nil {
		log.Fatalf("❌ Server initialization failed: %v", err)
	}

	s.Run()
}
