package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ironsheep/scene-compose-mcp/internal/config"
	"github.com/ironsheep/scene-compose-mcp/internal/web"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("scene-web %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("scene-web - HTTP API for composing scene point sets")
			fmt.Println()
			fmt.Println("Usage: scene-web [options]")
			fmt.Println()
			fmt.Println("Routes:")
			fmt.Println("  POST /generate   {instruction} -> points")
			fmt.Println("  POST /compose    {scene, targets, tie_policy} -> output")
			fmt.Println("  GET  /detect     ?label=&scene=")
			fmt.Println("  GET  /render     ?targets=role:query,...&scene=")
			fmt.Println("  GET  /health")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  SCENE_MCP_HTTP_ADDR=127.0.0.1:8080  Listen address")
			fmt.Println("  SCENE_MCP_LOG_LEVEL=debug           Enable debug logging")
			fmt.Println("  SCENE_MCP_SCENE=demo                Default scene")
			return
		}
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	api := web.New(cfg)
	defer api.Close()

	srv := &http.Server{
		Handler:      api.Router(),
		Addr:         cfg.HTTPAddr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	log.Printf("Starting scene-web %s on %s (scene %s)", Version, srv.Addr, cfg.Scene)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
