package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/scene-compose-mcp/internal/config"
	"github.com/ironsheep/scene-compose-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("scene-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("scene-mcp - MCP server for composing scene point sets")
			fmt.Println()
			fmt.Println("Usage: scene-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  SCENE_MCP_LOG_LEVEL=debug           Enable debug logging")
			fmt.Println("  SCENE_MCP_SCENE=demo                Default scene (demo, file.json, file.db#scene)")
			fmt.Println("  SCENE_MCP_TIE_POLICY=first          Geometric ties: first or strict")
			fmt.Println("  SCENE_MCP_MAX_COLOR_DISTANCE=0.3    Color match threshold for named instances")
			fmt.Println("  SCENE_MCP_RENDER_SIZE=512           Default PNG render size")
			fmt.Println("  SCENE_MCP_ENV_FILE=.env             Optional .env file read at startup")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if cfg.Debug() {
		log.Printf("Scene MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	server.Version = Version
	srv := server.New(cfg)
	defer srv.Close()
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
