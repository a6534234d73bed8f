/*
Roles of server:
- Accept asciicast uploads and render them to video in the background
- Stream render progress to websocket clients
- Serve the finished videos until they expire
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/internal/cfg"
	"github.com/qnkhuat/tcast/internal/logging"
	"github.com/qnkhuat/tcast/pkg/render"
	"github.com/qnkhuat/tcast/pkg/server"
)

func main() {
	var dbPath = flag.String("db", ".db", "Path to database")
	var host = flag.String("host", "localhost:3000", "Host address to serve server")
	var dir = flag.String("dir", "videos", "Directory to store rendered videos")
	var fontSize = flag.Float64("font-size", cfg.DEFAULT_FONT_SIZE, "Go Mono point size. 0 uses the 7x13 bitmap font")
	var logPath = flag.String("log", cfg.DEFAULT_LOG, "Log file")
	var version = flag.Bool("version", false, fmt.Sprintf("tcast server version: %s", cfg.VERSION))

	flag.Parse()

	if *version {
		fmt.Printf("tcast server %s\n", cfg.VERSION)
		return
	}
	logging.Config(*logPath, "SERVER: ")

	db, err := server.SetupDB(*dbPath)
	if err != nil {
		fmt.Printf("Failed to open database: %s\n", err)
		log.Printf("Failed to open database: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	s, err := server.New(*host, *dir, db)
	if err != nil {
		fmt.Printf("Failed to create server: %s\n", err)
		log.Printf("Failed to create server: %s", err)
		os.Exit(1)
	}
	font, err := render.LoadFont(*fontSize)
	if err != nil {
		fmt.Printf("Failed to load font: %s\n", err)
		os.Exit(1)
	}
	s.SetFont(font)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.Start(ctx); err != nil {
		log.Printf("Server stopped: %s", err)
		fmt.Printf("Server stopped: %s\n", err)
	}
}
