package main

import (
	"log"
	"os"

	"github.com/truthsnap/forensics-engine/internal/api"
	"github.com/truthsnap/forensics-engine/internal/config"
	"github.com/truthsnap/forensics-engine/internal/db"
	"github.com/truthsnap/forensics-engine/internal/engine"
	"github.com/truthsnap/forensics-engine/internal/faces"
	"github.com/truthsnap/forensics-engine/internal/ocr"
)

func main() {
	log.Println("Starting TruthSnap Image Forensics Engine (Microservice: image-verify-analytics)...")
	log.Println("Loading detector configuration tables...")

	cfg := config.MustLoad()

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbUrl := requireEnv("DATABASE_URL")

	dbConn, err := db.Connect(dbUrl)
	if err != nil {
		log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting verdicts. Error: %v", err)
		dbConn = nil
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
	}

	// Optional collaborators: the pipeline degrades gracefully when OCR
	// or the face cascade is not available on the host.
	ocrClient := ocr.NewTesseract()
	if !ocrClient.Available() {
		log.Println("Warning: OCR disabled (set OCR_ENABLED=true), visual watermark detection degraded")
	}

	faceFinder, err := faces.LoadFromEnv()
	if err != nil {
		log.Printf("Warning: Failed to load face cascade: %v. Face analysis falls back to coarse regions.", err)
		faceFinder = nil
	} else if faceFinder == nil {
		log.Println("Warning: FACE_CASCADE_PATH not set, face analysis falls back to coarse regions")
	}

	eng := engine.New(cfg, ocrClient, faceFinder)

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Setup the Gin Router
	r := api.SetupRouter(dbConn, eng, wsHub)

	port := getEnvOrDefault("PORT", "5340")

	// Start the server
	log.Printf("Engine running on :%s (API Node: image-verify-analytics)\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
