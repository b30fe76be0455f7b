// Package config provides centralized default values for the storyboard service
package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if err := godotenv.Load(); err != nil {
			// .env file is optional, don't error if it doesn't exist
			return
		}
		log.Println("Loading configuration overrides from .env file...")
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Google Cloud Configuration
	ServiceAccountJSON string
	GCPProjectID       string
	GCPLocation        string

	// Model Configuration
	TextModel      string
	ImageModelTier string // "pro" or "fast"
	ImageModelPro  string
	ImageModelFast string

	// Generation Behavior
	FrameAttempts   int
	FrameRetryDelay time.Duration
	FrameInterval   time.Duration
	UpstreamTimeout time.Duration

	// Store Configuration
	StoryboardTTL time.Duration // 0 keeps storyboards for process lifetime
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Google Cloud Configuration
	// STORYLOOM_SERVICE_ACCOUNT holds the service-account JSON blob verbatim.
	ServiceAccountJSON = os.Getenv("STORYLOOM_SERVICE_ACCOUNT")
	GCPProjectID = getEnvString("GCP_PROJECT_ID", "")
	GCPLocation = getEnvString("GCP_LOCATION", "us-central1")

	// Model Configuration
	TextModel = getEnvString("TEXT_MODEL", "gemini-2.0-flash-001")
	ImageModelTier = getEnvString("IMAGE_MODEL_TIER", "pro")
	ImageModelPro = getEnvString("IMAGE_MODEL_PRO", "imagen-3.0-generate-002")
	ImageModelFast = getEnvString("IMAGE_MODEL_FAST", "imagen-3.0-fast-generate-001")

	// Generation Behavior
	FrameAttempts = getEnvInt("FRAME_ATTEMPTS", 3)
	FrameRetryDelay = getEnvDuration("FRAME_RETRY_DELAY", 1500*time.Millisecond)
	FrameInterval = getEnvDuration("FRAME_INTERVAL", time.Second)
	UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 90*time.Second)

	// Store Configuration
	StoryboardTTL = getEnvDuration("STORYBOARD_TTL", 0)
}
