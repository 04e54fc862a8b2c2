package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the server and worker binaries.
type Config struct {
	// Server configuration
	Port string
	Host string

	// Database configuration
	DatabasePath string

	// JWT configuration
	JWTSecret string

	// Object store: shared filesystem root holding per-job chunk
	// directories and assembled audio (spec §6 "Persisted layout").
	SharedAudioPath string

	// Message broker (spec §2's "Message Broker").
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// LLM collaborator endpoint (spec §1, out of scope; endpoint/key/model
	// are the only configuration surface this repo owns).
	LLMProvider string // "openai" or "ollama"
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string

	// Vector store (speaker profiles), read-only from the Diarization
	// Worker (spec §5).
	VectorStoreHost       string
	VectorStorePort       int
	VectorStoreCollection string

	// External collaborator endpoints (spec §1 Non-goals): the ASR model,
	// the diarization model, and the DOCX template engine all live outside
	// this repository; these are just where the workers reach them.
	ASRBaseURL      string
	DiarizerBaseURL string
	DocxBaseURL     string

	// Diarization numeric parameters (spec §4.4, "read from configuration").
	DiarizeWindowSeconds     float64
	DiarizeOverlapSeconds    float64
	DiarizeKnownThreshold    float64
	DiarizeDistanceThreshold float64
	DiarizeMergeMaxPause     float64
	VADEnabled               bool

	// Chat Sub-engine (spec §4.6: "last chat_history_limit x 2 ChatEntries").
	ChatHistoryLimit int

	// Document export: local timezone for context-header formatting
	// (spec §6, §9 "Timezone handling").
	LocalTimezone string

	// ffmpeg binary used by the Assembler Worker.
	FFmpegPath string

	// Stale-Job Reaper (spec §4.8).
	ReaperInterval time.Duration
	ReaperTimeout  time.Duration

	// Worker pool sizes per queue (spec §2's gpu_tasks/cpu_tasks).
	GPUWorkers int
	CPUWorkers int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Host:         getEnv("HOST", "localhost"),
		DatabasePath: getEnv("DATABASE_PATH", "data/meeting.db"),
		JWTSecret:    getJWTSecret(),

		SharedAudioPath: getEnv("SHARED_AUDIO_PATH", "data/meetings"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o-mini"),

		VectorStoreHost:       getEnv("VECTOR_STORE_HOST", "localhost"),
		VectorStorePort:       getEnvAsInt("VECTOR_STORE_PORT", 6333),
		VectorStoreCollection: getEnv("VECTOR_STORE_COLLECTION", "speaker_profiles"),

		ASRBaseURL:      getEnv("ASR_BASE_URL", "http://localhost:9000"),
		DiarizerBaseURL: getEnv("DIARIZER_BASE_URL", "http://localhost:9001"),
		DocxBaseURL:     getEnv("DOCX_BASE_URL", "http://localhost:9002"),

		DiarizeWindowSeconds:     getEnvAsFloat("DIARIZE_WINDOW_SECONDS", 1.5),
		DiarizeOverlapSeconds:    getEnvAsFloat("DIARIZE_OVERLAP_SECONDS", 0.75),
		DiarizeKnownThreshold:    getEnvAsFloat("DIARIZE_KNOWN_THRESHOLD", 0.75),
		DiarizeDistanceThreshold: getEnvAsFloat("DIARIZE_DISTANCE_THRESHOLD", 0.55),
		DiarizeMergeMaxPause:     getEnvAsFloat("DIARIZE_MERGE_MAX_PAUSE", 0.8),
		VADEnabled:               getEnvAsBool("VAD_ENABLED", true),

		ChatHistoryLimit: getEnvAsInt("CHAT_HISTORY_LIMIT", 10),

		LocalTimezone: getEnv("LOCAL_TIMEZONE", "Asia/Ho_Chi_Minh"),

		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		ReaperInterval: getEnvAsDuration("REAPER_INTERVAL", 5*time.Minute),
		ReaperTimeout:  getEnvAsDuration("REAPER_TIMEOUT", 2*time.Hour),

		// spec §9: gpu_tasks workers use a concurrency of 1 since all GPU
		// stages serialize onto a single device. cmd/worker enforces this
		// at startup rather than silently clamping a misconfigured value.
		GPUWorkers: getEnvAsInt("GPU_WORKERS", 1),
		CPUWorkers: getEnvAsInt("CPU_WORKERS", 4),
	}
}

// Location resolves the configured local timezone, falling back to UTC if
// the zone database entry is missing rather than failing startup.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.LocalTimezone)
	if err != nil {
		log.Printf("Warning: unknown LOCAL_TIMEZONE %q, falling back to UTC: %v", c.LocalTimezone, err)
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getJWTSecret gets JWT secret from env or generates a secure random one,
// persisted to disk so dev restarts don't invalidate every issued token.
func getJWTSecret() string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}
	secretFile := getEnv("JWT_SECRET_FILE", "data/jwt_secret")
	if data, err := os.ReadFile(secretFile); err == nil && len(data) > 0 {
		return strings.TrimSpace(string(data))
	}
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Warning: Could not generate secure JWT secret, using fallback: %v", err)
		return "fallback-jwt-secret-please-set-JWT_SECRET-env-var"
	}
	secret := hex.EncodeToString(bytes)
	_ = os.MkdirAll(filepath.Dir(secretFile), 0755)
	_ = os.WriteFile(secretFile, []byte(secret), 0600)
	log.Println("Generated persistent JWT secret at", secretFile)
	return secret
}

// ffmpegOnPath is used at startup to fail fast with a clear message instead
// of letting the first Assembler task fail obscurely.
func ffmpegOnPath(path string) bool {
	_, err := exec.LookPath(path)
	return err == nil
}

// CheckFFmpeg reports whether the configured ffmpeg binary is reachable.
func (c *Config) CheckFFmpeg() bool {
	return ffmpegOnPath(c.FFmpegPath)
}
