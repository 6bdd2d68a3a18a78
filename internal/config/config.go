package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Port   int
	DBPath string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	AssistantPrompt  string
	DefaultChatTitle string

	LogLevel     zapcore.Level
	LogFile      string
	TelemetryDir string
}

// Load reads envFile when it exists, then the process environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	cfg := Config{
		DBPath:           getenvDefault("DB_PATH", "chat_data/chatbot.db"),
		LLMBaseURL:       getenvDefault("LLM_BASE_URL", "http://localhost:11434/v1"),
		LLMAPIKey:        getenvDefault("LLM_API_KEY", "ollama"),
		LLMModel:         getenvDefault("LLM_MODEL", "gemma3"),
		AssistantPrompt:  os.Getenv("ASSISTANT_PROMPT"),
		DefaultChatTitle: os.Getenv("DEFAULT_CHAT_TITLE"),
		LogFile:          os.Getenv("LOG_FILE"),
		TelemetryDir:     os.Getenv("TELEMETRY_DIR"),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(getenvDefault("PORT", "10000")); err != nil || cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	if cfg.LLMTimeout, err = time.ParseDuration(getenvDefault("LLM_TIMEOUT", "120s")); err != nil || cfg.LLMTimeout < 0 {
		return Config{}, fmt.Errorf("invalid LLM_TIMEOUT %q", os.Getenv("LLM_TIMEOUT"))
	}
	if cfg.LogLevel, err = zapcore.ParseLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
