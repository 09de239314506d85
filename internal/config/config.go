package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr     string
	DataDir      string
	DBPath       string
	WorkspaceDir string

	LLMModel      string
	LLMAPIKey     string
	LLMBaseURL    string
	ContextWindow int
	MaxTokens     int

	Agent         string
	MaxIterations int
	MaxChars      int64
	LogLevel      string
}

func Load() Config {
	loadDotEnv(".env")
	dataDir := getEnv("AGENTD_DATA_DIR", "data")
	return Config{
		HTTPAddr:     getEnv("AGENTD_HTTP_ADDR", ":8080"),
		DataDir:      dataDir,
		DBPath:       getEnv("AGENTD_DB_PATH", filepath.Join(dataDir, "agentd.db")),
		WorkspaceDir: getEnv("AGENTD_WORKSPACE_DIR", filepath.Join(dataDir, "workspace")),

		LLMModel:      getEnv("AGENTD_LLM_MODEL", "gpt-4o"),
		LLMAPIKey:     getEnv("AGENTD_LLM_API_KEY", ""),
		LLMBaseURL:    getEnv("AGENTD_LLM_BASE_URL", ""),
		ContextWindow: getEnvInt("AGENTD_LLM_CONTEXT_WINDOW", 128000),
		MaxTokens:     getEnvInt("AGENTD_LLM_MAX_TOKENS", 4096),

		Agent:         getEnv("AGENTD_AGENT", "CodeActAgent"),
		MaxIterations: getEnvInt("AGENTD_MAX_ITERATIONS", 100),
		MaxChars:      int64(getEnvInt("AGENTD_MAX_CHARS", 5_000_000)),
		LogLevel:      getEnv("AGENTD_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
