package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	GigaChat GigaChatConfig
	OpenAI   OpenAIConfig
	OCR      OCRConfig
	Storage  StorageConfig
	Insight  InsightConfig
	Search   SearchConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	Model              string
	InsecureSkipVerify bool
}

type OpenAIConfig struct {
	APIKey         string
	EmbeddingModel string
}

type OCRConfig struct {
	APIKey   string
	Endpoint string
	Language string
	Engine   string
	Timeout  time.Duration
}

type StorageConfig struct {
	Bucket       string
	SignedURLTTL time.Duration
}

type InsightConfig struct {
	DefaultBudget     float64
	MinSummaryRecords int
	MinSwitchRecords  int
	SwitchWindow      int
}

type SearchConfig struct {
	TopK      int
	Threshold float64
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// If no .env file was found, environment variables are used directly
	// (useful for Docker/K8s)

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	ocrTimeout, _ := strconv.Atoi(getEnv("OCR_TIMEOUT_SECONDS", "30"))
	signedURLTTL, _ := strconv.Atoi(getEnv("STORAGE_SIGNED_URL_TTL_SECONDS", "60"))
	defaultBudget, _ := strconv.ParseFloat(getEnv("INSIGHT_DEFAULT_BUDGET", "2000"), 64)
	minSummary, _ := strconv.Atoi(getEnv("INSIGHT_MIN_SUMMARY_RECORDS", "5"))
	minSwitch, _ := strconv.Atoi(getEnv("INSIGHT_MIN_SWITCH_RECORDS", "3"))
	switchWindow, _ := strconv.Atoi(getEnv("INSIGHT_SWITCH_WINDOW", "50"))
	searchTopK, _ := strconv.Atoi(getEnv("SEARCH_TOP_K", "10"))
	searchThreshold, _ := strconv.ParseFloat(getEnv("SEARCH_THRESHOLD", "0.35"), 64)
	insecureSkipVerify := getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true"

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "finbuddy"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "change-me-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			Model:              getEnv("GIGACHAT_MODEL", "GigaChat"),
			InsecureSkipVerify: insecureSkipVerify,
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		OCR: OCRConfig{
			APIKey:   getEnv("OCR_API_KEY", ""),
			Endpoint: getEnv("OCR_ENDPOINT", "https://api.ocr.space/parse/image"),
			Language: getEnv("OCR_LANGUAGE", "eng"),
			Engine:   getEnv("OCR_ENGINE", "2"),
			Timeout:  time.Duration(ocrTimeout) * time.Second,
		},
		Storage: StorageConfig{
			Bucket:       getEnv("STORAGE_BUCKET", "finbuddy-receipts"),
			SignedURLTTL: time.Duration(signedURLTTL) * time.Second,
		},
		Insight: InsightConfig{
			DefaultBudget:     defaultBudget,
			MinSummaryRecords: minSummary,
			MinSwitchRecords:  minSwitch,
			SwitchWindow:      switchWindow,
		},
		Search: SearchConfig{
			TopK:      searchTopK,
			Threshold: searchThreshold,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
