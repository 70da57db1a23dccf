package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Auth     AuthConfig
	Billing  BillingConfig
	Ai       AIConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	SessionIdleTimeout time.Duration
	ChangeTopic        string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type AuthConfig struct {
	JwtSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	// Where the identity session posts the provisioning call after sign-up.
	ProvisioningURL string
}

type BillingConfig struct {
	MidtransServerKey    string
	MidtransIsProduction bool
	ManageURL            string
	FreeCreditsLimit     int
}

type AIConfig struct {
	LLMProvider        string // "ollama", "huggingface" or "stub"
	LLMModel           string
	OllamaBaseURL      string
	HuggingFaceBaseURL string
	HuggingFaceAPIKey  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	baseURL := getEnv("APP_BASE_URL", "http://localhost:3000")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            baseURL,
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			ChangeTopic:        getEnv("CONVERSATION_CHANGE_TOPIC", "CONVERSATION_CHANGED"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Finsight"),
		},
		Auth: AuthConfig{
			JwtSecret:          getEnv("JWT_SECRET", "default_secret"),
			AccessTokenTTL:     getEnvAsDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
			RefreshTokenTTL:    getEnvAsDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", baseURL+"/auth/google/callback"),
			ProvisioningURL:    getEnv("PROVISIONING_URL", baseURL),
		},
		Billing: BillingConfig{
			MidtransServerKey:    getEnv("MIDTRANS_SERVER_KEY", ""),
			MidtransIsProduction: getEnv("MIDTRANS_IS_PRODUCTION", "false") == "true",
			ManageURL:            getEnv("BILLING_MANAGE_URL", "https://dashboard.midtrans.com"),
			FreeCreditsLimit:     getEnvAsInt("FREE_CREDITS_LIMIT", 10),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "stub"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
			HuggingFaceAPIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
