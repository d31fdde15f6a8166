package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Storage   StorageConfig   `json:"storage"`
	GCS       GCSConfig       `json:"gcs"`
	Gotenberg GotenbergConfig `json:"gotenberg"`
	Render    RenderConfig    `json:"render"`
	Auth      AuthConfig      `json:"auth"`
	Redis     RedisConfig     `json:"redis"`
	Campaign  CampaignConfig  `json:"campaign"`
	Mail      MailConfig      `json:"mail"`
	AI        AIConfig        `json:"ai"`
	LogLevel  string          `json:"log_level"`
}

type StorageConfig struct {
	Type      string `json:"type"`       // "gcs" or "local"
	LocalPath string `json:"local_path"` // Path for local storage (e.g., "./storage")
	LocalURL  string `json:"local_url"`  // Base URL for local storage (e.g., "http://localhost:8081/files")
	SecretKey string `json:"secret_key"` // Secret key for signing local URLs
}

type ServerConfig struct {
	Port        string   `json:"port"`
	Environment string   `json:"environment"`
	BaseURL     string   `json:"base_url"`
	CORSOrigins []string `json:"cors_origins"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"` // "postgres" or "mysql"
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
}

type GCSConfig struct {
	BucketName      string `json:"bucket_name"`
	ProjectID       string `json:"project_id"`
	CredentialsPath string `json:"credentials_path"`
}

type GotenbergConfig struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout"`
}

type RenderConfig struct {
	PDFBackend string `json:"pdf_backend"` // "local" or "gotenberg"
}

type AuthConfig struct {
	Provider       string   `json:"provider"` // "jwt" or "google"
	JWTSecret      string   `json:"-"`
	GoogleClientID string   `json:"google_client_id"`
	AdminEmails    []string `json:"admin_emails"`
	CronSecret     string   `json:"-"`
}

type RedisConfig struct {
	Addr     string        `json:"addr"` // empty disables redis
	Password string        `json:"-"`
	DB       int           `json:"db"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

type CampaignConfig struct {
	Enabled           bool   `json:"enabled"`
	UnsubscribeSecret string `json:"-"`
	PublicBaseURL     string `json:"public_base_url"`
	CronSchedule      string `json:"cron_schedule"`
}

type MailConfig struct {
	Host     string `json:"host"` // empty selects the logging mailer
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	From     string `json:"from"`
}

type AIConfig struct {
	GeminiAPIKey string `json:"-"`
	Model        string `json:"model"`
	Endpoint     string `json:"endpoint"`
}

func (d *DatabaseConfig) DSN() string {
	if d.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	}
	// Cloud SQL Unix socket support
	if len(d.Host) > 0 && d.Host[0] == '/' {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			d.Host, d.User, d.Password, d.DBName)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.DBName)
}

// IsAdminEmail reports whether email is on the admin allow-list.
func (a AuthConfig) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range a.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

// findProjectRoot finds the project root by looking for go.mod file
func findProjectRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func Load() (*Config, error) {
	envPaths := []string{}
	if projectRoot := findProjectRoot(); projectRoot != "" {
		envPaths = append(envPaths, filepath.Join(projectRoot, ".env"))
	}
	envPaths = append(envPaths, "../../.env", ".env")

	loaded := false
	for _, envPath := range envPaths {
		if err := godotenv.Load(envPath); err == nil {
			loaded = true
			break
		}
	}
	if !loaded {
		fmt.Printf("Failed to load .env file from any location, using system environment variables\n")
	}

	driver := getEnv("DB_DRIVER", "postgres")
	defaultPort := "5432"
	if driver == "mysql" {
		defaultPort = "3306"
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cacheTTL, err := time.ParseDuration(getEnv("REDIS_CACHE_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_CACHE_TTL: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8081"),
			Environment: getEnv("ENVIRONMENT", "development"),
			BaseURL:     getEnv("BASE_URL", ""),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		},
		Database: DatabaseConfig{
			Driver:   driver,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", defaultPort),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "receiptmaker"),
		},
		Storage: StorageConfig{
			Type:      getEnv("STORAGE_TYPE", "local"),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./storage"),
			LocalURL:  getEnv("STORAGE_LOCAL_URL", "http://localhost:8081/files"),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		},
		GCS: GCSConfig{
			BucketName:      getEnv("GCS_BUCKET_NAME", ""),
			ProjectID:       getEnv("GOOGLE_CLOUD_PROJECT", ""),
			CredentialsPath: getEnv("GCS_CREDENTIALS_PATH", ""),
		},
		Gotenberg: GotenbergConfig{
			URL:     getEnv("GOTENBERG_URL", "http://localhost:3000"),
			Timeout: getEnv("GOTENBERG_TIMEOUT", "30s"),
		},
		Render: RenderConfig{
			PDFBackend: getEnv("PDF_BACKEND", "local"),
		},
		Auth: AuthConfig{
			Provider:       getEnv("AUTH_PROVIDER", "jwt"),
			JWTSecret:      getEnv("JWT_SECRET", ""),
			GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),
			AdminEmails:    normaliseEmails(splitList(getEnv("ADMIN_EMAILS", ""))),
			CronSecret:     getEnv("CRON_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			CacheTTL: cacheTTL,
		},
		Campaign: CampaignConfig{
			Enabled:           getEnv("CAMPAIGN_ENABLED", "false") == "true",
			UnsubscribeSecret: getEnv("UNSUBSCRIBE_SECRET", ""),
			PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
			CronSchedule:      getEnv("CAMPAIGN_CRON_SCHEDULE", ""),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     smtpPort,
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "Receipt Maker <no-reply@localhost>"),
		},
		AI: AIConfig{
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			Model:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Endpoint:     getEnv("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normaliseEmails(emails []string) []string {
	for i, e := range emails {
		emails[i] = strings.ToLower(e)
	}
	return emails
}
