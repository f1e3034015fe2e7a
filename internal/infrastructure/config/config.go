// internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/pkg/utils"

	"github.com/joho/godotenv"
)

// Storage backends for claims
const (
	BackendMemory    = "memory"
	BackendPostgrest = "postgrest"
	BackendPostgres  = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppName    string
	AppVersion string
	AppEnv     string
	GitCommit  string
	LogLevel   string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Claim storage
	StorageBackendName string
	SupabaseURL        string
	SupabaseKey        string
	PostgresDSN        string
	HTTPClientTimeout  time.Duration

	// MongoDB
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// Local files
	NotificationSettingsFile string
	UploadsDir               string

	// Gmail
	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
	MailFrom          string
	MailTo            []string
	NotifyOn          map[entity.EventKey][]string

	// Google Drive
	GoogleServiceAccountJSON string
	DriveParentFolderID      string
	DriveFolderPrefix        string
	DriveShareAnyone         bool

	// Workflow
	TcarTimezone      string
	TcarMaxAttempts   int
	NotifierQueueSize int
	NotifierTimeout   time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		AppName:    getEnv("APP_NAME", "tcar-claims-service"),
		AppVersion: getEnv("APP_VERSION", "1.0.0"),
		AppEnv:     getEnv("APP_ENV", "development"),
		GitCommit:  getEnv("GIT_COMMIT", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		StorageBackendName: strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:        getEnv("SUPABASE_SERVICE_ROLE_KEY", getEnv("SUPABASE_ANON_KEY", "")),
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		HTTPClientTimeout:  time.Duration(getEnvAsInt("HTTP_CLIENT_TIMEOUT", 10)) * time.Second,

		MongoURI:      getEnv("MONGODB_DSN", ""),
		MongoDB:       getEnv("MONGO_DB", "tcar"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		NotificationSettingsFile: getEnv("NOTIFICATION_SETTINGS_FILE", "data/notification-settings.json"),
		UploadsDir:               getEnv("UPLOADS_DIR", "uploads"),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		MailFrom:          getEnv("MAIL_FROM", ""),
		MailTo:            getEnvAsList("MAIL_TO"),

		DriveParentFolderID: getEnv("GOOGLE_DRIVE_PARENT_FOLDER_ID", ""),
		DriveFolderPrefix:   getEnv("GOOGLE_DRIVE_FOLDER_NAME_PREFIX", "TCAR-"),
		DriveShareAnyone:    getEnvAsBool("GOOGLE_DRIVE_SHARE_ANYONE_WITH_LINK", false),

		TcarTimezone:      getEnv("TCAR_TIMEZONE", "Asia/Tokyo"),
		TcarMaxAttempts:   getEnvAsInt("TCAR_MAX_ATTEMPTS", 3),
		NotifierQueueSize: getEnvAsInt("NOTIFIER_QUEUE_SIZE", 100),
		NotifierTimeout:   time.Duration(getEnvAsInt("NOTIFIER_TIMEOUT", 30)) * time.Second,
	}

	config.NotifyOn = map[entity.EventKey][]string{
		entity.EventClaimCreated:            getEnvAsListOr("NOTIFY_ON_CLAIM_CREATED", config.MailTo),
		entity.EventClaimAccepted:           getEnvAsListOr("NOTIFY_ON_CLAIM_ACCEPTED", config.MailTo),
		entity.EventCountermeasureSubmitted: getEnvAsListOr("NOTIFY_ON_COUNTERMEASURE", config.MailTo),
		entity.EventTechnicalApproved:       getEnvAsListOr("NOTIFY_ON_TECHNICAL_APPROVED", config.MailTo),
	}

	saJSON, err := serviceAccountJSON()
	if err != nil {
		return nil, err
	}
	config.GoogleServiceAccountJSON = saJSON

	if _, err := config.StorageBackend(); err != nil {
		return nil, err
	}
	return config, nil
}

// StorageBackend resolves which claim backend to use. An explicit
// STORAGE_BACKEND wins; otherwise Supabase credentials select postgrest, a
// Postgres DSN selects postgres, and memory is the fallback.
func (c *Config) StorageBackend() (string, error) {
	switch c.StorageBackendName {
	case BackendMemory:
		return BackendMemory, nil
	case BackendPostgrest:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return "", fmt.Errorf("postgrest backend requires SUPABASE_URL and a Supabase key")
		}
		return BackendPostgrest, nil
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return "", fmt.Errorf("postgres backend requires POSTGRES_DSN")
		}
		return BackendPostgres, nil
	case "", "auto":
	default:
		return "", fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackendName)
	}

	if c.SupabaseURL != "" && c.SupabaseKey != "" {
		return BackendPostgrest, nil
	}
	if c.PostgresDSN != "" {
		return BackendPostgres, nil
	}
	return BackendMemory, nil
}

// GmailConfigured reports whether mail can be sent through the Gmail API
func (c *Config) GmailConfigured() bool {
	return c.GmailClientID != "" && c.GmailClientSecret != "" && c.GmailRefreshToken != ""
}

// DriveConfigured reports whether uploads go to Google Drive
func (c *Config) DriveConfigured() bool {
	return c.GoogleServiceAccountJSON != ""
}

func serviceAccountJSON() (string, error) {
	if inline := getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""); inline != "" {
		return inline, nil
	}
	path := getEnv("GOOGLE_SERVICE_ACCOUNT_JSON_PATH", "")
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read service account file: %w", err)
	}
	return string(data), nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	return utils.SplitList(getEnv(key, ""))
}

func getEnvAsListOr(key string, defaultValue []string) []string {
	if list := getEnvAsList(key); len(list) > 0 {
		return list
	}
	return defaultValue
}
