package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinJWTSecretLength is the minimum signing key size in bytes (HS256)
const MinJWTSecretLength = 32

// Config holds all configuration for the application
type Config struct {
	AppMode    string
	Port       string
	Database   DatabaseConfig
	JWT        JWTConfig
	Cookie     CookieConfig
	OTP        OTPConfig
	Redis      RedisConfig
	SMTP       SMTPConfig
	SchoolYear SchoolYearConfig
	Audit      AuditConfig
	Bootstrap  BootstrapConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret          string
	Issuer          string
	AccessTokenTTL  time.Duration
	PendingTokenTTL time.Duration
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// OTPConfig holds one-time code and request throttling settings
type OTPConfig struct {
	Length          int
	CodeTTL         time.Duration
	CodeCapacity    int
	RequestWindow   time.Duration
	RequestCapacity int
	MaxRequests     int
}

// RedisConfig holds the optional Redis connection; an empty Addr keeps OTP state in memory
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SMTPConfig holds outbound mail configuration
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SchoolYearConfig holds the school calendar settings
type SchoolYearConfig struct {
	StartMonth time.Month
}

// AuditConfig holds auth event retention settings
type AuditConfig struct {
	RetentionDays int
	PurgeCron     string
}

// BootstrapConfig holds the first admin account seeded on an empty database
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	config := &Config{
		AppMode:    appMode,
		Port:       getEnv("PORT", "8080"),
		Database:   loadDatabaseConfig(appMode),
		JWT:        loadJWTConfig(appMode),
		Cookie:     loadCookieConfig(appMode),
		OTP:        loadOTPConfig(),
		Redis:      loadRedisConfig(),
		SMTP:       loadSMTPConfig(),
		SchoolYear: loadSchoolYearConfig(),
		Audit: AuditConfig{
			RetentionDays: getEnvInt("AUDIT_RETENTION_DAYS", 90),
			PurgeCron:     getEnv("AUDIT_PURGE_CRON", "0 3 * * *"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
			AdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// Validate rejects configurations the server must not start with
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < MinJWTSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes (got %d)", MinJWTSecretLength, len(c.JWT.Secret))
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.PendingTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10 (got %d)", c.OTP.Length)
	}
	if c.OTP.CodeTTL <= 0 || c.OTP.RequestWindow <= 0 {
		return fmt.Errorf("OTP TTLs must be positive")
	}
	if c.OTP.CodeCapacity <= 0 || c.OTP.RequestCapacity <= 0 {
		return fmt.Errorf("OTP cache capacities must be positive")
	}
	if c.OTP.MaxRequests <= 0 {
		return fmt.Errorf("OTP_MAX_REQUESTS must be positive")
	}
	if c.Database.Driver != "mysql" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql' or 'postgres')", c.Database.Driver)
	}
	return nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))
	defaultPort := "3306"
	if driver == "postgres" {
		defaultPort = "5432"
	}

	return DatabaseConfig{
		Driver:   driver,
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", defaultPort),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "classroom"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", ""),
		Issuer:          getEnv("JWT_ISSUER", "classroom-api"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		PendingTokenTTL: getEnvDuration("PENDING_TOKEN_TTL", 10*time.Minute),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := modePrefix(mode)

	secure, _ := strconv.ParseBool(getEnv(prefix+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

func loadOTPConfig() OTPConfig {
	return OTPConfig{
		Length:          getEnvInt("OTP_LENGTH", 6),
		CodeTTL:         getEnvDuration("OTP_TTL", 5*time.Minute),
		CodeCapacity:    getEnvInt("OTP_CACHE_SIZE", 10000),
		RequestWindow:   getEnvDuration("OTP_REQUEST_WINDOW", 15*time.Minute),
		RequestCapacity: getEnvInt("OTP_REQUEST_CACHE_SIZE", 10000),
		MaxRequests:     getEnvInt("OTP_MAX_REQUESTS", 5),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func loadSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		Port:     getEnv("SMTP_PORT", "587"),
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "noreply@classroom.local"),
		FromName: getEnv("SMTP_FROM_NAME", "Classroom"),
	}
}

func loadSchoolYearConfig() SchoolYearConfig {
	month := getEnvInt("SCHOOL_YEAR_START_MONTH", int(time.June))
	if month < 1 || month > 12 {
		month = int(time.June)
	}
	return SchoolYearConfig{StartMonth: time.Month(month)}
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts a Go duration string or KEY_SECONDS
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	if value := os.Getenv(key + "_SECONDS"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:3000"
	}
	return origins
}
