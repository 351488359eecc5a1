// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetManagerEmail() string
	GetAppBaseURL() string
	GetDispatchRatePerSecond() float64
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetEscalationPassInterval() time.Duration
	GetConsolidationPassInterval() time.Duration
	GetResumeHeldPassInterval() time.Duration
}

// CalendarConfig provides settings for the business calendar.
type CalendarConfig interface {
	GetCalendarFile() string
	GetBusinessWindowStartHour() int
	GetBusinessWindowEndHour() int
	GetObservanceWindowEndHour() int
	GetWorkingDays() []time.Weekday
}

// FollowUpConfig provides settings for the follow-up engine.
type FollowUpConfig interface {
	GetDefaultContactIntervalDays() int
	GetEscalationPassConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	MigrationsDir   string
	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	AppBaseURL       string
	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	ManagerEmail     string

	DispatchRatePerSecond float64

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	EscalationPassInterval    time.Duration
	ConsolidationPassInterval time.Duration
	ResumeHeldPassInterval    time.Duration

	CalendarFile            string
	BusinessWindowStartHour int
	BusinessWindowEndHour   int
	ObservanceWindowEndHour int
	WorkingDays             []time.Weekday

	DefaultContactIntervalDays int
	EscalationPassConcurrency  int
}

// Load reads configuration from the environment, loading a .env file first
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MigrationsDir:   getEnv("MIGRATIONS_DIR", "migrations"),
		JWTAccessSecret: os.Getenv("JWT_ACCESS_SECRET"),

		CORSAllowAll:   getBoolEnv("CORS_ALLOW_ALL", false),
		CORSOrigins:    getListEnv("CORS_ORIGINS"),
		CORSAllowCreds: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),

		AppBaseURL:       getEnv("APP_BASE_URL", "http://localhost:3000"),
		EmailEnabled:     getBoolEnv("EMAIL_ENABLED", false),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getIntEnv("SMTP_PORT", 587),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Reminder"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@localhost"),
		ManagerEmail:     os.Getenv("MANAGER_EMAIL"),

		DispatchRatePerSecond: getFloatEnv("DISPATCH_RATE_PER_SECOND", 5),

		RedisURL:         os.Getenv("REDIS_URL"),
		RedisTLSInsecure: getBoolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getIntEnv("ASYNQ_CONCURRENCY", 10),

		EscalationPassInterval:    getDurationEnv("ESCALATION_PASS_INTERVAL", time.Hour),
		ConsolidationPassInterval: getDurationEnv("CONSOLIDATION_PASS_INTERVAL", 6*time.Hour),
		ResumeHeldPassInterval:    getDurationEnv("RESUME_HELD_PASS_INTERVAL", 30*time.Minute),

		CalendarFile:            getEnv("CALENDAR_FILE", "calendar.yaml"),
		BusinessWindowStartHour: getIntEnv("BUSINESS_WINDOW_START_HOUR", 9),
		BusinessWindowEndHour:   getIntEnv("BUSINESS_WINDOW_END_HOUR", 18),
		ObservanceWindowEndHour: getIntEnv("OBSERVANCE_WINDOW_END_HOUR", 15),
		WorkingDays:             parseWorkingDays(getEnv("WORKING_DAYS", "sun,mon,tue,wed,thu")),

		DefaultContactIntervalDays: getIntEnv("DEFAULT_CONTACT_INTERVAL_DAYS", 7),
		EscalationPassConcurrency:  getIntEnv("ESCALATION_PASS_CONCURRENCY", 8),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetEmailEnabled() bool             { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string               { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                  { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string           { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string           { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string          { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string       { return c.EmailFromAddress }
func (c *Config) GetManagerEmail() string           { return c.ManagerEmail }
func (c *Config) GetAppBaseURL() string             { return c.AppBaseURL }
func (c *Config) GetDispatchRatePerSecond() float64 { return c.DispatchRatePerSecond }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetEscalationPassInterval() time.Duration    { return c.EscalationPassInterval }
func (c *Config) GetConsolidationPassInterval() time.Duration { return c.ConsolidationPassInterval }
func (c *Config) GetResumeHeldPassInterval() time.Duration    { return c.ResumeHeldPassInterval }

func (c *Config) GetCalendarFile() string         { return c.CalendarFile }
func (c *Config) GetBusinessWindowStartHour() int { return c.BusinessWindowStartHour }
func (c *Config) GetBusinessWindowEndHour() int   { return c.BusinessWindowEndHour }
func (c *Config) GetObservanceWindowEndHour() int { return c.ObservanceWindowEndHour }
func (c *Config) GetWorkingDays() []time.Weekday  { return c.WorkingDays }

func (c *Config) GetDefaultContactIntervalDays() int { return c.DefaultContactIntervalDays }
func (c *Config) GetEscalationPassConcurrency() int  { return c.EscalationPassConcurrency }

// =============================================================================
// Env helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

func parseWorkingDays(raw string) []time.Weekday {
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		if day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(part))]; ok {
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		days = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
	}
	return days
}
