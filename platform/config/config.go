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

// JWTConfig provides JWT validation settings for the owner-facing routes.
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

// RedisConfig provides settings for the rate limiter and the asynq queue.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq-backed follow-up scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetRescoreCron() string
	GetFollowUpCron() string
	GetCleanupCron() string
}

// SMTPConfig provides settings for the outbound email channel.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetEmailMaxAttempts() int
	IsEmailEnabled() bool
}

// WhatsAppConfig provides settings for the messaging channel gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// SMSConfig provides settings for the SMS channel gateway.
type SMSConfig interface {
	GetSMSURL() string
	GetSMSAPIKey() string
	GetSMSPartnerID() string
	GetSMSShortcode() string
}

// NotificationConfig provides settings for the notification orchestrator.
type NotificationConfig interface {
	GetAppBaseURL() string
	GetChannelTimeout() time.Duration
	GetNotificationRetention() time.Duration
}

// FollowUpConfig provides settings for automatic follow-ups.
type FollowUpConfig interface {
	GetDefaultFollowUpInterval() time.Duration
	GetPendingRetention() time.Duration
}

// IngestionConfig provides settings for the public ingestion endpoints.
type IngestionConfig interface {
	GetWebhookAPIKey() string
	GetIngestRatePerMinute() int
	GetSideEffectConcurrency() int
	GetSideEffectTimeout() time.Duration
}

// MailboxConfig provides settings for the optional inbound IMAP poller.
type MailboxConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPFolder() string
	GetIMAPPollInterval() time.Duration
	IsMailboxEnabled() bool
}

// ArchiveConfig provides settings for the optional raw inbound-email archive.
type ArchiveConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOBucketInboundEmail() string
	IsArchiveEnabled() bool
}

// SentryConfig provides settings for error reporting.
type SentryConfig interface {
	GetSentryDSN() string
	GetEnv() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	AppBaseURL              string
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	RescoreCron             string
	FollowUpCron            string
	CleanupCron             string
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	EmailMaxAttempts        int
	WhatsAppURL             string
	WhatsAppKey             string
	WhatsAppDeviceID        string
	SMSURL                  string
	SMSAPIKey               string
	SMSPartnerID            string
	SMSShortcode            string
	ChannelTimeout          time.Duration
	NotificationRetention   time.Duration
	DefaultFollowUpInterval time.Duration
	PendingRetention        time.Duration
	WebhookAPIKey           string
	IngestRatePerMinute     int
	SideEffectConcurrency   int
	SideEffectTimeout       time.Duration
	IMAPHost                string
	IMAPPort                int
	IMAPUsername            string
	IMAPPassword            string
	IMAPFolder              string
	IMAPPollInterval        time.Duration
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinIOBucketInboundEmail string
	SentryDSN               string
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetEnv() string { return c.Env }

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetRescoreCron() string     { return c.RescoreCron }
func (c *Config) GetFollowUpCron() string    { return c.FollowUpCron }
func (c *Config) GetCleanupCron() string     { return c.CleanupCron }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailMaxAttempts() int    { return c.EmailMaxAttempts }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// SMSConfig implementation
func (c *Config) GetSMSURL() string       { return c.SMSURL }
func (c *Config) GetSMSAPIKey() string    { return c.SMSAPIKey }
func (c *Config) GetSMSPartnerID() string { return c.SMSPartnerID }
func (c *Config) GetSMSShortcode() string { return c.SMSShortcode }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string                   { return c.AppBaseURL }
func (c *Config) GetChannelTimeout() time.Duration        { return c.ChannelTimeout }
func (c *Config) GetNotificationRetention() time.Duration { return c.NotificationRetention }

// FollowUpConfig implementation
func (c *Config) GetDefaultFollowUpInterval() time.Duration { return c.DefaultFollowUpInterval }
func (c *Config) GetPendingRetention() time.Duration        { return c.PendingRetention }

// IngestionConfig implementation
func (c *Config) GetWebhookAPIKey() string              { return c.WebhookAPIKey }
func (c *Config) GetIngestRatePerMinute() int           { return c.IngestRatePerMinute }
func (c *Config) GetSideEffectConcurrency() int         { return c.SideEffectConcurrency }
func (c *Config) GetSideEffectTimeout() time.Duration   { return c.SideEffectTimeout }

// MailboxConfig implementation
func (c *Config) GetIMAPHost() string                 { return c.IMAPHost }
func (c *Config) GetIMAPPort() int                    { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string             { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string             { return c.IMAPPassword }
func (c *Config) GetIMAPFolder() string               { return c.IMAPFolder }
func (c *Config) GetIMAPPollInterval() time.Duration  { return c.IMAPPollInterval }
func (c *Config) IsMailboxEnabled() bool              { return c.IMAPHost != "" && c.IMAPUsername != "" }

// ArchiveConfig implementation
func (c *Config) GetMinIOEndpoint() string           { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string          { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string          { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool               { return c.MinIOUseSSL }
func (c *Config) GetMinIOBucketInboundEmail() string { return c.MinIOBucketInboundEmail }
func (c *Config) IsArchiveEnabled() bool             { return c.MinIOEndpoint != "" }

// SentryConfig implementation
func (c *Config) GetSentryDSN() string { return c.SentryDSN }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:              strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "leads"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "4"), 4),
		RescoreCron:             getEnv("RESCORE_CRON", "0 * * * *"),
		FollowUpCron:            getEnv("FOLLOW_UP_CRON", "0 */6 * * *"),
		CleanupCron:             getEnv("CLEANUP_CRON", "30 3 * * *"),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "Listing Leads"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailMaxAttempts:        mustInt(getEnv("EMAIL_MAX_ATTEMPTS", "3"), 3),
		WhatsAppURL:             getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:             getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:        getEnv("WHATSAPP_DEVICE_ID", ""),
		SMSURL:                  getEnv("SMS_URL", ""),
		SMSAPIKey:               getEnv("SMS_API_KEY", ""),
		SMSPartnerID:            getEnv("SMS_PARTNER_ID", ""),
		SMSShortcode:            getEnv("SMS_SHORTCODE", "LEADS"),
		ChannelTimeout:          mustDuration(getEnv("CHANNEL_TIMEOUT", "10s"), 10*time.Second),
		NotificationRetention:   mustDuration(getEnv("NOTIFICATION_RETENTION", "720h"), 30*24*time.Hour),
		DefaultFollowUpInterval: mustDuration(getEnv("FOLLOW_UP_INTERVAL", "48h"), 48*time.Hour),
		PendingRetention:        mustDuration(getEnv("PENDING_RETENTION", "720h"), 30*24*time.Hour),
		WebhookAPIKey:           getEnv("WEBHOOK_API_KEY", ""),
		IngestRatePerMinute:     mustInt(getEnv("INGEST_RATE_PER_MINUTE", "60"), 60),
		SideEffectConcurrency:   mustInt(getEnv("SIDE_EFFECT_CONCURRENCY", "16"), 16),
		SideEffectTimeout:       mustDuration(getEnv("SIDE_EFFECT_TIMEOUT", "75s"), 75*time.Second),
		IMAPHost:                getEnv("IMAP_HOST", ""),
		IMAPPort:                mustInt(getEnv("IMAP_PORT", "993"), 993),
		IMAPUsername:            getEnv("IMAP_USERNAME", ""),
		IMAPPassword:            getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:              getEnv("IMAP_FOLDER", "INBOX"),
		IMAPPollInterval:        mustDuration(getEnv("IMAP_POLL_INTERVAL", "2m"), 2*time.Minute),
		MinIOEndpoint:           getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOBucketInboundEmail: getEnv("MINIO_BUCKET_INBOUND_EMAIL", "inbound-email"),
		SentryDSN:               getEnv("SENTRY_DSN", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST is set")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.EmailMaxAttempts < 1 {
		cfg.EmailMaxAttempts = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mustInt(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || result <= 0 {
		return fallback
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
