package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fndlabs/foundation/internal/pkg/env"
)

const (
	DefaultReconcileInterval = 5 * time.Minute
	DefaultReconcileBatch    = 10
	DefaultStripeAPIVersion  = "2025-02-24.acacia"
	DefaultQStashURL         = "https://qstash.upstash.io"
)

// Database holds MySQL connectivity.
type Database struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// DSN builds the MySQL connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Supabase holds identity-provider connectivity and secrets.
type Supabase struct {
	URL           string
	SecretKey     string
	WebhookSecret string
	JWTSecret     string
}

// Stripe holds payment-processor secrets.
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	APIVersion    string
}

// QStash holds queue-service connectivity and signing keys.
type QStash struct {
	URL               string
	Token             string
	CurrentSigningKey string
	NextSigningKey    string
	WorkerBaseURL     string
}

// Reconcile holds the reconciliation loop tuning knobs.
type Reconcile struct {
	Interval  time.Duration
	BatchSize int
}

// S3Archive holds the optional webhook payload archive target.
type S3Archive struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Config is built once at process start and handed to each component
// constructor. Components never read the environment themselves.
type Config struct {
	AppHost         string
	AppPort         string
	SuperAdminEmail string

	Database  Database
	Supabase  Supabase
	Stripe    Stripe
	QStash    QStash
	Reconcile Reconcile
	S3Archive S3Archive
}

// Load assembles the configuration from the loaded environment.
func Load() *Config {
	return &Config{
		AppHost:         env.GetEnv("APP_HOST", "localhost"),
		AppPort:         env.GetEnv("APP_PORT", "4000"),
		SuperAdminEmail: strings.TrimSpace(env.GetEnv("SUPER_ADMIN_EMAIL", "")),
		Database: Database{
			User:     env.GetEnv("DB_USER", ""),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			Name:     env.GetEnv("DB_NAME", ""),
		},
		Supabase: Supabase{
			URL:           strings.TrimRight(env.GetEnv("SUPABASE_URL", ""), "/"),
			SecretKey:     env.GetEnv("SUPABASE_SECRET_KEY", ""),
			WebhookSecret: env.GetEnv("SUPABASE_WEBHOOK_SECRET", ""),
			JWTSecret:     env.GetEnv("SUPABASE_JWT_SECRET", ""),
		},
		Stripe: Stripe{
			SecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			APIVersion:    env.GetEnv("STRIPE_API_VERSION", DefaultStripeAPIVersion),
		},
		QStash: QStash{
			URL:               strings.TrimRight(env.GetEnv("QSTASH_URL", DefaultQStashURL), "/"),
			Token:             env.GetEnv("QSTASH_TOKEN", ""),
			CurrentSigningKey: env.GetEnv("QSTASH_CURRENT_SIGNING_KEY", ""),
			NextSigningKey:    env.GetEnv("QSTASH_NEXT_SIGNING_KEY", ""),
			WorkerBaseURL:     strings.TrimRight(env.GetEnv("WORKER_BASE_URL", ""), "/"),
		},
		Reconcile: Reconcile{
			Interval:  minutesOrDefault(env.GetEnv("RECONCILE_INTERVAL_MINUTES", ""), DefaultReconcileInterval),
			BatchSize: intOrDefault(env.GetEnv("RECONCILE_BATCH_SIZE", ""), DefaultReconcileBatch),
		},
		S3Archive: S3Archive{
			Bucket:    env.GetEnv("S3_ARCHIVE_BUCKET", ""),
			Region:    env.GetEnv("S3_REGION", "us-east-1"),
			Endpoint:  env.GetEnv("S3_ENDPOINT", ""),
			AccessKey: env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		},
	}
}

// IsSuperAdminEmail reports whether the given email matches the configured
// super admin address. Comparison is case-insensitive; an empty
// configuration matches nothing.
func (c *Config) IsSuperAdminEmail(email string) bool {
	admin := strings.ToLower(strings.TrimSpace(c.SuperAdminEmail))
	if admin == "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(email)) == admin
}

func minutesOrDefault(raw string, def time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Minute
}

func intOrDefault(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
