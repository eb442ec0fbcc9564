package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr   string `yaml:"addr"`    // API bind address
	LogDir string `yaml:"log_dir"` // rotating log directory

	// Storage: DatabaseURL wins, then SQLitePath, else in-memory.
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`

	PublicAPIKeys  []string `yaml:"public_api_keys"`
	AdminAPIKeys   []string `yaml:"admin_api_keys"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	PublicRPM   int `yaml:"public_rpm"`
	PublicBurst int `yaml:"public_burst"`
	AdminRPM    int `yaml:"admin_rpm"`
	AdminBurst  int `yaml:"admin_burst"`

	// Alert delivery.
	TelegramBotToken string   `yaml:"telegram_bot_token"`
	AdminChatIDs     []string `yaml:"admin_chat_ids"`
	SlackWebhook     string   `yaml:"slack_webhook"`

	// Users allowed to edit any resource.
	AdminUserIDs []string `yaml:"admin_user_ids"`

	// Mailer probe payload values.
	TestEmail           string `yaml:"test_email"`
	AdminEmail          string `yaml:"admin_email"`
	MailerCode          string `yaml:"mailer_code"`
	MailerVerifySiteURL string `yaml:"mailer_verify_site_url"`
	MailerAdminSiteURL  string `yaml:"mailer_admin_site_url"`

	NotifyRetryAttempts int           `yaml:"notify_retry_attempts"`
	NotifyRetryBackoff  time.Duration `yaml:"notify_retry_backoff"`
}

func defaults() Config {
	return Config{
		Addr:                "127.0.0.1:8080",
		LogDir:              "logs",
		PublicRPM:           120,
		PublicBurst:         60,
		AdminRPM:            60,
		AdminBurst:          30,
		TestEmail:           "test@example.com",
		AdminEmail:          "admin@example.com",
		MailerVerifySiteURL: "https://1xarea.com/tgvip/",
		MailerAdminSiteURL:  "https://bot-checker",
		NotifyRetryAttempts: 3,
		NotifyRetryBackoff:  time.Second,
	}
}

// Load builds the config from defaults, an optional YAML file, and the
// environment — later layers override earlier ones.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// FromEnv loads the config, honoring CONFIG_FILE when set.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func applyEnv(cfg *Config) {
	setString(&cfg.Addr, "ADDR")
	setString(&cfg.LogDir, "LOG_DIR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setList(&cfg.PublicAPIKeys, "PUBLIC_API_KEYS")
	setList(&cfg.AdminAPIKeys, "ADMIN_API_KEYS")
	setList(&cfg.AllowedOrigins, "ALLOWED_ORIGINS")
	setInt(&cfg.PublicRPM, "PUBLIC_RPM")
	setInt(&cfg.PublicBurst, "PUBLIC_BURST")
	setInt(&cfg.AdminRPM, "ADMIN_RPM")
	setInt(&cfg.AdminBurst, "ADMIN_BURST")
	setString(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setList(&cfg.AdminChatIDs, "ADMIN_CHAT_IDS")
	setString(&cfg.SlackWebhook, "SLACK_WEBHOOK")
	setList(&cfg.AdminUserIDs, "ADMIN_USER_IDS")
	setString(&cfg.TestEmail, "TEST_EMAIL")
	setString(&cfg.AdminEmail, "ADMIN_EMAIL")
	setString(&cfg.MailerCode, "MAILER_CODE")
	setString(&cfg.MailerVerifySiteURL, "MAILER_VERIFY_SITE_URL")
	setString(&cfg.MailerAdminSiteURL, "MAILER_ADMIN_SITE_URL")
	setInt(&cfg.NotifyRetryAttempts, "NOTIFY_RETRY_ATTEMPTS")
	if v := os.Getenv("NOTIFY_RETRY_BACKOFF_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			cfg.NotifyRetryBackoff = time.Duration(ms) * time.Millisecond
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
