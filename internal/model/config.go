package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingSetting is returned by Validate when a required setting is
// absent.
var ErrMissingSetting = errors.New("missing required setting")

// HTTPConfig holds the settings of the HTTP gateway.
type HTTPConfig struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	// RateLimitPerMin caps requests per client IP per minute. Zero disables it.
	RateLimitPerMin int `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min"`
}

// IMAPConfig holds the settings of the command mailbox poller.
type IMAPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	// TLS selects implicit TLS; otherwise STARTTLS is used.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// Enabled controls whether the poller runs at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Folder is the mailbox that command emails are filed into.
	Folder string `mapstructure:"folder" yaml:"folder"`

	// CommandSubject is the subject (case-insensitive) a command email must carry.
	CommandSubject string `mapstructure:"command_subject" yaml:"command_subject"`

	// PollIntervalSec is how often (in seconds) the folder is searched.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// ReconnectDelaySec is the pause after a failed session.
	ReconnectDelaySec int `mapstructure:"reconnect_delay_sec" yaml:"reconnect_delay_sec"`
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	TLS  bool   `mapstructure:"tls" yaml:"tls"`

	// SendIntervalMS is the pause between two recipients of one send.
	SendIntervalMS int `mapstructure:"send_interval_ms" yaml:"send_interval_ms"`
}

// MailConfig selects the delivery provider and the sender identity.
type MailConfig struct {
	// Provider is one of "smtp", "resend" or "log".
	Provider string `mapstructure:"provider" yaml:"provider"`

	// From is the mailbox address used to log in and to send (EMAIL_FROM).
	From string `mapstructure:"from" yaml:"from"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`

	// File, when set, receives log lines in append mode instead of stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// StoreConfig holds the audit database location.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// HandlersConfig holds the settings of the built-in commands.
type HandlersConfig struct {
	// NotifyRecipients receive the health reports. Defaults to mail.from.
	NotifyRecipients []string `mapstructure:"notify_recipients" yaml:"notify_recipients"`

	// FromName is the display name used on reports.
	FromName string `mapstructure:"from_name" yaml:"from_name"`

	// TimeZone is the IANA zone used for report timestamps.
	TimeZone string `mapstructure:"time_zone" yaml:"time_zone"`

	// DeviceHost is the address pinged by device_health.
	DeviceHost string `mapstructure:"device_host" yaml:"device_host"`

	// RelayURL is the internal endpoint fetched by check_campus_ip.
	RelayURL string `mapstructure:"relay_url" yaml:"relay_url"`

	// RelayTimeoutSec bounds the relay fetch.
	RelayTimeoutSec int `mapstructure:"relay_timeout_sec" yaml:"relay_timeout_sec"`

	// RelayDefaultSubject and RelayDefaultFromName fill gaps in the relay payload.
	RelayDefaultSubject  string `mapstructure:"relay_default_subject" yaml:"relay_default_subject"`
	RelayDefaultFromName string `mapstructure:"relay_default_from_name" yaml:"relay_default_from_name"`
}

// AppConfig is the top-level gateway configuration.
type AppConfig struct {
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	IMAP     IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	SMTP     SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Handlers HandlersConfig `mapstructure:"handlers" yaml:"handlers"`
}

// PollInterval returns the IMAP poll interval as a duration.
func (c IMAPConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// ReconnectDelay returns the pause after a failed IMAP session.
func (c IMAPConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySec) * time.Second
}

// SendInterval returns the pause between recipients.
func (c SMTPConfig) SendInterval() time.Duration {
	return time.Duration(c.SendIntervalMS) * time.Millisecond
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailgateway/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailgateway", "config.yaml")
}

// DefaultStorePath returns the default audit database location.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "gateway.db")
	}
	return filepath.Join(home, ".local", "share", "mailgateway", "gateway.db")
}

// defaults lists every key with its default value. Viper only resolves
// environment overrides for keys it knows about, so each key is listed.
func defaults() map[string]any {
	return map[string]any{
		"http.listen_addr":                 "0.0.0.0:8899",
		"http.rate_limit_per_min":          60,
		"imap.host":                        "imap.qq.com",
		"imap.port":                        "993",
		"imap.tls":                         true,
		"imap.enabled":                     true,
		"imap.folder":                      "command",
		"imap.command_subject":             "COMMAND",
		"imap.poll_interval_sec":           30,
		"imap.reconnect_delay_sec":         10,
		"smtp.host":                        "smtp.qq.com",
		"smtp.port":                        "587",
		"smtp.tls":                         false,
		"smtp.send_interval_ms":            1000,
		"mail.provider":                    "smtp",
		"mail.from":                        "",
		"log.level":                        "info",
		"log.format":                       "json",
		"log.file":                         "",
		"store.path":                       DefaultStorePath(),
		"handlers.notify_recipients":       []string{},
		"handlers.from_name":               "Email Service",
		"handlers.time_zone":               "Asia/Shanghai",
		"handlers.device_host":             "10.66.66.2",
		"handlers.relay_url":               "http://10.66.66.2:8081/",
		"handlers.relay_timeout_sec":       5,
		"handlers.relay_default_subject":   "默认主题",
		"handlers.relay_default_from_name": "系统通知",
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. A missing file yields the defaults. Environment variables
// prefixed with MAILGATEWAY_ override file values (imap.host becomes
// MAILGATEWAY_IMAP_HOST), and EMAIL_FROM sets mail.from.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("MAILGATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("mail.from", "MAILGATEWAY_MAIL_FROM", "EMAIL_FROM"); err != nil {
		return nil, fmt.Errorf("binding EMAIL_FROM: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if _, ok := err.(*os.PathError); !ok && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Handlers.NotifyRecipients) == 0 && cfg.Mail.From != "" {
		cfg.Handlers.NotifyRecipients = []string{cfg.Mail.From}
	}

	return cfg, nil
}

// Validate checks the settings the gateway cannot start without.
func (c *AppConfig) Validate() error {
	switch c.Mail.Provider {
	case "smtp", "resend", "log":
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}
	if strings.TrimSpace(c.Mail.From) == "" {
		return fmt.Errorf("%w: EMAIL_FROM (mail.from)", ErrMissingSetting)
	}
	if c.HTTP.ListenAddr == "" {
		return fmt.Errorf("%w: http.listen_addr", ErrMissingSetting)
	}
	if c.IMAP.Enabled && c.IMAP.PollIntervalSec <= 0 {
		return fmt.Errorf("imap.poll_interval_sec must be positive, got %d", c.IMAP.PollIntervalSec)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("http", cfg.HTTP)
	v.Set("imap", cfg.IMAP)
	v.Set("smtp", cfg.SMTP)
	v.Set("mail", cfg.Mail)
	v.Set("log", cfg.Log)
	v.Set("store", cfg.Store)
	v.Set("handlers", cfg.Handlers)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
