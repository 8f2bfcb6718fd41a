package config

import (
	"fmt"
	"strings"
	"time"

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

const (
	DefaultEndpoint    = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultTelegramURL = "https://api.telegram.org"
	DefaultInterval    = "10m"
	DefaultTimeout     = 15 * time.Second
)

type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Telegram  TelegramConfig  `json:"telegram"`
	Poll      PollConfig      `json:"poll"`
	Messages  MessagesConfig  `json:"messages"`
	Logging   LoggingConfig   `json:"logging"`
}

// PracticumConfig points at the homework review API.
//
// Token is normally supplied via PRACTICUM_TOKEN rather than the file.
type PracticumConfig struct {
	Token    string `json:"token,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	// Timeout is a Go duration string (e.g. "15s"). Bounds the whole request.
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"`
	// ChatID is either a numeric chat id or a "@channel" username.
	ChatID     string `json:"chat_id,omitempty"`
	APIURL     string `json:"api_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// PollConfig controls the polling cadence.
//
// Interval accepts a Go duration ("10m"), HH:MM ("00:10") or a cron spec
// ("@every 10m", "*/10 * * * *"). FromDate is the initial from_date in unix
// seconds; 0 means "now".
type PollConfig struct {
	Interval string `json:"interval,omitempty"`
	FromDate int64  `json:"from_date,omitempty"`
}

// MessagesConfig overrides user-facing texts. Verdicts are keyed by status.
type MessagesConfig struct {
	StatusChanged string            `json:"status_changed,omitempty"`
	ErrorReport   string            `json:"error_report,omitempty"`
	Verdicts      map[string]string `json:"verdicts,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Default returns the config used when no file is present.
// Parse decodes on top of it, so omitted keys keep these values.
func Default() *Config {
	verdicts := make(map[string]string, len(homework.DefaultVerdicts))
	for st, v := range homework.DefaultVerdicts {
		verdicts[string(st)] = v
	}
	return &Config{
		Practicum: PracticumConfig{Endpoint: DefaultEndpoint, Timeout: DefaultTimeout.String()},
		Telegram:  TelegramConfig{APIURL: DefaultTelegramURL, Timeout: DefaultTimeout.String(), RatePerSec: 1},
		Poll:      PollConfig{Interval: DefaultInterval},
		Messages: MessagesConfig{
			StatusChanged: homework.DefaultStatusChangedTemplate,
			ErrorReport:   homework.DefaultErrorReportTemplate,
			Verdicts:      verdicts,
		},
		Logging: LoggingConfig{Level: "INFO", Console: true},
	}
}

func (c *Config) Credentials() Credentials {
	return Credentials{
		PracticumToken: strings.TrimSpace(c.Practicum.Token),
		TelegramToken:  strings.TrimSpace(c.Telegram.Token),
		TelegramChatID: strings.TrimSpace(c.Telegram.ChatID),
	}
}

// MessageSet converts the messages section into the domain form.
func (c *Config) MessageSet() (homework.Messages, error) {
	m := homework.Messages{
		StatusChangedTemplate: c.Messages.StatusChanged,
		ErrorReportTemplate:   c.Messages.ErrorReport,
		Verdicts:              make(map[homework.Status]string, len(c.Messages.Verdicts)),
	}
	for st, v := range c.Messages.Verdicts {
		m.Verdicts[homework.Status(strings.TrimSpace(st))] = v
	}
	if err := m.Check(); err != nil {
		return homework.Messages{}, fmt.Errorf("messages: %w", err)
	}
	return m, nil
}

func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

// Validate checks every section that can be checked without network access.
// Credentials are checked separately by CheckCredentials.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Practicum.Endpoint) == "" {
		return fmt.Errorf("practicum.endpoint is required")
	}
	if _, err := ParseDurationOrDefault("practicum.timeout", c.Practicum.Timeout, DefaultTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationOrDefault("telegram.timeout", c.Telegram.Timeout, DefaultTimeout); err != nil {
		return err
	}
	if c.Poll.FromDate < 0 {
		return fmt.Errorf("poll.from_date must be >= 0")
	}
	if _, err := ParseSchedule(c.Poll.Interval); err != nil {
		return fmt.Errorf("poll.interval: %w", err)
	}
	if _, err := c.MessageSet(); err != nil {
		return err
	}
	return nil
}
