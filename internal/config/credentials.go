package config

import (
	logx "hwbot/pkg/logx"
)

// Logical credential names. They double as the primary environment variable names.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Credentials are read once at startup and never change afterwards.
type Credentials struct {
	PracticumToken string
	TelegramToken  string
	TelegramChatID string
}

// Missing returns the logical names of empty credentials, in a stable order.
func (c Credentials) Missing() []string {
	var out []string
	if c.PracticumToken == "" {
		out = append(out, EnvPracticumToken)
	}
	if c.TelegramToken == "" {
		out = append(out, EnvTelegramToken)
	}
	if c.TelegramChatID == "" {
		out = append(out, EnvTelegramChatID)
	}
	return out
}

// CheckCredentials reports whether all credentials are present.
// Every missing one is logged at critical level by name; values are never logged.
func CheckCredentials(c Credentials, log logx.Logger) bool {
	missing := c.Missing()
	for _, name := range missing {
		log.Critical("required credential is missing", logx.String("name", name))
	}
	return len(missing) == 0
}
