package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvLogLevel overrides logging.level.
const EnvLogLevel = "HWBOT_LOG_LEVEL"

// legacyEnv maps the variable names of earlier deployments to the current ones.
var legacyEnv = map[string]string{
	EnvPracticumToken: "TOKEN",
	EnvTelegramToken:  "TELEG_TOKEN",
	EnvTelegramChatID: "TELEG_CHAT_ID",
}

// LoadEnv loads a dotenv file into the process environment.
// Variables that are already set win; a missing file is not an error.
func LoadEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overlays environment variables on cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
		if legacy, ok := legacyEnv[name]; ok {
			if v, ok := lookup(legacy); ok && strings.TrimSpace(v) != "" {
				return v, true
			}
		}
		return "", false
	}

	if v, ok := get(EnvPracticumToken); ok {
		cfg.Practicum.Token = v
	}
	if v, ok := get(EnvTelegramToken); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get(EnvTelegramChatID); ok {
		cfg.Telegram.ChatID = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
}
