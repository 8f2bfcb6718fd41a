package config

import (
	"reflect"
	"strings"

	logx "hwbot/pkg/logx"
)

// SummarizeConfigChange splits a reload into sections applied live and
// sections that only take effect after a restart. The returned fields are
// safe to log: tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) (applied, restart []string, attrs []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if oldCfg.Logging != newCfg.Logging {
		applied = append(applied, "logging")
		attrs = append(attrs,
			logx.String("logging.level", strings.TrimSpace(newCfg.Logging.Level)),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Messages, newCfg.Messages) {
		applied = append(applied, "messages")
		attrs = append(attrs, logx.Int("messages.verdicts", len(newCfg.Messages.Verdicts)))
	}

	if oldCfg.Practicum != newCfg.Practicum {
		restart = append(restart, "practicum")
	}
	if oldCfg.Telegram != newCfg.Telegram {
		restart = append(restart, "telegram")
	}
	if oldCfg.Poll != newCfg.Poll {
		restart = append(restart, "poll")
	}
	return applied, restart, attrs
}
