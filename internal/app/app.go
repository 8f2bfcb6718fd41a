package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/homework"
	"hwbot/internal/notifier"
	"hwbot/internal/poller"
	"hwbot/internal/practicum"
	"hwbot/internal/runtime/supervisor"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
	"hwbot/pkg/systemd"
)

const DefaultConfigPath = "./config.yaml"

type Options struct {
	ConfigPath string
	// ConfigOptional lets a missing config file fall back to defaults + environment.
	ConfigOptional bool
	// EnvFile is loaded into the process environment before the config; empty skips it.
	EnvFile string
	// LookupEnv replaces os.LookupEnv for the config overlay.
	LookupEnv func(string) (string, bool)
	// Service receives lifecycle notifications; nil uses systemd.
	Service poller.ServiceNotifier
}

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service

	notif *notifier.Service
	loop  *poller.Loop
	sup   *supervisor.Supervisor

	initial poller.State
}

// New loads configuration, checks credentials and wires every component.
// A missing credential yields a KindPrecondition error before any network call.
func New(opts Options) (*App, error) {
	if opts.EnvFile != "" {
		if err := config.LoadEnv(opts.EnvFile); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(opts.ConfigPath) == "" {
		opts.ConfigPath = DefaultConfigPath
		opts.ConfigOptional = true
	}

	var mopts []config.ManagerOption
	if opts.ConfigOptional {
		mopts = append(mopts, config.WithOptionalFile())
	}
	if opts.LookupEnv != nil {
		mopts = append(mopts, config.WithLookupEnv(opts.LookupEnv))
	}
	cfgm := config.NewManager(opts.ConfigPath, mopts...)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogConfig())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	log = log.With(logx.String("comp", "app"))

	creds := cfg.Credentials()
	if !config.CheckCredentials(creds, log) {
		_ = logSvc.Close()
		return nil, &homework.Error{
			Kind:  homework.KindPrecondition,
			Op:    "startup",
			Value: strings.Join(creds.Missing(), ", "),
		}
	}

	a, err := build(cfg, creds, log, opts.Service)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.cfgm = cfgm
	a.logs = logSvc
	return a, nil
}

func build(cfg *config.Config, creds config.Credentials, log logx.Logger, svc poller.ServiceNotifier) (*App, error) {
	practicumTimeout, err := config.ParseDurationOrDefault("practicum.timeout", cfg.Practicum.Timeout, config.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	telegramTimeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, config.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	sched, err := config.ParseSchedule(cfg.Poll.Interval)
	if err != nil {
		return nil, fmt.Errorf("poll.interval: %w", err)
	}
	msgs, err := cfg.MessageSet()
	if err != nil {
		return nil, err
	}

	client, err := practicum.New(practicum.Config{
		Endpoint: cfg.Practicum.Endpoint,
		Token:    creds.PracticumToken,
		Timeout:  practicumTimeout,
	}, log.With(logx.String("comp", "practicum")))
	if err != nil {
		return nil, err
	}

	ad, err := telegram.New(telegram.Config{
		Token:   creds.TelegramToken,
		APIURL:  cfg.Telegram.APIURL,
		Timeout: telegramTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	notif := notifier.New(notifier.Config{
		Chat:       creds.TelegramChatID,
		RatePerSec: cfg.Telegram.RatePerSec,
		Timeout:    telegramTimeout,
	}, ad, log.With(logx.String("comp", "notifier")))

	if svc == nil {
		svc = systemd.Notifier{}
	}
	loop, err := poller.New(poller.Options{
		Fetcher:  client,
		Sender:   notif,
		Schedule: sched.Schedule,
		Messages: msgs,
		Logger:   log.With(logx.String("comp", "poller")),
		Service:  svc,
	})
	if err != nil {
		return nil, err
	}

	log.Info("configured",
		logx.String("endpoint", cfg.Practicum.Endpoint),
		logx.String("schedule", sched.Cron),
		logx.Duration("every", sched.Every),
		logx.Int64("from_date", cfg.Poll.FromDate),
	)

	return &App{
		cfg:     cfg,
		log:     log,
		notif:   notif,
		loop:    loop,
		initial: poller.State{LastTimestamp: cfg.Poll.FromDate},
	}, nil
}

// RunOnce performs a single tick and returns its error, if any.
func (a *App) RunOnce(ctx context.Context) error {
	st := a.initial
	if st.LastTimestamp == 0 {
		st.LastTimestamp = time.Now().Unix()
	}
	_, res := a.loop.Tick(ctx, st)
	return res.Err
}

// Run polls until ctx is cancelled while watching the config file for live changes.
// If any task dies, everything is stopped and its error is returned so the
// service manager can restart the process.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(coalesce(sub, newCfg))
			}
		}
	})

	if a.cfgm.Path() != "" {
		a.sup.GoRestart("config.watch", time.Second, 30*time.Second, func(c context.Context) error {
			err := a.cfgm.Watch(c)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	a.sup.Go("poller", func(c context.Context) error {
		_, err := a.loop.Run(c, a.initial)
		return err
	})

	a.log.Info("started")
	<-a.sup.Context().Done()
	return a.stop()
}

func (a *App) stop() error {
	a.log.Info("stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.sup.Stop(ctx)
	for _, t := range a.sup.Snapshot() {
		a.log.Debug("task stopped",
			logx.String("name", t.Name),
			logx.Int("runs", t.Runs),
			logx.Duration("took", t.Duration),
		)
	}
	st := a.notif.Stats()
	a.log.Info("stopped", logx.Int64("sent", int64(st.Sent)), logx.Int64("failed", int64(st.Failed)))
	return err
}

// Close releases the log file, if any.
func (a *App) Close() error {
	if a.logs == nil {
		return nil
	}
	return a.logs.Close()
}

func (a *App) applyConfig(newCfg *config.Config) {
	applied, restart, attrs := config.SummarizeConfigChange(a.cfg, newCfg)
	if len(applied) == 0 && len(restart) == 0 {
		a.log.Debug("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{
		logx.String("applied", strings.Join(applied, ",")),
		logx.String("restart_required", strings.Join(restart, ",")),
	}, attrs...)
	a.log.Info("config reloaded", fields...)

	for _, s := range applied {
		switch s {
		case "logging":
			a.logs.Apply(newCfg.LogConfig())
		case "messages":
			msgs, err := newCfg.MessageSet()
			if err == nil {
				err = a.loop.SetMessages(msgs)
			}
			if err != nil {
				a.log.Warn("invalid messages config; keeping previous", logx.Err(err))
			}
		}
	}
	if len(restart) > 0 {
		a.log.Warn("some config changes need a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	a.cfg = newCfg
}

// coalesce drains queued configs and keeps the newest.
func coalesce(ch <-chan *config.Config, cfg *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-ch:
			if !ok {
				return cfg
			}
			if newer != nil {
				cfg = newer
			}
		default:
			return cfg
		}
	}
}
