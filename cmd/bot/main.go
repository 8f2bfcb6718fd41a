package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hwbot/internal/app"
	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

func main() {
	var (
		cfgPath string
		envFile string
		once    bool
	)
	flag.StringVar(&cfgPath, "config", "", "path to config yaml/json (default "+app.DefaultConfigPath+", optional)")
	flag.StringVar(&envFile, "env", ".env", "dotenv file loaded before the config; empty to skip")
	flag.BoolVar(&once, "once", false, "poll once and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, EnvFile: envFile})
	if err != nil {
		if errors.Is(err, homework.ErrPrecondition) {
			logx.NewConsole("INFO").Critical("startup aborted", logx.Err(err))
		} else {
			fmt.Fprintln(os.Stderr, "fatal:", err)
		}
		os.Exit(1)
	}
	defer a.Close()

	if once {
		// a failed tick is already logged and reported to the chat
		_ = a.RunOnce(ctx)
		return
	}
	if err := a.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		_ = a.Close()
		os.Exit(1)
	}
}
