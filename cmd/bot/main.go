package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"welcomebot/internal/app"
	"welcomebot/internal/config"
	"welcomebot/internal/transport"
	"welcomebot/pkg/logx"
)

func main() {
	os.Exit(run())
}

func run() int {
	var cfgPath, envPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.StringVar(&envPath, "env", ".env", "path to dotenv file")
	flag.Parse()

	boot := logx.NewConsole("info").With(logx.String("comp", "main"))
	boot.Info("starting welcome bot")

	loaded, err := config.LoadDotEnv(envPath)
	switch {
	case err != nil:
		boot.Warn("dotenv file unreadable; using process environment", logx.String("path", envPath), logx.Err(err))
	case loaded:
		boot.Info("environment loaded", logx.String("path", envPath))
	default:
		boot.Debug("no dotenv file", logx.String("path", envPath))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if errors.Is(err, transport.ErrConfigurationMissing) {
		// Already logged; exit without connecting.
		return 0
	}
	if err != nil {
		boot.Error("bot failed to initialize", logx.Err(err))
		return 1
	}

	if err := a.Start(ctx); err != nil {
		if errors.Is(err, transport.ErrAuthenticationFailed) {
			boot.Error("invalid bot token! please check your "+a.TokenEnvName(), logx.Err(err))
		} else {
			boot.Error("bot failed to start", logx.Err(err))
		}
		stopApp(a, app.StopFatalError)
		return 1
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
			boot.Error("bot stopped on fatal error", logx.Err(a.Err()))
		}
	}
	stopApp(a, reason)
	if reason == app.StopFatalError {
		return 1
	}
	return 0
}

func stopApp(a *app.App, reason app.StopReason) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Stop(ctx, reason)
}
