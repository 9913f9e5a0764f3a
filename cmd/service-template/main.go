// Package main is the service-template entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kbukum/service-template/app"
	"github.com/kbukum/service-template/config"
	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/version"
)

func main() {
	if err := run(); err != nil {
		logger.Critical("Service exited with error", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  string
		envFile     string
		showVersion bool
	)
	flags := pflag.NewFlagSet(app.ServiceName, pflag.ContinueOnError)
	flags.StringVarP(&configFile, "config", "c", "", "path to config.yml (searched for when empty)")
	flags.StringVar(&envFile, "env-file", "", "path to .env (searched for when empty)")
	flags.BoolVarP(&showVersion, "version", "v", false, "print the version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println(version.Get().String())
		return nil
	}

	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	cfg, err := app.LoadConfig(opts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	svc.Logger.Info("Service built", logger.Fields("version", version.Get().String()))
	return svc.Run(ctx)
}
