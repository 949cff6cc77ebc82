package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolscope/internal/config"
	"poolscope/internal/derive"
	"poolscope/internal/engine"
	"poolscope/internal/storage/postgres"
	"poolscope/internal/store"
)

func runDerive(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDerive(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	registry, err := engine.ForNetwork(cfg.Network)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink   derive.Sink
		cursor derive.CursorStore
	)
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		sink = pg
		cursor = postgres.NewDeriveCursorStore(pg, cfg.CursorName)
	} else {
		cursor = derive.NewFileCursorStore(cfg.CursorFile)
	}

	eng := engine.New(store.New(), registry, logger)

	runner := derive.NewRunner(derive.Config{
		Input:     cfg.Input,
		BatchSize: cfg.BatchSize,
	}, eng, cursor, sink, logger)

	logger.Info("derive start",
		zap.String("network", cfg.Network),
		zap.String("in", cfg.Input),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Int("batch_size", cfg.BatchSize),
	)

	return runner.Run(ctx)
}
