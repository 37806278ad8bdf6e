package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dontdude/scanprint/internal/agent"
	"github.com/dontdude/scanprint/internal/config"
	"github.com/dontdude/scanprint/internal/dedup"
	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/keystroke"
	"github.com/dontdude/scanprint/internal/label"
	"github.com/dontdude/scanprint/internal/observability"
	"github.com/dontdude/scanprint/internal/platform/audit"
	"github.com/dontdude/scanprint/internal/platform/history"
	"github.com/dontdude/scanprint/internal/platform/keyboard"
	"github.com/dontdude/scanprint/internal/platform/printer"
	"github.com/dontdude/scanprint/internal/platform/relay"
)

func main() {
	configPath := flag.String("config", "scanprint.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	// 1. Load configuration and initialize logger
	cfg, err := config.Resolve(*configPath, *envFile)
	if err != nil {
		observability.GetLogger().WithError(err).Fatal("Invalid configuration")
	}
	observability.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	log := observability.GetLogger()

	if err := run(cfg); err != nil && !errors.Is(err, keyboard.ErrInterrupted) {
		log.WithError(err).Fatal("Agent failed")
	}
}

func run(cfg *config.Config) error {
	log := observability.GetLogger()

	// 2. Label composition and print dispatch
	enc, err := label.NewBarcodeEncoder(cfg.Label.Symbology)
	if err != nil {
		return err
	}
	composer := label.NewComposer(enc, label.Options{
		WidthMM:    cfg.Label.WidthMM,
		HeightMM:   cfg.Label.HeightMM,
		DefaultDPI: cfg.Label.DefaultDPI,
		FillRatio:  cfg.Label.FillRatio,
	})

	var prn domain.Printer
	switch cfg.Printer.Driver {
	case "tspl":
		prn = printer.NewTSPLPrinter(printer.TSPLConfig{
			Address:    cfg.Printer.Address,
			DPI:        cfg.Printer.DPI,
			WidthMM:    cfg.Label.WidthMM,
			HeightMM:   cfg.Label.HeightMM,
			GapMM:      cfg.Printer.GapMM,
			ReportPage: cfg.Printer.ReportPage,
			Timeout:    cfg.Printer.Timeout,
		})
	default:
		prn = printer.NewDryRun(cfg.Printer.DPI)
	}

	// 3. Persistence: label images and the audit log
	artifacts, err := history.NewStore(cfg.Agent.HistoryDir)
	if err != nil {
		return err
	}
	auditLog, err := audit.Open(cfg.Agent.AuditDBPath)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	deps := agent.Deps{
		MaxPayloadLength: cfg.Server.MaxPayloadLength,
		Dedup:            dedup.New(cfg.Dedup.Window, cfg.Dedup.Sweep),
		Composer:         composer,
		Printer:          prn,
		Artifacts:        artifacts,
		Audit:            auditLog,
		Status:           func(msg string) { fmt.Fprintf(os.Stderr, "%s\r\n", msg) },
	}

	// 4. Input sources
	client := relay.NewClient(cfg.Agent.ServerURL, cfg.Agent.RequestTimeout)
	sub, err := relay.NewSubscriber(cfg.Agent.ServerURL, cfg.Agent.RequestTimeout)
	if err != nil {
		return err
	}

	var keys agent.KeySource
	if cfg.Agent.KeyboardEnabled {
		restore, err := keyboard.MakeRaw(os.Stdin)
		if err != nil {
			log.WithError(err).Warn("Keyboard capture disabled")
		} else {
			defer restore()
			keys = keyboard.NewSource(os.Stdin, keystroke.NewClassifier(keystroke.Config{
				Threshold: cfg.Classifier.Threshold,
				MinLength: cfg.Classifier.MinLength,
				IdleReset: cfg.Classifier.IdleReset,
			}))
		}
	}

	a, err := agent.New(agent.Options{
		Mode:           cfg.Agent.Mode,
		PollInterval:   cfg.Agent.PollInterval,
		ReconnectDelay: cfg.Agent.ReconnectDelay,
	}, deps, client, sub, keys)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"server":  cfg.Agent.ServerURL,
		"printer": cfg.Printer.Driver,
		"history": artifacts.Dir(),
	}).Info("Print agent ready")

	// 5. Run until interrupted
	return a.Run(ctx)
}
