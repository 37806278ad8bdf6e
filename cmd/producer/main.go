package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dontdude/scanprint/internal/config"
	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
	"github.com/dontdude/scanprint/internal/platform/relay"
)

func main() {
	configPath := flag.String("config", "scanprint.yaml", "path to the YAML config file")
	server := flag.String("server", "", "relay broker URL (defaults to agent.server_url)")
	retries := flag.Int("retries", 3, "attempts per payload on transport errors")
	flag.Parse()

	// 1. Initialize logger and resolve the broker address
	cfg, err := config.Resolve(*configPath, ".env")
	if err != nil {
		observability.GetLogger().WithError(err).Fatal("Invalid configuration")
	}
	observability.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	log := observability.GetLogger()

	baseURL := cfg.Agent.ServerURL
	if *server != "" {
		baseURL = *server
	}
	client := relay.NewClient(baseURL, cfg.Agent.RequestTimeout)

	// 2. Payloads come from the arguments, or one per line on stdin
	payloads := flag.Args()
	if len(payloads) == 0 {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				payloads = append(payloads, line)
			}
		}
		if err := sc.Err(); err != nil {
			log.WithError(err).Fatal("Failed to read stdin")
		}
	}

	// 3. Submit jobs
	failed := 0
	for _, p := range payloads {
		entry := log.WithFields(logrus.Fields{"payload_len": len(p), "server": baseURL})
		if err := submit(client, p, *retries, cfg.Agent.ReconnectDelay); err != nil {
			entry.WithError(err).Error("Failed to submit job")
			failed++
			continue
		}
		entry.Info("Submitted job")
	}

	log.WithFields(logrus.Fields{"submitted": len(payloads) - failed, "failed": failed}).Info("Done")
	if failed > 0 {
		os.Exit(1)
	}
}

// submit retries transport failures with a fixed delay. Validation errors
// are final.
func submit(c *relay.Client, payload string, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < max(attempts, 1); i++ {
		if i > 0 {
			time.Sleep(delay)
		}
		err = c.Submit(context.Background(), payload)
		if err == nil || !domain.KindOf(err).Retryable() {
			return err
		}
	}
	return err
}
