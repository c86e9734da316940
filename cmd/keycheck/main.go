// Command keycheck probes every configured provider with its API key and
// reports which credentials work, without starting the gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/credential"
	"github.com/promptdeck/prism/internal/fault"
	"github.com/promptdeck/prism/internal/provider"
)

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	envFile := flag.String("env", "", "optional .env file with provider API keys")
	timeout := flag.Duration("timeout", 15*time.Second, "probe timeout per provider")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	creds, err := credential.LoadFromEnv(loader.Providers().Providers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "credential load failed: %v\n", err)
		os.Exit(1)
	}

	registry, err := provider.BuildFromConfig(loader.Providers(), creds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "provider setup failed: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, name := range registry.Names() {
		client, _ := registry.Get(name)
		cred, _ := creds.Get(name)

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		_, probeErr := creds.Validate(ctx, name, client)
		cancel()

		if probeErr != nil {
			failed++
			fmt.Printf("FAIL  %-12s key=%s  (%s: %v)\n", name, cred.Redacted(), fault.Classify(probeErr), probeErr)
			continue
		}
		fmt.Printf("OK    %-12s key=%s\n", name, cred.Redacted())
	}

	if failed > 0 {
		os.Exit(1)
	}
}
