// Command echomind runs the EchoMind sync engine CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gen-mind/echo-mind/internal/adapters/driven/config/file"
	"github.com/gen-mind/echo-mind/internal/adapters/driven/storage/s3"
	"github.com/gen-mind/echo-mind/internal/adapters/driven/storage/sqlite"
	"github.com/gen-mind/echo-mind/internal/adapters/driving/cli"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/core/services"
	"github.com/gen-mind/echo-mind/internal/providers/gcalendar"
	"github.com/gen-mind/echo-mind/internal/providers/gcontacts"
	"github.com/gen-mind/echo-mind/internal/providers/gmail"
	"github.com/gen-mind/echo-mind/internal/providers/googledrive"
	"github.com/gen-mind/echo-mind/internal/providers/msgraph"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	connectors, err := file.NewConnectorStore(os.Getenv("ECHOMIND_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("loading connectors: %w", err)
	}

	store, err := sqlite.NewStore(os.Getenv("ECHOMIND_DATA_DIR"))
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	registry := services.NewProviderRegistry()
	registry.Register(googledrive.ProviderName, func() driven.Provider { return googledrive.New() })
	registry.Register(msgraph.ProviderName, func() driven.Provider { return msgraph.New() })
	registry.Register(gmail.ProviderName, func() driven.Provider { return gmail.New() })
	registry.Register(gcalendar.ProviderName, func() driven.Provider { return gcalendar.New() })
	registry.Register(gcontacts.ProviderName, func() driven.Provider { return gcontacts.New() })

	var storage driven.StorageClient
	bucket := os.Getenv("ECHOMIND_S3_BUCKET")
	if bucket != "" {
		client, err := s3.NewClient(context.Background(), s3.Options{
			Region:   os.Getenv("ECHOMIND_S3_REGION"),
			Endpoint: os.Getenv("ECHOMIND_S3_ENDPOINT"),
		})
		if err != nil {
			return fmt.Errorf("configuring storage: %w", err)
		}
		storage = client
	}

	orchestrator := services.NewSyncOrchestrator(
		connectors,
		store.CheckpointStore(),
		store.RunStore(),
		registry,
		storage,
		bucket,
	)

	return cli.Execute(cli.Deps{
		Version:          version,
		SyncOrchestrator: orchestrator,
		ConnectorStore:   connectors,
		CheckpointStore:  store.CheckpointStore(),
		RunStore:         store.RunStore(),
	})
}
