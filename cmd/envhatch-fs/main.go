// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Envhatch-fs exposes declared environment entries and secret
// placeholders to a sandboxed guest as read-only FUSE directories.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/envhatch/envhatch/lib/clock"
	"github.com/envhatch/envhatch/lib/config"
	"github.com/envhatch/envhatch/lib/declaration"
	guestfuse "github.com/envhatch/envhatch/lib/guestfs/fuse"
	"github.com/envhatch/envhatch/lib/provider"
	"github.com/envhatch/envhatch/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var placeholdersStdin bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "path to config file (required)")
	flag.BoolVar(&placeholdersStdin, "placeholders-stdin", false, "read a CBOR placeholder payload from stdin instead of minting session tokens")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("envhatch-fs %s\n", version.Info())
		return nil
	}

	if configPath == "" {
		return fmt.Errorf("-config is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loaded, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("starting envhatch-fs", "version", version.Info())

	var servers []*fuse.Server
	defer func() {
		for _, server := range servers {
			if err := server.Unmount(); err != nil {
				logger.Error("unmount failed", "error", err)
			}
		}
	}()

	// Secret names feed the environment provider's exclusion set, so
	// the secrets side is built first even when only its name list is
	// needed.
	var secretNames []string
	if loaded.Secrets != nil {
		reportDroppedLines(logger, loaded.Secrets.Declarations)
		secrets, err := provider.NewSecrets(provider.SecretsOptions{
			DeclarationPath: loaded.Secrets.Declarations,
		})
		if err != nil {
			return fmt.Errorf("creating secrets provider: %w", err)
		}

		assignments, err := placeholderAssignments(secrets, placeholdersStdin)
		if err != nil {
			return err
		}
		secrets.SetPlaceholders(assignments)
		for name := range assignments {
			secretNames = append(secretNames, name)
		}

		server, err := guestfuse.Mount(guestfuse.Options{
			Mountpoint: loaded.Secrets.Mountpoint,
			Source:     secrets,
			Clock:      clock.Real(),
			FsName:     loaded.Mount.FsName,
			AllowOther: loaded.Mount.AllowOther,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("mounting secrets directory: %w", err)
		}
		servers = append(servers, server)
		logger.Info("secrets directory mounted",
			"mountpoint", loaded.Secrets.Mountpoint,
			"secrets", len(assignments),
		)
	}

	if loaded.Environment != nil {
		reportDroppedLines(logger, loaded.Environment.Declarations)
		environment, err := provider.NewEnvironment(provider.EnvironmentOptions{
			DeclarationPath: loaded.Environment.Declarations,
		})
		if err != nil {
			return fmt.Errorf("creating environment provider: %w", err)
		}

		conflicts := environment.SetSecretNames(secretNames)
		for _, name := range conflicts {
			logger.Warn("declaration shadowed by a secret with the same name", "name", name)
		}

		server, err := guestfuse.Mount(guestfuse.Options{
			Mountpoint: loaded.Environment.Mountpoint,
			Source:     environment,
			Clock:      clock.Real(),
			FsName:     loaded.Mount.FsName,
			AllowOther: loaded.Mount.AllowOther,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("mounting environment directory: %w", err)
		}
		servers = append(servers, server)
		logger.Info("environment directory mounted",
			"mountpoint", loaded.Environment.Mountpoint,
		)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	received := <-stop
	logger.Info("shutting down", "signal", received.String())
	return nil
}

// reportDroppedLines surfaces malformed declaration lines at startup.
// The guest never sees a parse error, so this log is the only signal
// an operator gets that a line in the file is being ignored.
func reportDroppedLines(logger *slog.Logger, path string) {
	if dropped := declaration.DroppedLines(path); dropped > 0 {
		logger.Warn("malformed declaration lines ignored",
			"path", path,
			"lines", dropped,
		)
	}
}

// placeholderAssignments obtains the session's name→token map: from a
// CBOR payload on stdin when the orchestrator allocates tokens, or by
// minting fresh session tokens for every currently declared secret.
func placeholderAssignments(secrets *provider.Secrets, fromStdin bool) (map[string]string, error) {
	if fromStdin {
		assignments, err := provider.ReadPlaceholderPayload(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading placeholders from stdin: %w", err)
		}
		return assignments, nil
	}

	issuer, err := provider.NewTokenIssuer()
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}
	return issuer.Assign(secrets.ListSecrets()), nil
}
