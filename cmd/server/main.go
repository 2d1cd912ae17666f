package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickyhof/DuckDesk"
	"github.com/nickyhof/DuckDesk/config"
	"github.com/nickyhof/DuckDesk/logger"
	"github.com/nickyhof/DuckDesk/op"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	overrides := config.Default()

	root := &cobra.Command{
		Use:           "duckdesk-server",
		Short:         "Serve DuckDesk over HTTP and gRPC",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath, overrides)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&overrides.StorageDir, "storage-dir", overrides.StorageDir, "Directory holding <name>.db files")
	flags.StringVar(&overrides.UploadDir, "upload-dir", overrides.UploadDir, "Directory for spooled uploads")
	flags.StringVar(&overrides.DefaultDatabase, "default-database", overrides.DefaultDatabase, "Database used when a request names none")
	flags.StringVar(&overrides.HTTPAddr, "http", overrides.HTTPAddr, "HTTP listen address")
	flags.StringVar(&overrides.GRPCAddr, "grpc", overrides.GRPCAddr, "gRPC listen address (empty to disable)")
	flags.StringSliceVar(&overrides.ImportHosts, "import-hosts", nil, "Hosts and S3 buckets /api/import may fetch from (\"*\" for any; empty disables)")
	flags.Int64Var(&overrides.MaxUploadBytes, "max-upload-bytes", overrides.MaxUploadBytes, "Upload size limit")
	flags.StringVar(&overrides.Log.Level, "log-level", overrides.Log.Level, "debug, info, warn or error")
	flags.StringVar(&overrides.Log.Format, "log-format", overrides.Log.Format, "text or json")

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath, overrides)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return root
}

// loadConfig layers changed flags over the file and environment settings.
func loadConfig(cmd *cobra.Command, path string, overrides config.Config) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("storage-dir") {
		cfg.StorageDir = overrides.StorageDir
	}
	if flags.Changed("upload-dir") {
		cfg.UploadDir = overrides.UploadDir
	}
	if flags.Changed("default-database") {
		cfg.DefaultDatabase = overrides.DefaultDatabase
	}
	if flags.Changed("http") {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if flags.Changed("grpc") {
		cfg.GRPCAddr = overrides.GRPCAddr
	}
	if flags.Changed("import-hosts") {
		cfg.ImportHosts = overrides.ImportHosts
	}
	if flags.Changed("max-upload-bytes") {
		cfg.MaxUploadBytes = overrides.MaxUploadBytes
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = overrides.Log.Level
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = overrides.Log.Format
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config) error {
	log := logger.Init(cfg.Log)

	instance, err := DuckDesk.Open(DuckDesk.Options{
		StorageDir:      cfg.StorageDir,
		UploadDir:       cfg.UploadDir,
		DefaultDatabase: cfg.DefaultDatabase,
		RowCountWorkers: cfg.RowCountWorkers,
		ImportHosts:     cfg.ImportHosts,
		S3: op.S3Config{
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer instance.Close()

	maxAge, err := cfg.MaxAge()
	if err != nil {
		return err
	}
	sweeper, err := NewSweeper(instance, cfg.SweepSchedule, maxAge, log)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	server := NewServer(instance, cfg.MaxUploadBytes, log)
	if err := server.Start(cfg.HTTPAddr); err != nil {
		return err
	}

	if cfg.GRPCAddr != "" {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
		gs := newGRPCServer(instance)
		defer gs.GracefulStop()
		log.Info("gRPC server listening", "addr", listener.Addr().String())
		go func() {
			if err := gs.Serve(listener); err != nil {
				log.Error("gRPC server failed", "error", err)
			}
		}()
	}

	log.Info("DuckDesk server started", "version", Version, "storage", instance.Storage.Root())

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
