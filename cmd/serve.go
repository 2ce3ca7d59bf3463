// cmd/serve.go
package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/secondsight/rfengine/internal/service"
)

var (
	serveAddr             string
	serveNumStreams       int
	serveMemoryCapacityMB int64
	serveCleanupInterval  int
	servePreferGPU        bool
	serveAllowFallback    bool
	serveLogLevel         string
	serveConfigPath       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the processing service",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(serveLogLevel)

		cfg := service.DefaultConfig()
		if serveConfigPath != "" {
			loaded, err := service.LoadConfig(serveConfigPath)
			if err != nil {
				logrus.Fatalf("Failed to load config %s: %v", serveConfigPath, err)
			}
			cfg = loaded
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serveAddr
		}
		if cmd.Flags().Changed("streams") {
			cfg.NumStreams = serveNumStreams
		}
		if cmd.Flags().Changed("memory-mb") {
			cfg.MemoryCapacityMB = serveMemoryCapacityMB
		}
		if cmd.Flags().Changed("cleanup-interval") {
			cfg.CleanupIntervalS = serveCleanupInterval
		}
		if cmd.Flags().Changed("prefer-gpu") {
			cfg.PreferGPU = servePreferGPU
		}
		if cmd.Flags().Changed("allow-fallback") {
			cfg.AllowCPUFallback = serveAllowFallback
		}
		if cmd.Flags().Changed("log") {
			cfg.LogLevel = serveLogLevel
		}
		setLogLevel(cfg.LogLevel)

		srv, err := service.New(cfg)
		if err != nil {
			logrus.Fatalf("Failed to initialize processing service: %v", err)
		}
		if err := srv.Run(context.Background()); err != nil {
			logrus.Fatalf("Processing service exited with error: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:5555", "Bind address for the processing service")
	serveCmd.Flags().IntVar(&serveNumStreams, "streams", 4, "Number of accelerator streams in the pool")
	serveCmd.Flags().Int64Var(&serveMemoryCapacityMB, "memory-mb", 2048, "Memory-pool budget in megabytes")
	serveCmd.Flags().IntVar(&serveCleanupInterval, "cleanup-interval", 300, "Background cleanup interval in seconds")
	serveCmd.Flags().BoolVar(&servePreferGPU, "prefer-gpu", true, "Prefer an accelerator backend when available")
	serveCmd.Flags().BoolVar(&serveAllowFallback, "allow-fallback", true, "Allow falling back to the CPU backend")
	serveCmd.Flags().StringVar(&serveLogLevel, "log", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
}
