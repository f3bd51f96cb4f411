package main

import (
	gocontext "context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"glance/internal/app"
	"glance/internal/config"
	"glance/internal/logging"
	"glance/internal/ui"
)

var (
	version   = "0.1.0"
	cfgFile   string
	model     string
	workspace string
	logLevel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "glance [workspace]",
		Short: "AI-assisted file explorer",
		Long: `Glance watches a workspace directory, keeps an always-fresh index of
its files, and answers questions about the files you select, streaming
model responses into the terminal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runApp,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/glance/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model to use")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace directory (default is the current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("glance version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Version = version

	if model != "" {
		cfg.Model.Name = model
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Logging.File != "" {
		logging.EnableFileLogging(cfg.Logging.File, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
		defer logging.Close()
	}

	root := workspace
	if len(args) == 1 {
		root = args[0]
	}
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("workspace inaccessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace is not a directory: %s", root)
	}

	application, err := app.New(cfg, root)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Close()

	ctx, cancel := gocontext.WithCancel(gocontext.Background())
	defer cancel()

	go func() {
		if err := application.Run(ctx); err != nil {
			logging.Error("core loop exited", "error", err)
		}
	}()

	program := tea.NewProgram(ui.New(application), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ui error: %w", err)
	}
	return nil
}
