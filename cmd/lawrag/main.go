package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/lawrag/internal/logging"
	cfgPkg "github.com/xhad/lawrag/pkg/config"
)

var (
	configPath string
	verbose    bool

	cfg      *cfgPkg.Config
	logger   *slog.Logger
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "lawrag",
	Short: "Index Korean court precedents and answer questions about them",
	Long: `lawrag loads precedent records, splits them into chunks, embeds them
with a local Ollama model and stores them in a vector database. The serve
and chat commands answer questions using the closest precedents as context.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if errs := c.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "config: %s\n", e.Error())
		}
		return errors.New("invalid configuration")
	}

	level := c.Log.Level
	if verbose {
		level = "debug"
	}
	l, closer, err := logging.New(logging.Options{Level: level, File: c.Log.File, Console: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}

	cfg, logger, closeLog = c, l, closer
	slog.SetDefault(l)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func printf(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
