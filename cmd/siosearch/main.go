// Command siosearch searches the ALMA archive for spectral windows covering
// SiO transitions toward the MAPS disks and writes CSV and LaTeX reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"siosearch/internal/config"
	"siosearch/internal/logging"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

// app carries flag values and the streams shared by every subcommand.
type app struct {
	stdout, stderr io.Writer

	configPath string
	verbose    bool
	logFormat  string

	cfg *config.Config
	log *zap.Logger
}

func cli(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "siosearch",
		Short: "Search the ALMA archive for SiO-covering spectral windows",
		Long: `siosearch queries the ALMA archive around each configured target, keeps the
spectral windows whose frequency range contains an SiO transition, and writes
per-SPW and per-MOUS tables as CSV and LaTeX. Matching MOUS products can
optionally be downloaded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "siosearch.yaml", "Path to the YAML configuration")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log encoding: console or json")

	root.AddCommand(a.runCmd(), a.runsCmd(), a.transitionsCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	log, err := logging.New(cfg.Logging, a.verbose, a.stderr)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}
