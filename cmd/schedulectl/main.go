package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trainschedule/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	apiURL    string
	tokenFile string
	timeout   time.Duration
	verbose   bool
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "schedulectl",
		Short:         "Manage stations and train schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apiURL := os.Getenv("SCHEDULECTL_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:5000"
	}
	cmd.PersistentFlags().StringVar(&g.apiURL, "api-url", apiURL, "Base URL of the schedule API")
	cmd.PersistentFlags().StringVar(&g.tokenFile, "token-file", defaultTokenFile(), "Where session tokens are kept")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", client.DefaultTimeout, "Per-request timeout")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log session activity to stderr")

	cmd.AddCommand(newLoginCommand(g))
	cmd.AddCommand(newRegisterCommand(g))
	cmd.AddCommand(newLogoutCommand(g))
	cmd.AddCommand(newWhoamiCommand(g))
	cmd.AddCommand(newStationsCommand(g))
	cmd.AddCommand(newSchedulesCommand(g))
	return cmd
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "schedulectl", "tokens.json")
}

func (g *globals) session(cmd *cobra.Command) (*client.SessionManager, error) {
	api, err := client.New(g.apiURL, client.WithTimeout(g.timeout))
	if err != nil {
		return nil, err
	}
	logger := zerolog.Nop()
	if g.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	}
	return client.NewSessionManager(api, g.tokenStore(), logger)
}

func (g *globals) tokenStore() *client.FileStore { return client.NewFileStore(g.tokenFile) }
