package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"trainschedule/internal/client"
	"trainschedule/internal/domain"
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

func promptPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand(g *globals) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return signIn(cmd, g, email, (*client.SessionManager).Login)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCommand(g *globals) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return signIn(cmd, g, email, (*client.SessionManager).Register)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

type signInFunc func(m *client.SessionManager, ctx context.Context, email, password string) (*domain.Profile, error)

func signIn(cmd *cobra.Command, g *globals, email string, fn signInFunc) error {
	m, err := g.session(cmd)
	if err != nil {
		return err
	}
	password, err := promptPassword(cmd)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	p, err := fn(m, cmd.Context(), email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", p.Email)
	fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s\n", g.tokenStore().Path())
	return nil
}

func newLogoutCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.session(cmd)
			if err != nil {
				return err
			}
			return m.Logout(cmd.Context())
		},
	}
}

func newWhoamiCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.session(cmd)
			if err != nil {
				return err
			}
			if m.AccessToken() == "" {
				return client.ErrUnauthenticated
			}
			p, err := m.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Email)
			return nil
		},
	}
}
