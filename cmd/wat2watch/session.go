package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/wat2watch/internal/session"
)

func newLoginCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "login <id>",
		Short: "Remember who is using this watchlist",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(func(s *session.Store) error {
				if err := s.Login(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Logged in as %s.\n", session.ShortName(args[0]))
				return nil
			})
		},
	}
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current user",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(func(s *session.Store) error {
				if err := s.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Logged out.")
				return nil
			})
		},
	}
}

// whoami 未登录时退出码为 1，便于脚本判断。
func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the current user",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(func(s *session.Store) error {
				id, ok, err := s.Current(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(c.err, "Not logged in.")
					return &exitError{code: exitFailure}
				}
				fmt.Fprintln(c.out, id)
				return nil
			})
		},
	}
}

func (c *cli) withSession(fn func(s *session.Store) error) error {
	a, err := newApp(c.cfg)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	defer a.Close()

	s, err := a.session()
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	if err := fn(s); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return err
		}
		return &exitError{code: exitFailure, err: err}
	}
	return nil
}
