package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type credentialFlags struct {
	email    string
	password string
}

func (c *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "account email")
	cmd.Flags().StringVar(&c.password, "password", "", "account password (read from stdin when omitted)")
	cmd.MarkFlagRequired("email")
}

// readPassword lê a senha da primeira linha da entrada quando a flag não veio.
func (a *app) readPassword(c *credentialFlags) (string, error) {
	if c.password != "" {
		return c.password, nil
	}
	fmt.Fprint(a.out, "Password: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}

func (a *app) signupCmd() *cobra.Command {
	var creds credentialFlags
	var name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := a.readPassword(&creds)
			if err != nil {
				return err
			}
			s, err := a.session.SignUp(cmd.Context(), creds.email, pw, name)
			if err != nil {
				return err
			}
			a.message("Signed up as %s", s.User.Email)
			return nil
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := a.readPassword(&creds)
			if err != nil {
				return err
			}
			s, err := a.session.SignIn(cmd.Context(), creds.email, pw)
			if err != nil {
				return err
			}
			a.message("Signed in as %s", s.User.Email)
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.SignOut(cmd.Context()); err != nil {
				return err
			}
			a.message("Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			me, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(me, func(w io.Writer) {
				fmt.Fprintf(w, "ID:\t%s\n", me.ID)
				fmt.Fprintf(w, "Email:\t%s\n", me.Email)
				fmt.Fprintf(w, "Name:\t%s\n", me.DisplayName)
				if me.IsSuperAdmin {
					fmt.Fprintln(w, "Super admin:\tyes")
				}
			})
		},
	}
}
