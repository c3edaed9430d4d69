// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/flow"
	"github.com/downtown-montclair/downtown/internal/session"
)

// NewRegisterCmd creates the register subcommand.
func NewRegisterCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cmd, deps, nil)
			if err != nil {
				return err
			}
			defer a.close()

			p := a.deps.Prompter
			var route string
			form := flow.NewRegistrationForm(a.svc, a.env(cmd, &route))
			if form.Email, err = p.Prompt("Email", ""); err != nil {
				return err
			}
			if form.Username, err = p.Prompt("Username", ""); err != nil {
				return err
			}
			if form.DisplayName, err = p.Prompt("Display name (optional)", ""); err != nil {
				return err
			}
			if form.Password, err = p.PromptSecret("Password"); err != nil {
				return err
			}
			if form.ConfirmPassword, err = p.PromptSecret("Confirm password"); err != nil {
				return err
			}

			if err := form.Submit(cmd.Context()); err != nil {
				return err
			}
			if route == session.HomeRoute {
				printSignedIn(cmd, awaitProfile(cmd.Context(), a.store))
			}
			return nil
		},
	}
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd(deps *Deps) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cmd, deps, nil)
			if err != nil {
				return err
			}
			defer a.close()

			var route string
			form := flow.NewLoginForm(a.svc, a.env(cmd, &route))
			form.Email = email
			if form.Email == "" {
				if form.Email, err = a.deps.Prompter.Prompt("Email", ""); err != nil {
					return err
				}
			}
			if form.Password, err = a.deps.Prompter.PromptSecret("Password"); err != nil {
				return err
			}

			if err := form.Submit(cmd.Context()); err != nil {
				return err
			}
			printSignedIn(cmd, awaitProfile(cmd.Context(), a.store))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	return cmd
}

// NewLogoutCmd creates the logout subcommand.
func NewLogoutCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cmd, deps, nil)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.store.State().SignedIn() {
				cmd.Println("Not signed in")
				return nil
			}
			res := a.svc.SignOut(cmd.Context())
			if err := res.Err(); err != nil {
				return err
			}
			if res.Warning != "" {
				cmd.Println(res.Warning)
			}
			cmd.Println("Signed out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami subcommand.
func NewWhoamiCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cmd, deps, nil)
			if err != nil {
				return err
			}
			defer a.close()

			st := a.store.State()
			if decision, _ := session.RequireAuth(st); decision != session.Allow {
				return errNotSignedIn()
			}
			cmd.Printf("Email:    %s\n", st.Identity.Email)
			cmd.Printf("User ID:  %s\n", st.Identity.ID)
			if st.Profile == nil {
				cmd.Println("Profile:  missing (sign in again to repair)")
				return nil
			}
			printProfile(cmd, st.Profile)
			return nil
		},
	}
}

func errNotSignedIn() error {
	return oops.Code("AUTH_NOT_SIGNED_IN").
		Public("Not signed in. Run 'downtown login' first.").
		Errorf("Not signed in. Run 'downtown login' first.")
}

// settleTimeout bounds how long a command waits for the store to catch up
// with a sign-in notification.
const settleTimeout = 2 * time.Second

// awaitProfile waits until the store shows a signed-in identity with its
// profile, and returns the latest snapshot either way.
func awaitProfile(ctx context.Context, store *session.Store) session.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	ch, stop := store.Watch()
	defer stop()
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return store.State()
			}
			if snap.SignedIn() && snap.Profile != nil {
				return snap
			}
		case <-ctx.Done():
			return store.State()
		}
	}
}

func printSignedIn(cmd *cobra.Command, st session.Snapshot) {
	if st.Identity == nil {
		return
	}
	if st.Profile != nil {
		cmd.Printf("Signed in as %s (%s)\n", st.Profile.Username, st.Identity.Email)
		return
	}
	cmd.Printf("Signed in as %s\n", st.Identity.Email)
}

func printProfile(cmd *cobra.Command, p *backend.Profile) {
	cmd.Printf("Username: %s\n", p.Username)
	if p.DisplayName != nil {
		cmd.Printf("Name:     %s\n", *p.DisplayName)
	}
	if p.Bio != nil {
		cmd.Printf("Bio:      %s\n", *p.Bio)
	}
	cmd.Printf("Joined:   %s\n", p.CreatedAt.Format("2006-01-02"))
}
