// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/downtown-montclair/downtown/internal/flow"
	"github.com/downtown-montclair/downtown/internal/session"
)

// NewProfileCmd creates the profile subcommand.
func NewProfileCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View or edit your profile",
	}
	cmd.AddCommand(newProfileEditCmd(deps))
	return cmd
}

type profileEditFlags struct {
	username    string
	displayName string
	bio         string
}

func newProfileEditCmd(deps *Deps) *cobra.Command {
	flags := &profileEditFlags{}
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Change username, display name or bio",
		Long: `Change your username, display name or bio. Fields given as flags are
applied directly; with no flags each field is prompted with its current
value. An empty display name or bio clears it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProfileEdit(cmd, deps, flags)
		},
	}
	cmd.Flags().StringVar(&flags.username, "username", "", "new username")
	cmd.Flags().StringVar(&flags.displayName, "display-name", "", "new display name")
	cmd.Flags().StringVar(&flags.bio, "bio", "", "new bio")
	return cmd
}

func runProfileEdit(cmd *cobra.Command, deps *Deps, flags *profileEditFlags) error {
	a, err := newApp(cmd.Context(), cmd, deps, nil)
	if err != nil {
		return err
	}
	defer a.close()

	st := a.store.State()
	if decision, _ := session.RequireAuth(st); decision != session.Allow {
		return errNotSignedIn()
	}
	if st.Profile == nil {
		return oops.Code("PROFILE_MISSING").
			Public("Your profile is missing. Run 'downtown login' to repair it.").
			Errorf("no profile for %s", st.Identity.ID)
	}

	var route string
	form := flow.NewSettingsForm(a.svc, a.store, st.Profile, a.env(cmd, &route))

	f := cmd.Flags()
	if f.Changed("username") || f.Changed("display-name") || f.Changed("bio") {
		if f.Changed("username") {
			form.Username = flags.username
		}
		if f.Changed("display-name") {
			form.DisplayName = flags.displayName
		}
		if f.Changed("bio") {
			form.Bio = flags.bio
		}
	} else {
		p := a.deps.Prompter
		if form.Username, err = p.Prompt("Username", form.Username); err != nil {
			return err
		}
		if form.DisplayName, err = p.Prompt("Display name", form.DisplayName); err != nil {
			return err
		}
		if form.Bio, err = p.Prompt("Bio", form.Bio); err != nil {
			return err
		}
	}

	if err := form.Submit(cmd.Context()); err != nil {
		return err
	}
	if p := a.store.State().Profile; p != nil {
		printProfile(cmd, p)
	}
	return nil
}
