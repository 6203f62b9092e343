package main

import (
	"fmt"
	"io"

	"taskflow/models"

	"github.com/spf13/cobra"
)

func (a *app) membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List and manage the members of a workspace",
	}
	cmd.AddCommand(a.membersListCmd(), a.membersAddCmd(), a.membersRemoveCmd(), a.membersRoleCmd())
	return cmd
}

func (a *app) membersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <workspace-id>",
		Short: "List members and their roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			members, err := api.ListMembers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(members, memberTable(members))
		},
	}
}

func (a *app) membersAddCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add <workspace-id> <email>",
		Short: "Add a registered user to the workspace (owner or admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			r, err := models.ParseRole(role)
			if err != nil {
				return err
			}
			m, err := api.AddMember(cmd.Context(), args[0], models.MemberInput{Email: args[1], Role: r})
			if err != nil {
				return err
			}
			return a.render(m, func(w io.Writer) {
				fmt.Fprintf(w, "Added %s as %s\n", args[1], m.Role)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleMember), "owner, admin, member or guest")
	return cmd
}

func (a *app) membersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <workspace-id> <user-id>",
		Short: "Remove a member; use your own id to leave the workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			if err := api.RemoveMember(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			a.message("Removed %s from %s", args[1], args[0])
			return nil
		},
	}
}

func (a *app) membersRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <workspace-id> <user-id> [new-role]",
		Short: "Show a member's role, or change it when new-role is given",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				role, err := api.MemberRole(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				mr := models.MemberRole{WorkspaceID: args[0], UserID: args[1], Role: role}
				return a.render(mr, func(w io.Writer) {
					if role == "" {
						fmt.Fprintf(w, "%s is not a member\n", args[1])
						return
					}
					fmt.Fprintln(w, role)
				})
			}

			role := models.Role(args[2])
			if !role.Valid() {
				return models.InvalidInput("unknown role %q", args[2])
			}
			m, err := api.UpdateMemberRole(cmd.Context(), args[0], args[1], role)
			if err != nil {
				return err
			}
			return a.render(m, func(w io.Writer) {
				fmt.Fprintf(w, "%s is now %s\n", m.UserID, m.Role)
			})
		},
	}
}
