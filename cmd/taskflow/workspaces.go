package main

import (
	"fmt"
	"io"

	"taskflow/models"

	"github.com/spf13/cobra"
)

func (a *app) workspacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspaces",
		Aliases: []string{"ws"},
		Short:   "List and manage workspaces",
	}
	cmd.AddCommand(a.workspacesListCmd(), a.workspacesCreateCmd(), a.workspacesUpdateCmd(), a.workspacesDeleteCmd())
	return cmd
}

func (a *app) workspacesListCmd() *cobra.Command {
	var f models.WorkspaceFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the workspaces you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			page, err := api.MyWorkspaces(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.render(page, func(w io.Writer) {
				workspaceTable(page.Workspaces)(w)
				if page.HasMore {
					fmt.Fprintf(w, "\nShowing %d of %d, use --page %d for more.\n", len(page.Workspaces), page.TotalCount, page.Page+1)
				}
			})
		},
	}
	cmd.Flags().StringVar(&f.Query, "search", "", "filter by name or description")
	cmd.Flags().IntVar(&f.Page, "page", 1, "number of pages to load")
	cmd.Flags().IntVar(&f.PerPage, "per-page", models.DefaultPerPage, "workspaces per page")
	return cmd
}

func (a *app) workspacesCreateCmd() *cobra.Command {
	var in models.WorkspaceInput
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace owned by you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			in.Name = args[0]
			if description != "" {
				in.Description = &description
			}
			ws, err := api.CreateWorkspace(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.render(ws, func(w io.Writer) {
				fmt.Fprintf(w, "Created workspace %s (%s)\n", ws.Name, ws.ID)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "workspace description")
	cmd.Flags().StringVar(&in.Color, "color", "", "accent color")
	cmd.Flags().StringVar(&in.Icon, "icon", "", "icon name")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "tag (repeatable)")
	return cmd
}

func (a *app) workspacesUpdateCmd() *cobra.Command {
	var name, description, color, icon string
	var tags []string
	cmd := &cobra.Command{
		Use:   "update <workspace-id>",
		Short: "Change a workspace's details (owner or admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			var patch models.WorkspacePatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("description") {
				patch.Description = nullableString(description)
			}
			if flags.Changed("color") {
				patch.Color = &color
			}
			if flags.Changed("icon") {
				patch.Icon = &icon
			}
			if flags.Changed("tag") {
				patch.Tags = &tags
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update")
			}
			ws, err := api.UpdateWorkspace(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.render(ws, func(w io.Writer) {
				fmt.Fprintf(w, "Updated workspace %s\n", ws.Name)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description (empty clears it)")
	cmd.Flags().StringVar(&color, "color", "", "new accent color")
	cmd.Flags().StringVar(&icon, "icon", "", "new icon")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags (repeatable)")
	return cmd
}

func (a *app) workspacesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workspace-id>",
		Short: "Delete a workspace and all its tasks (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			if err := api.DeleteWorkspace(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.message("Deleted workspace %s", args[0])
			return nil
		},
	}
}

// nullableString trata "" como limpar o campo.
func nullableString(s string) models.Nullable[string] {
	if s == "" {
		return models.Null[string]()
	}
	return models.Value(s)
}
