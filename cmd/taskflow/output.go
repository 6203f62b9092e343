package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"taskflow/models"

	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (use table, json or yaml)", f)
}

// render escreve v em JSON ou YAML; no formato tabela delega a table.
func (a *app) render(v interface{}, table func(w io.Writer)) error {
	switch a.output {
	case formatJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return writeYAML(a.out, v)
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// writeYAML passa por JSON para manter os mesmos nomes de campo da API.
func writeYAML(w io.Writer, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func (a *app) message(format string, args ...interface{}) {
	if a.output == formatTable {
		fmt.Fprintf(a.out, format+"\n", args...)
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func taskTable(tasks []models.Task) func(io.Writer) {
	return func(w io.Writer) {
		if len(tasks) == 0 {
			fmt.Fprintln(w, "No tasks found.")
			return
		}
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tASSIGNEE\tDUE")
		for _, t := range tasks {
			due := "-"
			if t.DueDate != nil {
				due = t.DueDate.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, truncate(t.Title, 40), t.Status.Label(), t.Priority.Label(), orDash(t.AssigneeID), due)
		}
	}
}

func workspaceTable(list []models.WorkspaceSummary) func(io.Writer) {
	return func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No workspaces found.")
			return
		}
		fmt.Fprintln(w, "ID\tNAME\tROLE\tMEMBERS\tTAGS")
		for _, ws := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				ws.ID, truncate(ws.Name, 40), ws.Role, ws.MemberCount, strings.Join(ws.Tags, ","))
		}
	}
}

func memberTable(members []models.Member) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintln(w, "USER\tEMAIL\tNAME\tROLE\tJOINED")
		for _, m := range members {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				m.UserID, m.Email, m.DisplayName, m.Role, m.JoinedAt.Format("2006-01-02"))
		}
	}
}
