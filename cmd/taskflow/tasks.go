package main

import (
	"fmt"
	"io"

	"taskflow/models"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func (a *app) tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and manage the tasks of a workspace",
	}
	cmd.AddCommand(a.tasksListCmd(), a.tasksAddCmd(), a.tasksUpdateCmd(), a.tasksRemoveCmd())
	return cmd
}

type taskFilterFlags struct {
	status    []string
	priority  []string
	assignee  string
	query     string
	sort      string
	dueAfter  string
	dueBefore string
}

func (t *taskFilterFlags) bind(fs *pflag.FlagSet) {
	fs.StringSliceVar(&t.status, "status", nil, "status filter (todo, in_progress, reviewing, done, archived)")
	fs.StringSliceVar(&t.priority, "priority", nil, "priority filter (low, medium, high, urgent)")
	fs.StringVar(&t.assignee, "assignee", "", "assignee user id, or 'unassigned'")
	fs.StringVar(&t.query, "query", "", "search title and description")
	fs.StringVar(&t.sort, "sort", "", "newest, oldest, due_date, priority or status")
	fs.StringVar(&t.dueAfter, "due-after", "", "only tasks due on or after YYYY-MM-DD")
	fs.StringVar(&t.dueBefore, "due-before", "", "only tasks due on or before YYYY-MM-DD")
}

func (t *taskFilterFlags) filter() (models.TaskFilter, error) {
	f := models.TaskFilter{Query: t.query, Assignee: t.assignee, SortBy: models.TaskSort(t.sort)}
	for _, s := range t.status {
		f.Status = append(f.Status, models.TaskStatus(s))
	}
	for _, p := range t.priority {
		f.Priority = append(f.Priority, models.TaskPriority(p))
	}
	dates := []struct {
		raw string
		dst **models.Date
	}{{t.dueAfter, &f.DueAfter}, {t.dueBefore, &f.DueBefore}}
	for _, d := range dates {
		if d.raw == "" {
			continue
		}
		date, err := models.ParseDate(d.raw)
		if err != nil {
			return f, err
		}
		*d.dst = &date
	}
	return f, f.Validate()
}

func (a *app) tasksListCmd() *cobra.Command {
	var flags taskFilterFlags
	cmd := &cobra.Command{
		Use:   "list <workspace-id>",
		Short: "List tasks, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			f, err := flags.filter()
			if err != nil {
				return err
			}
			tasks, err := api.ListTasks(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			return a.render(tasks, taskTable(tasks))
		},
	}
	flags.bind(cmd.Flags())
	return cmd
}

// taskFields são as flags comuns de add e update.
type taskFields struct {
	description string
	status      string
	priority    string
	assignee    string
	due         string
	tags        []string
	estimate    int
	spent       int
}

func (t *taskFields) bind(fs *pflag.FlagSet) {
	fs.StringVar(&t.description, "description", "", "description (basic HTML allowed)")
	fs.StringVar(&t.status, "status", "", "todo, in_progress, reviewing, done or archived")
	fs.StringVar(&t.priority, "priority", "", "low, medium, high or urgent")
	fs.StringVar(&t.assignee, "assignee", "", "assignee user id")
	fs.StringVar(&t.due, "due", "", "due date YYYY-MM-DD")
	fs.StringSliceVar(&t.tags, "tag", nil, "tag (repeatable)")
	fs.IntVar(&t.estimate, "estimate", 0, "time estimate in minutes")
	fs.IntVar(&t.spent, "spent", 0, "time spent in minutes")
}

func (t *taskFields) dueDate() (*models.Date, error) {
	if t.due == "" {
		return nil, nil
	}
	d, err := models.ParseDate(t.due)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *taskFields) newTask(title string, fs *pflag.FlagSet) (models.NewTask, error) {
	in := models.NewTask{
		Title:    title,
		Status:   models.TaskStatus(t.status),
		Priority: models.TaskPriority(t.priority),
		Tags:     t.tags,
	}
	if t.description != "" {
		in.Description = &t.description
	}
	if t.assignee != "" {
		in.AssigneeID = &t.assignee
	}
	if fs.Changed("estimate") {
		in.TimeEstimate = &t.estimate
	}
	if fs.Changed("spent") {
		in.TimeSpent = &t.spent
	}
	due, err := t.dueDate()
	if err != nil {
		return in, err
	}
	in.DueDate = due
	return in, in.Validate()
}

// patch só inclui as flags passadas; valor vazio em description, assignee e due limpa o campo.
func (t *taskFields) patch(title string, fs *pflag.FlagSet) (models.TaskPatch, error) {
	var p models.TaskPatch
	if fs.Changed("title") {
		p.Title = &title
	}
	if fs.Changed("description") {
		p.Description = nullableString(t.description)
	}
	if fs.Changed("status") {
		s := models.TaskStatus(t.status)
		p.Status = &s
	}
	if fs.Changed("priority") {
		pr := models.TaskPriority(t.priority)
		p.Priority = &pr
	}
	if fs.Changed("assignee") {
		p.AssigneeID = nullableString(t.assignee)
	}
	if fs.Changed("due") {
		due, err := t.dueDate()
		if err != nil {
			return p, err
		}
		p.DueDate = models.NullableFrom(due)
	}
	if fs.Changed("tag") {
		p.Tags = &t.tags
	}
	if fs.Changed("estimate") {
		p.TimeEstimate = models.Value(t.estimate)
	}
	if fs.Changed("spent") {
		p.TimeSpent = models.Value(t.spent)
	}
	if p.Empty() {
		return p, models.InvalidInput("nothing to update")
	}
	return p, p.Validate()
}

func (a *app) tasksAddCmd() *cobra.Command {
	var fields taskFields
	cmd := &cobra.Command{
		Use:   "add <workspace-id> <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			in, err := fields.newTask(args[1], cmd.Flags())
			if err != nil {
				return err
			}
			task, err := api.CreateTask(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return a.render(task, func(w io.Writer) {
				fmt.Fprintf(w, "Created task %s (%s)\n", task.Title, task.ID)
			})
		},
	}
	fields.bind(cmd.Flags())
	return cmd
}

func (a *app) tasksUpdateCmd() *cobra.Command {
	var fields taskFields
	var title string
	cmd := &cobra.Command{
		Use:   "update <workspace-id> <task-id>",
		Short: "Change a task; only the flags given are sent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			patch, err := fields.patch(title, cmd.Flags())
			if err != nil {
				return err
			}
			task, err := api.UpdateTask(cmd.Context(), args[0], args[1], patch)
			if err != nil {
				return err
			}
			return a.render(task, func(w io.Writer) {
				fmt.Fprintf(w, "Updated task %s\n", task.Title)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	fields.bind(cmd.Flags())
	return cmd
}

func (a *app) tasksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <workspace-id> <task-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			if err := api.DeleteTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			a.message("Deleted task %s", args[1])
			return nil
		},
	}
}
