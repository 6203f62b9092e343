package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const maxTaskTitle = 200

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReviewing  TaskStatus = "reviewing"
	StatusDone       TaskStatus = "done"
	StatusArchived   TaskStatus = "archived"
)

// Statuses na ordem do fluxo de trabalho (também usada na ordenação).
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusReviewing, StatusDone, StatusArchived}

func (s TaskStatus) Valid() bool { return s.rank() >= 0 }

func (s TaskStatus) rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

func (s TaskStatus) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusReviewing:
		return "Reviewing"
	case StatusDone:
		return "Done"
	case StatusArchived:
		return "Archived"
	}
	return string(s)
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

var Priorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p TaskPriority) Valid() bool { return p.rank() >= 0 }

// rank cresce com a urgência.
func (p TaskPriority) rank() int {
	for i, v := range Priorities {
		if v == p {
			return i
		}
	}
	return -1
}

func (p TaskPriority) Label() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// Task espelha a tabela tasks.
type Task struct {
	ID           string       `json:"id"`
	WorkspaceID  string       `json:"workspace_id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	AssigneeID   *string      `json:"assignee_id"`
	CreatedBy    string       `json:"created_by"`
	DueDate      *Date        `json:"due_date"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Tags         []string     `json:"tags"`
	TimeEstimate *int         `json:"time_estimate,omitempty"` // minutos
	TimeSpent    *int         `json:"time_spent,omitempty"`    // minutos
}

// NewTask é o corpo de criação. O ID pode vir do cliente para que a
// inserção otimista e o eco do servidor tenham a mesma chave.
type NewTask struct {
	ID           string       `json:"id,omitempty"`
	Title        string       `json:"title"`
	Description  *string      `json:"description,omitempty"`
	Status       TaskStatus   `json:"status,omitempty"`
	Priority     TaskPriority `json:"priority,omitempty"`
	AssigneeID   *string      `json:"assignee_id,omitempty"`
	DueDate      *Date        `json:"due_date,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	TimeEstimate *int         `json:"time_estimate,omitempty"`
	TimeSpent    *int         `json:"time_spent,omitempty"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", InvalidInput("task title cannot be empty")
	}
	if len([]rune(title)) > maxTaskTitle {
		return "", InvalidInput("task title must have at most %d characters", maxTaskTitle)
	}
	return title, nil
}

func validateMinutes(field string, v *int) error {
	if v != nil && *v < 0 {
		return InvalidInput("%s cannot be negative", field)
	}
	return nil
}

func sanitizedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := SanitizeDescription(*s)
	if strings.TrimSpace(PlainText(clean)) == "" {
		return nil
	}
	return &clean
}

// Validate normaliza a entrada e preenche os padrões (todo, low).
func (n *NewTask) Validate() error {
	if n.ID != "" {
		id, err := ParseID("task", n.ID)
		if err != nil {
			return err
		}
		n.ID = id
	}
	title, err := validateTitle(n.Title)
	if err != nil {
		return err
	}
	n.Title = title
	if n.Status == "" {
		n.Status = StatusTodo
	}
	if !n.Status.Valid() {
		return InvalidInput("unknown status %q", n.Status)
	}
	if n.Priority == "" {
		n.Priority = PriorityLow
	}
	if !n.Priority.Valid() {
		return InvalidInput("unknown priority %q", n.Priority)
	}
	if err := validateMinutes("time_estimate", n.TimeEstimate); err != nil {
		return err
	}
	if err := validateMinutes("time_spent", n.TimeSpent); err != nil {
		return err
	}
	n.Description = sanitizedPtr(n.Description)
	n.AssigneeID = trimmedPtr(n.AssigneeID)
	n.Tags = normalizeTags(n.Tags)
	return nil
}

// Task monta a linha local usada na inserção otimista.
func (n NewTask) Task(workspaceID, createdBy string, now time.Time) Task {
	return Task{
		ID:           n.ID,
		WorkspaceID:  workspaceID,
		Title:        n.Title,
		Description:  n.Description,
		Status:       n.Status,
		Priority:     n.Priority,
		AssigneeID:   n.AssigneeID,
		CreatedBy:    createdBy,
		DueDate:      n.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
		Tags:         append([]string{}, n.Tags...),
		TimeEstimate: n.TimeEstimate,
		TimeSpent:    n.TimeSpent,
	}
}

// TaskPatch é uma atualização parcial. Campos Nullable distinguem "limpar" de "não mudar".
type TaskPatch struct {
	Title        *string          `json:"title,omitempty"`
	Description  Nullable[string] `json:"description,omitzero"`
	Status       *TaskStatus      `json:"status,omitempty"`
	Priority     *TaskPriority    `json:"priority,omitempty"`
	AssigneeID   Nullable[string] `json:"assignee_id,omitzero"`
	DueDate      Nullable[Date]   `json:"due_date,omitzero"`
	Tags         *[]string        `json:"tags,omitempty"`
	TimeEstimate Nullable[int]    `json:"time_estimate,omitzero"`
	TimeSpent    Nullable[int]    `json:"time_spent,omitzero"`
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && !p.Description.Set && p.Status == nil && p.Priority == nil &&
		!p.AssigneeID.Set && !p.DueDate.Set && p.Tags == nil && !p.TimeEstimate.Set && !p.TimeSpent.Set
}

func (p *TaskPatch) Validate() error {
	if p.Title != nil {
		title, err := validateTitle(*p.Title)
		if err != nil {
			return err
		}
		p.Title = &title
	}
	if p.Status != nil && !p.Status.Valid() {
		return InvalidInput("unknown status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return InvalidInput("unknown priority %q", *p.Priority)
	}
	if err := validateMinutes("time_estimate", p.TimeEstimate.Ptr()); err != nil {
		return err
	}
	if err := validateMinutes("time_spent", p.TimeSpent.Ptr()); err != nil {
		return err
	}
	if p.Description.Set {
		p.Description = NullableFrom(sanitizedPtr(p.Description.Ptr()))
	}
	if p.AssigneeID.Set {
		p.AssigneeID = NullableFrom(trimmedPtr(p.AssigneeID.Ptr()))
	}
	if p.Tags != nil {
		tags := normalizeTags(*p.Tags)
		p.Tags = &tags
	}
	return nil
}

// Apply aplica o patch sobre uma cópia local da tarefa.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description.Set {
		t.Description = p.Description.Ptr()
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssigneeID.Set {
		t.AssigneeID = p.AssigneeID.Ptr()
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Ptr()
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.TimeEstimate.Set {
		t.TimeEstimate = p.TimeEstimate.Ptr()
	}
	if p.TimeSpent.Set {
		t.TimeSpent = p.TimeSpent.Ptr()
	}
}

// Merge combina dois patches; os campos de next prevalecem.
func (p TaskPatch) Merge(next TaskPatch) TaskPatch {
	out := p
	if next.Title != nil {
		out.Title = next.Title
	}
	if next.Description.Set {
		out.Description = next.Description
	}
	if next.Status != nil {
		out.Status = next.Status
	}
	if next.Priority != nil {
		out.Priority = next.Priority
	}
	if next.AssigneeID.Set {
		out.AssigneeID = next.AssigneeID
	}
	if next.DueDate.Set {
		out.DueDate = next.DueDate
	}
	if next.Tags != nil {
		out.Tags = next.Tags
	}
	if next.TimeEstimate.Set {
		out.TimeEstimate = next.TimeEstimate
	}
	if next.TimeSpent.Set {
		out.TimeSpent = next.TimeSpent
	}
	return out
}

const taskColumns = `id, workspace_id, title, description, status, priority, assignee_id, created_by, due_date, created_at, updated_at, tags, time_estimate, time_spent`

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &t.CreatedBy, &t.DueDate, &t.CreatedAt, &t.UpdatedAt, pq.Array(&t.Tags),
		&t.TimeEstimate, &t.TimeSpent)
	if err != nil {
		return nil, err
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func checkAssignee(ctx context.Context, db *sql.DB, workspaceID string, assignee *string) error {
	if assignee == nil {
		return nil
	}
	role, err := GetMemberRole(ctx, db, workspaceID, *assignee)
	if err != nil {
		return err
	}
	if role == "" {
		return InvalidInput("assignee %s is not a member of this workspace", *assignee)
	}
	return nil
}

// CreateTask insere a tarefa. Sem ID do cliente, um UUID novo é gerado aqui.
func CreateTask(ctx context.Context, db *sql.DB, workspaceID, createdBy string, in NewTask) (*Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := checkAssignee(ctx, db, workspaceID, in.AssigneeID); err != nil {
		return nil, err
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	t, err := scanTask(db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, workspace_id, title, description, status, priority, assignee_id,
		                   created_by, due_date, tags, time_estimate, time_spent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+taskColumns,
		in.ID, workspaceID, in.Title, in.Description, in.Status, in.Priority, in.AssigneeID,
		createdBy, in.DueDate, pq.Array(in.Tags), in.TimeEstimate, in.TimeSpent))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, InvalidInput("task %s already exists", in.ID)
		}
		return nil, translatePQ(err, "task")
	}
	return t, nil
}

// ListTasks devolve as tarefas do workspace filtradas; por padrão as mais novas primeiro.
func ListTasks(ctx context.Context, db *sql.DB, workspaceID string, f TaskFilter) ([]Task, error) {
	where, args := f.sqlWhere(workspaceID)
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + where + ` ORDER BY ` + f.sqlOrder()

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar tarefas: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func GetTask(ctx context.Context, db *sql.DB, workspaceID, taskID string) (*Task, error) {
	t, err := scanTask(db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND workspace_id = $2`, taskID, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar tarefa: %w", err)
	}
	return t, nil
}

// GetTaskByID busca sem escopo de workspace; usado pelo feed de mudanças.
func GetTaskByID(ctx context.Context, db *sql.DB, taskID string) (*Task, error) {
	t, err := scanTask(db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar tarefa: %w", err)
	}
	return t, nil
}

// UpdateTask aplica o patch com uma lista SET dinâmica e atualiza updated_at.
func UpdateTask(ctx context.Context, db *sql.DB, workspaceID, taskID string, patch TaskPatch) (*Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return GetTask(ctx, db, workspaceID, taskID)
	}
	if err := checkAssignee(ctx, db, workspaceID, patch.AssigneeID.Ptr()); err != nil {
		return nil, err
	}

	var b updateBuilder
	if patch.Title != nil {
		b.set("title", *patch.Title)
	}
	if patch.Description.Set {
		b.set("description", patch.Description.Ptr())
	}
	if patch.Status != nil {
		b.set("status", *patch.Status)
	}
	if patch.Priority != nil {
		b.set("priority", *patch.Priority)
	}
	if patch.AssigneeID.Set {
		b.set("assignee_id", patch.AssigneeID.Ptr())
	}
	if patch.DueDate.Set {
		b.set("due_date", patch.DueDate.Ptr())
	}
	if patch.Tags != nil {
		b.set("tags", pq.Array(*patch.Tags))
	}
	if patch.TimeEstimate.Set {
		b.set("time_estimate", patch.TimeEstimate.Ptr())
	}
	if patch.TimeSpent.Set {
		b.set("time_spent", patch.TimeSpent.Ptr())
	}
	b.where("id", taskID)
	b.where("workspace_id", workspaceID)
	q, args := b.build("tasks", taskColumns)

	t, err := scanTask(db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, translatePQ(err, "task")
	}
	return t, nil
}

func DeleteTask(ctx context.Context, db *sql.DB, workspaceID, taskID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND workspace_id = $2`, taskID, workspaceID)
	if err != nil {
		return fmt.Errorf("falha ao remover tarefa: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}
