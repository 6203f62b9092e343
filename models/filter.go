package models

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

type TaskSort string

const (
	SortNewest   TaskSort = "newest"
	SortOldest   TaskSort = "oldest"
	SortDueDate  TaskSort = "due_date"
	SortPriority TaskSort = "priority"
	SortStatus   TaskSort = "status"
)

const (
	AssigneeAll        = "all"
	AssigneeUnassigned = "unassigned"
)

// TaskFilter descreve os filtros da lista de tarefas.
// Listas vazias e Assignee "" ou "all" não filtram nada.
type TaskFilter struct {
	Query     string         `json:"query,omitempty"`
	Status    []TaskStatus   `json:"status,omitempty"`
	Priority  []TaskPriority `json:"priority,omitempty"`
	Assignee  string         `json:"assignee,omitempty"`
	DueAfter  *Date          `json:"due_after,omitempty"`
	DueBefore *Date          `json:"due_before,omitempty"`
	SortBy    TaskSort       `json:"sort_by,omitempty"`
}

func (f TaskFilter) Validate() error {
	for _, s := range f.Status {
		if !s.Valid() {
			return InvalidInput("unknown status %q", s)
		}
	}
	for _, p := range f.Priority {
		if !p.Valid() {
			return InvalidInput("unknown priority %q", p)
		}
	}
	switch f.SortBy {
	case "", SortNewest, SortOldest, SortDueDate, SortPriority, SortStatus:
	default:
		return InvalidInput("unknown sort %q", f.SortBy)
	}
	if f.DueAfter != nil && f.DueBefore != nil && f.DueAfter.After(*f.DueBefore) {
		return InvalidInput("due_after must not be later than due_before")
	}
	return nil
}

func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" && p != "all" {
				out = append(out, p)
			}
		}
	}
	return out
}

// TaskFilterFromQuery lê status, priority, assignee, q, sort, due_after e due_before.
// status e priority aceitam valores repetidos ou separados por vírgula.
func TaskFilterFromQuery(q url.Values) (TaskFilter, error) {
	f := TaskFilter{
		Query:    strings.TrimSpace(q.Get("q")),
		Assignee: strings.TrimSpace(q.Get("assignee")),
		SortBy:   TaskSort(q.Get("sort")),
	}
	for _, s := range splitParam(q["status"]) {
		f.Status = append(f.Status, TaskStatus(s))
	}
	for _, p := range splitParam(q["priority"]) {
		f.Priority = append(f.Priority, TaskPriority(p))
	}
	for key, dst := range map[string]**Date{"due_after": &f.DueAfter, "due_before": &f.DueBefore} {
		if v := q.Get(key); v != "" {
			d, err := ParseDate(v)
			if err != nil {
				return TaskFilter{}, err
			}
			*dst = &d
		}
	}
	return f, f.Validate()
}

// Values é o inverso de TaskFilterFromQuery.
func (f TaskFilter) Values() url.Values {
	q := url.Values{}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	for _, s := range f.Status {
		q.Add("status", string(s))
	}
	for _, p := range f.Priority {
		q.Add("priority", string(p))
	}
	if f.Assignee != "" && f.Assignee != AssigneeAll {
		q.Set("assignee", f.Assignee)
	}
	if f.DueAfter != nil {
		q.Set("due_after", f.DueAfter.String())
	}
	if f.DueBefore != nil {
		q.Set("due_before", f.DueBefore.String())
	}
	if f.SortBy != "" {
		q.Set("sort", string(f.SortBy))
	}
	return q
}

// Matches aplica os mesmos critérios do SQL a uma tarefa em memória.
func (f TaskFilter) Matches(t Task) bool {
	if len(f.Status) > 0 && !slices.Contains(f.Status, t.Status) {
		return false
	}
	if len(f.Priority) > 0 && !slices.Contains(f.Priority, t.Priority) {
		return false
	}
	switch f.Assignee {
	case "", AssigneeAll:
	case AssigneeUnassigned:
		if t.AssigneeID != nil {
			return false
		}
	default:
		if t.AssigneeID == nil || *t.AssigneeID != f.Assignee {
			return false
		}
	}
	if f.DueAfter != nil && (t.DueDate == nil || t.DueDate.Before(*f.DueAfter)) {
		return false
	}
	if f.DueBefore != nil && (t.DueDate == nil || t.DueDate.After(*f.DueBefore)) {
		return false
	}
	if f.Query != "" {
		needle := strings.ToLower(f.Query)
		text := strings.ToLower(t.Title)
		if t.Description != nil {
			text += " " + strings.ToLower(PlainText(*t.Description))
		}
		if !strings.Contains(text, needle) {
			return false
		}
	}
	return true
}

// Apply filtra e ordena numa nova fatia; a entrada não é alterada.
func (f TaskFilter) Apply(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, f.compare)
	return out
}

func newestFirst(a, b Task) int { return b.CreatedAt.Compare(a.CreatedAt) }

func (f TaskFilter) compare(a, b Task) int {
	switch f.SortBy {
	case SortOldest:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		default:
			if c := a.DueDate.Compare(b.DueDate.Time); c != 0 {
				return c
			}
		}
	case SortPriority:
		if c := cmp.Compare(b.Priority.rank(), a.Priority.rank()); c != 0 {
			return c
		}
	case SortStatus:
		if c := cmp.Compare(a.Status.rank(), b.Status.rank()); c != 0 {
			return c
		}
	}
	return newestFirst(a, b)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (f TaskFilter) sqlWhere(workspaceID string) (string, []interface{}) {
	var b updateBuilder
	b.where("workspace_id", workspaceID)
	if len(f.Status) > 0 {
		statuses := make([]string, len(f.Status))
		for i, s := range f.Status {
			statuses[i] = string(s)
		}
		b.conds = append(b.conds, "status = ANY("+b.arg(pq.Array(statuses))+")")
	}
	if len(f.Priority) > 0 {
		priorities := make([]string, len(f.Priority))
		for i, p := range f.Priority {
			priorities[i] = string(p)
		}
		b.conds = append(b.conds, "priority = ANY("+b.arg(pq.Array(priorities))+")")
	}
	switch f.Assignee {
	case "", AssigneeAll:
	case AssigneeUnassigned:
		b.conds = append(b.conds, "assignee_id IS NULL")
	default:
		b.where("assignee_id", f.Assignee)
	}
	if f.DueAfter != nil {
		b.conds = append(b.conds, "due_date >= "+b.arg(*f.DueAfter))
	}
	if f.DueBefore != nil {
		b.conds = append(b.conds, "due_date <= "+b.arg(*f.DueBefore))
	}
	if f.Query != "" {
		p := b.arg("%" + likeEscaper.Replace(f.Query) + "%")
		b.conds = append(b.conds, fmt.Sprintf("(title ILIKE %s OR COALESCE(description, '') ILIKE %s)", p, p))
	}
	return strings.Join(b.conds, " AND "), b.args
}

func (f TaskFilter) sqlOrder() string {
	switch f.SortBy {
	case SortOldest:
		return "created_at ASC"
	case SortDueDate:
		return "due_date ASC NULLS LAST, created_at DESC"
	case SortPriority:
		return "CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at DESC"
	case SortStatus:
		return "CASE status WHEN 'todo' THEN 0 WHEN 'in_progress' THEN 1 WHEN 'reviewing' THEN 2 WHEN 'done' THEN 3 ELSE 4 END, created_at DESC"
	}
	return "created_at DESC"
}

const DefaultPerPage = 12

// WorkspaceFilter é a busca da lista de workspaces, com paginação "carregar mais".
type WorkspaceFilter struct {
	Query   string `json:"query,omitempty"`
	Page    int    `json:"page,omitempty"`
	PerPage int    `json:"per_page,omitempty"`
}

func WorkspaceFilterFromQuery(q url.Values) (WorkspaceFilter, error) {
	f := WorkspaceFilter{Query: strings.TrimSpace(q.Get("q"))}
	for key, dst := range map[string]*int{"page": &f.Page, "per_page": &f.PerPage} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return WorkspaceFilter{}, InvalidInput("%s must be a positive integer", key)
			}
			*dst = n
		}
	}
	return f, nil
}

func (f WorkspaceFilter) Values() url.Values {
	q := url.Values{}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return q
}

func (f WorkspaceFilter) normalized() WorkspaceFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	return f
}

func (f WorkspaceFilter) Matches(w Workspace) bool {
	if f.Query == "" {
		return true
	}
	needle := strings.ToLower(f.Query)
	if strings.Contains(strings.ToLower(w.Name), needle) {
		return true
	}
	return w.Description != nil && strings.Contains(strings.ToLower(*w.Description), needle)
}

// WorkspacePage é a resposta de /user/my-workspaces/list.
type WorkspacePage struct {
	Workspaces []WorkspaceSummary `json:"workspaces"`
	TotalCount int                `json:"total_count"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	HasMore    bool               `json:"has_more"`
}

// FilterWorkspaces devolve os primeiros page*perPage itens que casam com a busca.
func FilterWorkspaces(list []WorkspaceSummary, f WorkspaceFilter) WorkspacePage {
	f = f.normalized()
	matched := make([]WorkspaceSummary, 0, len(list))
	for _, w := range list {
		if f.Matches(w.Workspace) {
			matched = append(matched, w)
		}
	}
	limit := min(f.Page*f.PerPage, len(matched))
	return WorkspacePage{
		Workspaces: matched[:limit],
		TotalCount: len(matched),
		Page:       f.Page,
		PerPage:    f.PerPage,
		HasMore:    limit < len(matched),
	}
}
