package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskflow/models"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// fakeAPI é uma implementação em memória de API com um único workspace.
type fakeAPI struct {
	mu      sync.Mutex
	ws      models.Workspace
	roles   map[string]models.Role // uid -> papel
	tasks   map[string]models.Task
	summary []models.WorkspaceSummary
	calls   map[string]int

	// Injeção de erros
	CreateTaskErr error
	UpdateTaskErr error
	DeleteTaskErr error
	MemberErr     error

	// During roda dentro de uma mutação de tarefa, antes da resposta.
	During func(op string)
}

func newFakeAPI() *fakeAPI {
	f := &fakeAPI{
		ws:    models.Workspace{ID: wsID, Name: "Design", CreatedBy: "uid-owner", CreatedAt: t0, UpdatedAt: t0},
		roles: map[string]models.Role{"uid-owner": models.RoleOwner, "uid-me": models.RoleMember},
		tasks: make(map[string]models.Task),
		calls: make(map[string]int),
	}
	f.summary = []models.WorkspaceSummary{{Workspace: f.ws, MemberCount: 2, Role: models.RoleMember}}
	return f
}

func (f *fakeAPI) addTask(id, title string, created time.Time) models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := models.Task{ID: id, WorkspaceID: wsID, Title: title, Status: models.StatusTodo, Priority: models.PriorityLow,
		CreatedBy: "uid-owner", CreatedAt: created, UpdatedAt: created, Tags: []string{}}
	f.tasks[id] = t
	return t
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) call(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) during(op string) {
	if f.During != nil {
		f.During(op)
	}
}

func (f *fakeAPI) AllWorkspaces(context.Context) ([]models.WorkspaceSummary, error) {
	f.call("AllWorkspaces")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.WorkspaceSummary{}, f.summary...), nil
}

func (f *fakeAPI) CreateWorkspace(_ context.Context, in models.WorkspaceInput) (*models.Workspace, error) {
	f.call("CreateWorkspace")
	f.mu.Lock()
	defer f.mu.Unlock()
	ws := models.Workspace{ID: fmt.Sprintf("ws-%d", len(f.summary)+1), Name: in.Name, CreatedAt: t0, UpdatedAt: t0}
	f.summary = append(f.summary, models.WorkspaceSummary{Workspace: ws, MemberCount: 1, Role: models.RoleOwner, CanDelete: true})
	return &ws, nil
}

func (f *fakeAPI) GetWorkspace(_ context.Context, id string) (*models.Workspace, error) {
	f.call("GetWorkspace")
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.ws.ID {
		return nil, models.ErrNotFound
	}
	ws := f.ws
	return &ws, nil
}

func (f *fakeAPI) UpdateWorkspace(_ context.Context, id string, patch models.WorkspacePatch) (*models.Workspace, error) {
	f.call("UpdateWorkspace")
	f.mu.Lock()
	defer f.mu.Unlock()
	if patch.Name != nil {
		f.ws.Name = *patch.Name
	}
	ws := f.ws
	return &ws, nil
}

func (f *fakeAPI) DeleteWorkspace(context.Context, string) error {
	f.call("DeleteWorkspace")
	return nil
}

func (f *fakeAPI) Permissions(_ context.Context, id string) (*models.WorkspaceAccess, error) {
	f.call("Permissions")
	access := models.AccessFor(id, models.RoleOwner, false)
	return &access, nil
}

func (f *fakeAPI) ListMembers(_ context.Context, workspaceID string) ([]models.Member, error) {
	f.call("ListMembers")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Member
	for _, uid := range []string{"uid-owner", "uid-me", "uid-other"} {
		if role, ok := f.roles[uid]; ok {
			out = append(out, models.Member{ID: "m-" + uid, WorkspaceID: workspaceID, UserID: uid, Role: role})
		}
	}
	return out, nil
}

func (f *fakeAPI) MemberRole(_ context.Context, _ string, uid string) (models.Role, error) {
	f.call("MemberRole")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[uid], nil
}

func (f *fakeAPI) AddMember(_ context.Context, workspaceID string, in models.MemberInput) (*models.Member, error) {
	f.call("AddMember")
	if f.MemberErr != nil {
		return nil, f.MemberErr
	}
	return &models.Member{ID: "m-new", WorkspaceID: workspaceID, UserID: "uid-new", Role: in.Role, Email: in.Email}, nil
}

func (f *fakeAPI) UpdateMemberRole(_ context.Context, workspaceID, uid string, role models.Role) (*models.Member, error) {
	f.call("UpdateMemberRole")
	if f.MemberErr != nil {
		return nil, f.MemberErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[uid] = role
	return &models.Member{ID: "m-" + uid, WorkspaceID: workspaceID, UserID: uid, Role: role}, nil
}

func (f *fakeAPI) RemoveMember(_ context.Context, _ string, uid string) error {
	f.call("RemoveMember")
	if f.MemberErr != nil {
		return f.MemberErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, uid)
	return nil
}

func (f *fakeAPI) ListTasks(context.Context, string, models.TaskFilter) ([]models.Task, error) {
	f.call("ListTasks")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeAPI) GetTask(_ context.Context, _ string, id string) (*models.Task, error) {
	f.call("GetTask")
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (f *fakeAPI) CreateTask(_ context.Context, workspaceID string, in models.NewTask) (*models.Task, error) {
	f.call("CreateTask")
	f.during("CreateTask")
	if f.CreateTaskErr != nil {
		return nil, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := in.Task(workspaceID, "uid-me", t0.Add(time.Hour))
	f.tasks[t.ID] = t
	return &t, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, _ string, id string, patch models.TaskPatch) (*models.Task, error) {
	f.call("UpdateTask")
	f.during("UpdateTask")
	if f.UpdateTaskErr != nil {
		return nil, f.UpdateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	patch.Apply(&t)
	t.UpdatedAt = t.UpdatedAt.Add(time.Minute)
	f.tasks[id] = t
	return &t, nil
}

func (f *fakeAPI) DeleteTask(_ context.Context, _ string, id string) error {
	f.call("DeleteTask")
	f.during("DeleteTask")
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
	return nil
}

// fakeSubscriber registra as inscrições e bloqueia até o cancelamento.
type fakeSubscriber struct {
	mu         sync.Mutex
	subscribed []string
	active     int

	// OnConnect roda no lugar do handshake, antes do bloqueio.
	OnConnect func(workspaceID string, handle func(models.ChangeEvent))
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, workspaceID string, handle func(models.ChangeEvent)) error {
	s.mu.Lock()
	s.subscribed = append(s.subscribed, workspaceID)
	s.active++
	onConnect := s.OnConnect
	s.mu.Unlock()

	if onConnect != nil {
		onConnect(workspaceID, handle)
	}

	<-ctx.Done()

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return ctx.Err()
}

func (s *fakeSubscriber) state() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.subscribed...), s.active
}
