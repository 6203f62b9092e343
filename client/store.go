package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"taskflow/models"
	"taskflow/utilities"

	"github.com/google/uuid"
)

// API é a parte do Client usada pelo WorkspaceStore.
type API interface {
	AllWorkspaces(ctx context.Context) ([]models.WorkspaceSummary, error)
	CreateWorkspace(ctx context.Context, in models.WorkspaceInput) (*models.Workspace, error)
	GetWorkspace(ctx context.Context, id string) (*models.Workspace, error)
	UpdateWorkspace(ctx context.Context, id string, patch models.WorkspacePatch) (*models.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) error
	Permissions(ctx context.Context, id string) (*models.WorkspaceAccess, error)

	ListMembers(ctx context.Context, workspaceID string) ([]models.Member, error)
	MemberRole(ctx context.Context, workspaceID, uid string) (models.Role, error)
	AddMember(ctx context.Context, workspaceID string, in models.MemberInput) (*models.Member, error)
	UpdateMemberRole(ctx context.Context, workspaceID, uid string, role models.Role) (*models.Member, error)
	RemoveMember(ctx context.Context, workspaceID, uid string) error

	ListTasks(ctx context.Context, workspaceID string, f models.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, workspaceID, taskID string) (*models.Task, error)
	CreateTask(ctx context.Context, workspaceID string, in models.NewTask) (*models.Task, error)
	UpdateTask(ctx context.Context, workspaceID, taskID string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, workspaceID, taskID string) error
}

// Subscriber entrega os eventos de um workspace até ctx ser cancelado.
type Subscriber interface {
	Subscribe(ctx context.Context, workspaceID string, handle func(models.ChangeEvent)) error
}

var (
	_ API        = (*Client)(nil)
	_ Subscriber = (*Client)(nil)
)

// ErrNoWorkspace é devolvido pelas operações que dependem de um workspace aberto.
var ErrNoWorkspace = errors.New("no workspace selected")

const eventFetchTimeout = 15 * time.Second

// State é uma cópia do estado do WorkspaceStore.
type State struct {
	Workspaces       []models.WorkspaceSummary
	Current          *models.Workspace
	CurrentRole      models.Role
	Members          []models.Member
	Tasks            []models.Task // mais novas primeiro
	Loading          bool
	DeletePermission map[string]bool
}

type pendingPatch struct {
	seq   int
	patch models.TaskPatch
}

// pendingTask são as mutações locais de uma tarefa ainda sem resposta do servidor.
type pendingTask struct {
	creating *models.Task
	deleting int
	patches  []pendingPatch
}

func (p *pendingTask) idle() bool {
	return p.creating == nil && p.deleting == 0 && len(p.patches) == 0
}

// WorkspaceStore é o cache de workspaces e tarefas do usuário. As mutações de
// tarefa são otimistas e os eventos do feed são reconciliados por id: a linha
// do servidor é a base e os patches pendentes são reaplicados por cima.
type WorkspaceStore struct {
	api API
	sub Subscriber
	uid string
	now func() time.Time

	mu         sync.Mutex
	workspaces []models.WorkspaceSummary
	current    *models.Workspace
	role       models.Role
	members    []models.Member
	base       map[string]models.Task
	pending    map[string]*pendingTask
	canDelete  map[string]bool
	loading    int
	seq        int
	fetchGen   int

	listeners    map[int]func(State)
	nextListener int

	cancelSub context.CancelFunc
	subDone   chan struct{}
}

func NewWorkspaceStore(api API, sub Subscriber, uid string) *WorkspaceStore {
	return &WorkspaceStore{
		api:       api,
		sub:       sub,
		uid:       uid,
		now:       time.Now,
		base:      make(map[string]models.Task),
		pending:   make(map[string]*pendingTask),
		canDelete: make(map[string]bool),
		listeners: make(map[int]func(State)),
	}
}

// --- Estado ---

// view devolve a tarefa como o usuário a vê. Exige s.mu.
func (s *WorkspaceStore) view(id string) (models.Task, bool) {
	p := s.pending[id]
	if p != nil && p.deleting > 0 {
		return models.Task{}, false
	}
	t, ok := s.base[id]
	if !ok && p != nil && p.creating != nil {
		t, ok = *p.creating, true
	}
	if !ok {
		return models.Task{}, false
	}
	if p != nil {
		for _, pp := range p.patches {
			pp.patch.Apply(&t)
		}
	}
	return t, true
}

func (s *WorkspaceStore) tasksLocked() []models.Task {
	ids := make(map[string]struct{}, len(s.base)+len(s.pending))
	for id := range s.base {
		ids[id] = struct{}{}
	}
	for id := range s.pending {
		ids[id] = struct{}{}
	}
	tasks := make([]models.Task, 0, len(ids))
	for id := range ids {
		if t, ok := s.view(id); ok {
			tasks = append(tasks, t)
		}
	}
	slices.SortFunc(tasks, func(a, b models.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return tasks
}

func (s *WorkspaceStore) snapshotLocked() State {
	st := State{
		Workspaces:       slices.Clone(s.workspaces),
		CurrentRole:      s.role,
		Members:          slices.Clone(s.members),
		Tasks:            s.tasksLocked(),
		Loading:          s.loading > 0,
		DeletePermission: make(map[string]bool, len(s.canDelete)),
	}
	if s.current != nil {
		ws := *s.current
		st.Current = &ws
	}
	for id, ok := range s.canDelete {
		st.DeletePermission[id] = ok
	}
	return st
}

func (s *WorkspaceStore) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// OnChange registra fn, chamada com um novo State depois de cada mudança.
func (s *WorkspaceStore) OnChange(fn func(State)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// notify não pode ser chamado com s.mu travado.
func (s *WorkspaceStore) notify() {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	st := s.snapshotLocked()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (s *WorkspaceStore) setLoading(delta int) {
	s.mu.Lock()
	s.loading += delta
	s.mu.Unlock()
	s.notify()
}

// currentLocked devolve o id e o papel no workspace aberto.
func (s *WorkspaceStore) currentLocked() (string, models.Role, error) {
	if s.current == nil {
		return "", "", ErrNoWorkspace
	}
	return s.current.ID, s.role, nil
}

// FilteredTasks aplica f às tarefas visíveis.
func (s *WorkspaceStore) FilteredTasks(f models.TaskFilter) []models.Task {
	s.mu.Lock()
	tasks := s.tasksLocked()
	s.mu.Unlock()
	return f.Apply(tasks)
}

// SearchWorkspaces busca na lista já carregada.
func (s *WorkspaceStore) SearchWorkspaces(f models.WorkspaceFilter) models.WorkspacePage {
	s.mu.Lock()
	list := slices.Clone(s.workspaces)
	s.mu.Unlock()
	return models.FilterWorkspaces(list, f)
}

// --- Workspaces ---

// FetchWorkspaces carrega a lista e o mapa de permissão de exclusão.
func (s *WorkspaceStore) FetchWorkspaces(ctx context.Context) error {
	s.setLoading(1)
	defer s.setLoading(-1)

	list, err := s.api.AllWorkspaces(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.workspaces = list
	for _, w := range list {
		s.canDelete[w.ID] = w.CanDelete
	}
	s.mu.Unlock()
	return nil
}

type workspaceData struct {
	ws      *models.Workspace
	role    models.Role
	members []models.Member
	tasks   []models.Task
}

func (s *WorkspaceStore) load(ctx context.Context, id string) (*workspaceData, error) {
	role, err := s.api.MemberRole(ctx, id, s.uid)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, models.ErrNotMember
	}
	ws, err := s.api.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.api.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.api.ListTasks(ctx, id, models.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return &workspaceData{ws: ws, role: role, members: members, tasks: tasks}, nil
}

// FetchWorkspace abre o workspace id e troca a inscrição do feed por uma nova.
func (s *WorkspaceStore) FetchWorkspace(ctx context.Context, id string) error {
	s.mu.Lock()
	s.fetchGen++
	gen := s.fetchGen
	s.mu.Unlock()

	s.setLoading(1)
	defer s.setLoading(-1)

	data, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if gen != s.fetchGen {
		// outro FetchWorkspace começou depois deste
		s.mu.Unlock()
		return nil
	}
	s.current = data.ws
	s.role = data.role
	s.members = data.members
	s.base = make(map[string]models.Task, len(data.tasks))
	for _, t := range data.tasks {
		s.base[t.ID] = t
	}
	s.pending = make(map[string]*pendingTask)
	s.mu.Unlock()

	s.subscribe(id)
	return nil
}

func (s *WorkspaceStore) subscribe(id string) {
	s.stopSubscription()
	if s.sub == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancelSub, s.subDone = cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := s.sub.Subscribe(ctx, id, s.HandleEvent)
		switch {
		case errors.Is(err, models.ErrNotMember):
			utilities.LogInfo("acesso ao workspace %s removido", id)
			s.dropWorkspace(id)
		case err != nil && ctx.Err() == nil:
			utilities.LogError(err, "feed do workspace "+id)
		}
	}()
}

func (s *WorkspaceStore) stopSubscription() {
	s.mu.Lock()
	cancel, done := s.cancelSub, s.subDone
	s.cancelSub, s.subDone = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// clearCurrentLocked esquece o workspace aberto, se for id.
func (s *WorkspaceStore) clearCurrentLocked(id string) bool {
	if s.current == nil || s.current.ID != id {
		return false
	}
	s.current = nil
	s.role = ""
	s.members = nil
	s.base = make(map[string]models.Task)
	s.pending = make(map[string]*pendingTask)
	s.fetchGen++
	return true
}

// dropWorkspace tira id da lista e fecha o workspace se ele estiver aberto.
// Roda no goroutine do feed, então não espera a inscrição terminar.
func (s *WorkspaceStore) dropWorkspace(id string) {
	s.mu.Lock()
	s.workspaces = slices.DeleteFunc(s.workspaces, func(w models.WorkspaceSummary) bool { return w.ID == id })
	delete(s.canDelete, id)
	cleared := s.clearCurrentLocked(id)
	cancel := s.cancelSub
	if cleared {
		s.cancelSub, s.subDone = nil, nil
	}
	s.mu.Unlock()
	if cleared && cancel != nil {
		cancel()
	}
	s.notify()
}

// CreateWorkspace cria e recarrega a lista.
func (s *WorkspaceStore) CreateWorkspace(ctx context.Context, in models.WorkspaceInput) (*models.Workspace, error) {
	ws, err := s.api.CreateWorkspace(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.FetchWorkspaces(ctx); err != nil {
		utilities.LogWarn("workspace %s criado mas a lista não foi recarregada: %v", ws.ID, err)
	}
	return ws, nil
}

func (s *WorkspaceStore) UpdateWorkspace(ctx context.Context, id string, patch models.WorkspacePatch) (*models.Workspace, error) {
	ws, err := s.api.UpdateWorkspace(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.replaceWorkspaceLocked(*ws)
	s.mu.Unlock()
	s.notify()
	return ws, nil
}

func (s *WorkspaceStore) replaceWorkspaceLocked(ws models.Workspace) {
	if s.current != nil && s.current.ID == ws.ID {
		s.current = &ws
	}
	for i := range s.workspaces {
		if s.workspaces[i].ID == ws.ID {
			s.workspaces[i].Workspace = ws
		}
	}
}

func (s *WorkspaceStore) DeleteWorkspace(ctx context.Context, id string) error {
	if err := s.api.DeleteWorkspace(ctx, id); err != nil {
		return err
	}
	s.dropWorkspace(id)
	return nil
}

// CheckDeletePermission consulta o servidor uma vez por workspace.
func (s *WorkspaceStore) CheckDeletePermission(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	ok, cached := s.canDelete[id]
	s.mu.Unlock()
	if cached {
		return ok, nil
	}
	access, err := s.api.Permissions(ctx, id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.canDelete[id] = access.Permissions.CanDelete
	s.mu.Unlock()
	return access.Permissions.CanDelete, nil
}

// CheckUserRole devolve "" quando o usuário não é membro de id.
func (s *WorkspaceStore) CheckUserRole(ctx context.Context, id string) (models.Role, error) {
	return s.api.MemberRole(ctx, id, s.uid)
}

// --- Tarefas ---

// acceptRowLocked guarda a linha do servidor, sem voltar para uma versão mais antiga.
func (s *WorkspaceStore) acceptRowLocked(t models.Task) {
	if cur, ok := s.base[t.ID]; ok && t.UpdatedAt.Before(cur.UpdatedAt) {
		return
	}
	s.base[t.ID] = t
}

func (s *WorkspaceStore) pendingLocked(id string) *pendingTask {
	p := s.pending[id]
	if p == nil {
		p = &pendingTask{}
		s.pending[id] = p
	}
	return p
}

func (s *WorkspaceStore) settleLocked(id string, p *pendingTask) {
	if p.idle() && s.pending[id] == p {
		delete(s.pending, id)
	}
}

func (s *WorkspaceStore) writableLocked() (string, error) {
	wsID, role, err := s.currentLocked()
	if err != nil {
		return "", err
	}
	if !role.CanWriteTasks() {
		return "", models.ErrForbidden
	}
	return wsID, nil
}

// CreateTask insere a tarefa localmente com um id gerado aqui; o eco do
// servidor chega com o mesmo id. Em caso de erro a inserção é desfeita.
func (s *WorkspaceStore) CreateTask(ctx context.Context, in models.NewTask) (*models.Task, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	wsID, err := s.writableLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	optimistic := in.Task(wsID, s.uid, s.now())
	p := s.pendingLocked(in.ID)
	p.creating = &optimistic
	s.mu.Unlock()
	s.notify()

	created, err := s.api.CreateTask(ctx, wsID, in)

	s.mu.Lock()
	if s.pending[in.ID] == p {
		p.creating = nil
		if err == nil {
			s.acceptRowLocked(*created)
		}
		s.settleLocked(in.ID, p)
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateTask aplica o patch localmente; em caso de erro a tarefa volta para a
// última linha conhecida do servidor com os demais patches pendentes.
func (s *WorkspaceStore) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, models.InvalidInput("nothing to update")
	}

	s.mu.Lock()
	wsID, err := s.writableLocked()
	if err == nil {
		if _, ok := s.view(id); !ok {
			err = fmt.Errorf("task %s: %w", id, models.ErrNotFound)
		}
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.seq++
	seq := s.seq
	p := s.pendingLocked(id)
	p.patches = append(p.patches, pendingPatch{seq: seq, patch: patch})
	s.mu.Unlock()
	s.notify()

	updated, err := s.api.UpdateTask(ctx, wsID, id, patch)

	s.mu.Lock()
	if s.pending[id] == p {
		p.patches = slices.DeleteFunc(p.patches, func(pp pendingPatch) bool { return pp.seq == seq })
		if err == nil {
			s.acceptRowLocked(*updated)
		}
		s.settleLocked(id, p)
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTask esconde a tarefa até o servidor responder e a restaura em caso de erro.
func (s *WorkspaceStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	wsID, err := s.writableLocked()
	if err == nil {
		if _, ok := s.view(id); !ok {
			err = fmt.Errorf("task %s: %w", id, models.ErrNotFound)
		}
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	p := s.pendingLocked(id)
	p.deleting++
	s.mu.Unlock()
	s.notify()

	err = s.api.DeleteTask(ctx, wsID, id)
	if errors.Is(err, models.ErrNotFound) {
		// já foi removida por outra pessoa
		err = nil
	}

	s.mu.Lock()
	if s.pending[id] == p {
		p.deleting--
		if err == nil {
			delete(s.base, id)
			delete(s.pending, id)
		} else {
			s.settleLocked(id, p)
		}
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// --- Membros ---

func (s *WorkspaceStore) ownersLocked() int {
	n := 0
	for _, m := range s.members {
		if m.Role == models.RoleOwner {
			n++
		}
	}
	return n
}

func (s *WorkspaceStore) memberLocked(uid string) (models.Member, bool) {
	for _, m := range s.members {
		if m.UserID == uid {
			return m, true
		}
	}
	return models.Member{}, false
}

func (s *WorkspaceStore) upsertMemberLocked(m models.Member) {
	for i := range s.members {
		if s.members[i].UserID == m.UserID {
			s.members[i] = m
			return
		}
	}
	s.members = append(s.members, m)
}

// AddWorkspaceMember convida por email. Só owner e admin convidam; só owner concede owner.
func (s *WorkspaceStore) AddWorkspaceMember(ctx context.Context, email string, role models.Role) (*models.Member, error) {
	role, err := models.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	wsID, callerRole, err := s.currentLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !callerRole.Permissions().CanInvite || (role == models.RoleOwner && callerRole != models.RoleOwner) {
		return nil, models.ErrForbidden
	}

	m, err := s.api.AddMember(ctx, wsID, models.MemberInput{Email: email, Role: role})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.current != nil && s.current.ID == wsID {
		s.upsertMemberLocked(*m)
	}
	s.mu.Unlock()
	s.notify()
	return m, nil
}

// RemoveWorkspaceMember: o owner remove qualquer um; os demais só a si mesmos.
func (s *WorkspaceStore) RemoveWorkspaceMember(ctx context.Context, userID string) error {
	s.mu.Lock()
	wsID, callerRole, err := s.currentLocked()
	if err == nil {
		if userID != s.uid && callerRole != models.RoleOwner {
			err = models.ErrForbidden
		} else if m, ok := s.memberLocked(userID); ok && m.Role == models.RoleOwner && s.ownersLocked() == 1 {
			err = models.ErrLastOwner
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.api.RemoveMember(ctx, wsID, userID); err != nil {
		return err
	}
	if userID == s.uid {
		s.dropWorkspace(wsID)
		return nil
	}
	s.mu.Lock()
	if s.current != nil && s.current.ID == wsID {
		s.members = slices.DeleteFunc(s.members, func(m models.Member) bool { return m.UserID == userID })
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// UpdateMemberRole: só owner concede ou retira owner, e o último owner não pode ser rebaixado.
func (s *WorkspaceStore) UpdateMemberRole(ctx context.Context, userID string, role models.Role) (*models.Member, error) {
	if !role.Valid() {
		return nil, models.InvalidInput("unknown role %q", role)
	}
	s.mu.Lock()
	wsID, callerRole, err := s.currentLocked()
	if err == nil {
		target, ok := s.memberLocked(userID)
		switch {
		case !callerRole.Permissions().CanManageMembers:
			err = models.ErrForbidden
		case callerRole != models.RoleOwner && (role == models.RoleOwner || target.Role == models.RoleOwner):
			err = models.ErrForbidden
		case ok && target.Role == models.RoleOwner && role != models.RoleOwner && s.ownersLocked() == 1:
			err = models.ErrLastOwner
		}
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m, err := s.api.UpdateMemberRole(ctx, wsID, userID, role)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.current != nil && s.current.ID == wsID {
		s.upsertMemberLocked(*m)
		if userID == s.uid {
			s.role = m.Role
		}
	}
	s.mu.Unlock()
	s.notify()
	return m, nil
}

// --- Eventos ---

// HandleEvent reconcilia um evento do feed com o estado local.
func (s *WorkspaceStore) HandleEvent(e models.ChangeEvent) {
	s.mu.Lock()
	if s.current == nil || (e.WorkspaceID != "" && e.WorkspaceID != s.current.ID) {
		s.mu.Unlock()
		return
	}
	wsID := s.current.ID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), eventFetchTimeout)
	defer cancel()

	switch {
	case e.Type == models.EventResync:
		s.resync(ctx, wsID)
	case e.Table == models.TableTasks:
		s.handleTaskEvent(ctx, wsID, e)
	case e.Table == models.TableMembers:
		s.handleMemberEvent(ctx, wsID, e)
	case e.Table == models.TableWorkspaces:
		s.handleWorkspaceEvent(ctx, wsID, e)
	default:
		return
	}
	s.notify()
}

func taskID(e models.ChangeEvent) string {
	if e.RecordID != "" {
		return e.RecordID
	}
	if t, err := models.DecodeOld[models.Task](e); err == nil {
		return t.ID
	}
	if t, err := models.DecodeNew[models.Task](e); err == nil {
		return t.ID
	}
	return ""
}

func (s *WorkspaceStore) handleTaskEvent(ctx context.Context, wsID string, e models.ChangeEvent) {
	id := taskID(e)
	if id == "" {
		utilities.LogWarn("evento de tarefa sem id ignorado")
		return
	}

	if e.Type == models.EventDelete {
		s.mu.Lock()
		if s.isCurrentLocked(wsID) {
			delete(s.base, id)
			delete(s.pending, id)
		}
		s.mu.Unlock()
		return
	}

	var row *models.Task
	if e.Truncated || !e.HasNew() {
		t, err := s.api.GetTask(ctx, wsID, id)
		if err != nil {
			utilities.LogError(err, "HandleEvent: falha ao buscar tarefa "+id)
			return
		}
		row = t
	} else {
		t, err := models.DecodeNew[models.Task](e)
		if err != nil {
			utilities.LogError(err, "HandleEvent")
			return
		}
		row = &t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrentLocked(wsID) {
		return
	}
	if p := s.pending[id]; p != nil && p.deleting > 0 {
		return
	}
	s.base[id] = *row
}

func (s *WorkspaceStore) isCurrentLocked(wsID string) bool {
	return s.current != nil && s.current.ID == wsID
}

func (s *WorkspaceStore) handleMemberEvent(ctx context.Context, wsID string, e models.ChangeEvent) {
	if e.RemovesMember(s.uid) {
		s.dropWorkspace(wsID)
		return
	}
	members, err := s.api.ListMembers(ctx, wsID)
	if err != nil {
		utilities.LogError(err, "HandleEvent: falha ao recarregar membros de "+wsID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrentLocked(wsID) {
		return
	}
	s.members = members
	if m, ok := s.memberLocked(s.uid); ok {
		s.role = m.Role
	}
}

func (s *WorkspaceStore) handleWorkspaceEvent(ctx context.Context, wsID string, e models.ChangeEvent) {
	if e.Type == models.EventDelete {
		s.dropWorkspace(wsID)
		return
	}
	ws, err := models.DecodeNew[models.Workspace](e)
	if err != nil {
		fetched, ferr := s.api.GetWorkspace(ctx, wsID)
		if ferr != nil {
			utilities.LogError(ferr, "HandleEvent: falha ao buscar workspace "+wsID)
			return
		}
		ws = *fetched
	}
	s.mu.Lock()
	s.replaceWorkspaceLocked(ws)
	s.mu.Unlock()
}

// resync recarrega o workspace aberto; os patches pendentes continuam por cima.
func (s *WorkspaceStore) resync(ctx context.Context, wsID string) {
	data, err := s.load(ctx, wsID)
	if errors.Is(err, models.ErrNotMember) || errors.Is(err, models.ErrNotFound) {
		s.dropWorkspace(wsID)
		return
	}
	if err != nil {
		utilities.LogError(err, "resync do workspace "+wsID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrentLocked(wsID) {
		return
	}
	s.replaceWorkspaceLocked(*data.ws)
	s.role = data.role
	s.members = data.members
	base := make(map[string]models.Task, len(data.tasks))
	for _, t := range data.tasks {
		if p := s.pending[t.ID]; p != nil && p.deleting > 0 {
			continue
		}
		base[t.ID] = t
	}
	s.base = base
}

// Close encerra a inscrição do feed.
func (s *WorkspaceStore) Close() {
	s.stopSubscription()
}
