package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"taskflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func openStore(t *testing.T, api *fakeAPI) (*WorkspaceStore, *fakeSubscriber) {
	t.Helper()
	sub := &fakeSubscriber{}
	s := NewWorkspaceStore(api, sub, "uid-me")
	t.Cleanup(s.Close)
	require.NoError(t, s.FetchWorkspace(context.Background(), wsID))
	return s, sub
}

func rowEvent(table string, typ models.EventType, id string, row interface{}) models.ChangeEvent {
	raw, _ := json.Marshal(row)
	e := models.ChangeEvent{Table: table, Type: typ, WorkspaceID: wsID, RecordID: id, CommitTimestamp: t0}
	if typ == models.EventDelete {
		e.Old = raw
	} else {
		e.New = raw
	}
	return e
}

func taskEcho(typ models.EventType, t models.Task) models.ChangeEvent {
	return rowEvent(models.TableTasks, typ, t.ID, t)
}

func titles(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestFetchWorkspaceNotMember(t *testing.T) {
	api := newFakeAPI()
	delete(api.roles, "uid-me")
	sub := &fakeSubscriber{}
	s := NewWorkspaceStore(api, sub, "uid-me")
	defer s.Close()

	err := s.FetchWorkspace(context.Background(), wsID)
	assert.ErrorIs(t, err, models.ErrNotMember)
	assert.Nil(t, s.Snapshot().Current)
	assert.Zero(t, api.count("ListTasks"))
	subscribed, _ := sub.state()
	assert.Empty(t, subscribed)
}

func TestFetchWorkspaceLoadsAndSubscribes(t *testing.T) {
	api := newFakeAPI()
	api.addTask("t-old", "Old", t0)
	api.addTask("t-new", "New", t0.Add(time.Hour))
	s, sub := openStore(t, api)

	st := s.Snapshot()
	require.NotNil(t, st.Current)
	assert.Equal(t, "Design", st.Current.Name)
	assert.Equal(t, models.RoleMember, st.CurrentRole)
	assert.Len(t, st.Members, 2)
	assert.Equal(t, []string{"New", "Old"}, titles(st.Tasks))
	assert.False(t, st.Loading)

	require.Eventually(t, func() bool { _, active := sub.state(); return active == 1 }, time.Second, 5*time.Millisecond)

	// reabrir troca a inscrição em vez de somar outra
	require.NoError(t, s.FetchWorkspace(context.Background(), wsID))
	require.Eventually(t, func() bool {
		subscribed, active := sub.state()
		return len(subscribed) == 2 && active == 1
	}, time.Second, 5*time.Millisecond)

	s.Close()
	_, active := sub.state()
	assert.Zero(t, active)
}

func TestRowCommittedBeforeFeedConnectsIsLoaded(t *testing.T) {
	api := newFakeAPI()
	api.addTask("t-old", "Old", t0)
	sub := &fakeSubscriber{
		// a linha é gravada depois de ListTasks e antes do handshake;
		// o feed abre cada conexão com um RESYNC
		OnConnect: func(workspaceID string, handle func(models.ChangeEvent)) {
			api.addTask("t-late", "Late", t0.Add(time.Hour))
			handle(models.ResyncEvent(workspaceID, t0))
		},
	}
	s := NewWorkspaceStore(api, sub, "uid-me")
	t.Cleanup(s.Close)
	require.NoError(t, s.FetchWorkspace(context.Background(), wsID))

	require.Eventually(t, func() bool { return len(s.Snapshot().Tasks) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Late", "Old"}, titles(s.Snapshot().Tasks))
	assert.Equal(t, 2, api.count("ListTasks"))
}

func TestCreateTaskOptimisticAndEchoDoesNotDuplicate(t *testing.T) {
	api := newFakeAPI()
	s, _ := openStore(t, api)

	api.During = func(string) {
		st := s.Snapshot()
		require.Len(t, st.Tasks, 1)
		assert.Equal(t, "Write docs", st.Tasks[0].Title)

		echo := st.Tasks[0]
		echo.UpdatedAt = echo.UpdatedAt.Add(time.Second)
		s.HandleEvent(taskEcho(models.EventInsert, echo))
		assert.Len(t, s.Snapshot().Tasks, 1)
	}

	created, err := s.CreateTask(context.Background(), models.NewTask{Title: "Write docs"})
	require.NoError(t, err)

	tasks := s.Snapshot().Tasks
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
	assert.Equal(t, models.StatusTodo, tasks[0].Status)
}

func TestCreateTaskRollsBack(t *testing.T) {
	api := newFakeAPI()
	api.CreateTaskErr = errBoom
	s, _ := openStore(t, api)

	_, err := s.CreateTask(context.Background(), models.NewTask{Title: "Write docs"})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, s.Snapshot().Tasks)
}

func TestCreateTaskValidatesLocally(t *testing.T) {
	api := newFakeAPI()
	s, _ := openStore(t, api)

	_, err := s.CreateTask(context.Background(), models.NewTask{Title: "   "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Zero(t, api.count("CreateTask"))
}

func TestUpdateTaskReappliesPatchOverEcho(t *testing.T) {
	api := newFakeAPI()
	orig := api.addTask("t1", "A", t0)
	api.UpdateTaskErr = errBoom
	s, _ := openStore(t, api)

	api.During = func(string) {
		echo := orig
		echo.Title = "B"
		echo.UpdatedAt = t0.Add(time.Minute)
		s.HandleEvent(taskEcho(models.EventUpdate, echo))

		tasks := s.Snapshot().Tasks
		require.Len(t, tasks, 1)
		assert.Equal(t, "B", tasks[0].Title)
		assert.Equal(t, models.StatusInProgress, tasks[0].Status)
	}

	status := models.StatusInProgress
	_, err := s.UpdateTask(context.Background(), "t1", models.TaskPatch{Status: &status})
	assert.ErrorIs(t, err, errBoom)

	// volta para a última linha do servidor, não para a original
	tasks := s.Snapshot().Tasks
	require.Len(t, tasks, 1)
	assert.Equal(t, "B", tasks[0].Title)
	assert.Equal(t, models.StatusTodo, tasks[0].Status)
}

func TestUpdateTaskAcceptsServerRow(t *testing.T) {
	api := newFakeAPI()
	api.addTask("t1", "A", t0)
	s, _ := openStore(t, api)

	done := models.StatusDone
	updated, err := s.UpdateTask(context.Background(), "t1", models.TaskPatch{Status: &done})
	require.NoError(t, err)

	tasks := s.Snapshot().Tasks
	require.Len(t, tasks, 1)
	assert.Equal(t, models.StatusDone, tasks[0].Status)
	assert.Equal(t, updated.UpdatedAt, tasks[0].UpdatedAt)

	// o eco do servidor sempre prevalece
	stale := tasks[0]
	stale.Status = models.StatusTodo
	stale.UpdatedAt = t0
	s.HandleEvent(taskEcho(models.EventUpdate, stale))
	assert.Equal(t, models.StatusTodo, s.Snapshot().Tasks[0].Status)
}

func TestUpdateTaskUnknown(t *testing.T) {
	api := newFakeAPI()
	s, _ := openStore(t, api)

	title := "x"
	_, err := s.UpdateTask(context.Background(), "missing", models.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.UpdateTask(context.Background(), "missing", models.TaskPatch{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDeleteTaskTombstoneIgnoresEchoAndRestores(t *testing.T) {
	api := newFakeAPI()
	orig := api.addTask("t1", "A", t0)
	api.DeleteTaskErr = errBoom
	s, _ := openStore(t, api)

	api.During = func(string) {
		assert.Empty(t, s.Snapshot().Tasks)

		echo := orig
		echo.Title = "B"
		echo.UpdatedAt = t0.Add(time.Minute)
		s.HandleEvent(taskEcho(models.EventUpdate, echo))
		assert.Empty(t, s.Snapshot().Tasks)
	}

	err := s.DeleteTask(context.Background(), "t1")
	assert.ErrorIs(t, err, errBoom)

	tasks := s.Snapshot().Tasks
	require.Len(t, tasks, 1)
	assert.Equal(t, "A", tasks[0].Title)
}

func TestDeleteTaskSuccess(t *testing.T) {
	api := newFakeAPI()
	api.addTask("t1", "A", t0)
	s, _ := openStore(t, api)

	require.NoError(t, s.DeleteTask(context.Background(), "t1"))
	assert.Empty(t, s.Snapshot().Tasks)

	assert.ErrorIs(t, s.DeleteTask(context.Background(), "t1"), models.ErrNotFound)
}

func TestDeleteEchoMakesRollbackNoop(t *testing.T) {
	api := newFakeAPI()
	orig := api.addTask("t1", "A", t0)
	api.UpdateTaskErr = errBoom
	s, _ := openStore(t, api)

	api.During = func(string) {
		s.HandleEvent(taskEcho(models.EventDelete, orig))
	}

	title := "renamed"
	_, err := s.UpdateTask(context.Background(), "t1", models.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, s.Snapshot().Tasks)
}

func TestGuestCannotWriteTasks(t *testing.T) {
	api := newFakeAPI()
	api.roles["uid-me"] = models.RoleGuest
	api.addTask("t1", "A", t0)
	s, _ := openStore(t, api)

	_, err := s.CreateTask(context.Background(), models.NewTask{Title: "x"})
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.ErrorIs(t, s.DeleteTask(context.Background(), "t1"), models.ErrForbidden)
	assert.Zero(t, api.count("CreateTask"))
	assert.Zero(t, api.count("DeleteTask"))
}

func TestTaskOperationsNeedWorkspace(t *testing.T) {
	s := NewWorkspaceStore(newFakeAPI(), nil, "uid-me")
	_, err := s.CreateTask(context.Background(), models.NewTask{Title: "x"})
	assert.ErrorIs(t, err, ErrNoWorkspace)
}

func TestTruncatedEventFetchesRow(t *testing.T) {
	api := newFakeAPI()
	s, _ := openStore(t, api)
	api.addTask("t2", "Big", t0)

	s.HandleEvent(models.ChangeEvent{Table: models.TableTasks, Type: models.EventInsert, WorkspaceID: wsID, RecordID: "t2", Truncated: true})
	assert.Equal(t, []string{"Big"}, titles(s.Snapshot().Tasks))
	assert.Equal(t, 1, api.count("GetTask"))
}

func TestEventsForOtherWorkspaceIgnored(t *testing.T) {
	api := newFakeAPI()
	s, _ := openStore(t, api)

	e := taskEcho(models.EventInsert, models.Task{ID: "t9", Title: "elsewhere", CreatedAt: t0})
	e.WorkspaceID = "another-workspace"
	s.HandleEvent(e)
	assert.Empty(t, s.Snapshot().Tasks)
}

func TestMemberEvents(t *testing.T) {
	api := newFakeAPI()
	s, sub := openStore(t, api)
	require.NoError(t, s.FetchWorkspaces(context.Background()))
	require.Eventually(t, func() bool { _, active := sub.state(); return active == 1 }, time.Second, 5*time.Millisecond)

	api.mu.Lock()
	api.roles["uid-other"] = models.RoleAdmin
	api.mu.Unlock()
	other := models.Member{ID: "m-uid-other", WorkspaceID: wsID, UserID: "uid-other", Role: models.RoleAdmin}
	s.HandleEvent(rowEvent(models.TableMembers, models.EventInsert, other.ID, other))
	assert.Len(t, s.Snapshot().Members, 3)

	me := models.Member{ID: "m-uid-me", WorkspaceID: wsID, UserID: "uid-me", Role: models.RoleMember}
	s.HandleEvent(rowEvent(models.TableMembers, models.EventDelete, me.ID, me))

	st := s.Snapshot()
	assert.Nil(t, st.Current)
	assert.Empty(t, st.Members)
	assert.Empty(t, st.Workspaces)
	require.Eventually(t, func() bool { _, active := sub.state(); return active == 0 }, time.Second, 5*time.Millisecond)
}

func TestWorkspaceEvents(t *testing.T) {
	api := newFakeAPI()
	s, _ := openStore(t, api)
	require.NoError(t, s.FetchWorkspaces(context.Background()))

	renamed := api.ws
	renamed.Name = "Renamed"
	s.HandleEvent(rowEvent(models.TableWorkspaces, models.EventUpdate, wsID, renamed))

	st := s.Snapshot()
	assert.Equal(t, "Renamed", st.Current.Name)
	assert.Equal(t, "Renamed", st.Workspaces[0].Name)

	s.HandleEvent(rowEvent(models.TableWorkspaces, models.EventDelete, wsID, renamed))
	assert.Nil(t, s.Snapshot().Current)
}

func TestResyncKeepsPendingPatches(t *testing.T) {
	api := newFakeAPI()
	api.addTask("t1", "A", t0)
	s, _ := openStore(t, api)

	api.During = func(string) {
		api.mu.Lock()
		row := api.tasks["t1"]
		row.Title = "Server"
		api.tasks["t1"] = row
		api.mu.Unlock()
		api.addTask("t2", "Added while offline", t0.Add(time.Hour))

		s.HandleEvent(models.ResyncEvent(wsID, time.Now()))

		tasks := s.Snapshot().Tasks
		require.Len(t, tasks, 2)
		assert.Equal(t, "Server", tasks[1].Title)
		assert.Equal(t, models.PriorityUrgent, tasks[1].Priority)
	}

	urgent := models.PriorityUrgent
	_, err := s.UpdateTask(context.Background(), "t1", models.TaskPatch{Priority: &urgent})
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("ListTasks"))
}

func TestMemberGuards(t *testing.T) {
	api := newFakeAPI()
	api.roles = map[string]models.Role{"uid-me": models.RoleOwner, "uid-other": models.RoleMember}
	s, _ := openStore(t, api)

	_, err := s.UpdateMemberRole(context.Background(), "uid-me", models.RoleAdmin)
	assert.ErrorIs(t, err, models.ErrLastOwner)
	assert.ErrorIs(t, s.RemoveWorkspaceMember(context.Background(), "uid-me"), models.ErrLastOwner)
	assert.Zero(t, api.count("UpdateMemberRole"))
	assert.Zero(t, api.count("RemoveMember"))

	m, err := s.AddWorkspaceMember(context.Background(), "new@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)
	assert.Len(t, s.Snapshot().Members, 3)

	require.NoError(t, s.RemoveWorkspaceMember(context.Background(), "uid-other"))
	assert.Len(t, s.Snapshot().Members, 2)

	_, err = s.UpdateMemberRole(context.Background(), "uid-new", models.RoleOwner)
	require.NoError(t, err)
	_, err = s.UpdateMemberRole(context.Background(), "uid-me", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, s.Snapshot().CurrentRole)
}

func TestMemberGuardsForNonOwners(t *testing.T) {
	api := newFakeAPI()
	api.roles["uid-me"] = models.RoleAdmin
	s, _ := openStore(t, api)

	_, err := s.UpdateMemberRole(context.Background(), "uid-owner", models.RoleMember)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = s.AddWorkspaceMember(context.Background(), "boss@example.com", models.RoleOwner)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.ErrorIs(t, s.RemoveWorkspaceMember(context.Background(), "uid-owner"), models.ErrForbidden)

	// sair do workspace é sempre permitido
	require.NoError(t, s.RemoveWorkspaceMember(context.Background(), "uid-me"))
	assert.Nil(t, s.Snapshot().Current)
}

func TestCheckDeletePermissionIsCached(t *testing.T) {
	api := newFakeAPI()
	s := NewWorkspaceStore(api, nil, "uid-me")
	require.NoError(t, s.FetchWorkspaces(context.Background()))

	ok, err := s.CheckDeletePermission(context.Background(), wsID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, api.count("Permissions"))

	for i := 0; i < 2; i++ {
		ok, err = s.CheckDeletePermission(context.Background(), "ws-other")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, api.count("Permissions"))
	assert.True(t, s.Snapshot().DeletePermission["ws-other"])
}

func TestWorkspaceLifecycle(t *testing.T) {
	api := newFakeAPI()
	s, _ := openStore(t, api)

	ws, err := s.CreateWorkspace(context.Background(), models.WorkspaceInput{Name: "Backend"})
	require.NoError(t, err)
	assert.Len(t, s.Snapshot().Workspaces, 2)

	page := s.SearchWorkspaces(models.WorkspaceFilter{Query: "back"})
	require.Len(t, page.Workspaces, 1)
	assert.Equal(t, ws.ID, page.Workspaces[0].ID)

	name := "Design v2"
	_, err = s.UpdateWorkspace(context.Background(), wsID, models.WorkspacePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Design v2", s.Snapshot().Current.Name)

	require.NoError(t, s.DeleteWorkspace(context.Background(), wsID))
	st := s.Snapshot()
	assert.Nil(t, st.Current)
	assert.Len(t, st.Workspaces, 1)

	role, err := s.CheckUserRole(context.Background(), wsID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, role)
}

func TestFilteredTasksAndOnChange(t *testing.T) {
	api := newFakeAPI()
	api.addTask("t1", "Fix login", t0)
	api.addTask("t2", "Write docs", t0.Add(time.Hour))
	s, _ := openStore(t, api)

	var changes int
	cancel := s.OnChange(func(State) { changes++ })

	done := models.StatusDone
	_, err := s.UpdateTask(context.Background(), "t1", models.TaskPatch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, 2, changes)

	filtered := s.FilteredTasks(models.TaskFilter{Status: []models.TaskStatus{models.StatusDone}})
	assert.Equal(t, []string{"Fix login"}, titles(filtered))
	assert.Equal(t, []string{"Fix login", "Write docs"}, titles(s.FilteredTasks(models.TaskFilter{SortBy: models.SortOldest})))

	cancel()
	_, err = s.UpdateTask(context.Background(), "t1", models.TaskPatch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, 2, changes)
}
