package handlers

import (
	"net/http"

	"taskflow/models"
	"taskflow/utilities"
)

// taskWriteRoles são os papéis que criam, editam e removem tarefas; guests só leem.
var taskWriteRoles = []models.Role{models.RoleOwner, models.RoleAdmin, models.RoleMember}

func (h *Handlers) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "CreateTaskHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, workspaceID, uid, taskWriteRoles...); !ok {
		return
	}

	var input models.NewTask
	if !decodeJSON(w, r, &input, "CreateTaskHandler") {
		return
	}
	task, err := models.CreateTask(r.Context(), h.db, workspaceID, uid, input)
	if err != nil {
		writeError(w, err, "CreateTaskHandler")
		return
	}
	utilities.LogDebug("Tarefa %s criada no workspace %s", task.ID, workspaceID)
	writeJSON(w, http.StatusCreated, task)
}

// ListTasksHandler aceita status, priority, assignee, q, sort, due_after e due_before.
func (h *Handlers) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "ListTasksHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, workspaceID, uid); !ok {
		return
	}

	filter, err := models.TaskFilterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, err, "ListTasksHandler")
		return
	}
	tasks, err := models.ListTasks(r.Context(), h.db, workspaceID, filter)
	if err != nil {
		writeError(w, err, "ListTasksHandler")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) GetTaskHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "GetTaskHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, workspaceID, uid); !ok {
		return
	}

	task, err := models.GetTask(r.Context(), h.db, workspaceID, taskID)
	if err != nil {
		writeError(w, err, "GetTaskHandler")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handlers) UpdateTaskHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "UpdateTaskHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, workspaceID, uid, taskWriteRoles...); !ok {
		return
	}

	var patch models.TaskPatch
	if !decodeJSON(w, r, &patch, "UpdateTaskHandler") {
		return
	}
	task, err := models.UpdateTask(r.Context(), h.db, workspaceID, taskID, patch)
	if err != nil {
		writeError(w, err, "UpdateTaskHandler")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handlers) DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "DeleteTaskHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, workspaceID, uid, taskWriteRoles...); !ok {
		return
	}

	if err := models.DeleteTask(r.Context(), h.db, workspaceID, taskID); err != nil {
		writeError(w, err, "DeleteTaskHandler")
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted successfully")
}
