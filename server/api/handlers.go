// Package api implements the taskboard REST handlers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/report"
	"github.com/GoCodeAlone/taskboard/store"
	"github.com/GoCodeAlone/taskboard/task"
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Store   store.Store
	Tasks   *task.Manager
	Reports *report.Engine
	Logger  *slog.Logger
}

// RegisterRoutes registers the entity and report routes on mux, plus a
// catch-all that answers 404.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /tasks", h.createTask)
	mux.HandleFunc("GET /tasks", h.listTasks)
	mux.HandleFunc("GET /tasks/{id}", h.getTask)
	mux.HandleFunc("PUT /tasks/{id}", h.updateTask)
	mux.HandleFunc("DELETE /tasks/{id}", h.deleteTask)

	mux.HandleFunc("POST /teams", h.createTeam)
	mux.HandleFunc("GET /teams", h.listTeams)
	mux.HandleFunc("DELETE /teams/{id}", h.deleteTeam)

	mux.HandleFunc("POST /projects", h.createProject)
	mux.HandleFunc("GET /projects", h.listProjects)
	mux.HandleFunc("DELETE /projects/{id}", h.deleteProject)

	mux.HandleFunc("POST /tags", h.createTag)
	mux.HandleFunc("GET /tags", h.listTags)
	mux.HandleFunc("DELETE /tags/{id}", h.deleteTag)

	mux.HandleFunc("GET /users", h.listUsers)
	mux.HandleFunc("DELETE /users/{id}", h.deleteUser)

	mux.HandleFunc("GET /reports/work-done-last-week", h.workDoneLastWeek)
	mux.HandleFunc("GET /reports/pending-work-days", h.pendingWorkDays)
	mux.HandleFunc("GET /reports/tasks-closed-by-team", h.tasksClosedByTeam)
	mux.HandleFunc("GET /reports/tasks-closed-by-owner", h.tasksClosedByOwner)

	mux.HandleFunc("/", NotFound)
}

// WriteJSON encodes v as JSON and writes it with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// NotFound answers any unrouted request.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found.")
}

// WriteFault maps err onto a status code and error payload. Unclassified
// errors are logged and reported as 500 with the cause in details.
func WriteFault(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *entity.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, entity.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, entity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials.")
	case errors.Is(err, entity.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
	case errors.Is(err, entity.ErrConflict):
		writeError(w, http.StatusConflict, "Already exists.")
	default:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", slog.Any("err", err))
		WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error.",
			"details": err.Error(),
		})
	}
}

// DecodeBody decodes the JSON request body into v. A malformed body is
// reported as a validation failure on "body".
func DecodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &entity.ValidationError{Field: "body", Msg: "is not valid JSON: " + err.Error()}
	}
	return nil
}

func (h *Handlers) fault(w http.ResponseWriter, err error) {
	WriteFault(w, h.Logger, err)
}

// --- Task handlers ---

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var p task.Payload
	if err := DecodeBody(r, &p); err != nil {
		h.fault(w, err)
		return
	}
	t, err := h.Tasks.Create(r.Context(), p)
	if err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"message": "Task created.", "task": t})
}

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := task.Filter{
		Status:  task.Status(strings.TrimSpace(q.Get("status"))),
		Team:    q.Get("team"),
		Project: q.Get("project"),
		Owner:   q.Get("owner"),
		Tag:     q.Get("tag"),
	}
	views, err := h.Tasks.List(r.Context(), filter)
	if err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, views)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	v, err := h.Tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var patch task.Patch
	if err := DecodeBody(r, &patch); err != nil {
		h.fault(w, err)
		return
	}
	v, err := h.Tasks.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	h.deleted(w, "Task", func() (bool, error) { return h.Tasks.Delete(r.Context(), r.PathValue("id")) })
}

// deleted runs del and answers 200 when something was removed, 404 otherwise.
func (h *Handlers) deleted(w http.ResponseWriter, kind string, del func() (bool, error)) {
	ok, err := del()
	if err != nil {
		h.fault(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, kind+" not found.")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": kind + " deleted."})
}

// --- Team, project and tag handlers ---

type namedBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (b namedBody) validate(needDescription bool) error {
	if strings.TrimSpace(b.Name) == "" {
		return entity.Required("name")
	}
	if needDescription && strings.TrimSpace(b.Description) == "" {
		return entity.Required("description")
	}
	return nil
}

func (h *Handlers) createTeam(w http.ResponseWriter, r *http.Request) {
	var b namedBody
	if err := DecodeBody(r, &b); err != nil {
		h.fault(w, err)
		return
	}
	if err := b.validate(true); err != nil {
		h.fault(w, err)
		return
	}
	t := &entity.Team{Name: strings.TrimSpace(b.Name), Description: b.Description}
	if err := h.Store.CreateTeam(r.Context(), t); err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"message": "Team created.", "team": t})
}

func (h *Handlers) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Store.ListTeams(r.Context())
	if err != nil {
		h.fault(w, err)
		return
	}
	if teams == nil {
		teams = []*entity.Team{}
	}
	WriteJSON(w, http.StatusOK, teams)
}

func (h *Handlers) deleteTeam(w http.ResponseWriter, r *http.Request) {
	h.deleted(w, "Team", func() (bool, error) { return h.Store.DeleteTeam(r.Context(), r.PathValue("id")) })
}

func (h *Handlers) createProject(w http.ResponseWriter, r *http.Request) {
	var b namedBody
	if err := DecodeBody(r, &b); err != nil {
		h.fault(w, err)
		return
	}
	if err := b.validate(true); err != nil {
		h.fault(w, err)
		return
	}
	p := &entity.Project{Name: strings.TrimSpace(b.Name), Description: b.Description}
	if err := h.Store.CreateProject(r.Context(), p); err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"message": "Project created.", "project": p})
}

func (h *Handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		h.fault(w, err)
		return
	}
	if projects == nil {
		projects = []*entity.Project{}
	}
	WriteJSON(w, http.StatusOK, projects)
}

func (h *Handlers) deleteProject(w http.ResponseWriter, r *http.Request) {
	h.deleted(w, "Project", func() (bool, error) { return h.Store.DeleteProject(r.Context(), r.PathValue("id")) })
}

func (h *Handlers) createTag(w http.ResponseWriter, r *http.Request) {
	var b namedBody
	if err := DecodeBody(r, &b); err != nil {
		h.fault(w, err)
		return
	}
	if err := b.validate(false); err != nil {
		h.fault(w, err)
		return
	}
	t := &entity.Tag{Name: strings.TrimSpace(b.Name)}
	if err := h.Store.CreateTag(r.Context(), t); err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"message": "Tag created.", "tag": t})
}

func (h *Handlers) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Store.ListTags(r.Context())
	if err != nil {
		h.fault(w, err)
		return
	}
	if tags == nil {
		tags = []*entity.Tag{}
	}
	WriteJSON(w, http.StatusOK, tags)
}

func (h *Handlers) deleteTag(w http.ResponseWriter, r *http.Request) {
	h.deleted(w, "Tag", func() (bool, error) { return h.Store.DeleteTag(r.Context(), r.PathValue("id")) })
}

// --- User handlers ---

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.fault(w, err)
		return
	}
	if users == nil {
		users = []*entity.User{}
	}
	WriteJSON(w, http.StatusOK, users)
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	h.deleted(w, "User", func() (bool, error) { return h.Store.DeleteUser(r.Context(), r.PathValue("id")) })
}

// --- Report handlers ---

func (h *Handlers) workDoneLastWeek(w http.ResponseWriter, r *http.Request) {
	n, err := h.Reports.WorkDoneLastWeek(r.Context())
	if err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"totalWorkDoneLastWeek": n})
}

func (h *Handlers) pendingWorkDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.Reports.PendingWorkDays(r.Context())
	if err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]float64{"pendingWorkDays": days})
}

func (h *Handlers) tasksClosedByTeam(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Reports.TasksClosedByTeam(r.Context())
	if err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}

func (h *Handlers) tasksClosedByOwner(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Reports.TasksClosedByOwner(r.Context())
	if err != nil {
		h.fault(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}
