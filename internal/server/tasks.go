package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
	"taskboard/internal/storage"
)

// taskFilter reads the optional boardId query parameter.
func (s *Server) taskFilter(c *gin.Context) (storage.TaskFilter, bool) {
	var filter storage.TaskFilter
	raw, present := c.GetQuery("boardId")
	if !present || raw == "" {
		return filter, true
	}

	id, err := parsePositiveInt(raw)
	if err != nil {
		s.respondError(c, models.NewErrorf(models.ErrorCodeInvalidArgument, "invalid boardId %q: must be a positive integer", raw))
		return filter, false
	}
	filter.BoardID = id
	return filter, true
}

// handleListTasks fetches tasks, optionally for a single board.
func (s *Server) handleListTasks(c *gin.Context) {
	filter, ok := s.taskFilter(c)
	if !ok {
		return
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}

// handleGetTask returns a single task.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleCreateTask inserts a new task into an existing board.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req models.TaskPatch
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := req.Validate(true); err != nil {
		s.respondError(c, err)
		return
	}

	var task models.Task
	req.Apply(&task)

	created, err := s.store.CreateTask(c.Request.Context(), task)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, created)
}

// handleUpdateTask updates task fields such as status, assignee or board.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req models.TaskPatch
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := req.Validate(false); err != nil {
		s.respondError(c, err)
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
