package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
)

// handleListBoards returns every board with its tasks, newest first.
func (s *Server) handleListBoards(c *gin.Context) {
	boards, err := s.store.ListBoards(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, boards)
}

// handleGetBoard returns a single board with its tasks.
func (s *Server) handleGetBoard(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	board, err := s.store.GetBoard(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, board)
}

// handleCreateBoard creates a new board entity.
func (s *Server) handleCreateBoard(c *gin.Context) {
	var req models.BoardPatch
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := req.Validate(true); err != nil {
		s.respondError(c, err)
		return
	}

	var board models.Board
	req.Apply(&board)

	created, err := s.store.CreateBoard(c.Request.Context(), board)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, created)
}

// handleUpdateBoard changes only the fields present in the request body.
func (s *Server) handleUpdateBoard(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req models.BoardPatch
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := req.Validate(false); err != nil {
		s.respondError(c, err)
		return
	}

	board, err := s.store.UpdateBoard(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, board)
}

// handleDeleteBoard removes a board and all related tasks.
func (s *Server) handleDeleteBoard(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteBoard(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
