package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/analytics"
	"taskboard/internal/models"
)

// handleAnalytics computes task statistics, optionally for a single board.
func (s *Server) handleAnalytics(c *gin.Context) {
	filter, ok := s.taskFilter(c)
	if !ok {
		return
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, analytics.Compute(tasks))
}

// handleExport streams every board and the overall statistics as a JSON or CSV attachment.
func (s *Server) handleExport(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	var (
		contentType string
		write       func(r analytics.Report, buf *bytes.Buffer) error
	)
	switch format {
	case "json":
		contentType = "application/json; charset=utf-8"
		write = func(r analytics.Report, buf *bytes.Buffer) error { return r.WriteJSON(buf) }
	case "csv":
		contentType = "text/csv; charset=utf-8"
		write = func(r analytics.Report, buf *bytes.Buffer) error { return r.WriteCSV(buf) }
	default:
		s.respondError(c, models.NewErrorf(models.ErrorCodeInvalidArgument, "invalid format %q: must be json or csv", format))
		return
	}

	boards, err := s.store.ListBoards(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	report := analytics.NewReport(boards, s.now())
	var buf bytes.Buffer
	if err := write(report, &buf); err != nil {
		s.respondError(c, fmt.Errorf("render %s export: %w", format, err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(format)))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
