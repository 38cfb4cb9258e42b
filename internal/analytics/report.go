package analytics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"taskboard/internal/models"
)

// BoardSummary is a board with its task count, as exported.
type BoardSummary struct {
	models.Board
	TaskCount int `json:"taskCount"`
}

// Report is a point-in-time export of every board and the overall statistics.
type Report struct {
	ExportDate time.Time      `json:"exportDate"`
	Statistics Statistics     `json:"statistics"`
	Boards     []BoardSummary `json:"boards"`
}

// NewReport builds a report over boards, whose Tasks must be populated.
func NewReport(boards []models.Board, at time.Time) Report {
	var all []models.Task
	summaries := make([]BoardSummary, 0, len(boards))
	for _, b := range boards {
		all = append(all, b.Tasks...)
		summaries = append(summaries, BoardSummary{Board: b, TaskCount: len(b.Tasks)})
	}
	return Report{
		ExportDate: at.UTC(),
		Statistics: Compute(all),
		Boards:     summaries,
	}
}

// Filename returns the attachment name for the given extension.
func (r Report) Filename(ext string) string {
	return fmt.Sprintf("boards-export-%s.%s", r.ExportDate.Format(time.DateOnly), ext)
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

var (
	boardHeader = []string{"Board Name", "Board Description", "Task Count", "Total Tasks", "Todo Count", "In Progress Count", "Done Count", "Completion %"}
	taskHeader  = []string{"Board Name", "Task Title", "Task Description", "Status", "Assigned To", "Priority", "Due Date", "Created Date"}
)

// WriteCSV writes a boards section followed by a tasks-by-board section.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	st := r.Statistics

	records := [][]string{boardHeader}
	for _, b := range r.Boards {
		records = append(records, []string{
			b.Name,
			deref(b.Description),
			strconv.Itoa(b.TaskCount),
			strconv.Itoa(st.TotalTasks),
			strconv.Itoa(st.TodoCount),
			strconv.Itoa(st.InProgressCount),
			strconv.Itoa(st.DoneCount),
			strconv.Itoa(st.CompletionPercentage) + "%",
		})
	}

	records = append(records, []string{}, []string{}, []string{"Tasks by Board"}, taskHeader)
	for _, b := range r.Boards {
		for _, t := range b.Tasks {
			due := "Not set"
			if t.DueDate != nil {
				due = t.DueDate.Format(time.DateOnly)
			}
			priority := ""
			if t.Priority != nil {
				priority = string(*t.Priority)
			}
			records = append(records, []string{
				b.Name,
				t.Title,
				deref(t.Description),
				string(t.Status),
				deref(t.AssignedTo),
				priority,
				due,
				t.CreatedAt.Format(time.DateOnly),
			})
		}
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
