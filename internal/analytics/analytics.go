// Package analytics derives board statistics and export reports from task lists.
package analytics

import (
	"math"

	"taskboard/internal/models"
)

// Statistics summarises a set of tasks by status.
type Statistics struct {
	TotalTasks           int `json:"totalTasks"`
	TodoCount            int `json:"todoCount"`
	InProgressCount      int `json:"inProgressCount"`
	DoneCount            int `json:"doneCount"`
	CompletionPercentage int `json:"completionPercentage"`
}

// Compute counts tasks per status. CompletionPercentage is the rounded share of
// done tasks, and 0 for an empty list.
func Compute(tasks []models.Task) Statistics {
	var st Statistics
	for _, t := range tasks {
		st.TotalTasks++
		switch t.Status {
		case models.StatusTodo:
			st.TodoCount++
		case models.StatusInProgress:
			st.InProgressCount++
		case models.StatusDone:
			st.DoneCount++
		}
	}
	if st.TotalTasks > 0 {
		st.CompletionPercentage = int(math.Round(float64(st.DoneCount) / float64(st.TotalTasks) * 100))
	}
	return st
}
