package domain

// StatusCounts is a per-column task count for dashboard summaries.
type StatusCounts struct {
	ToDo       int `json:"toDo"`
	InProgress int `json:"inProgress"`
	Review     int `json:"review"`
	Done       int `json:"done"`
}

// CountByStatus tallies tasks per board column.
func CountByStatus(tasks []Task) StatusCounts {
	var c StatusCounts
	for i := range tasks {
		switch tasks[i].Status {
		case StatusToDo:
			c.ToDo++
		case StatusInProgress:
			c.InProgress++
		case StatusReview:
			c.Review++
		case StatusDone:
			c.Done++
		}
	}
	return c
}

// SprintProgress sums completed and total story points for a sprint's tasks.
func SprintProgress(tasks []Task) (completed, total int) {
	for i := range tasks {
		total += tasks[i].StoryPoints
		if tasks[i].Status == StatusDone {
			completed += tasks[i].StoryPoints
		}
	}
	return completed, total
}
