package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/ale2ccc/internal/db"
	"github.com/hpungsan/ale2ccc/internal/errors"
	"github.com/hpungsan/ale2ccc/internal/report"
)

var errHistoryDisabled = errors.NewInvalidRequest("history is disabled (set history_enabled: true)")

// HistoryListInput contains parameters for the HistoryList operation.
type HistoryListInput struct {
	Output string // optional, exact output path
	Status string // optional: ok, failed, write_failed
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// HistoryListOutput contains the result of the HistoryList operation.
type HistoryListOutput struct {
	Runs       []db.Run   `json:"runs"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// HistoryList returns recorded runs, newest first.
func HistoryList(database *sql.DB, input HistoryListInput) (*HistoryListOutput, error) {
	if database == nil {
		return nil, errHistoryDisabled
	}

	status := strings.TrimSpace(input.Status)
	switch status {
	case "", db.StatusOK, db.StatusFailed, db.StatusWriteFailed:
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown status %q (want %s, %s or %s)",
			status, db.StatusOK, db.StatusFailed, db.StatusWriteFailed))
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	runs, total, err := db.ListRuns(database, db.ListFilters{Output: input.Output, Status: status}, limit, offset)
	if err != nil {
		return nil, err
	}

	return &HistoryListOutput{
		Runs: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
		Sort: "started_at_desc",
	}, nil
}

// HistoryShowOutput is one run with the corrections it wrote.
type HistoryShowOutput struct {
	Run         db.Run          `json:"run"`
	Corrections []db.Correction `json:"corrections"`
}

// HistoryShow retrieves a run by id.
func HistoryShow(database *sql.DB, id string) (*HistoryShowOutput, error) {
	if database == nil {
		return nil, errHistoryDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}

	run, err := db.GetRun(database, id)
	if err != nil {
		return nil, err
	}
	corrections, err := db.ListCorrections(database, id)
	if err != nil {
		return nil, err
	}
	return &HistoryShowOutput{Run: *run, Corrections: corrections}, nil
}

// Report converts a recorded run to the report model.
// Renames and skipped rows are not kept in history, so those sections stay empty.
func (h *HistoryShowOutput) Report() report.Run {
	r := report.Run{
		ID:            h.Run.ID,
		Output:        h.Run.Output,
		Status:        h.Run.Status,
		NamingPattern: h.Run.Naming,
		RowsRead:      h.Run.RowsRead,
		Entries:       h.Run.Entries,
		Skipped:       h.Run.Skipped,
		Renamed:       h.Run.Renamed,
		StartedAt:     time.Unix(h.Run.StartedAt, 0),
		Duration:      time.Duration(h.Run.FinishedAt-h.Run.StartedAt) * time.Second,
	}
	for _, in := range h.Run.Inputs {
		r.Inputs = append(r.Inputs, report.Input{Path: in})
	}
	for _, c := range h.Corrections {
		r.IDs = append(r.IDs, c.ID)
	}
	if h.Run.ErrorCode != nil {
		r.Error = *h.Run.ErrorCode
		if h.Run.ErrorMessage != nil {
			r.Error += ": " + *h.Run.ErrorMessage
		}
	}
	return r
}

// HistoryPruneInput contains parameters for the HistoryPrune operation.
type HistoryPruneInput struct {
	OlderThan time.Duration // required, > 0
	Now       time.Time     // optional, defaults to time.Now()
}

// HistoryPruneOutput contains the result of the HistoryPrune operation.
type HistoryPruneOutput struct {
	Pruned  int    `json:"pruned"`
	Message string `json:"message"`
}

// HistoryPrune deletes runs started more than OlderThan ago.
func HistoryPrune(ctx context.Context, database *sql.DB, input HistoryPruneInput) (*HistoryPruneOutput, error) {
	if database == nil {
		return nil, errHistoryDisabled
	}
	if input.OlderThan <= 0 {
		return nil, errors.NewInvalidRequest("older_than must be positive")
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("prune")
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	count, err := db.DeleteRunsBefore(database, now.Add(-input.OlderThan).Unix())
	if err != nil {
		return nil, err
	}

	return &HistoryPruneOutput{
		Pruned:  count,
		Message: formatPruneMessage(count, input.OlderThan),
	}, nil
}

// formatPruneMessage creates a human-readable message for the prune result.
func formatPruneMessage(count int, olderThan time.Duration) string {
	if count == 0 {
		return "No runs to prune"
	}
	runWord := "run"
	if count > 1 {
		runWord = "runs"
	}
	return fmt.Sprintf("Deleted %d %s older than %s", count, runWord, olderThan)
}
