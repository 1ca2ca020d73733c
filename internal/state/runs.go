package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/hydra/internal/orchestrator"
	"github.com/ShayCichocki/hydra/pkg/models"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID        string
	Task      string
	State     models.RunState
	Successes int
	Slots     int
	Started   time.Time
}

// SaveRun stores a finished run and all of its slots in one
// transaction. Saving the same run id again replaces the stored copy.
func (db *DB) SaveRun(ctx context.Context, run *orchestrator.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return db.Transaction(func(tx *sql.Tx) error {
		var answer sql.NullString
		successes, degraded, fallback := 0, 0, 0
		if run.Answer != nil {
			answer = sql.NullString{String: run.Answer.Text, Valid: true}
			successes = run.Answer.Successes
			if run.Answer.Degraded {
				degraded = 1
			}
			if run.Answer.Fallback {
				fallback = 1
			}
		}

		_, err := tx.Exec(`
			INSERT OR REPLACE INTO runs (id, task, state, answer, successes, degraded, fallback, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.Task, string(run.State), answer, successes, degraded, fallback,
			formatTime(run.Started), formatTime(run.Finished))
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}

		if _, err := tx.Exec(`DELETE FROM slots WHERE run_id = ?`, run.ID); err != nil {
			return fmt.Errorf("clear slots for run %s: %w", run.ID, err)
		}

		for _, slot := range run.Slots {
			_, err := tx.Exec(`
				INSERT INTO slots (run_id, slot, question, status, response, error, error_type, partial_output, duration_ms, timeout_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, run.ID, slot.Index, slot.Question, string(slot.Status),
				slot.Response, slot.Error, slot.ErrorType, slot.PartialOutput,
				slot.Duration.Milliseconds(), slot.Timeout.Milliseconds())
			if err != nil {
				return fmt.Errorf("insert slot %d for run %s: %w", slot.Index, run.ID, err)
			}
		}

		return nil
	})
}

// GetRun loads a stored run with its slots.
func (db *DB) GetRun(id string) (*orchestrator.Run, error) {
	run := &orchestrator.Run{ID: id}

	var state, startedAt, finishedAt string
	var answer sql.NullString
	var successes, degraded, fallback int

	row := db.QueryRow(`
		SELECT task, state, answer, successes, degraded, fallback, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	err := row.Scan(&run.Task, &state, &answer, &successes, &degraded, &fallback, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	run.State = models.RunState(state)
	if answer.Valid {
		run.Answer = &models.FinalAnswer{
			Text:      answer.String,
			Successes: successes,
			Degraded:  degraded != 0,
			Fallback:  fallback != 0,
		}
	}
	if run.Started, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("run %s: bad started_at: %w", id, err)
	}
	if run.Finished, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("run %s: bad finished_at: %w", id, err)
	}

	rows, err := db.Query(`
		SELECT slot, question, status, response, error, error_type, partial_output, duration_ms, timeout_ms
		FROM slots WHERE run_id = ? ORDER BY slot
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load slots for run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var slot models.SubtaskResult
		var status string
		var durationMS, timeoutMS int64
		if err := rows.Scan(&slot.Index, &slot.Question, &status, &slot.Response,
			&slot.Error, &slot.ErrorType, &slot.PartialOutput, &durationMS, &timeoutMS); err != nil {
			return nil, fmt.Errorf("scan slot for run %s: %w", id, err)
		}
		slot.Status = models.SubtaskStatus(status)
		slot.Duration = time.Duration(durationMS) * time.Millisecond
		slot.Timeout = time.Duration(timeoutMS) * time.Millisecond
		run.Slots = append(run.Slots, slot)
		run.Questions = append(run.Questions, slot.Question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots for run %s: %w", id, err)
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT r.id, r.task, r.state, r.successes, COUNT(s.slot), r.started_at
		FROM runs r LEFT JOIN slots s ON s.run_id = r.id
		GROUP BY r.id ORDER BY r.started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var s RunSummary
		var state, startedAt string
		if err := rows.Scan(&s.ID, &s.Task, &state, &s.Successes, &s.Slots, &startedAt); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		s.State = models.RunState(state)
		if s.Started, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at: %w", s.ID, err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summaries: %w", err)
	}

	return summaries, nil
}
