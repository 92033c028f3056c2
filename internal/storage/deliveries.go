package storage

import (
	"fmt"
	"time"

	"nuclight.org/crossposter/internal/approval"
	"nuclight.org/crossposter/internal/publish"
)

type DeliveryRepository struct {
	db *DB
}

func NewDeliveryRepository(db *DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// RecordDispatch stores every result of d for candidate c in one transaction.
func (r *DeliveryRepository) RecordDispatch(c approval.Candidate, d *publish.Dispatch) error {
	tx, err := r.db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO deliveries (dispatch_id, candidate_id, platform, ok, error, duration_ms, voters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range d.Results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		_, err := stmt.Exec(d.ID, c.ID, res.Platform, res.OK(), errText, res.Duration.Milliseconds(), c.VoteCount(), d.StartedAt)
		if err != nil {
			return fmt.Errorf("insert delivery %s: %w", res.Platform, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deliveries: %w", err)
	}
	return nil
}

// CountFailures returns how many failed deliveries were logged since the given time,
// grouped by platform.
func (r *DeliveryRepository) CountFailures(since time.Time) (map[string]int, error) {
	rows, err := r.db.db.Query(`
		SELECT platform, COUNT(*)
		FROM deliveries
		WHERE ok = 0 AND created_at >= ?
		GROUP BY platform
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var platform string
		var n int
		if err := rows.Scan(&platform, &n); err != nil {
			return nil, fmt.Errorf("scan failure count: %w", err)
		}
		counts[platform] = n
	}
	return counts, rows.Err()
}
