// Package results persists purification campaign results in SQLite.
package results

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrUnknownCampaign = errors.New("unknown campaign")
	ErrClosed          = errors.New("results store is closed")
)

// Outcome labels stored in the trials table.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeViolation = "violation"
	OutcomeRejected  = "rejected"
)

// Campaign is the parameter set a campaign ran with.
type Campaign struct {
	ID          string
	Fidelity    float64
	Trials      int
	DelayPS     int64
	ExpirePS    int64
	MaxAttempts int
	Seed        uint64
	CreatedAt   time.Time
}

// Trial is one stored trial row.
type Trial struct {
	CampaignID    string
	Index         int
	Outcome       string
	Attempts      int
	Expired       int
	FinalFidelity float64
	SimTimePS     int64
	Error         string
}

// Summary aggregates the trials of one campaign.
type Summary struct {
	Trials       int
	Successes    int
	Failures     int
	Violations   int
	Rejected     int
	MeanFidelity float64
}

// Store wraps the results database.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema. Use
// ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// CreateCampaign stores c under a new time-ordered ID and returns it.
func (s *Store) CreateCampaign(c Campaign) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return "", ErrClosed
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate campaign id: %w", err)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.Exec(
		`INSERT INTO campaigns (campaign_id, fidelity, trials, delay_ps, expire_ps, max_attempts, seed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), c.Fidelity, c.Trials, c.DelayPS, c.ExpirePS, c.MaxAttempts, int64(c.Seed),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert campaign: %w", err)
	}

	return id.String(), nil
}

// Campaign loads the campaign stored under id.
func (s *Store) Campaign(id string) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return Campaign{}, ErrClosed
	}

	var (
		c         Campaign
		seed      int64
		createdAt string
	)
	err := s.db.QueryRow(
		`SELECT campaign_id, fidelity, trials, delay_ps, expire_ps, max_attempts, seed, created_at
		 FROM campaigns WHERE campaign_id = ?`, id,
	).Scan(&c.ID, &c.Fidelity, &c.Trials, &c.DelayPS, &c.ExpirePS, &c.MaxAttempts, &seed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, fmt.Errorf("%w: %s", ErrUnknownCampaign, id)
	}
	if err != nil {
		return Campaign{}, fmt.Errorf("query campaign: %w", err)
	}

	c.Seed = uint64(seed)
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Campaign{}, fmt.Errorf("parse created_at: %w", err)
	}
	return c, nil
}

// RecordTrials stores trials in one transaction.
func (s *Store) RecordTrials(trials ...Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range trials {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM campaigns WHERE campaign_id = ?`, t.CampaignID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownCampaign, t.CampaignID)
		}

		var errText sql.NullString
		if t.Error != "" {
			errText = sql.NullString{String: t.Error, Valid: true}
		}

		if _, err := tx.Exec(
			`INSERT INTO trials (campaign_id, trial, outcome, attempts, expired, final_fidelity, sim_time_ps, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.CampaignID, t.Index, t.Outcome, t.Attempts, t.Expired, t.FinalFidelity, t.SimTimePS, errText,
		); err != nil {
			return fmt.Errorf("insert trial %d: %w", t.Index, err)
		}
	}

	return tx.Commit()
}

// Trials returns the stored trials of a campaign in trial order.
func (s *Store) Trials(campaignID string) ([]Trial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(
		`SELECT campaign_id, trial, outcome, attempts, expired, final_fidelity, sim_time_ps, error
		 FROM trials WHERE campaign_id = ? ORDER BY trial`, campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trials []Trial
	for rows.Next() {
		var (
			t       Trial
			errText sql.NullString
		)
		if err := rows.Scan(&t.CampaignID, &t.Index, &t.Outcome, &t.Attempts, &t.Expired,
			&t.FinalFidelity, &t.SimTimePS, &errText); err != nil {
			return nil, err
		}
		t.Error = errText.String
		trials = append(trials, t)
	}
	return trials, rows.Err()
}

// Summary aggregates the trials of a campaign.
func (s *Store) Summary(campaignID string) (Summary, error) {
	if _, err := s.Campaign(campaignID); err != nil {
		return Summary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return Summary{}, ErrClosed
	}

	var (
		sum  Summary
		mean sql.NullFloat64
	)
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(outcome = ?), 0),
		        COALESCE(SUM(outcome = ?), 0),
		        COALESCE(SUM(outcome = ?), 0),
		        COALESCE(SUM(outcome = ?), 0),
		        AVG(CASE WHEN outcome = ? THEN final_fidelity END)
		 FROM trials WHERE campaign_id = ?`,
		OutcomeSuccess, OutcomeFailure, OutcomeViolation, OutcomeRejected, OutcomeSuccess, campaignID,
	).Scan(&sum.Trials, &sum.Successes, &sum.Failures, &sum.Violations, &sum.Rejected, &mean)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize campaign: %w", err)
	}

	sum.MeanFidelity = mean.Float64
	return sum, nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
