// Package store persists anonymous scan reports in the anonymous_scans table.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/database"
	"github.com/CosmoTheDev/anonscan/internal/metrics"
	"github.com/CosmoTheDev/anonscan/models"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const table = "anonymous_scans"

// DefaultRetention is how long a report stays readable.
const DefaultRetention = 30 * 24 * time.Hour

// ErrNotFound is returned for missing and expired reports alike.
var ErrNotFound = errors.New("anonymous scan not found")

// Options tunes a Store. Zero values select defaults.
type Options struct {
	Retention time.Duration
	// L1Size and L1TTL size the in-process fresh-scan cache; L1Size 0 disables it.
	L1Size int
	L1TTL  time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store reads and writes AnonymousScan rows.
type Store struct {
	db        database.DB
	retention time.Duration
	now       func() time.Time
	l1        *expirable.LRU[string, *models.AnonymousScan]
}

// New returns a Store backed by db.
func New(db database.DB, opts Options) *Store {
	s := &Store{db: db, retention: opts.Retention, now: opts.Now}
	if s.retention <= 0 {
		s.retention = DefaultRetention
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.L1Size > 0 {
		ttl := opts.L1TTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		s.l1 = expirable.NewLRU[string, *models.AnonymousScan](opts.L1Size, nil, ttl)
	}
	return s
}

// Create persists result as a new report for repoName. ip may be empty.
func (s *Store) Create(ctx context.Context, repoURL, repoName string, result *models.ScanResult, ip string) (*models.AnonymousScan, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding scan result: %w", err)
	}

	now := s.now()
	row := &models.AnonymousScan{
		ID:         uuid.NewString(),
		RepoURL:    repoURL,
		RepoName:   repoName,
		ScanResult: string(body),
		CreatedAt:  models.FormatTime(now),
		ExpiresAt:  models.FormatTime(now.Add(s.retention)),
	}
	if ip != "" {
		row.IPAddress = &ip
	}

	if err := s.db.Insert(ctx, table, row); err != nil {
		return nil, fmt.Errorf("saving anonymous scan: %w", err)
	}
	if s.l1 != nil {
		s.l1.Add(repoName, row)
	}
	return row, nil
}

// FindFresh returns the newest unexpired report for repoName created within
// window, or ErrNotFound.
func (s *Store) FindFresh(ctx context.Context, repoName string, window time.Duration) (*models.AnonymousScan, error) {
	now := s.now()
	since := models.FormatTime(now.Add(-window))
	current := models.FormatTime(now)

	if s.l1 != nil {
		if row, ok := s.l1.Get(repoName); ok {
			if row.CreatedAt > since && row.ExpiresAt > current {
				metrics.CacheLookups.WithLabelValues("l1").Inc()
				return row, nil
			}
			s.l1.Remove(repoName)
		}
	}

	var row models.AnonymousScan
	err := s.db.Get(ctx, &row,
		`SELECT * FROM anonymous_scans
		 WHERE repo_name = ? AND created_at > ? AND expires_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		repoName, since, current)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up cached scan for %s: %w", repoName, err)
	}

	metrics.CacheLookups.WithLabelValues("db").Inc()
	if s.l1 != nil {
		s.l1.Add(repoName, &row)
	}
	return &row, nil
}

// CountRecentByIP counts reports created from ip within window.
func (s *Store) CountRecentByIP(ctx context.Context, ip string, window time.Duration) (int, error) {
	var n int
	err := s.db.Get(ctx, &n,
		`SELECT COUNT(*) FROM anonymous_scans WHERE ip_address = ? AND created_at > ?`,
		ip, models.FormatTime(s.now().Add(-window)))
	if err != nil {
		return 0, fmt.Errorf("counting scans for ip: %w", err)
	}
	return n, nil
}

// GetByID returns an unexpired report and records the access. The returned
// row reflects the bumped counter.
func (s *Store) GetByID(ctx context.Context, id string) (*models.AnonymousScan, error) {
	now := models.FormatTime(s.now())

	var row models.AnonymousScan
	err := s.db.Get(ctx, &row,
		`SELECT * FROM anonymous_scans WHERE id = ? AND expires_at > ?`, id, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading anonymous scan %s: %w", id, err)
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE anonymous_scans SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		now, id); err != nil {
		slog.Warn("Failed to record report access", "report_id", id, "error", err)
	} else {
		row.AccessCount++
		row.LastAccessedAt = &now
	}
	return &row, nil
}

type claimPatch struct {
	ClaimedByUserID *string `db:"claimed_by_user_id"`
	ClaimedAt       *string `db:"claimed_at"`
}

// Claim associates an unexpired report with userID. A later claim
// overwrites an earlier one.
func (s *Store) Claim(ctx context.Context, id, userID string) error {
	now := models.FormatTime(s.now())
	patch := claimPatch{ClaimedByUserID: &userID, ClaimedAt: &now}

	n, err := s.db.Update(ctx, table, patch, "id = ? AND expires_at > ?", id, now)
	if err != nil {
		return fmt.Errorf("claiming anonymous scan %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	// MySQL reports zero affected rows when values are unchanged, so a
	// repeat claim must be told apart from a missing row.
	var count int
	if err := s.db.Get(ctx, &count,
		`SELECT COUNT(*) FROM anonymous_scans WHERE id = ? AND expires_at > ?`, id, now); err != nil {
		return fmt.Errorf("checking anonymous scan %s: %w", id, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
