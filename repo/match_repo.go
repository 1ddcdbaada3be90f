package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// MatchRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// MatchRepository is the persistence contract for fixtures and their
// lifecycle. All timestamps are stored in UTC.
type MatchRepository interface {
	Insert(ctx context.Context, params models.CreateMatchParams) (*models.Match, error)
	GetByID(ctx context.Context, id int64) (*models.Match, error)
	List(ctx context.Context) ([]*models.Match, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.MatchWithPrediction, error)
	SetResult(ctx context.Context, id int64, home, away int) (*models.Match, error)
	Delete(ctx context.Context, id int64) error

	// AdvanceToLive moves every scheduled match whose kickoff is at or
	// before now to live and returns their ids.
	AdvanceToLive(ctx context.Context, now time.Time) ([]int64, error)
	// AdvanceToFinished moves every live match that kicked off at or before
	// cutoff to finished and returns their ids.
	AdvanceToFinished(ctx context.Context, cutoff, now time.Time) ([]int64, error)
}

type matchRepo struct {
	q db.Querier
}

// NewMatchRepo returns a MatchRepository backed by q.
func NewMatchRepo(q db.Querier) MatchRepository {
	return &matchRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL
// ─────────────────────────────────────────────────────────────────────────────

const (
	matchColumns = `id, kickoff, home_team, away_team, status, home_goals, away_goals, created_at, updated_at`

	sqlInsertMatch = `
		INSERT INTO matches (kickoff, home_team, away_team, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'scheduled', $4, $4)
		RETURNING id`

	sqlGetMatchByID = `
		SELECT ` + matchColumns + `
		FROM   matches
		WHERE  id = $1`

	sqlListMatches = `
		SELECT ` + matchColumns + `
		FROM   matches
		ORDER  BY kickoff DESC, id DESC`

	sqlListMatchesForUser = `
		SELECT m.id, m.kickoff, m.home_team, m.away_team, m.status,
		       m.home_goals, m.away_goals, m.created_at, m.updated_at,
		       p.id, p.home_goals, p.away_goals, p.points, p.updated_at
		FROM   matches m
		LEFT   JOIN predictions p
		       ON p.match_id = m.id AND p.user_id = $1
		ORDER  BY m.kickoff DESC, m.id DESC`

	sqlSetMatchResult = `
		UPDATE matches
		SET    home_goals = $1,
		       away_goals = $2,
		       status     = 'scored',
		       updated_at = $3
		WHERE  id = $4`

	sqlDeleteMatch = `
		DELETE FROM matches WHERE id = $1`

	sqlAdvanceToLive = `
		UPDATE matches
		SET    status = 'live', updated_at = $1
		WHERE  status = 'scheduled' AND kickoff <= $1
		RETURNING id`

	sqlAdvanceToFinished = `
		UPDATE matches
		SET    status = 'finished', updated_at = $1
		WHERE  status = 'live' AND kickoff <= $2
		RETURNING id`
)

// ─────────────────────────────────────────────────────────────────────────────
// Methods
// ─────────────────────────────────────────────────────────────────────────────

// Insert creates a scheduled match. Kickoff is stored in UTC at second
// precision.
func (r *matchRepo) Insert(ctx context.Context, params models.CreateMatchParams) (*models.Match, error) {
	var id int64
	err := r.q.QueryRow(ctx, sqlInsertMatch,
		params.Kickoff.UTC().Truncate(time.Second), params.HomeTeam, params.AwayTeam, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("repo/match: insert: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns db.ErrNotFound when no match has id.
func (r *matchRepo) GetByID(ctx context.Context, id int64) (*models.Match, error) {
	m := &models.Match{}
	var status string
	var home, away sql.NullInt64
	err := r.q.QueryRow(ctx, sqlGetMatchByID, id).Scan(
		&m.ID, &m.Kickoff, &m.HomeTeam, &m.AwayTeam, &status,
		&home, &away, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repo/match: %w", err)
	}
	m.Status = models.Status(status)
	m.HomeGoals, m.AwayGoals = intPtr(home), intPtr(away)
	return m, nil
}

// List returns every match, latest kickoff first.
func (r *matchRepo) List(ctx context.Context) ([]*models.Match, error) {
	rows, err := r.q.Query(ctx, sqlListMatches)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m := &models.Match{}
		var status string
		var home, away sql.NullInt64
		if err := rows.Scan(
			&m.ID, &m.Kickoff, &m.HomeTeam, &m.AwayTeam, &status,
			&home, &away, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("repo/match: scan: %w", err)
		}
		m.Status = models.Status(status)
		m.HomeGoals, m.AwayGoals = intPtr(home), intPtr(away)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListForUser returns every match with userID's own prediction attached.
func (r *matchRepo) ListForUser(ctx context.Context, userID int64) ([]*models.MatchWithPrediction, error) {
	rows, err := r.q.Query(ctx, sqlListMatchesForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.MatchWithPrediction
	for rows.Next() {
		var (
			mp                   models.MatchWithPrediction
			status               string
			home, away           sql.NullInt64
			predID, pHome, pAway sql.NullInt64
			pPoints              sql.NullInt64
			pUpdated             sql.NullTime
		)
		if err := rows.Scan(
			&mp.ID, &mp.Kickoff, &mp.HomeTeam, &mp.AwayTeam, &status,
			&home, &away, &mp.CreatedAt, &mp.UpdatedAt,
			&predID, &pHome, &pAway, &pPoints, &pUpdated,
		); err != nil {
			return nil, fmt.Errorf("repo/match: scan: %w", err)
		}
		mp.Status = models.Status(status)
		mp.HomeGoals, mp.AwayGoals = intPtr(home), intPtr(away)
		if predID.Valid {
			mp.Prediction = &models.Prediction{
				ID:        predID.Int64,
				UserID:    userID,
				MatchID:   mp.ID,
				HomeGoals: int(pHome.Int64),
				AwayGoals: int(pAway.Int64),
				Points:    intPtr(pPoints),
				UpdatedAt: pUpdated.Time,
			}
		}
		out = append(out, &mp)
	}
	return out, rows.Err()
}

// SetResult stores the final goals and marks the match scored, whatever its
// current status.
func (r *matchRepo) SetResult(ctx context.Context, id int64, home, away int) (*models.Match, error) {
	if err := execAffectingOne(ctx, r.q, sqlSetMatchResult, home, away, time.Now().UTC(), id); err != nil {
		return nil, fmt.Errorf("repo/match: set result: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a match; its predictions go with it.
func (r *matchRepo) Delete(ctx context.Context, id int64) error {
	return execAffectingOne(ctx, r.q, sqlDeleteMatch, id)
}

func (r *matchRepo) AdvanceToLive(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.q.Query(ctx, sqlAdvanceToLive, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("repo/match: advance to live: %w", err)
	}
	return scanIDs(rows)
}

func (r *matchRepo) AdvanceToFinished(ctx context.Context, cutoff, now time.Time) ([]int64, error) {
	rows, err := r.q.Query(ctx, sqlAdvanceToFinished, now.UTC(), cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("repo/match: advance to finished: %w", err)
	}
	return scanIDs(rows)
}

var _ MatchRepository = (*matchRepo)(nil)
