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
// PredictionRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// PredictionRepository is the persistence contract for predictions and the
// leaderboard aggregate.
type PredictionRepository interface {
	// Upsert inserts or overwrites the prediction keyed by (user, match);
	// the last write wins and stamps updated_at.
	Upsert(ctx context.Context, params models.UpsertPredictionParams) (*models.Prediction, error)
	GetByUserMatch(ctx context.Context, userID, matchID int64) (*models.Prediction, error)
	ListByMatch(ctx context.Context, matchID int64) ([]*models.Prediction, error)
	ListAll(ctx context.Context) ([]*models.PredictionView, error)
	// SetPoints overwrites the points of each listed prediction.
	SetPoints(ctx context.Context, updates []PointsUpdate) error
	Leaderboard(ctx context.Context) ([]*models.LeaderboardEntry, error)
	DeleteByMatch(ctx context.Context, matchID int64) (int64, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

// PointsUpdate assigns Points to the prediction with PredictionID.
type PointsUpdate struct {
	PredictionID int64
	Points       int
}

type predictionRepo struct {
	q db.Querier
}

// NewPredictionRepo returns a PredictionRepository backed by q.
func NewPredictionRepo(q db.Querier) PredictionRepository {
	return &predictionRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL
// ─────────────────────────────────────────────────────────────────────────────

const (
	predictionColumns = `id, user_id, match_id, home_goals, away_goals, points, updated_at`

	sqlUpsertPrediction = `
		INSERT INTO predictions (user_id, match_id, home_goals, away_goals, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, match_id) DO UPDATE
		SET    home_goals = excluded.home_goals,
		       away_goals = excluded.away_goals,
		       updated_at = excluded.updated_at
		RETURNING id`

	sqlGetPredictionByID = `
		SELECT ` + predictionColumns + `
		FROM   predictions
		WHERE  id = $1`

	sqlGetPredictionByUserMatch = `
		SELECT ` + predictionColumns + `
		FROM   predictions
		WHERE  user_id = $1 AND match_id = $2`

	sqlListPredictionsByMatch = `
		SELECT ` + predictionColumns + `
		FROM   predictions
		WHERE  match_id = $1
		ORDER  BY id`

	sqlListAllPredictions = `
		SELECT p.id, p.user_id, p.match_id, p.home_goals, p.away_goals, p.points, p.updated_at,
		       u.name,
		       m.id, m.kickoff, m.home_team, m.away_team, m.status,
		       m.home_goals, m.away_goals, m.created_at, m.updated_at
		FROM   predictions p
		JOIN   users   u ON u.id = p.user_id
		JOIN   matches m ON m.id = p.match_id
		ORDER  BY m.kickoff DESC, u.name ASC`

	sqlSetPredictionPoints = `
		UPDATE predictions SET points = $1 WHERE id = $2`

	// Players only; an unscored prediction contributes 0.
	sqlLeaderboard = `
		SELECT u.id, u.name, COALESCE(SUM(p.points), 0) AS total
		FROM   users u
		LEFT   JOIN predictions p ON p.user_id = u.id
		WHERE  u.role = 'player'
		GROUP  BY u.id, u.name
		ORDER  BY total DESC, u.name ASC`

	sqlDeletePredictionsByMatch = `
		DELETE FROM predictions WHERE match_id = $1`

	sqlDeletePredictionsByUser = `
		DELETE FROM predictions WHERE user_id = $1`
)

// ─────────────────────────────────────────────────────────────────────────────
// Methods
// ─────────────────────────────────────────────────────────────────────────────

func (r *predictionRepo) Upsert(ctx context.Context, params models.UpsertPredictionParams) (*models.Prediction, error) {
	var id int64
	err := r.q.QueryRow(ctx, sqlUpsertPrediction,
		params.UserID, params.MatchID, params.HomeGoals, params.AwayGoals, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("repo/prediction: upsert: %w", err)
	}
	return scanPrediction(r.q.QueryRow(ctx, sqlGetPredictionByID, id))
}

// GetByUserMatch returns db.ErrNotFound when the user has not predicted the
// match.
func (r *predictionRepo) GetByUserMatch(ctx context.Context, userID, matchID int64) (*models.Prediction, error) {
	return scanPrediction(r.q.QueryRow(ctx, sqlGetPredictionByUserMatch, userID, matchID))
}

// ListByMatch reads all predictions of one match. Called inside the scoring
// transaction it is a consistent snapshot.
func (r *predictionRepo) ListByMatch(ctx context.Context, matchID int64) ([]*models.Prediction, error) {
	rows, err := r.q.Query(ctx, sqlListPredictionsByMatch, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var preds []*models.Prediction
	for rows.Next() {
		p := &models.Prediction{}
		var points sql.NullInt64
		if err := rows.Scan(&p.ID, &p.UserID, &p.MatchID, &p.HomeGoals, &p.AwayGoals, &points, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repo/prediction: scan: %w", err)
		}
		p.Points = intPtr(points)
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// ListAll returns every prediction joined with its user and match, latest
// kickoff first, then by user name.
func (r *predictionRepo) ListAll(ctx context.Context) ([]*models.PredictionView, error) {
	rows, err := r.q.Query(ctx, sqlListAllPredictions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*models.PredictionView
	for rows.Next() {
		v := &models.PredictionView{}
		var (
			points     sql.NullInt64
			status     string
			home, away sql.NullInt64
		)
		if err := rows.Scan(
			&v.ID, &v.UserID, &v.MatchID, &v.HomeGoals, &v.AwayGoals, &points, &v.UpdatedAt,
			&v.UserName,
			&v.Match.ID, &v.Match.Kickoff, &v.Match.HomeTeam, &v.Match.AwayTeam, &status,
			&home, &away, &v.Match.CreatedAt, &v.Match.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("repo/prediction: scan: %w", err)
		}
		v.Points = intPtr(points)
		v.Match.Status = models.Status(status)
		v.Match.HomeGoals, v.Match.AwayGoals = intPtr(home), intPtr(away)
		views = append(views, v)
	}
	return views, rows.Err()
}

// SetPoints writes all updates through one prepared statement.
func (r *predictionRepo) SetPoints(ctx context.Context, updates []PointsUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	stmt, err := r.q.Prepare(ctx, sqlSetPredictionPoints)
	if err != nil {
		return fmt.Errorf("repo/prediction: prepare points: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.Exec(ctx, u.Points, u.PredictionID); err != nil {
			return fmt.Errorf("repo/prediction: set points %d: %w", u.PredictionID, err)
		}
	}
	return nil
}

// Leaderboard sums points per player, highest first, ties by name. Players
// sharing a total share a rank (1, 1, 3, ...).
func (r *predictionRepo) Leaderboard(ctx context.Context) ([]*models.LeaderboardEntry, error) {
	rows, err := r.q.Query(ctx, sqlLeaderboard)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		e := &models.LeaderboardEntry{}
		if err := rows.Scan(&e.UserID, &e.Name, &e.Points); err != nil {
			return nil, fmt.Errorf("repo/prediction: scan leaderboard: %w", err)
		}
		e.Rank = len(entries) + 1
		if n := len(entries); n > 0 && entries[n-1].Points == e.Points {
			e.Rank = entries[n-1].Rank
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *predictionRepo) DeleteByMatch(ctx context.Context, matchID int64) (int64, error) {
	return r.deleteWhere(ctx, sqlDeletePredictionsByMatch, matchID)
}

func (r *predictionRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return r.deleteWhere(ctx, sqlDeletePredictionsByUser, userID)
}

func (r *predictionRepo) deleteWhere(ctx context.Context, query string, id int64) (int64, error) {
	res, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("repo/prediction: delete: %w", err)
	}
	return res.RowsAffected()
}

func scanPrediction(row *db.Row) (*models.Prediction, error) {
	p := &models.Prediction{}
	var points sql.NullInt64
	if err := row.Scan(&p.ID, &p.UserID, &p.MatchID, &p.HomeGoals, &p.AwayGoals, &points, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("repo/prediction: %w", err)
	}
	p.Points = intPtr(points)
	return p, nil
}

var _ PredictionRepository = (*predictionRepo)(nil)
