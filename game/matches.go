package game

import (
	"context"
	"time"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/models"
	"github.com/Skryldev/tippspiel/repo"
	"github.com/Skryldev/tippspiel/scoring"
)

// ResultSummary is what EnterResult reports back.
type ResultSummary struct {
	Match       *models.Match `json:"match"`
	ScoredCount int           `json:"scored_count"`
}

// ListMatches returns every match, latest kickoff first, each with the
// actor's own prediction when they have one.
func (s *Service) ListMatches(ctx context.Context, actor *models.User) ([]*models.MatchWithPrediction, error) {
	if err := requireLogin(actor); err != nil {
		return nil, err
	}
	out, err := s.matches.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, classify(err, "matches")
	}
	return out, nil
}

// CreateMatch schedules a fixture.
func (s *Service) CreateMatch(ctx context.Context, actor *models.User, params models.CreateMatchParams) (*models.Match, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var err error
	if params.HomeTeam, err = cleanName("home team", params.HomeTeam); err != nil {
		return nil, err
	}
	if params.AwayTeam, err = cleanName("away team", params.AwayTeam); err != nil {
		return nil, err
	}
	if params.HomeTeam == params.AwayTeam {
		return nil, newError(ErrValidation, "a team cannot play itself")
	}
	if params.Kickoff.IsZero() {
		return nil, newError(ErrValidation, "kickoff is required")
	}

	m, err := s.matches.Insert(ctx, params)
	if err != nil {
		return nil, classify(err, "match")
	}
	s.log.InfoContext(ctx, "game: match created",
		"match_id", m.ID, "home", m.HomeTeam, "away", m.AwayTeam, "kickoff", m.Kickoff)
	return m, nil
}

// DeleteMatch removes a match together with its predictions.
func (s *Service) DeleteMatch(ctx context.Context, actor *models.User, matchID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	var dropped int64
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		n, err := repo.NewPredictionRepo(tx).DeleteByMatch(ctx, matchID)
		if err != nil {
			return err
		}
		dropped = n
		return repo.NewMatchRepo(tx).Delete(ctx, matchID)
	})
	if err != nil {
		return classify(err, "match")
	}
	s.log.InfoContext(ctx, "game: match deleted", "match_id", matchID, "predictions", dropped)
	return nil
}

// SubmitPrediction stores the actor's prediction for a match, overwriting an
// earlier one. It is accepted only while the match is scheduled and the
// clock is strictly before kickoff; both are checked against the stored row
// in the same transaction as the write.
func (s *Service) SubmitPrediction(ctx context.Context, actor *models.User, matchID int64, home, away int) (*models.Prediction, error) {
	if err := requirePlayer(actor); err != nil {
		return nil, err
	}
	if err := validateGoals(home, away); err != nil {
		return nil, err
	}

	now := s.now()
	var pred *models.Prediction
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		m, err := repo.NewMatchRepo(tx).GetByID(ctx, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.StatusScheduled {
			return newError(ErrNotOpen, "match is %s and no longer open for predictions", m.Status)
		}
		if !now.Before(m.Kickoff) {
			return newError(ErrPastKickoff, "kickoff was at %s", m.Kickoff.UTC().Format(time.RFC3339))
		}
		pred, err = repo.NewPredictionRepo(tx).Upsert(ctx, models.UpsertPredictionParams{
			UserID:    actor.ID,
			MatchID:   matchID,
			HomeGoals: home,
			AwayGoals: away,
		})
		return err
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, &Error{Kind: ErrNotFound, Message: "match not found", Cause: err}
		}
		return nil, classify(err, "prediction")
	}
	return pred, nil
}

// EnterResult stores a match's final score, marks it scored and rescores
// every prediction of it from scratch. Running it again with the same or a
// corrected score overwrites points; it never accumulates.
func (s *Service) EnterResult(ctx context.Context, actor *models.User, matchID int64, home, away int) (*ResultSummary, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateGoals(home, away); err != nil {
		return nil, err
	}

	actual := scoring.Score{Home: home, Away: away}
	var summary ResultSummary
	err := db.WithRetry(ctx, s.retry, func() error {
		return s.db.ExecTx(ctx, func(tx *db.Tx) error {
			m, err := repo.NewMatchRepo(tx).SetResult(ctx, matchID, home, away)
			if err != nil {
				return err
			}
			preds := repo.NewPredictionRepo(tx)
			list, err := preds.ListByMatch(ctx, matchID)
			if err != nil {
				return err
			}
			updates := make([]repo.PointsUpdate, 0, len(list))
			for _, p := range list {
				pts := scoring.Points(scoring.Score{Home: p.HomeGoals, Away: p.AwayGoals}, actual)
				updates = append(updates, repo.PointsUpdate{PredictionID: p.ID, Points: pts})
			}
			if err := preds.SetPoints(ctx, updates); err != nil {
				return err
			}
			summary = ResultSummary{Match: m, ScoredCount: len(updates)}
			return nil
		})
	})
	if err != nil {
		return nil, classify(err, "match")
	}
	s.log.InfoContext(ctx, "game: result entered",
		"match_id", matchID, "home", home, "away", away, "scored", summary.ScoredCount)
	return &summary, nil
}

// ListAllPredictions returns every prediction with its user and match,
// latest kickoff first, then by user name.
func (s *Service) ListAllPredictions(ctx context.Context, actor *models.User) ([]*models.PredictionView, error) {
	if err := requireLogin(actor); err != nil {
		return nil, err
	}
	views, err := s.predictions.ListAll(ctx)
	if err != nil {
		return nil, classify(err, "predictions")
	}
	return views, nil
}

// Leaderboard ranks players by accumulated points.
func (s *Service) Leaderboard(ctx context.Context, actor *models.User) ([]*models.LeaderboardEntry, error) {
	if err := requireLogin(actor); err != nil {
		return nil, err
	}
	entries, err := s.predictions.Leaderboard(ctx)
	if err != nil {
		return nil, classify(err, "leaderboard")
	}
	return entries, nil
}
