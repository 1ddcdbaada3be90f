package models

import "time"

// Prediction represents a row in the "predictions" table. Points stays nil
// until the match is scored.
type Prediction struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	MatchID   int64     `json:"match_id"`
	HomeGoals int       `json:"home_goals"`
	AwayGoals int       `json:"away_goals"`
	Points    *int      `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertPredictionParams is keyed by (UserID, MatchID).
type UpsertPredictionParams struct {
	UserID    int64
	MatchID   int64
	HomeGoals int
	AwayGoals int
}

// PredictionView is a prediction joined with its user and match, as listed
// to every logged-in user.
type PredictionView struct {
	Prediction
	UserName string `json:"user_name"`
	Match    Match  `json:"match"`
}

// LeaderboardEntry is one player's accumulated points. Players with equal
// points share a rank.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
}
