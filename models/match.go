package models

import "time"

// Status is a match's lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusFinished  Status = "finished"
	StatusScored    Status = "scored"
)

// Rank orders statuses along the lifecycle; unknown statuses rank -1.
func (s Status) Rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusLive:
		return 1
	case StatusFinished:
		return 2
	case StatusScored:
		return 3
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s.Rank() >= 0 }

// Match represents a row in the "matches" table. HomeGoals and AwayGoals are
// both nil until a result is entered.
type Match struct {
	ID        int64     `json:"id"`
	Kickoff   time.Time `json:"kickoff"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	Status    Status    `json:"status"`
	HomeGoals *int      `json:"home_goals"`
	AwayGoals *int      `json:"away_goals"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AcceptsPredictions reports whether a prediction submitted at now may be
// stored: the match is still scheduled and kickoff lies strictly ahead.
func (m *Match) AcceptsPredictions(now time.Time) bool {
	return m.Status == StatusScheduled && now.Before(m.Kickoff)
}

// HasResult reports whether final goals are stored.
func (m *Match) HasResult() bool { return m.HomeGoals != nil && m.AwayGoals != nil }

// CreateMatchParams holds the admin input for a new fixture.
type CreateMatchParams struct {
	Kickoff  time.Time
	HomeTeam string
	AwayTeam string
}

// MatchWithPrediction is a match as seen by one user, with that user's own
// prediction attached when there is one.
type MatchWithPrediction struct {
	Match
	Prediction *Prediction `json:"prediction"`
}
