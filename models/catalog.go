package models

// Team is a club the admin can pick when creating a match.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// KickoffSlot is a preset kickoff time of day, formatted HH:MM.
type KickoffSlot struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}
