package game

import (
	"context"
	"strings"
	"time"

	"github.com/Skryldev/tippspiel/models"
)

// Teams and kickoff slots are pick lists for the admin's match form.
// Matches copy the team name, so deleting a team leaves fixtures intact.

func (s *Service) ListTeams(ctx context.Context, actor *models.User) ([]*models.Team, error) {
	if err := requireLogin(actor); err != nil {
		return nil, err
	}
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, classify(err, "teams")
	}
	return teams, nil
}

func (s *Service) CreateTeam(ctx context.Context, actor *models.User, name string) (*models.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name, err := cleanName("team name", name)
	if err != nil {
		return nil, err
	}
	t, err := s.teams.Insert(ctx, name)
	if err != nil {
		return nil, classify(err, "team")
	}
	return t, nil
}

func (s *Service) DeleteTeam(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return classify(s.teams.Delete(ctx, id), "team")
}

func (s *Service) ListSlots(ctx context.Context, actor *models.User) ([]*models.KickoffSlot, error) {
	if err := requireLogin(actor); err != nil {
		return nil, err
	}
	slots, err := s.slots.List(ctx)
	if err != nil {
		return nil, classify(err, "kickoff slots")
	}
	return slots, nil
}

// CreateSlot accepts H:MM or HH:MM and stores it as HH:MM.
func (s *Service) CreateSlot(ctx context.Context, actor *models.User, label string) (*models.KickoffSlot, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	t, err := time.Parse("15:04", strings.TrimSpace(label))
	if err != nil {
		return nil, newError(ErrValidation, "kickoff slot must look like 15:30")
	}
	slot, err := s.slots.Insert(ctx, t.Format("15:04"))
	if err != nil {
		return nil, classify(err, "kickoff slot")
	}
	return slot, nil
}

func (s *Service) DeleteSlot(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return classify(s.slots.Delete(ctx, id), "kickoff slot")
}
