package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Teams and kickoff slots: the admin's pick lists
// ─────────────────────────────────────────────────────────────────────────────

// TeamRepository stores the club catalog.
type TeamRepository interface {
	Insert(ctx context.Context, name string) (*models.Team, error)
	List(ctx context.Context) ([]*models.Team, error)
	Delete(ctx context.Context, id int64) error
}

// SlotRepository stores preset kickoff times.
type SlotRepository interface {
	Insert(ctx context.Context, label string) (*models.KickoffSlot, error)
	List(ctx context.Context) ([]*models.KickoffSlot, error)
	Delete(ctx context.Context, id int64) error
}

const (
	sqlInsertTeam = `INSERT INTO teams (name) VALUES ($1) RETURNING id`
	sqlListTeams  = `SELECT id, name FROM teams ORDER BY name`
	sqlDeleteTeam = `DELETE FROM teams WHERE id = $1`

	sqlInsertSlot = `INSERT INTO kickoff_slots (label) VALUES ($1) RETURNING id`
	sqlListSlots  = `SELECT id, label FROM kickoff_slots ORDER BY label`
	sqlDeleteSlot = `DELETE FROM kickoff_slots WHERE id = $1`
)

type teamRepo struct{ q db.Querier }

// NewTeamRepo returns a TeamRepository backed by q.
func NewTeamRepo(q db.Querier) TeamRepository { return &teamRepo{q: q} }

func (r *teamRepo) Insert(ctx context.Context, name string) (*models.Team, error) {
	t := &models.Team{Name: name}
	if err := r.q.QueryRow(ctx, sqlInsertTeam, name).Scan(&t.ID); err != nil {
		return nil, fmt.Errorf("repo/team: insert: %w", err)
	}
	return t, nil
}

func (r *teamRepo) List(ctx context.Context) ([]*models.Team, error) {
	rows, err := r.q.Query(ctx, sqlListTeams)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		t := &models.Team{}
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("repo/team: scan: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *teamRepo) Delete(ctx context.Context, id int64) error {
	return execAffectingOne(ctx, r.q, sqlDeleteTeam, id)
}

type slotRepo struct{ q db.Querier }

// NewSlotRepo returns a SlotRepository backed by q.
func NewSlotRepo(q db.Querier) SlotRepository { return &slotRepo{q: q} }

func (r *slotRepo) Insert(ctx context.Context, label string) (*models.KickoffSlot, error) {
	s := &models.KickoffSlot{Label: label}
	if err := r.q.QueryRow(ctx, sqlInsertSlot, label).Scan(&s.ID); err != nil {
		return nil, fmt.Errorf("repo/slot: insert: %w", err)
	}
	return s, nil
}

// List orders by label; HH:MM sorts chronologically as text.
func (r *slotRepo) List(ctx context.Context) ([]*models.KickoffSlot, error) {
	rows, err := r.q.Query(ctx, sqlListSlots)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []*models.KickoffSlot
	for rows.Next() {
		s := &models.KickoffSlot{}
		if err := rows.Scan(&s.ID, &s.Label); err != nil {
			return nil, fmt.Errorf("repo/slot: scan: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *slotRepo) Delete(ctx context.Context, id int64) error {
	return execAffectingOne(ctx, r.q, sqlDeleteSlot, id)
}

var (
	_ TeamRepository = (*teamRepo)(nil)
	_ SlotRepository = (*slotRepo)(nil)
)
