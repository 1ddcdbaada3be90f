package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/models"
	"github.com/Skryldev/tippspiel/repo"
)

func TestPredictionRepo_Upsert_OnePerUserMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := mustUser(t, f.users, "alice", models.RolePlayer)
	m := f.match(t, day, "A", "B")

	first, err := f.predictions.Upsert(ctx, models.UpsertPredictionParams{UserID: u.ID, MatchID: m.ID, HomeGoals: 1, AwayGoals: 0})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := f.predictions.Upsert(ctx, models.UpsertPredictionParams{UserID: u.ID, MatchID: m.ID, HomeGoals: 2, AwayGoals: 2})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected overwrite of id %d, got new id %d", first.ID, second.ID)
	}
	if second.HomeGoals != 2 || second.AwayGoals != 2 {
		t.Fatalf("last write should win, got %+v", second)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Fatalf("updated_at went backwards: %s < %s", second.UpdatedAt, first.UpdatedAt)
	}

	all, err := f.predictions.ListByMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly 1 prediction, got %d", len(all))
	}
	if all[0].Points != nil {
		t.Fatalf("unscored prediction should have nil points, got %d", *all[0].Points)
	}
}

func TestPredictionRepo_Upsert_UnknownMatch(t *testing.T) {
	f := newFixture(t)
	u := mustUser(t, f.users, "alice", models.RolePlayer)
	_, err := f.predictions.Upsert(context.Background(), models.UpsertPredictionParams{UserID: u.ID, MatchID: 999, HomeGoals: 1, AwayGoals: 0})
	if !db.IsForeignKeyViolation(err) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestPredictionRepo_SetPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := mustUser(t, f.users, "alice", models.RolePlayer)
	m := f.match(t, day, "A", "B")
	p, err := f.predictions.Upsert(ctx, models.UpsertPredictionParams{UserID: u.ID, MatchID: m.ID, HomeGoals: 1, AwayGoals: 0})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := f.predictions.SetPoints(ctx, []repo.PointsUpdate{{PredictionID: p.ID, Points: 5}}); err != nil {
		t.Fatalf("set points: %v", err)
	}
	if err := f.predictions.SetPoints(ctx, []repo.PointsUpdate{{PredictionID: p.ID, Points: 1}}); err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if err := f.predictions.SetPoints(ctx, nil); err != nil {
		t.Fatalf("empty update: %v", err)
	}

	got, err := f.predictions.GetByUserMatch(ctx, u.ID, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Points == nil || *got.Points != 1 {
		t.Fatalf("expected overwritten points 1, got %v", got.Points)
	}
}

func TestPredictionRepo_ListAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	zoe := mustUser(t, f.users, "zoe", models.RolePlayer)
	ann := mustUser(t, f.users, "ann", models.RolePlayer)
	early := f.match(t, day, "A", "B")
	late := f.match(t, day.Add(24*time.Hour), "C", "D")

	for _, p := range []models.UpsertPredictionParams{
		{UserID: zoe.ID, MatchID: early.ID, HomeGoals: 1, AwayGoals: 0},
		{UserID: zoe.ID, MatchID: late.ID, HomeGoals: 0, AwayGoals: 0},
		{UserID: ann.ID, MatchID: late.ID, HomeGoals: 4, AwayGoals: 1},
	} {
		if _, err := f.predictions.Upsert(ctx, p); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	views, err := f.predictions.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 views, got %d", len(views))
	}
	if views[0].UserName != "ann" || views[0].Match.ID != late.ID {
		t.Fatalf("first view should be ann on the late match, got %s on %d", views[0].UserName, views[0].Match.ID)
	}
	if views[1].UserName != "zoe" || views[2].Match.HomeTeam != "A" {
		t.Fatalf("unexpected order: %+v", views)
	}
}

func TestPredictionRepo_Leaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.users.UpsertAdmin(ctx, "admin", "x"); err != nil {
		t.Fatalf("admin: %v", err)
	}
	bea := mustUser(t, f.users, "bea", models.RolePlayer)
	abe := mustUser(t, f.users, "abe", models.RolePlayer)
	cid := mustUser(t, f.users, "cid", models.RolePlayer)
	mustUser(t, f.users, "dan", models.RolePlayer)

	m1 := f.match(t, day, "A", "B")
	m2 := f.match(t, day.Add(time.Hour), "C", "D")

	points := map[int64][]int{bea.ID: {5, 1}, abe.ID: {3, 3}, cid.ID: {0, 1}}
	var updates []repo.PointsUpdate
	for uid, pts := range points {
		for i, m := range []*models.Match{m1, m2} {
			p, err := f.predictions.Upsert(ctx, models.UpsertPredictionParams{UserID: uid, MatchID: m.ID, HomeGoals: 1, AwayGoals: 0})
			if err != nil {
				t.Fatalf("upsert: %v", err)
			}
			updates = append(updates, repo.PointsUpdate{PredictionID: p.ID, Points: pts[i]})
		}
	}
	if err := f.predictions.SetPoints(ctx, updates); err != nil {
		t.Fatalf("set points: %v", err)
	}

	board, err := f.predictions.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}

	want := []struct {
		name   string
		points int64
		rank   int
	}{
		{"abe", 6, 1},
		{"bea", 6, 1},
		{"cid", 1, 3},
		{"dan", 0, 4},
	}
	if len(board) != len(want) {
		t.Fatalf("expected %d entries (players only), got %d", len(want), len(board))
	}
	for i, w := range want {
		e := board[i]
		if e.Name != w.name || e.Points != w.points || e.Rank != w.rank {
			t.Fatalf("entry %d = %+v, want %+v", i, e, w)
		}
	}
}

func TestPredictionRepo_DeleteByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := mustUser(t, f.users, "alice", models.RolePlayer)
	other := mustUser(t, f.users, "bob", models.RolePlayer)
	m := f.match(t, day, "A", "B")
	for _, uid := range []int64{u.ID, other.ID} {
		if _, err := f.predictions.Upsert(ctx, models.UpsertPredictionParams{UserID: uid, MatchID: m.ID}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	n, err := f.predictions.DeleteByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	left, _ := f.predictions.ListByMatch(ctx, m.ID)
	if len(left) != 1 || left[0].UserID != other.ID {
		t.Fatalf("expected only bob's prediction left, got %+v", left)
	}
}
