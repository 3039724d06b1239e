package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testTrack(id, name string) models.Track {
	return models.Track{
		ID:         id,
		Name:       name,
		URI:        "spotify:track:" + id,
		DurationMs: 215000,
		Artists:    []models.Artist{{Name: "Artist One"}, {Name: "Artist Two"}},
		Album:      models.Album{Name: "Album"},
	}
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	t.Run("Record", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		play := models.NewPlay(testTrack("t1", "First"), "dev-1", start)

		if err := repo.Record(ctx, play); err != nil {
			t.Fatalf("failed to record play: %v", err)
		}
		if play.ID == "" {
			t.Error("play ID should be set after recording")
		}
		if play.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", play.Sequence)
		}
	})

	t.Run("Record After Schema Round Trip", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		if err := repo.Record(ctx, models.NewPlay(testTrack("t1", "First"), "dev-1", start)); err != nil {
			t.Fatalf("failed to record play: %v", err)
		}

		if err := shared.RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}
		if err := repo.Record(ctx, models.NewPlay(testTrack("t2", "Second"), "dev-1", start)); err == nil {
			t.Error("expected record to fail without the plays table")
		}

		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to reapply migrations: %v", err)
		}
		play := models.NewPlay(testTrack("t3", "Third"), "dev-1", start)
		if err := repo.Record(ctx, play); err != nil {
			t.Fatalf("failed to record play after reapply: %v", err)
		}
		if play.Sequence != 1 {
			t.Errorf("expected sequence to restart at 1, got %d", play.Sequence)
		}
		if n, err := repo.Count(ctx); err != nil || n != 1 {
			t.Errorf("expected 1 play, got %d (%v)", n, err)
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		play := models.NewPlay(testTrack("t1", "First"), "dev-1", start)
		if err := repo.Record(ctx, play); err != nil {
			t.Fatalf("failed to record play: %v", err)
		}

		got, err := repo.Get(ctx, play.ID)
		if err != nil {
			t.Fatalf("failed to get play: %v", err)
		}
		if got.Artists != "Artist One, Artist Two" || got.Album != "Album" || got.DurationMs != 215000 {
			t.Errorf("unexpected play %+v", got)
		}
		if !got.PlayedAt.Equal(start) {
			t.Errorf("expected played_at %v, got %v", start, got.PlayedAt)
		}
	})

	t.Run("Recent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		for i, name := range []string{"a", "b", "c"} {
			play := models.NewPlay(testTrack(name, name), "dev-1", start.Add(time.Duration(i)*time.Minute))
			if err := repo.Record(ctx, play); err != nil {
				t.Fatalf("failed to record play: %v", err)
			}
		}

		plays, err := repo.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("failed to list plays: %v", err)
		}
		if len(plays) != 2 || plays[0].TrackID != "c" || plays[1].TrackID != "b" {
			t.Errorf("expected c then b, got %+v", plays)
		}

		all, err := repo.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list plays: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 plays, got %d", len(all))
		}
	})

	t.Run("Count And MostPlayed", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		for i, id := range []string{"a", "b", "a", "c", "a", "b"} {
			play := models.NewPlay(testTrack(id, "Song "+id), "dev-1", start.Add(time.Duration(i)*time.Minute))
			if err := repo.Record(ctx, play); err != nil {
				t.Fatalf("failed to record play: %v", err)
			}
		}

		n, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("failed to count plays: %v", err)
		}
		if n != 6 {
			t.Errorf("expected 6 plays, got %d", n)
		}

		top, err := repo.MostPlayed(ctx, 2)
		if err != nil {
			t.Fatalf("failed to get most played: %v", err)
		}
		if len(top) != 2 || top[0].TrackID != "a" || top[0].Plays != 3 || top[1].TrackID != "b" {
			t.Errorf("unexpected most played %+v", top)
		}
	})
}

func TestHistoryRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidationError", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		if err := repo.Record(ctx, &models.Play{Name: "missing ids"}); err == nil {
			t.Fatal("expected validation error")
		}

		n, _ := repo.Count(ctx)
		if n != 0 {
			t.Errorf("expected nothing recorded, got %d", n)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		if _, err := repo.Get(ctx, "nonexistent-id"); !errors.Is(err, ErrPlayNotFound) {
			t.Fatalf("expected ErrPlayNotFound, got %v", err)
		}
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()

		repo := NewHistoryRepository(db)
		if _, err := repo.Recent(ctx, 10); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.Count(ctx); err == nil {
			t.Error("expected error on closed database")
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(context.Background(), db, "plays")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(context.Background(), db, "missing"); err == nil {
		t.Error("expected error for a table without a sequence")
	}
}
