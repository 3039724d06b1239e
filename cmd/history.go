package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tunedeck/internal/formatter"
	"github.com/desertthunder/tunedeck/internal/repositories"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// History prints recorded plays, or the most played tracks with --top.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := repositories.NewHistoryRepository(db)

	if top := cmd.Int("top"); top > 0 {
		return r.mostPlayed(ctx, repo, int(top))
	}

	plays, err := repo.Recent(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	data, err := formatter.History(format, plays, time.Now())
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(path, data); err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s plays to %s\n", humanize.Comma(int64(len(plays))), path)
	}

	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) mostPlayed(ctx context.Context, repo *repositories.HistoryRepository, top int) error {
	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	counts, err := repo.MostPlayed(ctx, top)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Most played (%s plays total)", humanize.Comma(int64(total))))
	if len(counts) == 0 {
		return r.writePlain("No plays recorded yet.\n")
	}
	for i, c := range counts {
		r.writePlain("%-5s %s - %s (%s)\n", humanize.Ordinal(i+1), c.Artists, c.Name, playsLabel(c.Plays))
	}
	return nil
}

func playsLabel(n int) string {
	if n == 1 {
		return "1 play"
	}
	return humanize.Comma(int64(n)) + " plays"
}
