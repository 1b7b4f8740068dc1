package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tracksaver/internal/formatter"
	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/shared"
	"github.com/desertthunder/tracksaver/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Save adds the current track. With --shortcut the compact outcome is the only output
// and the command always succeeds so automation hosts can branch on the text.
func (r *Runner) Save(ctx context.Context, cmd *cli.Command) error {
	var slot *int
	if cmd.IsSet("slot") {
		n := cmd.Int("slot")
		slot = &n
	}
	shortcut := cmd.Bool("shortcut")

	if r.configErr != nil {
		r.logger.Error("config unusable", "path", r.configPath, "error", r.configErr)
		return r.writePlain("%s\n", formatter.EncodeOutcome(formatter.Failed(models.StatusFail, tasks.ReasonInvalidConfig)))
	}

	outcome := r.runSave(ctx, slot, !shortcut)

	if shortcut {
		return r.writePlain("%s\n", formatter.EncodeOutcome(outcome))
	}

	werr := r.writePlain("%s\n", formatter.RenderOutcome(r.palette, outcome))
	if err := outcomeError(outcome); err != nil {
		return err
	}
	return werr
}

// saveBefore loads the config. A broken config under --shortcut is reported as an
// outcome string so automation still has a line to branch on.
func (r *Runner) saveBefore(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	ctx, err := r.loadConfig(ctx, cmd)
	if err != nil && cmd.Bool("shortcut") {
		r.configErr = err
		return ctx, nil
	}
	return ctx, err
}

func (r *Runner) runSave(ctx context.Context, slot *int, showProgress bool) formatter.Outcome {
	selections, err := r.selections(ctx)
	if err != nil {
		return formatter.Failed(models.StatusFail, err.Error())
	}
	history, err := r.history(ctx)
	if err != nil {
		return formatter.Failed(models.StatusFail, err.Error())
	}

	opts := tasks.SaveRunnerOpts{
		Selections: selections,
		Policy:     r.slotPolicy(),
		Client:     r.spotify(),
		Store:      r.credentialStore(),
		History:    history,
		Clock:      r.clock,
		Logger:     shared.WithLogger(r.logger, "component", "save"),
	}

	if !showProgress {
		return tasks.NewSaveRunner(opts).Run(ctx, slot)
	}

	progress := make(chan tasks.ProgressUpdate, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			r.logger.Debug(u.Message, "phase", u.Phase, "step", fmt.Sprintf("%d/%d", u.Step, u.Total))
		}
	}()
	opts.Progress = progress

	outcome := tasks.NewSaveRunner(opts).Run(ctx, slot)
	close(progress)
	<-done
	return outcome
}

// outcomeError maps a failed outcome to the error that sets the exit code.
// A duplicate is reported but is not an error.
func outcomeError(o formatter.Outcome) error {
	if o.OK || o.Status == models.StatusDuplicate {
		return nil
	}
	switch o.Reason {
	case tasks.ReasonNotSignedIn:
		return fmt.Errorf("%w: run 'tracksaver auth login'", shared.ErrMissingAccessToken)
	case tasks.ReasonUnauthorized:
		return fmt.Errorf("%w: credentials were cleared, sign in again", shared.ErrUnauthorized)
	case tasks.ReasonNoPlaylist:
		return fmt.Errorf("%w: run 'tracksaver select <playlist-id>'", shared.ErrNoPlaylistSelected)
	case tasks.ReasonNoTrack:
		return shared.ErrNoCurrentTrack
	}
	return errors.New(o.Reason)
}

// History lists or clears the signed-in user's saves.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	identity, err := r.spotify().FetchIdentity(ctx)
	if err != nil {
		return err
	}
	repo, err := r.history(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("clear") {
		n, err := repo.Clear(ctx, identity.ID)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Deleted %d history entries\n", n)
	}

	entries, err := repo.ListByUser(ctx, identity.ID, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}
	if len(entries) == 0 && cmd.String("output") == "" {
		return r.writePlain("%s\n", r.palette.Help("No saves yet."))
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	data, err := formatter.ExportHistory(entries, format)
	if err != nil {
		return err
	}
	return r.emit(cmd.String("output"), data, fmt.Sprintf("%d history entries", len(entries)))
}
