package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksaver/internal/credentials"
	"github.com/desertthunder/tracksaver/internal/formatter"
	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/services"
	"github.com/desertthunder/tracksaver/internal/shared"
)

// Failure reasons carried in an outcome. [SaveRunner.Run] reports all but
// ReasonInvalidConfig, which the CLI uses when the config cannot be read.
const (
	ReasonNoPlaylist    = "No playlist selected"
	ReasonNotSignedIn   = "Not signed in"
	ReasonUnauthorized  = "Unauthorized"
	ReasonNoTrack       = "No track playing"
	ReasonDuplicate     = "Already in playlist"
	ReasonInvalidConfig = "Invalid configuration"
)

// HistoryRecorder stores one entry per save attempt.
type HistoryRecorder interface {
	Add(ctx context.Context, entry *models.HistoryEntry) error
}

// SaveRunnerOpts configures a [SaveRunner]. History, Clock, Logger and Progress are optional.
type SaveRunnerOpts struct {
	Selections SelectionReader
	Policy     SlotPolicy
	Client     services.Client
	Store      credentials.Store
	History    HistoryRecorder
	Clock      shared.Clock
	Logger     *log.Logger
	Progress   chan<- ProgressUpdate
}

// SaveRunner saves the current track into the resolved playlist and reduces every result
// to a [formatter.Outcome].
type SaveRunner struct {
	opts SaveRunnerOpts
}

// NewSaveRunner creates a [SaveRunner].
func NewSaveRunner(opts SaveRunnerOpts) *SaveRunner {
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &SaveRunner{opts: opts}
}

// sendProgress sends a progress update through the channel without blocking.
func (r *SaveRunner) sendProgress(update ProgressUpdate) {
	if r.opts.Progress == nil {
		return
	}
	select {
	case r.opts.Progress <- update:
	default:
	}
}

// Run performs one save. It never panics and never returns an error: failures are
// carried in the outcome's Reason.
func (r *SaveRunner) Run(ctx context.Context, slot *int) (outcome formatter.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.opts.Logger.Error("save panicked", "panic", p)
			outcome = formatter.Failed(models.StatusFail, fmt.Sprintf("internal error: %v", p))
		}
		r.sendProgress(doneUpdate(outcome))
	}()

	r.sendProgress(resolvePlaylistUpdate(slot))
	playlistID, err := ResolvePlaylistID(ctx, r.opts.Selections, r.opts.Policy, slot, r.opts.Clock.Now())
	if errors.Is(err, shared.ErrNoPlaylistSelected) {
		return formatter.Failed(models.StatusFail, ReasonNoPlaylist)
	}
	if err != nil {
		return formatter.Failed(models.StatusFail, err.Error())
	}

	r.sendProgress(checkCredentialsUpdate())
	rec, err := credentials.Load(r.opts.Store)
	if err != nil {
		return formatter.Failed(models.StatusFail, err.Error())
	}
	if rec.Empty() {
		return formatter.Failed(models.StatusFail, ReasonNotSignedIn)
	}

	r.sendProgress(addTrackUpdate(playlistID))
	result, err := r.opts.Client.AddCurrentTrack(ctx, playlistID)
	outcome, entry := r.classify(result, err)
	r.opts.Logger.Info("save finished", "playlist", playlistID, "kind", shared.Kind(err), "status", outcome.Status)

	if errors.Is(err, shared.ErrUnauthorized) {
		if derr := r.opts.Store.DeleteAll(); derr != nil {
			r.opts.Logger.Warn("failed to clear credentials", "error", derr)
		}
		return outcome
	}

	r.sendProgress(recordHistoryUpdate())
	entry.PlaylistID = playlistID
	r.record(ctx, entry)
	return outcome
}

func (r *SaveRunner) classify(result *services.AddTrackResult, err error) (formatter.Outcome, *models.HistoryEntry) {
	var dup *shared.DuplicateTrackError

	switch {
	case err == nil:
		o := formatter.Succeeded(result.TrackID, result.TrackName, result.ArtistName, result.ArtworkURL)
		return o, &models.HistoryEntry{
			TrackID:    result.TrackID,
			TrackName:  result.TrackName,
			ArtistName: result.ArtistName,
			ArtworkURL: result.ArtworkURL,
			Status:     models.StatusSuccess,
		}
	case errors.Is(err, shared.ErrUnauthorized):
		return formatter.Failed(models.StatusFail, ReasonUnauthorized), nil
	case errors.As(err, &dup):
		o := formatter.Failed(models.StatusDuplicate, ReasonDuplicate)
		o.TrackName, o.ArtistName, o.ArtworkURL = dup.Name, dup.Artist, dup.ArtworkURL
		return o, &models.HistoryEntry{TrackName: dup.Name, ArtistName: dup.Artist, ArtworkURL: dup.ArtworkURL, Status: models.StatusDuplicate}
	case errors.Is(err, shared.ErrNoCurrentTrack):
		return formatter.Failed(models.StatusNoTrack, ReasonNoTrack), &models.HistoryEntry{Status: models.StatusNoTrack}
	default:
		return formatter.Failed(models.StatusFail, err.Error()), &models.HistoryEntry{Status: models.StatusFail}
	}
}

// record stores entry under the signed-in user. Failures are logged only.
func (r *SaveRunner) record(ctx context.Context, entry *models.HistoryEntry) {
	if r.opts.History == nil {
		return
	}

	identity, err := r.opts.Client.FetchIdentity(ctx)
	if err != nil {
		r.opts.Logger.Warn("skipping history, identity unavailable", "error", err)
		return
	}
	entry.UserID = identity.ID
	entry.CreatedAt = r.opts.Clock.Now()

	if pl, err := r.opts.Client.FetchPlaylist(ctx, entry.PlaylistID); err == nil {
		entry.PlaylistName = pl.Name
	} else {
		r.opts.Logger.Debug("playlist name unavailable", "playlist", entry.PlaylistID, "error", err)
	}

	if err := r.opts.History.Add(ctx, entry); err != nil {
		r.opts.Logger.Warn("failed to record history", "error", err)
	}
}
