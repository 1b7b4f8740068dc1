package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tracksaver/internal/formatter"
	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/services"
	"github.com/desertthunder/tracksaver/internal/shared"
	"github.com/urfave/cli/v3"
)

// Me prints the signed-in account.
func (r *Runner) Me(ctx context.Context, cmd *cli.Command) error {
	identity, err := r.spotify().FetchIdentity(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(identity, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", r.palette.Title(identity.DisplayName))
	r.writePlain("ID: %s\n", identity.ID)
	if identity.AvatarURL != "" {
		r.writePlain("Avatar: %s\n", identity.AvatarURL)
	}
	return nil
}

// Playlists lists the playlists the user can add to, or all of them with --all.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	client := r.spotify()

	var playlists []services.Playlist
	if cmd.Bool("all") {
		all, err := client.FetchPlaylists(ctx)
		if err != nil {
			return err
		}
		playlists = all
	} else {
		identity, err := client.FetchIdentity(ctx)
		if err != nil {
			return err
		}
		r.logger.Debug("listing editable playlists", "user", identity.ID)
		if playlists, err = client.FetchEditablePlaylists(ctx, identity.ID); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	marks, err := r.selectionMarks(ctx)
	if err != nil {
		return err
	}

	data, err := formatter.ExportPlaylists(playlists, marks, format)
	if err != nil {
		return err
	}
	return r.emit(cmd.String("output"), data, fmt.Sprintf("%d playlists", len(playlists)))
}

// selectionMarks labels each selected playlist with the slots pointing at it.
func (r *Runner) selectionMarks(ctx context.Context) (map[string]string, error) {
	repo, err := r.selections(ctx)
	if err != nil {
		return nil, err
	}
	selections, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}

	labels := map[string][]string{}
	for _, sel := range selections {
		labels[sel.PlaylistID] = append(labels[sel.PlaylistID], slotLabel(sel.Slot))
	}

	marks := make(map[string]string, len(labels))
	for id, l := range labels {
		marks[id] = strings.Join(l, ", ")
	}
	return marks, nil
}

func slotLabel(slot int) string {
	if slot == models.DefaultSlot {
		return "default"
	}
	return fmt.Sprintf("slot %d", slot)
}

// emit writes data to path, or to the output when path is empty.
func (r *Runner) emit(path string, data []byte, what string) error {
	if path == "" {
		_, err := r.output.Write(data)
		return err
	}
	if err := formatter.WriteExport(path, data); err != nil {
		return err
	}
	r.logger.Info("export written", "path", path)
	return r.writePlain("✓ Exported %s to %s\n", what, path)
}

// Select stores or clears the playlist of a slot.
func (r *Runner) Select(ctx context.Context, cmd *cli.Command) error {
	slot := cmd.Int("slot")
	policy := r.slotPolicy()
	if slot < models.DefaultSlot || slot > policy.Count() {
		return fmt.Errorf("%w: slot must be between 0 and %d", shared.ErrInvalidArgument, policy.Count())
	}

	repo, err := r.selections(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("clear") {
		if err := repo.Clear(ctx, slot); err != nil {
			return err
		}
		return r.writePlain("✓ Cleared %s\n", slotLabel(slot))
	}

	playlistID := cmd.StringArg("playlist-id")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	client := r.spotify()
	playlist, err := client.FetchPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}
	if identity, err := client.FetchIdentity(ctx); err == nil && !playlist.Editable(identity.ID) {
		r.writePlain("%s\n", r.palette.Warn("⚠ You cannot add tracks to this playlist; saves will fail."))
	}

	if _, err := repo.Set(ctx, slot, playlist.ID); err != nil {
		return err
	}
	return r.writePlain("✓ %s → %s (%s)\n", slotLabel(slot), playlist.Name, playlist.ID)
}

type slotView struct {
	Slot       int    `json:"slot"`
	Window     string `json:"window,omitempty"`
	PlaylistID string `json:"playlist_id,omitempty"`
	Current    bool   `json:"current"`
}

// Slots prints every slot, its hours and its playlist.
func (r *Runner) Slots(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.selections(ctx)
	if err != nil {
		return err
	}
	selections, err := repo.List(ctx)
	if err != nil {
		return err
	}

	chosen := map[int]string{}
	for _, sel := range selections {
		chosen[sel.Slot] = sel.PlaylistID
	}

	policy := r.slotPolicy()
	current := models.DefaultSlot
	if policy.Enabled {
		current = policy.Resolve(r.clock.Now())
	}

	views := []slotView{{Slot: models.DefaultSlot, PlaylistID: chosen[models.DefaultSlot], Current: current == models.DefaultSlot}}
	for slot := 1; slot <= policy.Count(); slot++ {
		views = append(views, slotView{Slot: slot, Window: policy.Window(slot), PlaylistID: chosen[slot], Current: slot == current})
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if !policy.Enabled {
		r.writePlain("%s\n", r.palette.Help("Time-of-day slots are disabled; saves use the default playlist."))
	}
	for _, v := range views {
		id := v.PlaylistID
		if id == "" {
			id = r.palette.Help("(none)")
		}
		line := fmt.Sprintf("%-8s %-16s %s", slotLabel(v.Slot), v.Window, id)
		if v.Current {
			line = r.palette.OK(line + "  ← now")
		}
		r.writePlain("%s\n", line)
	}
	return nil
}
