package tasks

import (
	"fmt"

	"github.com/desertthunder/tracksaver/internal/formatter"
)

// ProgressUpdate represents a progress event during a save.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number
	Total   int    // Total steps
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ResolvePlaylist Phase = iota
	CheckCredentials
	AddTrack
	RecordHistory
	Done
)

// saveSteps is the number of phases before [Done].
const saveSteps = int(Done)

func (p Phase) String() string {
	switch p {
	case ResolvePlaylist:
		return "resolve_playlist"
	case CheckCredentials:
		return "check_credentials"
	case AddTrack:
		return "add_track"
	case RecordHistory:
		return "record_history"
	case Done:
		return "done"
	default:
		return ""
	}
}

func resolvePlaylistUpdate(slot *int) ProgressUpdate {
	msg := "Resolving playlist for the current time..."
	if slot != nil {
		msg = fmt.Sprintf("Resolving playlist for slot %d...", *slot)
	}
	return ProgressUpdate{Phase: ResolvePlaylist, Step: 1, Total: saveSteps, Message: msg}
}

func checkCredentialsUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: CheckCredentials, Step: 2, Total: saveSteps, Message: "Checking stored credentials..."}
}

func addTrackUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTrack,
		Step:    3,
		Total:   saveSteps,
		Message: fmt.Sprintf("Adding current track to %s...", playlistID),
		Data:    playlistID,
	}
}

func recordHistoryUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: RecordHistory, Step: 4, Total: saveSteps, Message: "Recording history..."}
}

func doneUpdate(o formatter.Outcome) ProgressUpdate {
	msg := "✓ " + o.TrackName
	if !o.OK {
		msg = "✗ " + o.Reason
	}
	return ProgressUpdate{Phase: Done, Step: saveSteps, Total: saveSteps, Message: msg, Data: o}
}
