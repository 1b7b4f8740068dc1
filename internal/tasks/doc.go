// Package tasks runs the save-current-track operation end to end.
//
// # Slots
//
// A [SlotPolicy] splits the day at boundary hours into shortcut slots 1..N. Slot 0 is the
// default playlist. [ResolvePlaylistID] picks the target playlist for an explicit slot or
// for the current time, falling back to the default slot.
//
// # Saving
//
// [SaveRunner.Run] resolves the playlist, checks that credentials exist, adds the playing
// track and records a history entry. Every result is reduced to a [formatter.Outcome] with
// a short reason on failure. An unauthorized response wipes the stored credentials.
//
// # Progress Reporting
//
// When [SaveRunnerOpts.Progress] is set, each phase sends a [ProgressUpdate]. Sends use
// select with default so a slow reader never blocks the save.
package tasks
