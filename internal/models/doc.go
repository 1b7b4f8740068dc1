// Package models defines the records tracksaver keeps in its local database.
//
//   - [Selection] : the playlist chosen for a slot. Slot [DefaultSlot] is the default
//     playlist, slots 1..N are the time-of-day shortcut slots.
//   - [HistoryEntry] : one save attempt with the track metadata and its [Status].
//
// Both implement [Model] so repositories validate them before writing.
package models
