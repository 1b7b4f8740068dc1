package formatter

import (
	"fmt"
	"strings"

	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/shared"
)

const (
	segmentSep    = "~"
	successMarker = "success"
	failurePrefix = "~~~"
)

// Outcome is the structured result of one save attempt. Every attempt resolves to one.
type Outcome struct {
	OK         bool
	Status     models.Status
	TrackID    string
	TrackName  string
	ArtistName string
	ArtworkURL string
	Reason     string // set when OK is false
}

// Succeeded builds a successful [Outcome].
func Succeeded(trackID, trackName, artistName, artworkURL string) Outcome {
	return Outcome{
		OK:         true,
		Status:     models.StatusSuccess,
		TrackID:    trackID,
		TrackName:  trackName,
		ArtistName: artistName,
		ArtworkURL: artworkURL,
	}
}

// Failed builds a failed [Outcome] with the given history status.
func Failed(status models.Status, reason string) Outcome {
	return Outcome{Status: status, Reason: reason}
}

// EncodeOutcome renders o as "<name>~success~<id>" or "~~~<reason>" for automation hosts.
func EncodeOutcome(o Outcome) string {
	if o.OK {
		return encodeSegment(o.TrackName) + segmentSep + successMarker + segmentSep + encodeSegment(o.TrackID)
	}
	return failurePrefix + encodeSegment(o.Reason)
}

// DecodeOutcome parses a string produced by [EncodeOutcome]. Only the fields carried by
// the compact form are set.
func DecodeOutcome(s string) (Outcome, error) {
	if reason, ok := strings.CutPrefix(s, failurePrefix); ok {
		return Outcome{Status: models.StatusFail, Reason: reason}, nil
	}

	parts := strings.Split(s, segmentSep)
	if len(parts) != 3 || parts[1] != successMarker {
		return Outcome{}, fmt.Errorf("%w: malformed outcome %q", shared.ErrInvalidArgument, s)
	}
	return Outcome{OK: true, Status: models.StatusSuccess, TrackName: parts[0], TrackID: parts[2]}, nil
}

func encodeSegment(v string) string {
	v = strings.ReplaceAll(v, segmentSep, "-")
	v = strings.ReplaceAll(v, "\r\n", " ")
	return strings.ReplaceAll(v, "\n", " ")
}
