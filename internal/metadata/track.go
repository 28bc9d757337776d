// Package metadata answers "what is playing now" from an external service.
//
// A Probe performs a single query. A Poller runs a Probe in the background
// on its own cadence, bounds each query with a timeout, pauses after
// repeated failures and delivers results in order on a channel.
package metadata

import (
	"context"
	"errors"
)

// ErrProbeFailed wraps every authentication, transport and decoding failure
// reported by a Probe.
var ErrProbeFailed = errors.New("metadata probe failed")

// Track identifies the item currently playing.
type Track struct {
	Title  string
	Artist string
}

// Equal compares tracks by value. Two nil tracks are equal.
func (t *Track) Equal(o *Track) bool {
	if t == nil || o == nil {
		return t == o
	}
	return *t == *o
}

// String formats the track as "Title - Artist".
func (t *Track) String() string {
	switch {
	case t == nil:
		return "nothing playing"
	case t.Artist == "":
		return t.Title
	default:
		return t.Title + " - " + t.Artist
	}
}

// Probe performs one "now playing" query. A nil track with a nil error means
// nothing is playing. Implementations do not retry.
type Probe interface {
	Poll(ctx context.Context) (*Track, error)
}

// StaticProbe reports a fixed answer, for tests and offline runs.
type StaticProbe struct {
	Track *Track
	Err   error
}

func (p StaticProbe) Poll(ctx context.Context) (*Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Track == nil {
		return nil, nil
	}
	t := *p.Track
	return &t, nil
}
