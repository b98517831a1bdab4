package timeseries

import (
	"errors"
	"time"

	"github.com/yungbote/noc-backend/internal/domain/noc"
)

// Window is a half-open range of bucket starts [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

type PlanInput struct {
	Resolution noc.Resolution
	Now        time.Time
	Grace      time.Duration
	// Watermark is the exclusive end of buckets already rolled at Resolution.
	Watermark *time.Time
	// Earliest is the oldest source timestamp, used when no watermark exists.
	Earliest time.Time
	// SourceRolledUntil bounds 1h/1d rollups to finished source buckets.
	// Ignored for 5m, whose source is raw.
	SourceRolledUntil *time.Time
}

// Plan computes which buckets a rollup run should (re)compute. The bucket
// just before the watermark is always redone to absorb late samples.
func Plan(in PlanInput) (Window, bool) {
	step := in.Resolution.Step()
	if step == 0 {
		return Window{}, false
	}
	to := in.Now.Add(-in.Grace).UTC().Truncate(step)
	if in.Resolution.Source() != noc.ResolutionRaw {
		if in.SourceRolledUntil == nil {
			return Window{}, false
		}
		if src := in.SourceRolledUntil.UTC().Truncate(step); src.Before(to) {
			to = src
		}
	}

	var from time.Time
	switch {
	case in.Watermark != nil:
		from = in.Watermark.UTC().Truncate(step).Add(-step)
	case !in.Earliest.IsZero():
		from = in.Earliest.UTC().Truncate(step)
	default:
		return Window{}, false
	}
	if !from.Before(to) {
		return Window{}, false
	}
	return Window{From: from, To: to}, true
}

// DefaultRetention is how long each tier is kept.
var DefaultRetention = map[noc.Resolution]time.Duration{
	noc.ResolutionRaw: 7 * 24 * time.Hour,
	noc.Resolution5m:  30 * 24 * time.Hour,
	noc.Resolution1h:  180 * 24 * time.Hour,
	noc.Resolution1d:  730 * 24 * time.Hour,
}

var ErrInvalidRange = errors.New("end before start")

// SelectResolution picks the finest tier suited to the span that still
// retains data back to start.
func SelectResolution(start, end, now time.Time, retention map[noc.Resolution]time.Duration) (noc.Resolution, error) {
	if end.Before(start) {
		return "", ErrInvalidRange
	}
	if retention == nil {
		retention = DefaultRetention
	}
	span := end.Sub(start)
	var res noc.Resolution
	switch {
	case span <= 6*time.Hour:
		res = noc.ResolutionRaw
	case span <= 3*24*time.Hour:
		res = noc.Resolution5m
	case span <= 60*24*time.Hour:
		res = noc.Resolution1h
	default:
		res = noc.Resolution1d
	}
	for res != noc.Resolution1d {
		keep, ok := retention[res]
		if !ok || !start.Before(now.Add(-keep)) {
			break
		}
		res = res.Coarser()
	}
	return res, nil
}

// CleanupCutoff is the delete-before time for a tier: its retention, but
// never past what the next tier has already rolled.
func CleanupCutoff(res noc.Resolution, now time.Time, retention time.Duration, nextRolledUntil *time.Time) (time.Time, bool) {
	cutoff := now.Add(-retention).UTC()
	if res == noc.Resolution1d {
		return cutoff, true
	}
	if nextRolledUntil == nil {
		return time.Time{}, false
	}
	if nextRolledUntil.Before(cutoff) {
		cutoff = nextRolledUntil.UTC()
	}
	return cutoff, true
}
