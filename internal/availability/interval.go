package availability

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) IsZero() bool {
	return iv.Start.IsZero() || iv.End.IsZero() || !iv.End.After(iv.Start)
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching endpoints do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Contains reports whether o lies entirely within iv.
func (iv Interval) Contains(o Interval) bool {
	return !o.Start.Before(iv.Start) && !o.End.After(iv.End)
}

// Merge returns the minimal disjoint cover of the given intervals, sorted by
// start. Overlapping and adjacent intervals collapse into one.
func Merge(intervals []Interval) []Interval {
	var in []Interval
	for _, iv := range intervals {
		if !iv.IsZero() {
			in = append(in, iv)
		}
	}
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })

	out := []Interval{in[0]}
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract removes every cut interval from the base set. A cut landing in the
// middle of a base interval splits it into two remaining pieces. The base set
// is merged first so the result is a minimal disjoint cover.
func Subtract(base, cuts []Interval) []Interval {
	out := Merge(base)
	for _, cut := range Merge(cuts) {
		var next []Interval
		for _, iv := range out {
			if !iv.Overlaps(cut) {
				next = append(next, iv)
				continue
			}
			if cut.Start.After(iv.Start) {
				next = append(next, Interval{Start: iv.Start, End: cut.Start})
			}
			if cut.End.Before(iv.End) {
				next = append(next, Interval{Start: cut.End, End: iv.End})
			}
		}
		out = next
	}
	return out
}
