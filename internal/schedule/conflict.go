package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// Conflict types reported by the detector.
const (
	ConflictInstructor = "instructor"
	ConflictLocation   = "location"
)

// Conflict describes one collision between a candidate slot and an
// existing occurrence.  Severity is always "error": conflicts are
// returned to the caller and never auto-resolved.
type Conflict struct {
	Type          string `json:"type"`
	Severity      string `json:"severity"`
	Message       string `json:"message"`
	ConflictingID uint64 `json:"conflicting_id"`
}

// Candidate is a prospective occurrence to check against the index.
type Candidate struct {
	InstructorID uint64
	LocationID   uint64
	Start        time.Time
	End          time.Time
}

// span is one indexed occurrence interval.
type span struct {
	start time.Time
	end   time.Time
	id    uint64
}

// resourceIndex keeps one resource's spans sorted by start time plus
// the longest span duration, which bounds how far back an overlap
// scan has to look.
type resourceIndex struct {
	spans  []span
	maxDur time.Duration
	sorted bool
}

// ConflictIndex answers overlap queries keyed per instructor and per
// location.  Building the index once and checking a whole batch of
// candidates against it keeps bulk series creation near O(n log n)
// instead of comparing every pair.
type ConflictIndex struct {
	byInstructor map[uint64]*resourceIndex
	byLocation   map[uint64]*resourceIndex
}

// NewConflictIndex builds an index over the existing occurrence set.
// Occurrences that are not in SCHEDULED status cannot collide and are
// skipped, as is the occurrence identified by excludeID (the one being
// edited, if any).
func NewConflictIndex(existing []model.ClassOccurrence, excludeID uint64) *ConflictIndex {
	ix := &ConflictIndex{
		byInstructor: make(map[uint64]*resourceIndex),
		byLocation:   make(map[uint64]*resourceIndex),
	}
	for _, occ := range existing {
		if occ.Status != model.OccurrenceScheduled || occ.ID == excludeID {
			continue
		}
		ix.add(occ.InstructorID, occ.LocationID, span{start: occ.StartTime.UTC(), end: occ.EndTime.UTC(), id: occ.ID})
	}
	return ix
}

func (ix *ConflictIndex) add(instructorID, locationID uint64, sp span) {
	for _, pair := range []struct {
		m  map[uint64]*resourceIndex
		id uint64
	}{{ix.byInstructor, instructorID}, {ix.byLocation, locationID}} {
		ri := pair.m[pair.id]
		if ri == nil {
			ri = &resourceIndex{}
			pair.m[pair.id] = ri
		}
		ri.spans = append(ri.spans, sp)
		if d := sp.end.Sub(sp.start); d > ri.maxDur {
			ri.maxDur = d
		}
		ri.sorted = false
	}
}

// Check reports every instructor and location collision between the
// candidate and the indexed occurrences.  Intervals are half-open, so
// back-to-back slots (one ending exactly when the next starts) do not
// conflict.  An empty result means the slot is clear.
func (ix *ConflictIndex) Check(cand Candidate) []Conflict {
	var out []Conflict
	if ri := ix.byInstructor[cand.InstructorID]; ri != nil {
		for _, sp := range ri.overlapping(cand.Start.UTC(), cand.End.UTC()) {
			out = append(out, Conflict{
				Type:          ConflictInstructor,
				Severity:      "error",
				Message:       fmt.Sprintf("instructor %d is already booked %s–%s", cand.InstructorID, sp.start.Format(time.RFC3339), sp.end.Format(time.RFC3339)),
				ConflictingID: sp.id,
			})
		}
	}
	if ri := ix.byLocation[cand.LocationID]; ri != nil {
		for _, sp := range ri.overlapping(cand.Start.UTC(), cand.End.UTC()) {
			out = append(out, Conflict{
				Type:          ConflictLocation,
				Severity:      "error",
				Message:       fmt.Sprintf("location %d is already booked %s–%s", cand.LocationID, sp.start.Format(time.RFC3339), sp.end.Format(time.RFC3339)),
				ConflictingID: sp.id,
			})
		}
	}
	return out
}

// CheckAndAdd checks the candidate and then inserts it into the index
// so that later candidates in the same batch collide against it too.
// Bulk series creation uses this to catch intra-batch overlaps.
func (ix *ConflictIndex) CheckAndAdd(cand Candidate, id uint64) []Conflict {
	conflicts := ix.Check(cand)
	ix.add(cand.InstructorID, cand.LocationID, span{start: cand.Start.UTC(), end: cand.End.UTC(), id: id})
	return conflicts
}

// overlapping returns all spans intersecting the half-open interval
// [start, end).  Spans are kept sorted by start time; the scan walks
// backward from the first span starting at or after end and stops once
// it is more than the longest known duration behind start, so each
// query costs O(log n + hits).
func (ri *resourceIndex) overlapping(start, end time.Time) []span {
	if !ri.sorted {
		sort.Slice(ri.spans, func(i, j int) bool { return ri.spans[i].start.Before(ri.spans[j].start) })
		ri.sorted = true
	}
	hi := sort.Search(len(ri.spans), func(i int) bool { return !ri.spans[i].start.Before(end) })
	floor := start.Add(-ri.maxDur)
	var out []span
	for i := hi - 1; i >= 0; i-- {
		sp := ri.spans[i]
		if sp.start.Before(floor) {
			break
		}
		if sp.end.After(start) {
			out = append(out, sp)
		}
	}
	// Reverse so conflicts report in chronological order.
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}
