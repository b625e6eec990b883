package schedule

import (
	"testing"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

func occ(id, instructorID, locationID uint64, start, end time.Time) model.ClassOccurrence {
	return model.ClassOccurrence{
		ID:           id,
		InstructorID: instructorID,
		LocationID:   locationID,
		StartTime:    start,
		EndTime:      end,
		Status:       model.OccurrenceScheduled,
	}
}

func at(h, m int) time.Time {
	return time.Date(2025, time.June, 2, h, m, 0, 0, time.UTC)
}

func TestOverlappingSameInstructorConflicts(t *testing.T) {
	ix := NewConflictIndex([]model.ClassOccurrence{
		occ(1, 10, 20, at(9, 0), at(10, 0)),
	}, 0)
	conflicts := ix.Check(Candidate{InstructorID: 10, LocationID: 99, Start: at(9, 30), End: at(10, 30)})
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Type != ConflictInstructor {
		t.Fatalf("expected instructor conflict, got %q", conflicts[0].Type)
	}
	if conflicts[0].ConflictingID != 1 {
		t.Fatalf("conflicting id = %d, want 1", conflicts[0].ConflictingID)
	}
	if conflicts[0].Severity != "error" {
		t.Fatalf("severity = %q, want error", conflicts[0].Severity)
	}
}

func TestBackToBackSlotsDoNotConflict(t *testing.T) {
	ix := NewConflictIndex([]model.ClassOccurrence{
		occ(1, 10, 20, at(9, 0), at(10, 0)),
	}, 0)
	conflicts := ix.Check(Candidate{InstructorID: 10, LocationID: 20, Start: at(10, 0), End: at(11, 0)})
	if len(conflicts) != 0 {
		t.Fatalf("back-to-back slots must not conflict, got %d conflicts", len(conflicts))
	}
}

func TestSharedLocationConflicts(t *testing.T) {
	ix := NewConflictIndex([]model.ClassOccurrence{
		occ(1, 10, 20, at(9, 0), at(10, 0)),
	}, 0)
	conflicts := ix.Check(Candidate{InstructorID: 11, LocationID: 20, Start: at(9, 15), End: at(9, 45)})
	if len(conflicts) != 1 || conflicts[0].Type != ConflictLocation {
		t.Fatalf("expected a single location conflict, got %+v", conflicts)
	}
}

func TestSharedBothDimensionsReportsTwoConflicts(t *testing.T) {
	ix := NewConflictIndex([]model.ClassOccurrence{
		occ(1, 10, 20, at(9, 0), at(10, 0)),
	}, 0)
	conflicts := ix.Check(Candidate{InstructorID: 10, LocationID: 20, Start: at(9, 0), End: at(10, 0)})
	if len(conflicts) != 2 {
		t.Fatalf("expected instructor and location conflicts, got %d", len(conflicts))
	}
}

func TestCancelledAndExcludedOccurrencesIgnored(t *testing.T) {
	cancelled := occ(1, 10, 20, at(9, 0), at(10, 0))
	cancelled.Status = model.OccurrenceCancelled
	edited := occ(2, 10, 20, at(9, 0), at(10, 0))
	ix := NewConflictIndex([]model.ClassOccurrence{cancelled, edited}, 2)
	conflicts := ix.Check(Candidate{InstructorID: 10, LocationID: 20, Start: at(9, 0), End: at(10, 0)})
	if len(conflicts) != 0 {
		t.Fatalf("cancelled and excluded occurrences must not conflict, got %+v", conflicts)
	}
}

func TestCheckAndAddCatchesIntraBatchOverlap(t *testing.T) {
	ix := NewConflictIndex(nil, 0)
	if c := ix.CheckAndAdd(Candidate{InstructorID: 10, LocationID: 20, Start: at(9, 0), End: at(10, 0)}, 0); len(c) != 0 {
		t.Fatalf("first candidate should be clear, got %+v", c)
	}
	conflicts := ix.CheckAndAdd(Candidate{InstructorID: 10, LocationID: 21, Start: at(9, 30), End: at(10, 30)}, 0)
	if len(conflicts) != 1 || conflicts[0].Type != ConflictInstructor {
		t.Fatalf("expected intra-batch instructor conflict, got %+v", conflicts)
	}
}

func TestLongSpanFoundDespiteLaterNeighbors(t *testing.T) {
	// A long early span must still be found when many short spans sit
	// between its start and the candidate.
	existing := []model.ClassOccurrence{
		occ(1, 10, 20, at(8, 0), at(13, 0)), // five-hour workshop
	}
	for i := 0; i < 20; i++ {
		s := at(8, 5).Add(time.Duration(i) * 10 * time.Minute)
		existing = append(existing, occ(uint64(100+i), 10, uint64(200+i), s, s.Add(5*time.Minute)))
	}
	ix := NewConflictIndex(existing, 0)
	conflicts := ix.Check(Candidate{InstructorID: 10, LocationID: 20, Start: at(12, 0), End: at(12, 30)})
	found := false
	for _, c := range conflicts {
		if c.ConflictingID == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("long span not reported: %+v", conflicts)
	}
}

func TestWeeklySeriesBatchAgainstBusyCalendar(t *testing.T) {
	// Tens of existing slots for the same instructor across a month;
	// a new weekly series overlapping one of them reports exactly that
	// collision.
	var existing []model.ClassOccurrence
	id := uint64(1)
	for day := 2; day <= 27; day++ {
		start := time.Date(2025, time.June, day, 7, 0, 0, 0, time.UTC)
		existing = append(existing, occ(id, 10, uint64(day), start, start.Add(time.Hour)))
		id++
	}
	ix := NewConflictIndex(existing, 0)
	total := 0
	for week := 0; week < 4; week++ {
		start := time.Date(2025, time.June, 3+7*week, 7, 30, 0, 0, time.UTC)
		total += len(ix.CheckAndAdd(Candidate{InstructorID: 10, LocationID: 500, Start: start, End: start.Add(time.Hour)}, 0))
	}
	if total != 4 {
		t.Fatalf("each weekly slot overlaps one existing class, expected 4 conflicts, got %d", total)
	}
}
