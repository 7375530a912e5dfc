package progress

import (
	"errors"
	"testing"
	"time"
)

func TestTrackerTracksDoneAndSkipped(t *testing.T) {
	tr := NewTracker("load-sample-data", 10, nil)
	tr.Add(3)
	tr.AddSkipped(2)
	tr.Add(4)

	stats := tr.Statistics()
	if stats.Done != 7 {
		t.Fatalf("expected Done=7, got %d", stats.Done)
	}
	if stats.Skipped != 2 {
		t.Fatalf("expected Skipped=2, got %d", stats.Skipped)
	}
	if stats.PercentComplete != 70 {
		t.Fatalf("expected PercentComplete=70, got %v", stats.PercentComplete)
	}
}

func TestTrackerCompleteSetsState(t *testing.T) {
	tr := NewTracker("load-sample-data", 0, nil)
	tr.Add(5)
	tr.Complete()

	stats := tr.Statistics()
	if stats.State != StateCompleted {
		t.Fatalf("expected StateCompleted, got %v", stats.State)
	}
}

func TestTrackerFailSetsState(t *testing.T) {
	tr := NewTracker("load-sample-data", 0, nil)
	tr.Fail(errors.New("boom"))

	stats := tr.Statistics()
	if stats.State != StateFailed {
		t.Fatalf("expected StateFailed, got %v", stats.State)
	}
}

func TestTrackerWithUnknownTotalSkipsPercent(t *testing.T) {
	tr := NewTracker("load-sample-data", 0, nil)
	tr.Add(3)

	stats := tr.Statistics()
	if stats.PercentComplete != 0 {
		t.Fatalf("expected PercentComplete=0 with unknown total, got %v", stats.PercentComplete)
	}
}

func TestTrackerDurationAdvances(t *testing.T) {
	tr := NewTracker("load-sample-data", 0, nil)
	time.Sleep(1 * time.Millisecond)
	tr.Add(1)

	stats := tr.Statistics()
	if stats.Duration <= 0 {
		t.Fatalf("expected positive duration, got %v", stats.Duration)
	}
}
