package timeline

import (
	"errors"
	"testing"
)

func newTestStore(t *testing.T, segs ...Segment) *Store {
	t.Helper()
	tl := Timeline{
		TotalDuration:   60,
		PixelsPerSecond: 30,
		Tracks:          []Track{{ID: "t1", DisplayName: "Speaker 1", Segments: segs}},
	}
	if err := Validate(&tl); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return NewStore(tl)
}

func mustSegment(t *testing.T, s *Store, id SegmentID) Segment {
	t.Helper()
	seg, err := s.Segment("t1", id)
	if err != nil {
		t.Fatalf("Segment(%s): %v", id, err)
	}
	return seg
}

func TestStore_SetSpan(t *testing.T) {
	s := newTestStore(t, Segment{ID: "a", Start: 10, End: 20})

	t.Run("accepts_valid_span", func(t *testing.T) {
		got, err := s.SetSpan("t1", "a", 11, 19)
		if err != nil {
			t.Fatalf("SetSpan: %v", err)
		}
		if got.Start != 11 || got.End != 19 {
			t.Errorf("got [%v,%v), want [11,19)", got.Start, got.End)
		}
	})

	t.Run("rejects_end_not_after_start", func(t *testing.T) {
		_, err := s.SetSpan("t1", "a", 19, 19)
		if !errors.Is(err, ErrInvalidSpan) {
			t.Fatalf("expected ErrInvalidSpan, got %v", err)
		}
		got := mustSegment(t, s, "a")
		if got.Start != 11 || got.End != 19 {
			t.Errorf("rejected edit changed segment: [%v,%v)", got.Start, got.End)
		}
	})

	t.Run("rejects_negative_start", func(t *testing.T) {
		if _, err := s.SetSpan("t1", "a", -1, 5); !errors.Is(err, ErrInvalidSpan) {
			t.Errorf("expected ErrInvalidSpan, got %v", err)
		}
	})

	t.Run("unknown_segment", func(t *testing.T) {
		if _, err := s.SetSpan("t1", "zz", 1, 2); !errors.Is(err, ErrSegmentNotFound) {
			t.Errorf("expected ErrSegmentNotFound, got %v", err)
		}
		if _, err := s.SetSpan("nope", "a", 1, 2); !errors.Is(err, ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})
}

func TestStore_ActiveSegment_half_open(t *testing.T) {
	s := newTestStore(t,
		Segment{ID: "a", Start: 0, End: 5},
		Segment{ID: "b", Start: 5, End: 10},
	)

	cases := []struct {
		at   float64
		want SegmentID
		ok   bool
	}{
		{0, "a", true},
		{4.999, "a", true},
		{5, "b", true},
		{9.5, "b", true},
		{10, "", false},
	}
	for _, tc := range cases {
		got, ok := s.ActiveSegment("t1", tc.at)
		if ok != tc.ok || got.ID != tc.want {
			t.Errorf("ActiveSegment(%v) = %q,%v want %q,%v", tc.at, got.ID, ok, tc.want, tc.ok)
		}
	}
}

func TestActiveIn_first_match_wins(t *testing.T) {
	segs := []Segment{
		{ID: "first", Start: 0, End: 10},
		{ID: "second", Start: 5, End: 15},
	}
	got, ok := ActiveIn(segs, 7)
	if !ok || got.ID != "first" {
		t.Errorf("expected first match by list order, got %q", got.ID)
	}
}

func TestStore_Settle(t *testing.T) {
	t.Run("move_into_previous_is_shifted_right", func(t *testing.T) {
		s := newTestStore(t,
			Segment{ID: "a", Start: 0, End: 10},
			Segment{ID: "b", Start: 20, End: 30},
		)
		_, _ = s.SetSpan("t1", "b", 8, 18)
		got, err := s.Settle("t1", "b", EditMove)
		if err != nil {
			t.Fatalf("Settle: %v", err)
		}
		if got.Start != 10 || got.End != 20 {
			t.Errorf("got [%v,%v), want [10,20)", got.Start, got.End)
		}
	})

	t.Run("move_into_next_is_shifted_left", func(t *testing.T) {
		s := newTestStore(t,
			Segment{ID: "a", Start: 0, End: 10},
			Segment{ID: "b", Start: 20, End: 30},
		)
		_, _ = s.SetSpan("t1", "a", 15, 25)
		got, err := s.Settle("t1", "a", EditMove)
		if err != nil {
			t.Fatalf("Settle: %v", err)
		}
		if got.Start != 10 || got.End != 20 {
			t.Errorf("got [%v,%v), want [10,20)", got.Start, got.End)
		}
	})

	t.Run("move_without_room_overlaps", func(t *testing.T) {
		s := newTestStore(t,
			Segment{ID: "a", Start: 0, End: 10},
			Segment{ID: "c", Start: 14, End: 30},
			Segment{ID: "b", Start: 40, End: 48},
		)
		_, _ = s.SetSpan("t1", "b", 11, 19)
		if _, err := s.Settle("t1", "b", EditMove); !errors.Is(err, ErrOverlap) {
			t.Errorf("expected ErrOverlap, got %v", err)
		}
	})

	t.Run("resize_right_trimmed_at_next", func(t *testing.T) {
		s := newTestStore(t,
			Segment{ID: "a", Start: 0, End: 10},
			Segment{ID: "b", Start: 20, End: 30},
		)
		_, _ = s.SetSpan("t1", "a", 0, 25)
		got, err := s.Settle("t1", "a", EditResizeRight)
		if err != nil {
			t.Fatalf("Settle: %v", err)
		}
		if got.End != 20 {
			t.Errorf("end = %v, want 20", got.End)
		}
	})

	t.Run("resize_left_trimmed_at_previous", func(t *testing.T) {
		s := newTestStore(t,
			Segment{ID: "a", Start: 0, End: 10},
			Segment{ID: "b", Start: 20, End: 30},
		)
		_, _ = s.SetSpan("t1", "b", 8, 30)
		got, err := s.Settle("t1", "b", EditResizeLeft)
		if err != nil {
			t.Fatalf("Settle: %v", err)
		}
		if got.Start != 10 {
			t.Errorf("start = %v, want 10", got.Start)
		}
	})

	t.Run("resorts_after_move_past_neighbour", func(t *testing.T) {
		s := newTestStore(t,
			Segment{ID: "a", Start: 0, End: 5},
			Segment{ID: "b", Start: 10, End: 15},
		)
		_, _ = s.SetSpan("t1", "a", 20, 25)
		if _, err := s.Settle("t1", "a", EditMove); err != nil {
			t.Fatalf("Settle: %v", err)
		}
		tr, _ := s.Track("t1")
		if tr.Segments[0].ID != "b" || tr.Segments[1].ID != "a" {
			t.Errorf("expected [b a] order, got [%s %s]", tr.Segments[0].ID, tr.Segments[1].ID)
		}
	})
}

func TestStore_ReplaceWithChildren(t *testing.T) {
	t.Run("atomic_swap", func(t *testing.T) {
		s := newTestStore(t,
			Segment{ID: "a", Start: 0, End: 5},
			Segment{ID: "p", Start: 10, End: 20},
		)
		children := []Segment{
			{ID: "p_b", Start: 14, End: 20},
			{ID: "p_a", Start: 10, End: 14},
		}
		if err := s.ReplaceWithChildren("t1", "p", children); err != nil {
			t.Fatalf("ReplaceWithChildren: %v", err)
		}
		tr, _ := s.Track("t1")
		if len(tr.Segments) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(tr.Segments))
		}
		ids := []SegmentID{tr.Segments[0].ID, tr.Segments[1].ID, tr.Segments[2].ID}
		if ids[0] != "a" || ids[1] != "p_a" || ids[2] != "p_b" {
			t.Errorf("unexpected order %v", ids)
		}
		if _, err := s.Segment("t1", "p"); !errors.Is(err, ErrSegmentNotFound) {
			t.Error("parent should be gone")
		}
	})

	t.Run("gap_between_children_rejected", func(t *testing.T) {
		s := newTestStore(t, Segment{ID: "p", Start: 10, End: 20})
		err := s.ReplaceWithChildren("t1", "p", []Segment{
			{ID: "x", Start: 10, End: 13},
			{ID: "y", Start: 14, End: 20},
		})
		if !errors.Is(err, ErrInvalidSplit) {
			t.Fatalf("expected ErrInvalidSplit, got %v", err)
		}
		tr, _ := s.Track("t1")
		if len(tr.Segments) != 1 || tr.Segments[0].ID != "p" {
			t.Errorf("failed split must leave parent in place, got %+v", tr.Segments)
		}
	})

	t.Run("wrong_child_count_rejected", func(t *testing.T) {
		s := newTestStore(t, Segment{ID: "p", Start: 10, End: 20})
		err := s.ReplaceWithChildren("t1", "p", []Segment{{ID: "x", Start: 10, End: 20}})
		if !errors.Is(err, ErrInvalidSplit) {
			t.Errorf("expected ErrInvalidSplit, got %v", err)
		}
	})

	t.Run("id_collision_rejected", func(t *testing.T) {
		s := newTestStore(t,
			Segment{ID: "a", Start: 0, End: 5},
			Segment{ID: "p", Start: 10, End: 20},
		)
		err := s.ReplaceWithChildren("t1", "p", []Segment{
			{ID: "a", Start: 10, End: 14},
			{ID: "y", Start: 14, End: 20},
		})
		if !errors.Is(err, ErrInvalidSplit) {
			t.Errorf("expected ErrInvalidSplit, got %v", err)
		}
	})
}

func TestStore_Merge_Restore_Remove(t *testing.T) {
	s := newTestStore(t, Segment{ID: "a", Start: 10, End: 20, AudioURL: "http://x/a.wav", Text: "hello"})

	url := "http://x/regen.wav"
	got, err := s.Merge("t1", "a", Patch{Start: 11, End: 21, AudioURL: &url})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got.AudioURL != url || got.Text != "hello" || got.Start != 11 {
		t.Errorf("unexpected merge result %+v", got)
	}

	snap := Segment{ID: "a", Start: 10, End: 20, AudioURL: "http://x/a.wav", Text: "hello"}
	if err := s.Restore("t1", snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if mustSegment(t, s, "a") != snap {
		t.Error("Restore should put snapshot back")
	}

	if _, err := s.Remove("t1", "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Restore("t1", snap); !errors.Is(err, ErrSegmentNotFound) {
		t.Errorf("Restore must not resurrect deleted segment, got %v", err)
	}
	if s.SegmentCount() != 0 {
		t.Errorf("SegmentCount = %d, want 0", s.SegmentCount())
	}
}

func TestStore_Merge_refuses_overlap(t *testing.T) {
	s := newTestStore(t,
		Segment{ID: "a", Start: 10, End: 20},
		Segment{ID: "b", Start: 30, End: 40},
	)

	if _, err := s.Merge("t1", "a", Patch{Start: 25, End: 35}); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if got := mustSegment(t, s, "a"); got.Start != 10 || got.End != 20 {
		t.Errorf("refused merge must leave the segment untouched, got [%v, %v)", got.Start, got.End)
	}
	if _, err := s.Merge("t1", "a", Patch{Start: 20, End: 30}); err != nil {
		t.Errorf("touching neighbours is not an overlap: %v", err)
	}
}

func TestStore_Tracks_returns_copies(t *testing.T) {
	s := newTestStore(t, Segment{ID: "a", Start: 1, End: 2})
	tracks := s.Tracks()
	tracks[0].Segments[0].Start = 99
	if mustSegment(t, s, "a").Start != 1 {
		t.Error("mutating snapshot leaked into store")
	}
}
