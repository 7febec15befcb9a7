package timeline

import (
	"errors"
	"strings"
	"testing"
)

const validBootstrap = `{
  "tracks": [
    {"id": "s1", "displayName": "Speaker 1", "segments": [
      {"id": "b", "start": 10, "end": 20, "audioUrl": "http://x/b.wav", "text": "second"},
      {"id": "a", "start": 0, "end": 5}
    ]}
  ],
  "referenceMediaUrl": "http://x/original.mp4",
  "pixelsPerSecond": 30,
  "totalDurationSeconds": 25
}`

func TestDecode(t *testing.T) {
	tl, err := Decode(strings.NewReader(validBootstrap))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tl.TotalDuration != 25 || tl.PixelsPerSecond != 30 || tl.ReferenceMedia != "http://x/original.mp4" {
		t.Errorf("unexpected timeline header %+v", tl)
	}
	segs := tl.Tracks[0].Segments
	if segs[0].ID != "a" || segs[1].ID != "b" {
		t.Errorf("segments should be sorted by start, got %s,%s", segs[0].ID, segs[1].ID)
	}
}

func TestDecode_rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{`,
		"zero_duration":  `{"tracks":[],"pixelsPerSecond":30,"totalDurationSeconds":0}`,
		"zero_pps":       `{"tracks":[],"pixelsPerSecond":0,"totalDurationSeconds":10}`,
		"end_before":     `{"tracks":[{"id":"t","segments":[{"id":"a","start":5,"end":4}]}],"pixelsPerSecond":30,"totalDurationSeconds":10}`,
		"negative_start": `{"tracks":[{"id":"t","segments":[{"id":"a","start":-1,"end":4}]}],"pixelsPerSecond":30,"totalDurationSeconds":10}`,
		"missing_id":     `{"tracks":[{"id":"t","segments":[{"start":1,"end":4}]}],"pixelsPerSecond":30,"totalDurationSeconds":10}`,
		"duplicate_seg":  `{"tracks":[{"id":"t","segments":[{"id":"a","start":1,"end":2},{"id":"a","start":3,"end":4}]}],"pixelsPerSecond":30,"totalDurationSeconds":10}`,
		"duplicate_trk":  `{"tracks":[{"id":"t"},{"id":"t"}],"pixelsPerSecond":30,"totalDurationSeconds":10}`,
		"overlap":        `{"tracks":[{"id":"t","segments":[{"id":"a","start":1,"end":5},{"id":"b","start":4,"end":6}]}],"pixelsPerSecond":30,"totalDurationSeconds":10}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			if !errors.Is(err, ErrInvalidBootstrap) {
				t.Errorf("expected ErrInvalidBootstrap, got %v", err)
			}
		})
	}
}

func TestValidateSegment(t *testing.T) {
	if err := ValidateSegment(Segment{ID: "x", Start: 1, End: 2}); err != nil {
		t.Errorf("valid segment rejected: %v", err)
	}
	if err := ValidateSegment(Segment{ID: "x", Start: 2, End: 2}); !errors.Is(err, ErrInvalidSpan) {
		t.Errorf("expected ErrInvalidSpan, got %v", err)
	}
}
