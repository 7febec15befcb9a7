package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrInvalidBootstrap is returned when a session bootstrap document fails validation.
var ErrInvalidBootstrap = errors.New("invalid session bootstrap")

// LoadFile reads and validates a session bootstrap JSON file.
func LoadFile(path string) (Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Timeline{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a session bootstrap document and validates it.
// Each track's segments are returned sorted by start.
func Decode(r io.Reader) (Timeline, error) {
	var tl Timeline
	if err := json.NewDecoder(r).Decode(&tl); err != nil {
		return Timeline{}, fmt.Errorf("%w: %v", ErrInvalidBootstrap, err)
	}
	if err := Validate(&tl); err != nil {
		return Timeline{}, err
	}
	return tl, nil
}

// Validate checks field constraints, id uniqueness and the non-overlap
// invariant. It sorts each track's segments by start in place.
func Validate(tl *Timeline) error {
	if err := validate.Struct(tl); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBootstrap, err)
	}

	trackIDs := make(map[TrackID]struct{}, len(tl.Tracks))
	for i := range tl.Tracks {
		tr := &tl.Tracks[i]
		if _, dup := trackIDs[tr.ID]; dup {
			return fmt.Errorf("%w: duplicate track id %q", ErrInvalidBootstrap, tr.ID)
		}
		trackIDs[tr.ID] = struct{}{}

		segIDs := make(map[SegmentID]struct{}, len(tr.Segments))
		for _, seg := range tr.Segments {
			if _, dup := segIDs[seg.ID]; dup {
				return fmt.Errorf("%w: duplicate segment id %q in track %q", ErrInvalidBootstrap, seg.ID, tr.ID)
			}
			segIDs[seg.ID] = struct{}{}
		}

		sortByStart(tr.Segments)
		for j := 1; j < len(tr.Segments); j++ {
			if tr.Segments[j].Start < tr.Segments[j-1].End {
				return fmt.Errorf("%w: segments %q and %q overlap in track %q",
					ErrInvalidBootstrap, tr.Segments[j-1].ID, tr.Segments[j].ID, tr.ID)
			}
		}
	}
	return nil
}

// ValidateSegment checks a single segment descriptor, e.g. one returned by
// the remote split service.
func ValidateSegment(seg Segment) error {
	if err := validate.Struct(seg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpan, err)
	}
	return nil
}

func sortByStart(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
}
