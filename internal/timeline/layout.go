package timeline

import (
	"fmt"
	"math"
)

// DefaultLabelMargin is the pixel width reserved left of the lanes for track labels.
const DefaultLabelMargin = 132.0

// majorTickEvery is the ruler spacing, in seconds, of labelled ticks and lane grid lines.
const majorTickEvery = 5

const noAudioCaption = "No Audio"

// RulerTick is one ruler mark.
type RulerTick struct {
	X     float64 `json:"x"`
	Major bool    `json:"major"`
	Label string  `json:"label,omitempty"`
}

// SegmentBox is the pixel geometry of one segment within its lane.
type SegmentBox struct {
	ID       SegmentID `json:"id"`
	Left     float64   `json:"left"`
	Width    float64   `json:"width"`
	Caption  string    `json:"caption"`
	HasAudio bool      `json:"hasAudio"`
}

// Lane is the rendered form of a track.
type Lane struct {
	TrackID   TrackID      `json:"trackId"`
	Label     string       `json:"label"`
	Width     float64      `json:"width"`
	GridLines []float64    `json:"gridLines"`
	Segments  []SegmentBox `json:"segments"`
}

// View is everything a front end needs to paint the timeline.
type View struct {
	ContentWidth float64     `json:"contentWidth"`
	LabelMargin  float64     `json:"labelMargin"`
	Ruler        []RulerTick `json:"ruler"`
	Lanes        []Lane      `json:"lanes"`
	PlayheadX    float64     `json:"playheadX"`
	Clock        string      `json:"clock"`
}

// Layout computes the pixel layout for tl with the playhead at elapsed seconds.
func Layout(tl Timeline, elapsed, labelMargin float64) View {
	laneWidth := tl.SecondsToPixels(tl.TotalDuration)

	seconds := int(math.Floor(tl.TotalDuration))
	ruler := make([]RulerTick, 0, seconds+1)
	for i := 0; i <= seconds; i++ {
		tick := RulerTick{X: tl.SecondsToPixels(float64(i)), Major: i%majorTickEvery == 0}
		if tick.Major {
			tick.Label = fmt.Sprintf("%d:%02d", i/60, i%60)
		}
		ruler = append(ruler, tick)
	}

	grid := make([]float64, 0, seconds/majorTickEvery+1)
	for i := 0; i <= seconds/majorTickEvery; i++ {
		grid = append(grid, tl.SecondsToPixels(float64(i*majorTickEvery)))
	}

	lanes := make([]Lane, 0, len(tl.Tracks))
	for _, tr := range tl.Tracks {
		boxes := make([]SegmentBox, 0, len(tr.Segments))
		for _, seg := range tr.Segments {
			caption := seg.Text
			if caption == "" {
				caption = noAudioCaption
			}
			boxes = append(boxes, SegmentBox{
				ID:       seg.ID,
				Left:     tl.SecondsToPixels(seg.Start),
				Width:    tl.SecondsToPixels(seg.Duration()),
				Caption:  caption,
				HasAudio: seg.AudioURL != "",
			})
		}
		lanes = append(lanes, Lane{
			TrackID:   tr.ID,
			Label:     tr.DisplayName,
			Width:     laneWidth,
			GridLines: grid,
			Segments:  boxes,
		})
	}

	return View{
		ContentWidth: laneWidth + labelMargin,
		LabelMargin:  labelMargin,
		Ruler:        ruler,
		Lanes:        lanes,
		PlayheadX:    PlayheadX(tl, elapsed, labelMargin),
		Clock:        FormatClock(elapsed) + " | " + FormatClock(tl.TotalDuration),
	}
}

// PlayheadX returns the playhead's pixel position including the label margin.
func PlayheadX(tl Timeline, elapsed, labelMargin float64) float64 {
	return tl.SecondsToPixels(elapsed) + labelMargin
}

// FormatClock renders seconds as MM:SS.ss.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(seconds / 60)
	rest := seconds - float64(minutes*60)
	return fmt.Sprintf("%02d:%05.2f", minutes, rest)
}

// FollowScroll keeps the playhead in view: once it passes 70% of the viewport
// the scroll offset jumps so the playhead sits at 30%. pos is the playhead's
// offset from the start of the lanes, label margin excluded. ok is false when
// the current offset should be kept.
func FollowScroll(pos, scrollLeft, viewportWidth float64) (next float64, ok bool) {
	if viewportWidth <= 0 {
		return scrollLeft, false
	}
	if pos > scrollLeft+viewportWidth*0.7 {
		return pos - viewportWidth*0.3, true
	}
	return scrollLeft, false
}
