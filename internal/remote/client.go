package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timeline-editor/internal/timeline"

	"github.com/google/uuid"
)

// Client talks to the segment service over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewClient creates a segment service client. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type updateBody struct {
	EditKind   timeline.EditKind `json:"editKind"`
	Start      float64           `json:"start"`
	End        float64           `json:"end"`
	Regenerate bool              `json:"regenerate"`
}

type updateResult struct {
	Start              float64 `json:"start"`
	End                float64 `json:"end"`
	AudioURL           *string `json:"audioUrl"`
	TranslatedAudioURL *string `json:"translatedAudioUrl"`
	Text               *string `json:"text"`
}

type splitBody struct {
	SplitAt float64 `json:"splitAt"`
}

// UpdateSegment posts the settled span. Resizes ask the service to
// regenerate audio; moves keep the existing clip.
func (c *Client) UpdateSegment(ctx context.Context, req UpdateRequest) (UpdateResponse, error) {
	body := updateBody{
		EditKind:   req.Kind,
		Start:      req.Start,
		End:        req.End,
		Regenerate: req.Kind != timeline.EditMove,
	}

	var res updateResult
	if err := c.do(ctx, http.MethodPost, c.segmentURL(req.SegmentID, "time"), body, &res); err != nil {
		return UpdateResponse{}, err
	}
	if res.End <= res.Start || res.Start < 0 {
		return UpdateResponse{}, fmt.Errorf("%w: returned span [%v, %v)", ErrRejected, res.Start, res.End)
	}

	audio := res.AudioURL
	if audio == nil {
		audio = res.TranslatedAudioURL
	}
	return UpdateResponse{Start: res.Start, End: res.End, AudioURL: audio, Text: res.Text}, nil
}

// SplitSegment posts the split point and returns the two children.
func (c *Client) SplitSegment(ctx context.Context, req SplitRequest) ([]timeline.Segment, error) {
	var children []timeline.Segment
	if err := c.do(ctx, http.MethodPost, c.segmentURL(req.SegmentID, "split"), splitBody{SplitAt: req.SplitAt}, &children); err != nil {
		return nil, err
	}
	if len(children) != 2 {
		return nil, fmt.Errorf("%w: expected 2 segments, got %d", ErrRejected, len(children))
	}
	for _, child := range children {
		if err := timeline.ValidateSegment(child); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}
	return children, nil
}

// DeleteSegment sends the delete notification. The response body is ignored.
func (c *Client) DeleteSegment(ctx context.Context, req DeleteRequest) error {
	return c.do(ctx, http.MethodDelete, c.segmentURL(req.SegmentID, ""), nil, nil)
}

func (c *Client) segmentURL(id timeline.SegmentID, action string) string {
	u := c.baseURL + "/segments/" + url.PathEscape(string(id))
	if action != "" {
		u += "/" + action
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("segment service %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("segment service error",
			slog.String("method", method),
			slog.String("url", u),
			slog.String("request_id", reqID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(msg)))
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRejected, err)
	}
	return nil
}
