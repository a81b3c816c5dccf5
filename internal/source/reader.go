package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/blinkwatch/blinkwatch/internal/geometry"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// maxLineBytes bounds one JSON line; a full 478-point mesh fits comfortably.
const maxLineBytes = 1 << 20

// ErrMalformed marks a line that is not a usable frame.
var ErrMalformed = errors.New("malformed frame")

// record is the union of both accepted line shapes.
type record struct {
	LeftEye     types.EyeSample   `json:"left_eye"`
	RightEye    types.EyeSample   `json:"right_eye"`
	Landmarks   []types.MeshPoint `json:"landmarks"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	TimestampMs *int64            `json:"timestamp_ms"`
}

// Decode parses a single JSON line into a FrameInput.
func Decode(line []byte) (types.FrameInput, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return types.FrameInput{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if rec.TimestampMs == nil {
		return types.FrameInput{}, fmt.Errorf("%w: timestamp_ms is required", ErrMalformed)
	}

	switch {
	case len(rec.Landmarks) > 0:
		if rec.Width <= 0 || rec.Height <= 0 {
			return types.FrameInput{}, fmt.Errorf("%w: mesh frame needs positive width and height", ErrMalformed)
		}
		return geometry.FrameFromMesh(types.MeshFrame{
			Landmarks:   rec.Landmarks,
			Width:       rec.Width,
			Height:      rec.Height,
			TimestampMs: *rec.TimestampMs,
		}), nil
	case rec.LeftEye != nil || rec.RightEye != nil:
		// Wrong point counts pass through; the core reports them as NaN EAR.
		return types.FrameInput{
			LeftEye:     rec.LeftEye,
			RightEye:    rec.RightEye,
			TimestampMs: *rec.TimestampMs,
		}, nil
	default:
		return types.FrameInput{}, fmt.Errorf("%w: neither eyes nor landmarks present", ErrMalformed)
	}
}

// Reader yields frames from a JSONL stream.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next frame. It returns io.EOF at the end of the stream and
// an error wrapping ErrMalformed (with the line number) for a bad line; the
// caller may keep calling Next after a malformed line.
func (r *Reader) Next() (types.FrameInput, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		f, err := Decode(line)
		if err != nil {
			return types.FrameInput{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return f, nil
	}
	if err := r.sc.Err(); err != nil {
		return types.FrameInput{}, fmt.Errorf("source: read: %w", err)
	}
	return types.FrameInput{}, io.EOF
}

// Line returns the number of the last line read.
func (r *Reader) Line() int { return r.line }

// Stats summarizes a Run.
type Stats struct {
	Frames    int // handed to the sink and accepted
	Malformed int // skipped as undecodable
	Rejected  int // sink returned an error
}

// Run feeds every frame in src to sink until EOF or ctx is cancelled.
// Malformed lines and sink rejections are logged and counted, not fatal.
// Only read failures are returned.
func Run(ctx context.Context, src io.Reader, sink func(types.FrameInput) error) (Stats, error) {
	var st Stats
	r := NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return st, nil
		}
		f, err := r.Next()
		switch {
		case errors.Is(err, io.EOF):
			return st, nil
		case errors.Is(err, ErrMalformed):
			st.Malformed++
			slog.Warn("source: skipping malformed frame", "err", err)
			continue
		case err != nil:
			return st, err
		}

		if err := sink(f); err != nil {
			st.Rejected++
			slog.Debug("source: frame rejected", "line", r.Line(), "err", err)
			continue
		}
		st.Frames++
	}
}

// Open returns the frame stream at path; "-" is stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %q: %w", path, err)
	}
	return f, nil
}
