package types

// EyePoint is one eye landmark in frame-pixel coordinates.
type EyePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeSample is the ordered landmark set for one eye:
// outer corner, upper lid (2), inner corner, lower lid (2).
// The order is significant; a reordered sample produces a meaningless ratio.
type EyeSample []EyePoint

// FrameInput is one processed video frame worth of eye landmarks.
// TimestampMs is wall-clock milliseconds at capture time and must not decrease
// between consecutive frames.
type FrameInput struct {
	LeftEye     EyeSample `json:"left_eye"`
	RightEye    EyeSample `json:"right_eye"`
	TimestampMs int64     `json:"timestamp_ms"`
}

// MeshPoint is a normalized face-mesh landmark (0..1 in both axes).
type MeshPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MeshFrame is a raw face-mesh detection for a single face, as emitted by a
// landmark model before eye extraction and de-normalization.
type MeshFrame struct {
	Landmarks   []MeshPoint `json:"landmarks"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	TimestampMs int64       `json:"timestamp_ms"`
}
