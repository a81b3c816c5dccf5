package geometry

import "github.com/blinkwatch/blinkwatch/pkg/types"

// Face-mesh landmark indices for each eye, in EyeSample order.
var (
	LeftEyeIndices  = [PointsPerEye]int{362, 385, 387, 263, 373, 380}
	RightEyeIndices = [PointsPerEye]int{33, 160, 158, 133, 153, 144}
)

// EyeFromMesh picks the landmarks at indices from a normalized mesh and scales
// them to pixel coordinates. Scaled values are truncated to whole pixels.
//
// If the mesh is too short for any index the result is empty, which EAR
// reports as NaN.
func EyeFromMesh(mesh []types.MeshPoint, indices [PointsPerEye]int, width, height int) types.EyeSample {
	eye := make(types.EyeSample, 0, PointsPerEye)
	for _, i := range indices {
		if i < 0 || i >= len(mesh) {
			return types.EyeSample{}
		}
		p := mesh[i]
		eye = append(eye, types.EyePoint{
			X: float64(int(p.X * float64(width))),
			Y: float64(int(p.Y * float64(height))),
		})
	}
	return eye
}

// FrameFromMesh converts a raw mesh detection into a FrameInput.
func FrameFromMesh(m types.MeshFrame) types.FrameInput {
	return types.FrameInput{
		LeftEye:     EyeFromMesh(m.Landmarks, LeftEyeIndices, m.Width, m.Height),
		RightEye:    EyeFromMesh(m.Landmarks, RightEyeIndices, m.Width, m.Height),
		TimestampMs: m.TimestampMs,
	}
}
