package landmark

import "github.com/andresmejia3/facesignal/internal/types"

// MeshSize is the number of points in a face-mesh face.
const MeshSize = 468

// Synthesize builds a face-mesh face whose extracted ratios equal rs at any frame
// size. Only the indices the extractor reads are placed; the rest stay at the origin.
func Synthesize(rs types.RatioSet) types.Face {
	const (
		eyeSpan  = 0.05 // nose tip to bridge, normalized
		headSpan = 0.1  // nose tip to right cheek, bridge to lip
	)

	face := make(types.Face, MeshSize)
	face[NoseTip] = types.LandmarkPoint{X: 0.5, Y: 0.5}
	face[NoseBridgeLow] = types.LandmarkPoint{X: 0.5, Y: 0.5 - eyeSpan}

	face[RightEyeLower] = types.LandmarkPoint{X: 0.6, Y: 0.4}
	face[RightEyeUpper] = types.LandmarkPoint{X: 0.6, Y: 0.4 - eyeSpan*rs.RightEye}
	face[LeftEyeLower] = types.LandmarkPoint{X: 0.4, Y: 0.4}
	face[LeftEyeUpper] = types.LandmarkPoint{X: 0.4, Y: 0.4 - eyeSpan*rs.LeftEye}

	face[RightCheek] = types.LandmarkPoint{X: 0.5 + headSpan, Y: 0.5}
	face[LeftCheek] = types.LandmarkPoint{X: 0.5 - headSpan*rs.HeadPoseX, Y: 0.5}

	bridge := face[NoseBridgeLow].Y
	face[UpperLip] = types.LandmarkPoint{X: 0.5, Y: bridge + headSpan}
	face[ForeheadCenter] = types.LandmarkPoint{X: 0.5, Y: bridge - headSpan*rs.HeadPoseY}
	return face
}
