package geom

import (
	"math"

	"github.com/banshee-data/motrack/internal/linalg"
)

// areaEpsilon is the smallest union area treated as non-degenerate. It matches
// single-precision epsilon so float32 detector output behaves the same way.
const areaEpsilon = 1.1920929e-07

// OverlapArea returns the intersection area of two boxes.
func OverlapArea(a, b Box) float64 {
	return a.Intersect(b).Area()
}

// UnionArea returns the area covered by either box.
func UnionArea(a, b Box) float64 {
	return a.Area() + b.Area() - OverlapArea(a, b)
}

// IoU returns the intersection-over-union of two boxes in [0, 1].
// Degenerate pairs (union below areaEpsilon) score 0.
func IoU(a, b Box) float64 {
	union := UnionArea(a, b)
	if union < areaEpsilon {
		return 0
	}
	return OverlapArea(a, b) / union
}

// IoULoss is 1 - IoU, the motion cost used for association.
func IoULoss(a, b Box) float64 {
	return 1 - IoU(a, b)
}

// GIoU returns the generalized IoU in [-1, 1]: IoU minus the fraction of the
// enclosing box not covered by the union.
func GIoU(a, b Box) float64 {
	iou := IoU(a, b)
	union := UnionArea(a, b)
	if union < areaEpsilon {
		return iou
	}
	enclosing := a.Enclose(b).Area()
	if enclosing < areaEpsilon {
		return iou
	}
	return iou - (enclosing-union)/enclosing
}

// GIoULoss is 1 - GIoU.
func GIoULoss(a, b Box) float64 {
	return 1 - GIoU(a, b)
}

// DIoU returns the distance-IoU: IoU penalised by the squared centre distance
// normalised by the squared diagonal of the enclosing box.
func DIoU(a, b Box) float64 {
	union := UnionArea(a, b)
	if union < areaEpsilon {
		return 0
	}
	iou := OverlapArea(a, b) / union

	enc := a.Enclose(b)
	diag := enc.W*enc.W + enc.H*enc.H
	if diag == 0 {
		return iou
	}
	ax, ay := a.Center()
	bx, by := b.Center()
	centre := (ax-bx)*(ax-bx) + (ay-by)*(ay-by)
	return iou - centre/diag
}

// DIoULoss is 1 - DIoU.
func DIoULoss(a, b Box) float64 {
	return 1 - DIoU(a, b)
}

// CosineSimilarity returns the cosine of the angle between two feature
// vectors. A zero-length vector or a length mismatch yields 0.
func CosineSimilarity(a, b linalg.Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	// Normalise before the dot product so extreme magnitudes neither
	// underflow nor overflow.
	s := a.Scale(1 / na).Dot(b.Scale(1 / nb))
	if math.IsNaN(s) {
		return 0
	}
	// Rounding can push |s| slightly past 1.
	return math.Max(-1, math.Min(1, s))
}

// CosineDistance is 1 - CosineSimilarity, bounded to [0, 2].
func CosineDistance(a, b linalg.Vector) float64 {
	return 1 - CosineSimilarity(a, b)
}
