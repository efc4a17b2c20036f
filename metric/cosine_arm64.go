//go:build arm64

package metric

import "github.com/viant/vec/search"

func cosineDistanceWithMagnitude(v1, v2 []float32, m1, m2 float32) float32 {
	return search.Float32s(v1).CosineDistanceWithMagnitude(v2, m1, m2)
}
