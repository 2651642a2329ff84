package tiff

import "math"

// URational is an unsigned fraction.
type URational struct {
	N, D uint32
}

// SRational is a signed fraction.
type SRational struct {
	N, D int32
}

func (r URational) Float64() float64 {
	if r.D == 0 {
		return 0
	}
	return float64(r.N) / float64(r.D)
}

func (r SRational) Float64() float64 {
	if r.D == 0 {
		return 0
	}
	return float64(r.N) / float64(r.D)
}

// URationalOf approximates x with denominator d. A zero d picks one by
// magnitude so that large values keep their range and small ones their
// precision. Values at or below zero give 0/1.
func URationalOf(x float64, d uint32) URational {
	if x <= 0 || math.IsNaN(x) {
		return URational{0, 1}
	}
	if d == 0 {
		switch {
		case x >= 32768:
			d = 1
		case x >= 1:
			d = 32768
		default:
			d = 32768 * 32768
		}
	}
	n := math.Round(x * float64(d))
	if n > math.MaxUint32 {
		n = math.MaxUint32
	}
	return URational{uint32(n), d}
}

// SRationalOf is the signed counterpart of URationalOf.
func SRationalOf(x float64, d int32) SRational {
	if math.IsNaN(x) {
		return SRational{0, 1}
	}
	if d == 0 {
		switch ax := math.Abs(x); {
		case ax >= 32768:
			d = 1
		case ax >= 1:
			d = 32768
		default:
			d = 32768 * 32768
		}
	}
	n := math.Round(x * float64(d))
	n = min(max(n, math.MinInt32), math.MaxInt32)
	return SRational{int32(n), d}
}
