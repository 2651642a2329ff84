package raster

import "github.com/samcharles93/dngpack/pkg/dngerr"

// RowInterleaved presents an image with its rows regrouped into Factor
// fields: every Factor-th row starting at row 0, then every Factor-th row
// starting at row 1, and so on. Row i of the view is source row MapRow(i).
type RowInterleaved struct {
	src    Image
	factor int
}

// NewRowInterleaved wraps src. The factor must be in [1, height].
func NewRowInterleaved(src Image, factor int) (*RowInterleaved, error) {
	if factor < 1 || factor > src.Height() {
		return nil, dngerr.Programf("raster: row interleave factor %d outside [1,%d]", factor, src.Height())
	}
	return &RowInterleaved{src: src, factor: factor}, nil
}

func (v *RowInterleaved) Factor() int          { return v.factor }
func (v *RowInterleaved) Width() int           { return v.src.Width() }
func (v *RowInterleaved) Height() int          { return v.src.Height() }
func (v *RowInterleaved) Planes() int          { return v.src.Planes() }
func (v *RowInterleaved) PixelType() PixelType { return v.src.PixelType() }

// MapRow converts a view row into the source row it shows.
func (v *RowInterleaved) MapRow(row int) int {
	rows := v.src.Height()
	for field := 0; field < v.factor; field++ {
		fieldRows := (rows - field + v.factor - 1) / v.factor
		if row < fieldRows {
			return row*v.factor + field
		}
		row -= fieldRows
	}
	return -1
}

func (v *RowInterleaved) Get(dst *Buffer, area Rect) error {
	if err := checkGet(v, dst, area); err != nil {
		return err
	}
	if v.factor == 1 {
		return v.src.Get(dst, area)
	}
	for r := area.Top; r < area.Bottom; r++ {
		src := v.MapRow(r)
		if src < 0 {
			return dngerr.Programf("raster: interleaved row %d has no source", r)
		}
		row, err := dst.Sub(Rect{Top: r, Left: area.Left, Bottom: r + 1, Right: area.Right})
		if err != nil {
			return err
		}
		row.Area = row.Area.Offset(src-r, 0)
		if err := v.src.Get(row, row.Area); err != nil {
			return err
		}
	}
	return nil
}
