package dng

import (
	"math"
	"time"

	"github.com/samcharles93/dngpack/pkg/memory"
	"github.com/samcharles93/dngpack/pkg/stream"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

// Exif is the capture metadata stored in the Exif sub-directory. Zero
// fields are left out.
type Exif struct {
	ExposureTime      float64   `json:"exposure_time,omitempty"`
	FNumber           float64   `json:"f_number,omitempty"`
	ExposureProgram   uint16    `json:"exposure_program,omitempty"`
	ISO               uint16    `json:"iso,omitempty"`
	DateTimeOriginal  time.Time `json:"date_time_original"`
	ExposureBias      float64   `json:"exposure_bias,omitempty"`
	MaxAperture       float64   `json:"max_aperture,omitempty"`
	MeteringMode      uint16    `json:"metering_mode,omitempty"`
	Flash             *uint16   `json:"flash,omitempty"`
	FocalLength       float64   `json:"focal_length,omitempty"`
	UserComment       string    `json:"user_comment,omitempty"`
	ImageUniqueID     string    `json:"image_unique_id,omitempty"`
	CameraOwnerName   string    `json:"camera_owner_name,omitempty"`
	BodySerialNumber  string    `json:"body_serial_number,omitempty"`
	LensSpecification []float64 `json:"lens_specification,omitempty"`
	LensMake          string    `json:"lens_make,omitempty"`
	LensModel         string    `json:"lens_model,omitempty"`
}

var exifVersion = []byte("0230")

// directory builds the Exif IFD. Pixel dimensions are recorded when
// width and height are positive.
func (e *Exif) directory(width, height int) (*tiff.Directory, error) {
	dir := &tiff.Directory{}
	vals := []tiff.Value{tiff.NewUndefined(tiff.TagExifVersion, exifVersion)}

	if e.ExposureTime > 0 {
		vals = append(vals,
			tiff.NewRationals(tiff.TagExposureTime, exposureRational(e.ExposureTime)),
			tiff.NewSRationals(tiff.TagShutterSpeedValue, tiff.SRationalOf(-math.Log2(e.ExposureTime), 1000000)))
	}
	if e.FNumber > 0 {
		vals = append(vals,
			tiff.NewRationals(tiff.TagFNumber, tiff.URationalOf(e.FNumber, 10)),
			tiff.NewRationals(tiff.TagApertureValue, tiff.URationalOf(2*math.Log2(e.FNumber), 1000000)))
	}
	if e.ExposureProgram != 0 {
		vals = append(vals, tiff.NewShorts(tiff.TagExposureProgram, e.ExposureProgram))
	}
	if e.ISO != 0 {
		vals = append(vals, tiff.NewShorts(tiff.TagISOSpeedRatings, e.ISO))
	}
	if !e.DateTimeOriginal.IsZero() {
		vals = append(vals,
			tiff.NewDateTime(tiff.TagDateTimeOriginal, e.DateTimeOriginal),
			tiff.NewDateTime(tiff.TagDateTimeDigitized, e.DateTimeOriginal))
	}
	if e.ExposureBias != 0 {
		vals = append(vals, tiff.NewSRationals(tiff.TagExposureBias, tiff.SRationalOf(e.ExposureBias, 100)))
	}
	if e.MaxAperture > 0 {
		vals = append(vals, tiff.NewRationals(tiff.TagMaxApertureValue, tiff.URationalOf(e.MaxAperture, 100)))
	}
	if e.MeteringMode != 0 {
		vals = append(vals, tiff.NewShorts(tiff.TagMeteringMode, e.MeteringMode))
	}
	if e.Flash != nil {
		vals = append(vals, tiff.NewShorts(tiff.TagFlash, *e.Flash))
	}
	if e.FocalLength > 0 {
		vals = append(vals, tiff.NewRationals(tiff.TagFocalLength, tiff.URationalOf(e.FocalLength, 10)))
	}
	if e.UserComment != "" {
		vals = append(vals, tiff.NewEncodedText(tiff.TagUserComment, e.UserComment))
	}
	if width > 0 && height > 0 {
		vals = append(vals,
			tiff.NewLongs(tiff.TagPixelXDimension, uint32(width)),
			tiff.NewLongs(tiff.TagPixelYDimension, uint32(height)))
	}
	if e.ImageUniqueID != "" {
		vals = append(vals, tiff.NewASCII(tiff.TagImageUniqueID, e.ImageUniqueID))
	}
	if e.CameraOwnerName != "" {
		vals = append(vals, tiff.NewString(tiff.TagCameraOwnerName, e.CameraOwnerName))
	}
	if e.BodySerialNumber != "" {
		vals = append(vals, tiff.NewString(tiff.TagBodySerialNumber, e.BodySerialNumber))
	}
	if len(e.LensSpecification) == 4 {
		spec := make([]tiff.URational, 4)
		for i, v := range e.LensSpecification {
			spec[i] = tiff.URationalOf(v, 10)
		}
		vals = append(vals, tiff.NewRationals(tiff.TagLensSpecification, spec...))
	}
	if e.LensMake != "" {
		vals = append(vals, tiff.NewString(tiff.TagLensMake, e.LensMake))
	}
	if e.LensModel != "" {
		vals = append(vals, tiff.NewString(tiff.TagLensModel, e.LensModel))
	}

	for _, v := range vals {
		if err := dir.Add(v); err != nil {
			return nil, err
		}
	}
	return dir, nil
}

// exposureRational writes short exposures as 1/n when that is exact
// enough.
func exposureRational(t float64) tiff.URational {
	if t < 1 {
		inv := 1 / t
		n := math.Round(inv)
		if n >= 1 && n <= math.MaxUint32 && math.Abs(inv-n) < 0.001*inv {
			return tiff.URational{N: 1, D: uint32(n)}
		}
	}
	return tiff.URationalOf(t, 0)
}

// exifSpool holds an Exif IFD serialized ahead of time, with its offsets
// already relative to the place it will occupy in the file.
type exifSpool struct {
	dir   *tiff.Directory
	store *stream.MemoryStore
	s     *stream.Stream
}

func spoolExif(dir *tiff.Directory, base uint32, big bool, alloc memory.Allocator) (*exifSpool, error) {
	store := stream.NewMemoryStore(alloc, 4096)
	s, err := stream.New(store, stream.WithBigEndian(big), stream.WithAllocator(alloc), stream.WithBufferSize(4096))
	if err != nil {
		store.Release()
		return nil, err
	}
	sp := &exifSpool{dir: dir, store: store, s: s}
	if err := dir.Put(s, tiff.OffsetsRelativeToExplicitBase, base); err != nil {
		sp.release()
		return nil, err
	}
	return sp, nil
}

// copyTo copies the spooled directory to the position of dst.
func (sp *exifSpool) copyTo(dst *stream.Stream) error {
	if err := sp.s.SetReadPosition(0); err != nil {
		return err
	}
	return sp.s.CopyToStream(dst, uint64(sp.dir.Size()))
}

func (sp *exifSpool) release() {
	_ = sp.s.Close()
	sp.store.Release()
}
