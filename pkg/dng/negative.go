package dng

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/raster"
)

// Negative is a raw image together with everything needed to render it.
type Negative struct {
	Raw raster.Image
	// Thumbnail is stored in the main directory. When nil, or when it is
	// not 8-bit, one is rendered from Raw (or from it).
	Thumbnail raster.Image
	// Original is an embedded copy of the source file, if any.
	Original *OriginalRawFile
	Camera   Camera
}

// Area is a rectangle in raw image coordinates.
type Area struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
}

func (a Area) empty() bool { return a.Bottom <= a.Top || a.Right <= a.Left }

// CFA describes the colour filter array of a mosaic sensor.
type CFA struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
	// Pattern holds the colour index of every cell, row by row. Indices
	// refer to PlaneColor.
	Pattern []uint8 `json:"pattern"`
	// PlaneColor maps colour indices to 0 red, 1 green, 2 blue and so on.
	// It defaults to red, green, blue.
	PlaneColor      []uint8 `json:"plane_color,omitempty"`
	Layout          uint16  `json:"layout,omitempty"`
	BayerGreenSplit uint32  `json:"bayer_green_split,omitempty"`
}

// Camera is the descriptive and colour metadata of a negative. It is
// decoded from metadata sidecars, so every field has a JSON name. Zero
// values select the defaults noted on the fields.
type Camera struct {
	// UniqueCameraModel defaults to Make and Model.
	UniqueCameraModel    string    `json:"unique_camera_model,omitempty"`
	LocalizedCameraModel string    `json:"localized_camera_model,omitempty"`
	Make                 string    `json:"make,omitempty"`
	Model                string    `json:"model,omitempty"`
	Software             string    `json:"software,omitempty"`
	SerialNumber         string    `json:"serial_number,omitempty"`
	DateTime             time.Time `json:"date_time"`
	// Orientation defaults to 1 (top left).
	Orientation uint16 `json:"orientation,omitempty"`

	// CFA is nil for linear raw data.
	CFA *CFA `json:"cfa,omitempty"`

	ColorMatrix1           [][]float64 `json:"color_matrix_1,omitempty"`
	ColorMatrix2           [][]float64 `json:"color_matrix_2,omitempty"`
	CameraCalibration1     [][]float64 `json:"camera_calibration_1,omitempty"`
	CameraCalibration2     [][]float64 `json:"camera_calibration_2,omitempty"`
	CalibrationIlluminant1 uint16      `json:"calibration_illuminant_1,omitempty"`
	CalibrationIlluminant2 uint16      `json:"calibration_illuminant_2,omitempty"`
	AnalogBalance          []float64   `json:"analog_balance,omitempty"`
	AsShotNeutral          []float64   `json:"as_shot_neutral,omitempty"`
	AsShotWhiteXY          []float64   `json:"as_shot_white_xy,omitempty"`

	BaselineExposure float64 `json:"baseline_exposure,omitempty"`
	// BaselineNoise, BaselineSharpness, LinearResponseLimit and
	// ShadowScale default to 1.
	BaselineNoise       float64 `json:"baseline_noise,omitempty"`
	BaselineSharpness   float64 `json:"baseline_sharpness,omitempty"`
	LinearResponseLimit float64 `json:"linear_response_limit,omitempty"`
	ShadowScale         float64 `json:"shadow_scale,omitempty"`

	LinearizationTable []uint16 `json:"linearization_table,omitempty"`
	// BlackLevelRepeat is the [rows, cols] of the BlackLevel pattern,
	// default 1x1. BlackLevel holds rows*cols*planes values.
	BlackLevelRepeat []int     `json:"black_level_repeat,omitempty"`
	BlackLevel       []float64 `json:"black_level,omitempty"`
	BlackLevelDeltaH []float64 `json:"black_level_delta_h,omitempty"`
	BlackLevelDeltaV []float64 `json:"black_level_delta_v,omitempty"`
	// WhiteLevel has one value per plane, or one for all planes. It
	// defaults to the largest stored value.
	WhiteLevel  []uint32 `json:"white_level,omitempty"`
	ActiveArea  *Area    `json:"active_area,omitempty"`
	MaskedAreas []Area   `json:"masked_areas,omitempty"`

	// DefaultScale defaults to [1, 1], BestQualityScale to 1.
	DefaultScale     []float64 `json:"default_scale,omitempty"`
	BestQualityScale float64   `json:"best_quality_scale,omitempty"`
	// DefaultCropOrigin defaults to the origin and DefaultCropSize to the
	// active area.
	DefaultCropOrigin []float64 `json:"default_crop_origin,omitempty"`
	DefaultCropSize   []float64 `json:"default_crop_size,omitempty"`

	// RawDataUniqueID is 32 hex digits; a random one is used when empty.
	RawDataUniqueID     string `json:"raw_data_unique_id,omitempty"`
	OriginalRawFileName string `json:"original_raw_file_name,omitempty"`
	PrivateData         []byte `json:"private_data,omitempty"`
	XMP                 []byte `json:"xmp,omitempty"`

	Exif *Exif `json:"exif,omitempty"`
}

// colorPlanes is the number of colour channels the raw data encodes.
func (c *Camera) colorPlanes(raw raster.Image) int {
	if c.CFA != nil {
		return len(c.planeColor())
	}
	return raw.Planes()
}

func (c *CFA) validate() error {
	if c.Rows < 1 || c.Cols < 1 || c.Rows > 8 || c.Cols > 8 || len(c.Pattern) != c.Rows*c.Cols {
		return dngerr.Programf("dng: cfa pattern %dx%d with %d cells", c.Rows, c.Cols, len(c.Pattern))
	}
	return nil
}

func (c *Camera) planeColor() []uint8 {
	if c.CFA != nil && len(c.CFA.PlaneColor) > 0 {
		return c.CFA.PlaneColor
	}
	return []uint8{0, 1, 2}
}

func (c *Camera) activeArea(raw raster.Image) Area {
	if c.ActiveArea != nil && !c.ActiveArea.empty() {
		return *c.ActiveArea
	}
	return Area{Bottom: raw.Height(), Right: raw.Width()}
}

// uniqueID returns the raw data id, generating one when none was set.
func (c *Camera) uniqueID() ([]byte, error) {
	if c.RawDataUniqueID == "" {
		id := uuid.New()
		return id[:], nil
	}
	id, err := hex.DecodeString(c.RawDataUniqueID)
	if err != nil || len(id) != 16 {
		return nil, dngerr.Programf("dng: raw data unique id %q is not 32 hex digits", c.RawDataUniqueID)
	}
	return id, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
