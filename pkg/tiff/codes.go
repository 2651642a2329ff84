// Package tiff models TIFF 6 tag values and image file directories and
// serializes them into a stream.
package tiff

import "fmt"

// Type is a TIFF field type.
type Type uint16

const (
	TypeByte      Type = 1
	TypeASCII     Type = 2
	TypeShort     Type = 3
	TypeLong      Type = 4
	TypeRational  Type = 5
	TypeSByte     Type = 6
	TypeUndefined Type = 7
	TypeSShort    Type = 8
	TypeSLong     Type = 9
	TypeSRational Type = 10
	TypeFloat     Type = 11
	TypeDouble    Type = 12
	TypeIFD       Type = 13
)

// Size returns the size of one element of the type in bytes.
func (t Type) Size() uint32 {
	switch t {
	case TypeByte, TypeASCII, TypeSByte, TypeUndefined:
		return 1
	case TypeShort, TypeSShort:
		return 2
	case TypeLong, TypeSLong, TypeFloat, TypeIFD:
		return 4
	case TypeRational, TypeSRational, TypeDouble:
		return 8
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case TypeByte:
		return "BYTE"
	case TypeASCII:
		return "ASCII"
	case TypeShort:
		return "SHORT"
	case TypeLong:
		return "LONG"
	case TypeRational:
		return "RATIONAL"
	case TypeSByte:
		return "SBYTE"
	case TypeUndefined:
		return "UNDEFINED"
	case TypeSShort:
		return "SSHORT"
	case TypeSLong:
		return "SLONG"
	case TypeSRational:
		return "SRATIONAL"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeIFD:
		return "IFD"
	default:
		return fmt.Sprintf("Type(%d)", uint16(t))
	}
}

// Baseline and extension tag codes.
const (
	TagNewSubFileType            uint16 = 254
	TagImageWidth                uint16 = 256
	TagImageLength               uint16 = 257
	TagBitsPerSample             uint16 = 258
	TagCompression               uint16 = 259
	TagPhotometricInterpretation uint16 = 262
	TagFillOrder                 uint16 = 266
	TagImageDescription          uint16 = 270
	TagMake                      uint16 = 271
	TagModel                     uint16 = 272
	TagStripOffsets              uint16 = 273
	TagOrientation               uint16 = 274
	TagSamplesPerPixel           uint16 = 277
	TagRowsPerStrip              uint16 = 278
	TagStripByteCounts           uint16 = 279
	TagXResolution               uint16 = 282
	TagYResolution               uint16 = 283
	TagPlanarConfiguration       uint16 = 284
	TagResolutionUnit            uint16 = 296
	TagSoftware                  uint16 = 305
	TagDateTime                  uint16 = 306
	TagArtist                    uint16 = 315
	TagPredictor                 uint16 = 317
	TagTileWidth                 uint16 = 322
	TagTileLength                uint16 = 323
	TagTileOffsets               uint16 = 324
	TagTileByteCounts            uint16 = 325
	TagSubIFDs                   uint16 = 330
	TagExtraSamples              uint16 = 338
	TagSampleFormat              uint16 = 339
	TagXMP                       uint16 = 700
	TagCFARepeatPatternDim       uint16 = 33421
	TagCFAPattern                uint16 = 33422
	TagCopyright                 uint16 = 33432
	TagIPTC                      uint16 = 33723
	TagExifIFD                   uint16 = 34665
	TagICCProfile                uint16 = 34675
	TagGPSInfo                   uint16 = 34853
)

// Exif private tag codes.
const (
	TagExposureTime      uint16 = 33434
	TagFNumber           uint16 = 33437
	TagExposureProgram   uint16 = 34850
	TagISOSpeedRatings   uint16 = 34855
	TagExifVersion       uint16 = 36864
	TagDateTimeOriginal  uint16 = 36867
	TagDateTimeDigitized uint16 = 36868
	TagShutterSpeedValue uint16 = 37377
	TagApertureValue     uint16 = 37378
	TagExposureBias      uint16 = 37380
	TagMaxApertureValue  uint16 = 37381
	TagMeteringMode      uint16 = 37383
	TagFlash             uint16 = 37385
	TagFocalLength       uint16 = 37386
	TagMakerNote         uint16 = 37500
	TagUserComment       uint16 = 37510
	TagColorSpace        uint16 = 40961
	TagPixelXDimension   uint16 = 40962
	TagPixelYDimension   uint16 = 40963
	TagExifCFAPattern    uint16 = 41730
	TagImageUniqueID     uint16 = 42016
	TagCameraOwnerName   uint16 = 42032
	TagBodySerialNumber  uint16 = 42033
	TagLensSpecification uint16 = 42034
	TagLensMake          uint16 = 42035
	TagLensModel         uint16 = 42036
)

// DNG tag codes.
const (
	TagDNGVersion             uint16 = 50706
	TagDNGBackwardVersion     uint16 = 50707
	TagUniqueCameraModel      uint16 = 50708
	TagLocalizedCameraModel   uint16 = 50709
	TagCFAPlaneColor          uint16 = 50710
	TagCFALayout              uint16 = 50711
	TagLinearizationTable     uint16 = 50712
	TagBlackLevelRepeatDim    uint16 = 50713
	TagBlackLevel             uint16 = 50714
	TagBlackLevelDeltaH       uint16 = 50715
	TagBlackLevelDeltaV       uint16 = 50716
	TagWhiteLevel             uint16 = 50717
	TagDefaultScale           uint16 = 50718
	TagDefaultCropOrigin      uint16 = 50719
	TagDefaultCropSize        uint16 = 50720
	TagColorMatrix1           uint16 = 50721
	TagColorMatrix2           uint16 = 50722
	TagCameraCalibration1     uint16 = 50723
	TagCameraCalibration2     uint16 = 50724
	TagAnalogBalance          uint16 = 50727
	TagAsShotNeutral          uint16 = 50728
	TagAsShotWhiteXY          uint16 = 50729
	TagBaselineExposure       uint16 = 50730
	TagBaselineNoise          uint16 = 50731
	TagBaselineSharpness      uint16 = 50732
	TagBayerGreenSplit        uint16 = 50733
	TagLinearResponseLimit    uint16 = 50734
	TagCameraSerialNumber     uint16 = 50735
	TagLensInfo               uint16 = 50736
	TagAntiAliasStrength      uint16 = 50738
	TagShadowScale            uint16 = 50739
	TagDNGPrivateData         uint16 = 50740
	TagMakerNoteSafety        uint16 = 50741
	TagCalibrationIlluminant1 uint16 = 50778
	TagCalibrationIlluminant2 uint16 = 50779
	TagBestQualityScale       uint16 = 50780
	TagRawDataUniqueID        uint16 = 50781
	TagOriginalRawFileName    uint16 = 50827
	TagOriginalRawFileData    uint16 = 50828
	TagActiveArea             uint16 = 50829
	TagMaskedAreas            uint16 = 50830
	TagOriginalRawFileDigest  uint16 = 50973
	TagSubTileBlockSize       uint16 = 50974
	TagRowInterleaveFactor    uint16 = 50975
)

// Compression schemes.
const (
	CompressionNone    uint16 = 1
	CompressionJPEG    uint16 = 7
	CompressionDeflate uint16 = 8
	CompressionZstd    uint16 = 50000
)

// Photometric interpretations.
const (
	PhotometricWhiteIsZero uint16 = 0
	PhotometricBlackIsZero uint16 = 1
	PhotometricRGB         uint16 = 2
	PhotometricCFA         uint16 = 32803
	PhotometricLinearRaw   uint16 = 34892
)

// Predictors.
const (
	PredictorNone       uint16 = 1
	PredictorHorizontal uint16 = 2
)

// Sample formats.
const (
	SampleFormatUint  uint16 = 1
	SampleFormatInt   uint16 = 2
	SampleFormatFloat uint16 = 3
)

// Subfile types.
const (
	SubFileMain    uint32 = 0
	SubFilePreview uint32 = 1
)
