// Package imagery talks to a Sentinel Hub style process API: OAuth2 client
// credentials, a JSON process request per sample, float32 GeoTIFF responses.
package imagery

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Raster is a dense band-interleaved float32 image, pixel-major: the sample
// for (row, col, band) lives at Pix[(row*Width+col)*Bands+band].
type Raster struct {
	Width  int
	Height int
	Bands  int
	Pix    []float32
}

// BandFloat64 copies one band out as float64 values in row-major order.
// band must be < Bands.
func (r *Raster) BandFloat64(band int) []float64 {
	n := r.Width * r.Height
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(r.Pix[i*r.Bands+band])
	}
	return out
}

// MaskBand thresholds one band into a boolean mask. band must be < Bands.
func (r *Raster) MaskBand(band int, threshold float32) []bool {
	n := r.Width * r.Height
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = r.Pix[i*r.Bands+band] > threshold
	}
	return out
}

// TIFF tag and field-type constants, limited to what the process API emits.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagSampleFormat    = 339

	typeByte  = 1
	typeShort = 3
	typeLong  = 4

	sampleFormatFloat = 3
)

// DecodeFloat32TIFF parses the narrow TIFF profile FLOAT32 responses use:
// single image, uncompressed strips, chunky planar layout, 32-bit IEEE-float
// samples, either byte order. Anything else is an error and the sample is
// dropped by the caller.
func DecodeFloat32TIFF(data []byte) (*Raster, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("tiff: truncated header")
	}
	var bo binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		bo = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("tiff: bad byte-order mark %q", data[:2])
	}
	if bo.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("tiff: bad magic")
	}

	ifdOffset := bo.Uint32(data[4:8])
	tags, err := readIFD(data, bo, ifdOffset)
	if err != nil {
		return nil, err
	}

	width := int(firstOr(tags[tagImageWidth], 0))
	height := int(firstOr(tags[tagImageLength], 0))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("tiff: missing image dimensions")
	}
	if c := firstOr(tags[tagCompression], 1); c != 1 {
		return nil, fmt.Errorf("tiff: unsupported compression %d", c)
	}
	if p := firstOr(tags[tagPlanarConfig], 1); p != 1 {
		return nil, fmt.Errorf("tiff: unsupported planar configuration %d", p)
	}
	bands := int(firstOr(tags[tagSamplesPerPixel], 1))
	for _, bits := range tags[tagBitsPerSample] {
		if bits != 32 {
			return nil, fmt.Errorf("tiff: bits per sample %d, want 32", bits)
		}
	}
	for _, sf := range tags[tagSampleFormat] {
		if sf != sampleFormatFloat {
			return nil, fmt.Errorf("tiff: sample format %d is not IEEE float", sf)
		}
	}
	if len(tags[tagSampleFormat]) == 0 {
		return nil, fmt.Errorf("tiff: sample format missing, want IEEE float")
	}

	offsets := tags[tagStripOffsets]
	counts := tags[tagStripByteCounts]
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("tiff: inconsistent strip layout")
	}

	want := width * height * bands
	pix := make([]float32, 0, want)
	for i, off := range offsets {
		end := int(off) + int(counts[i])
		if int(off) > len(data) || end > len(data) {
			return nil, fmt.Errorf("tiff: truncated strip %d", i)
		}
		strip := data[off:end]
		for j := 0; j+4 <= len(strip); j += 4 {
			pix = append(pix, math.Float32frombits(bo.Uint32(strip[j:j+4])))
		}
	}
	if len(pix) != want {
		return nil, fmt.Errorf("tiff: pixel data mismatch: have %d samples, want %d", len(pix), want)
	}

	return &Raster{Width: width, Height: height, Bands: bands, Pix: pix}, nil
}

// readIFD reads the first image file directory into a tag -> values map.
func readIFD(data []byte, bo binary.ByteOrder, offset uint32) (map[uint16][]uint32, error) {
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("tiff: IFD offset out of range")
	}
	n := int(bo.Uint16(data[offset : offset+2]))
	tags := make(map[uint16][]uint32, n)
	for i := 0; i < n; i++ {
		base := int(offset) + 2 + i*12
		if base+12 > len(data) {
			return nil, fmt.Errorf("tiff: truncated IFD entry %d", i)
		}
		entry := data[base : base+12]
		tag := bo.Uint16(entry[0:2])
		values, err := entryValues(data, bo, entry)
		if err != nil {
			return nil, fmt.Errorf("tiff: tag %d: %w", tag, err)
		}
		if values != nil {
			tags[tag] = values
		}
	}
	return tags, nil
}

// entryValues decodes one 12-byte IFD entry. Values fit inline when their
// total size is at most four bytes, otherwise the entry holds an offset.
// Unknown field types are skipped rather than rejected.
func entryValues(data []byte, bo binary.ByteOrder, entry []byte) ([]uint32, error) {
	typ := bo.Uint16(entry[2:4])
	count := int(bo.Uint32(entry[4:8]))

	var size int
	switch typ {
	case typeByte:
		size = 1
	case typeShort:
		size = 2
	case typeLong:
		size = 4
	default:
		return nil, nil
	}

	total := size * count
	var raw []byte
	if total <= 4 {
		raw = entry[8 : 8+total]
	} else {
		off := int(bo.Uint32(entry[8:12]))
		if off+total > len(data) {
			return nil, fmt.Errorf("value offset out of range")
		}
		raw = data[off : off+total]
	}

	values := make([]uint32, count)
	for i := 0; i < count; i++ {
		switch typ {
		case typeByte:
			values[i] = uint32(raw[i])
		case typeShort:
			values[i] = uint32(bo.Uint16(raw[i*2 : i*2+2]))
		case typeLong:
			values[i] = bo.Uint32(raw[i*4 : i*4+4])
		}
	}
	return values, nil
}

func firstOr(values []uint32, fallback uint32) uint32 {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}
