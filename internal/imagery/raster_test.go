package imagery

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

// tiffSpec drives buildTIFF. Zero values mean "well formed": little endian,
// one strip, 32-bit IEEE-float samples, no compression.
type tiffSpec struct {
	bo           binary.ByteOrder
	width        uint32
	height       uint32
	bands        uint32
	pix          []float32
	strips       int
	bitsPer      uint32
	sampleFormat uint32
	compression  uint32
	dropFormat   bool
}

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	raw   []byte // encoded values, inline when <= 4 bytes
}

// buildTIFF assembles header + strip data + out-of-line values + one IFD,
// which is the shape the process API returns.
func buildTIFF(spec tiffSpec) []byte {
	bo := spec.bo
	if bo == nil {
		bo = binary.LittleEndian
	}
	if spec.strips <= 0 {
		spec.strips = 1
	}
	if spec.bitsPer == 0 {
		spec.bitsPer = 32
	}
	if spec.sampleFormat == 0 {
		spec.sampleFormat = 3
	}
	if spec.compression == 0 {
		spec.compression = 1
	}

	pixBytes := make([]byte, 4*len(spec.pix))
	for i, v := range spec.pix {
		bo.PutUint32(pixBytes[i*4:], math.Float32bits(v))
	}

	per := len(pixBytes) / spec.strips
	per -= per % 4
	var stripChunks [][]byte
	var stripOffsets, stripCounts []uint32
	cursor := uint32(8)
	rest := pixBytes
	for s := 0; s < spec.strips; s++ {
		chunk := rest
		if s < spec.strips-1 && per < len(rest) {
			chunk = rest[:per]
			rest = rest[per:]
		} else {
			rest = nil
		}
		stripChunks = append(stripChunks, chunk)
		stripOffsets = append(stripOffsets, cursor)
		stripCounts = append(stripCounts, uint32(len(chunk)))
		cursor += uint32(len(chunk))
	}

	shorts := func(values ...uint32) []byte {
		out := make([]byte, 2*len(values))
		for i, v := range values {
			bo.PutUint16(out[i*2:], uint16(v))
		}
		return out
	}
	longs := func(values ...uint32) []byte {
		out := make([]byte, 4*len(values))
		for i, v := range values {
			bo.PutUint32(out[i*4:], v)
		}
		return out
	}
	repeat := func(v uint32, n uint32) []uint32 {
		out := make([]uint32, n)
		for i := range out {
			out[i] = v
		}
		return out
	}

	entries := []tiffEntry{
		{256, 3, 1, shorts(spec.width)},
		{257, 3, 1, shorts(spec.height)},
		{258, 3, spec.bands, shorts(repeat(spec.bitsPer, spec.bands)...)},
		{259, 3, 1, shorts(spec.compression)},
		{273, 4, uint32(len(stripOffsets)), longs(stripOffsets...)},
		{277, 3, 1, shorts(spec.bands)},
		{278, 3, 1, shorts(spec.height)},
		{279, 4, uint32(len(stripCounts)), longs(stripCounts...)},
		{284, 3, 1, shorts(1)},
	}
	if !spec.dropFormat {
		entries = append(entries, tiffEntry{339, 3, spec.bands, shorts(repeat(spec.sampleFormat, spec.bands)...)})
	}

	auxBase := cursor
	var aux []byte
	type placed struct {
		tiffEntry
		value [4]byte
	}
	var ifd []placed
	for _, e := range entries {
		p := placed{tiffEntry: e}
		if len(e.raw) <= 4 {
			copy(p.value[:], e.raw)
		} else {
			bo.PutUint32(p.value[:], auxBase+uint32(len(aux)))
			aux = append(aux, e.raw...)
		}
		ifd = append(ifd, p)
	}
	ifdOffset := auxBase + uint32(len(aux))

	out := make([]byte, 0, int(ifdOffset)+2+12*len(ifd)+4)
	if bo == binary.LittleEndian {
		out = append(out, 'I', 'I')
	} else {
		out = append(out, 'M', 'M')
	}
	out = append(out, shorts(42)...)
	out = append(out, longs(ifdOffset)...)
	for _, chunk := range stripChunks {
		out = append(out, chunk...)
	}
	out = append(out, aux...)
	out = append(out, shorts(uint32(len(ifd)))...)
	for _, p := range ifd {
		out = append(out, shorts(uint32(p.tag), uint32(p.typ))...)
		out = append(out, longs(p.count)...)
		out = append(out, p.value[:]...)
	}
	out = append(out, longs(0)...)
	return out
}

// testPix is a 2x2, 3-band image in pixel-major order: red, nir, mask.
var testPix = []float32{
	0.1, 0.5, 1.0,
	0.2, 0.6, 0.0,
	0.3, 0.7, 0.4,
	0.4, 0.8, 0.6,
}

func TestDecodeFloat32TIFFLittleEndian(t *testing.T) {
	raster, err := DecodeFloat32TIFF(buildTIFF(tiffSpec{width: 2, height: 2, bands: 3, pix: testPix}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raster.Width != 2 || raster.Height != 2 || raster.Bands != 3 {
		t.Fatalf("unexpected shape %dx%dx%d", raster.Width, raster.Height, raster.Bands)
	}

	red := raster.BandFloat64(0)
	for i, want := range []float32{0.1, 0.2, 0.3, 0.4} {
		if red[i] != float64(want) {
			t.Fatalf("band 0 pixel %d = %v, want %v", i, red[i], float64(want))
		}
	}

	mask := raster.MaskBand(2, 0.5)
	want := []bool{true, false, false, true}
	for i := range want {
		if mask[i] != want[i] {
			t.Fatalf("mask pixel %d = %v, want %v", i, mask[i], want[i])
		}
	}
}

func TestDecodeFloat32TIFFBigEndian(t *testing.T) {
	raster, err := DecodeFloat32TIFF(buildTIFF(tiffSpec{bo: binary.BigEndian, width: 2, height: 2, bands: 3, pix: testPix}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i, want := range testPix {
		if raster.Pix[i] != want {
			t.Fatalf("pixel %d = %v, want %v", i, raster.Pix[i], want)
		}
	}
}

func TestDecodeFloat32TIFFMultipleStrips(t *testing.T) {
	raster, err := DecodeFloat32TIFF(buildTIFF(tiffSpec{width: 2, height: 2, bands: 3, pix: testPix, strips: 2}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raster.Pix) != len(testPix) {
		t.Fatalf("expected %d samples, got %d", len(testPix), len(raster.Pix))
	}
	for i, want := range testPix {
		if raster.Pix[i] != want {
			t.Fatalf("strip reassembly broke pixel %d: %v != %v", i, raster.Pix[i], want)
		}
	}
}

func TestDecodeFloat32TIFFRejectsIntegerSamples(t *testing.T) {
	_, err := DecodeFloat32TIFF(buildTIFF(tiffSpec{width: 2, height: 2, bands: 3, pix: testPix, sampleFormat: 1}))
	if err == nil || !strings.Contains(err.Error(), "not IEEE float") {
		t.Fatalf("expected sample-format error, got %v", err)
	}
}

func TestDecodeFloat32TIFFRejectsMissingSampleFormat(t *testing.T) {
	_, err := DecodeFloat32TIFF(buildTIFF(tiffSpec{width: 2, height: 2, bands: 3, pix: testPix, dropFormat: true}))
	if err == nil || !strings.Contains(err.Error(), "sample format missing") {
		t.Fatalf("expected missing-format error, got %v", err)
	}
}

func TestDecodeFloat32TIFFRejectsCompression(t *testing.T) {
	_, err := DecodeFloat32TIFF(buildTIFF(tiffSpec{width: 2, height: 2, bands: 3, pix: testPix, compression: 5}))
	if err == nil || !strings.Contains(err.Error(), "unsupported compression") {
		t.Fatalf("expected compression error, got %v", err)
	}
}

func TestDecodeFloat32TIFFRejectsWrongBitDepth(t *testing.T) {
	_, err := DecodeFloat32TIFF(buildTIFF(tiffSpec{width: 2, height: 2, bands: 3, pix: testPix, bitsPer: 16}))
	if err == nil || !strings.Contains(err.Error(), "bits per sample") {
		t.Fatalf("expected bit-depth error, got %v", err)
	}
}

func TestDecodeFloat32TIFFRejectsPixelCountMismatch(t *testing.T) {
	// Declares 3x2 but carries 2x2 worth of samples.
	_, err := DecodeFloat32TIFF(buildTIFF(tiffSpec{width: 3, height: 2, bands: 3, pix: testPix}))
	if err == nil || !strings.Contains(err.Error(), "pixel data mismatch") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestDecodeFloat32TIFFRejectsGarbage(t *testing.T) {
	if _, err := DecodeFloat32TIFF([]byte("II")); err == nil {
		t.Fatalf("expected truncated-header error")
	}
	if _, err := DecodeFloat32TIFF([]byte("XXXXXXXX")); err == nil {
		t.Fatalf("expected byte-order error")
	}
	bad := buildTIFF(tiffSpec{width: 2, height: 2, bands: 3, pix: testPix})
	bad[2] = 99
	if _, err := DecodeFloat32TIFF(bad); err == nil || !strings.Contains(err.Error(), "bad magic") {
		t.Fatalf("expected magic error, got %v", err)
	}
}
