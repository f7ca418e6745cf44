package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func pngChunk(kind string, body []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(body)))
	buf.WriteString(kind)
	buf.Write(body)
	crc := crc32.NewIEEE()
	crc.Write([]byte(kind))
	crc.Write(body)
	_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
	return buf.Bytes()
}

// pngWithChunks inserts extra chunks right after IHDR.
func pngWithChunks(t *testing.T, chunks ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(4, 4, color.White)); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	ihdrEnd := len(pngSignature) + 8 + 13 + 4

	out := append([]byte{}, data[:ihdrEnd]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, data[ihdrEnd:]...)
}

func deflate(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadTextMetadata_PNG(t *testing.T) {
	params := `{"sui_image_params":{"prompt":"a cat"}}`

	itxt := func(compressed bool, text []byte) []byte {
		body := []byte("parameters\x00")
		if compressed {
			body = append(body, 1, 0)
		} else {
			body = append(body, 0, 0)
		}
		body = append(body, []byte("en\x00\x00")...)
		return append(body, text...)
	}

	tests := []struct {
		name   string
		chunks [][]byte
		want   string
	}{
		{
			name:   "tEXt parameters",
			chunks: [][]byte{pngChunk("tEXt", []byte("parameters\x00"+params))},
			want:   params,
		},
		{
			name: "other keys ignored",
			chunks: [][]byte{
				pngChunk("tEXt", []byte("Software\x00something")),
				pngChunk("tEXt", []byte("parameters\x00"+params)),
			},
			want: params,
		},
		{
			name:   "zTXt parameters",
			chunks: [][]byte{pngChunk("zTXt", append([]byte("parameters\x00\x00"), deflate(t, params)...))},
			want:   params,
		},
		{
			name:   "iTXt uncompressed",
			chunks: [][]byte{pngChunk("iTXt", itxt(false, []byte("prompt: ünïcode")))},
			want:   "prompt: ünïcode",
		},
		{
			name:   "iTXt compressed",
			chunks: [][]byte{pngChunk("iTXt", itxt(true, deflate(t, params)))},
			want:   params,
		},
		{
			name:   "latin1 tEXt",
			chunks: [][]byte{pngChunk("tEXt", []byte("parameters\x00caf\xe9"))},
			want:   "café",
		},
		{
			name: "no text chunks",
			want: "",
		},
	}

	a := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.ReadTextMetadata(pngWithChunks(t, tt.chunks...), ".png")
			if err != nil {
				t.Fatalf("ReadTextMetadata() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadTextMetadata() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadTextMetadata_PNGErrors(t *testing.T) {
	a := New()

	if _, err := a.ReadTextMetadata([]byte("GIF89a"), ".png"); err == nil {
		t.Error("non-png data should fail")
	}

	data := pngWithChunks(t, pngChunk("tEXt", []byte("parameters\x00x")))
	if _, err := a.ReadTextMetadata(data[:len(pngSignature)+20], ".png"); err == nil {
		t.Error("truncated png should fail")
	}
}

func TestReadTextMetadata_JPEGWithoutEXIF(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(4, 4, color.White), nil); err != nil {
		t.Fatal(err)
	}

	got, err := New().ReadTextMetadata(buf.Bytes(), ".jpg")
	if err != nil || got != "" {
		t.Errorf("ReadTextMetadata() = %q, %v; want empty, nil", got, err)
	}
}

// tiffWithDescription builds a little-endian TIFF whose IFD0 holds a
// single ImageDescription entry.
func tiffWithDescription(desc string) []byte {
	value := append([]byte(desc), 0)
	var buf bytes.Buffer
	buf.WriteString("II*\x00")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0x010E))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(value)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(26))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write(value)
	return buf.Bytes()
}

func riff(chunks map[string][]byte, order []string) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	for _, id := range order {
		data := chunks[id]
		body.WriteString(id)
		_ = binary.Write(&body, binary.LittleEndian, uint32(len(data)))
		body.Write(data)
		if len(data)%2 == 1 {
			body.WriteByte(0)
		}
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestFindRIFFChunk(t *testing.T) {
	data := riff(map[string][]byte{
		"VP8X": {1, 2, 3},
		"EXIF": []byte("exif-data"),
	}, []string{"VP8X", "EXIF"})

	got, err := findRIFFChunk(data, "EXIF")
	if err != nil {
		t.Fatalf("findRIFFChunk() error = %v", err)
	}
	if string(got) != "exif-data" {
		t.Errorf("findRIFFChunk() = %q, want %q", got, "exif-data")
	}

	if got, err := findRIFFChunk(data, "XMP "); err != nil || got != nil {
		t.Errorf("missing chunk = %q, %v; want nil, nil", got, err)
	}

	if _, err := findRIFFChunk([]byte("RIFF\x00\x00\x00\x00WAVE"), "EXIF"); err == nil {
		t.Error("non-webp RIFF should fail")
	}
}

func TestReadTextMetadata_WebPDescription(t *testing.T) {
	data := riff(map[string][]byte{
		"VP8X": make([]byte, 10),
		"EXIF": tiffWithDescription("steps: 20, cfg: 7"),
	}, []string{"VP8X", "EXIF"})

	got, err := New().ReadTextMetadata(data, ".webp")
	if err != nil {
		t.Fatalf("ReadTextMetadata() error = %v", err)
	}
	if got != "steps: 20, cfg: 7" {
		t.Errorf("ReadTextMetadata() = %q", got)
	}
}

func utf16Bytes(s string, bigEndian bool) []byte {
	var out []byte
	for _, r := range s {
		hi, lo := byte(r>>8), byte(r)
		if bigEndian {
			out = append(out, hi, lo)
		} else {
			out = append(out, lo, hi)
		}
	}
	return out
}

func TestDecodeUserComment(t *testing.T) {
	tests := []struct {
		name string
		val  []byte
		want string
	}{
		{
			name: "unicode big endian",
			val:  append([]byte("UNICODE\x00"), utf16Bytes(`{"prompt":"cat"}`, true)...),
			want: `{"prompt":"cat"}`,
		},
		{
			name: "unicode declared big endian but written little endian",
			val:  append([]byte("UNICODE\x00"), utf16Bytes(`{"prompt":"dog"}`, false)...),
			want: `{"prompt":"dog"}`,
		},
		{
			name: "ascii",
			val:  []byte("ASCII\x00\x00\x00steps: 30\x00"),
			want: "steps: 30",
		},
		{
			name: "undefined code",
			val:  []byte("\x00\x00\x00\x00\x00\x00\x00\x00hello"),
			want: "hello",
		},
		{
			name: "short value",
			val:  []byte("abc"),
			want: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeUserComment(tt.val); got != tt.want {
				t.Errorf("decodeUserComment() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadTextMetadata_UnsupportedExtension(t *testing.T) {
	got, err := New().ReadTextMetadata([]byte("GIF89a"), ".gif")
	if err != nil || got != "" {
		t.Errorf("ReadTextMetadata(.gif) = %q, %v; want empty, nil", got, err)
	}
}
