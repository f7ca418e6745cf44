package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// parametersKey is the text chunk keyword generation tools write to.
const parametersKey = "parameters"

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// ReadTextMetadata implements Codec. PNG files are searched for a
// "parameters" text chunk; JPEG and WebP files for an EXIF UserComment or
// ImageDescription.
func (a *Adapter) ReadTextMetadata(data []byte, ext string) (string, error) {
	switch ext {
	case ".png":
		return readPNGText(data)
	case ".jpg", ".jpeg":
		return readEXIFText(data)
	case ".webp":
		chunk, err := findRIFFChunk(data, "EXIF")
		if err != nil || chunk == nil {
			return "", err
		}
		return readEXIFText(chunk)
	default:
		return "", nil
	}
}

// readPNGText walks the chunk list up to IDAT-end and returns the
// parameters text from tEXt, zTXt or iTXt chunks.
func readPNGText(data []byte) (string, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return "", errors.New("not a png file")
	}

	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		kind := string(data[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if length < 0 || end+4 > len(data) {
			return "", fmt.Errorf("truncated %s chunk", kind)
		}
		body := data[start:end]
		pos = end + 4 // skip CRC

		var (
			key, text string
			err       error
		)
		switch kind {
		case "tEXt":
			key, text, err = parseTEXt(body)
		case "zTXt":
			key, text, err = parseZTXt(body)
		case "iTXt":
			key, text, err = parseITXt(body)
		case "IEND":
			return "", nil
		default:
			continue
		}
		if err != nil {
			return "", fmt.Errorf("bad %s chunk: %w", kind, err)
		}
		if key == parametersKey {
			return text, nil
		}
	}
	return "", nil
}

func splitKeyword(body []byte) (string, []byte, error) {
	i := bytes.IndexByte(body, 0)
	if i < 0 {
		return "", nil, errors.New("missing keyword terminator")
	}
	return string(body[:i]), body[i+1:], nil
}

func latin1(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	return charmap.ISO8859_1.NewDecoder().String(string(b))
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func parseTEXt(body []byte) (string, string, error) {
	key, rest, err := splitKeyword(body)
	if err != nil {
		return "", "", err
	}
	text, err := latin1(rest)
	return key, text, err
}

func parseZTXt(body []byte) (string, string, error) {
	key, rest, err := splitKeyword(body)
	if err != nil {
		return "", "", err
	}
	if key != parametersKey {
		return key, "", nil
	}
	if len(rest) < 1 {
		return "", "", errors.New("missing compression method")
	}
	raw, err := inflate(rest[1:])
	if err != nil {
		return "", "", err
	}
	text, err := latin1(raw)
	return key, text, err
}

func parseITXt(body []byte) (string, string, error) {
	key, rest, err := splitKeyword(body)
	if err != nil {
		return "", "", err
	}
	if key != parametersKey {
		return key, "", nil
	}
	if len(rest) < 2 {
		return "", "", errors.New("missing compression fields")
	}
	compressed := rest[0] == 1
	rest = rest[2:]

	// language tag, then translated keyword
	for i := 0; i < 2; i++ {
		j := bytes.IndexByte(rest, 0)
		if j < 0 {
			return "", "", errors.New("missing header terminator")
		}
		rest = rest[j+1:]
	}

	if compressed {
		if rest, err = inflate(rest); err != nil {
			return "", "", err
		}
	}
	return key, string(rest), nil
}

// findRIFFChunk returns the payload of the first chunk with the given
// FourCC in a RIFF/WEBP container, or nil if absent.
func findRIFFChunk(data []byte, fourcc string) ([]byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, errors.New("not a webp file")
	}

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		end := start + size
		if size < 0 || end > len(data) {
			return nil, fmt.Errorf("truncated %q chunk", id)
		}
		if id == fourcc {
			return data[start:end], nil
		}
		pos = end + size%2
	}
	return nil, nil
}

// readEXIFText prefers UserComment and falls back to ImageDescription.
func readEXIFText(data []byte) (string, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		// No EXIF at all is the common case, not an error.
		return "", nil
	}

	if tag, err := x.Get(exif.UserComment); err == nil && len(tag.Val) > 0 {
		if text := decodeUserComment(tag.Val); text != "" {
			return text, nil
		}
	}

	if tag, err := x.Get(exif.ImageDescription); err == nil {
		if s, err := tag.StringVal(); err == nil {
			return strings.TrimRight(s, "\x00"), nil
		}
	}

	return "", nil
}

// decodeUserComment decodes an EXIF UserComment: an 8 byte character code
// followed by the payload.
func decodeUserComment(val []byte) string {
	if len(val) < 8 {
		return strings.TrimRight(string(val), "\x00")
	}

	code, payload := string(val[:8]), val[8:]
	switch {
	case strings.HasPrefix(code, "UNICODE"):
		return decodeUTF16(payload)
	default:
		return strings.TrimRight(string(payload), "\x00 ")
	}
}

// decodeUTF16 decodes a UTF-16 payload whose byte order is frequently
// declared wrong by writers. For mostly-ASCII text the zero byte of each
// code unit sits on the even index in big endian and the odd index in
// little endian, so the order is picked by counting zeros.
func decodeUTF16(payload []byte) string {
	if len(payload) < 2 {
		return ""
	}

	evenZeros, oddZeros := 0, 0
	for i := 0; i+1 < len(payload); i += 2 {
		if payload[i] == 0 {
			evenZeros++
		}
		if payload[i+1] == 0 {
			oddZeros++
		}
	}

	order := unicode.BigEndian
	if oddZeros > evenZeros {
		order = unicode.LittleEndian
	}

	out, err := unicode.UTF16(order, unicode.UseBOM).NewDecoder().Bytes(payload)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}
