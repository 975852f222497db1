package imaging

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

// ICC profile extraction. JPEG carries the profile split across APP2
// segments tagged "ICC_PROFILE\x00" with a sequence/total byte pair;
// the chunks are reassembled in sequence order before parsing.

const iccHeaderSize = 128

// ICCProfile is the subset of profile fields the detectors score on.
type ICCProfile struct {
	Description string
	Size        int
	Version     string // "major.minor" from header bytes 8-9
	Created     string // "YYYY-MM-DD" from the header date-time field
	Corrupted   bool   // header shorter than 128 bytes or unreadable tags
}

// ExtractICCProfile reassembles and parses the embedded profile.
// Returns nil when the file carries none.
func ExtractICCProfile(raw []byte) *ICCProfile {
	data := collectICCChunks(raw)
	if data == nil {
		return nil
	}
	return parseICC(data)
}

func collectICCChunks(raw []byte) []byte {
	if len(raw) < 4 || raw[0] != 0xFF || raw[1] != 0xD8 {
		return nil
	}
	tag := []byte("ICC_PROFILE\x00")

	type chunk struct {
		seq  int
		data []byte
	}
	var chunks []chunk

	i := 2
	for i+4 <= len(raw) {
		if raw[i] != 0xFF {
			break
		}
		marker := raw[i+1]
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		segLen := int(raw[i+2])<<8 | int(raw[i+3])
		if segLen < 2 || i+2+segLen > len(raw) {
			break
		}
		payload := raw[i+4 : i+2+segLen]
		if marker == 0xE2 && len(payload) > len(tag)+2 && bytes.Equal(payload[:len(tag)], tag) {
			chunks = append(chunks, chunk{
				seq:  int(payload[len(tag)]),
				data: payload[len(tag)+2:],
			})
		}
		i += 2 + segLen
	}
	if len(chunks) == 0 {
		return nil
	}

	// Chunks carry 1-based sequence numbers; out-of-order emission is
	// rare but legal.
	for j := 1; j < len(chunks); j++ {
		for k := j; k > 0 && chunks[k].seq < chunks[k-1].seq; k-- {
			chunks[k], chunks[k-1] = chunks[k-1], chunks[k]
		}
	}
	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c.data)
	}
	return buf.Bytes()
}

func parseICC(data []byte) *ICCProfile {
	p := &ICCProfile{Size: len(data)}
	if len(data) < iccHeaderSize {
		p.Corrupted = true
		return p
	}

	major := int(data[8])
	minor := int(data[9] >> 4)
	p.Version = itoa(major) + "." + itoa(minor)

	year := int(binary.BigEndian.Uint16(data[24:26]))
	month := int(binary.BigEndian.Uint16(data[26:28]))
	day := int(binary.BigEndian.Uint16(data[28:30]))
	if year > 0 {
		p.Created = pad4(year) + "-" + pad2(month) + "-" + pad2(day)
	}

	p.Description = readDescTag(data)
	if p.Description == "" {
		p.Corrupted = p.Corrupted || len(data) < iccHeaderSize+4
	}
	return p
}

// readDescTag walks the tag table for 'desc' and decodes either the v2
// textDescription or the v4 mluc record.
func readDescTag(data []byte) string {
	if len(data) < iccHeaderSize+4 {
		return ""
	}
	count := int(binary.BigEndian.Uint32(data[iccHeaderSize : iccHeaderSize+4]))
	if count <= 0 || count > 1024 {
		return ""
	}
	for i := 0; i < count; i++ {
		entry := iccHeaderSize + 4 + i*12
		if entry+12 > len(data) {
			return ""
		}
		sig := string(data[entry : entry+4])
		if sig != "desc" {
			continue
		}
		off := int(binary.BigEndian.Uint32(data[entry+4 : entry+8]))
		size := int(binary.BigEndian.Uint32(data[entry+8 : entry+12]))
		if off+size > len(data) || size < 12 {
			return ""
		}
		body := data[off : off+size]
		switch string(body[:4]) {
		case "desc":
			n := int(binary.BigEndian.Uint32(body[8:12]))
			if 12+n > len(body) {
				return ""
			}
			return strings.TrimRight(string(body[12:12+n]), "\x00")
		case "mluc":
			return readMluc(body)
		}
	}
	return ""
}

func readMluc(body []byte) string {
	if len(body) < 28 {
		return ""
	}
	// First record: string offset/length at bytes 20-27, UTF-16BE text.
	strLen := int(binary.BigEndian.Uint32(body[20:24]))
	strOff := int(binary.BigEndian.Uint32(body[24:28]))
	if strOff+strLen > len(body) || strLen%2 != 0 {
		return ""
	}
	raw := body[strOff : strOff+strLen]
	u16 := make([]uint16, len(raw)/2)
	for i := range u16 {
		u16[i] = binary.BigEndian.Uint16(raw[i*2 : i*2+2])
	}
	return string(utf16.Decode(u16))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

func pad2(n int) string {
	s := itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func pad4(n int) string {
	s := itoa(n)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
