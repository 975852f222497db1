package imaging

import (
	"encoding/binary"
	"testing"
)

// buildProfileData assembles a minimal v2 profile: 128-byte header, one
// tag-table entry, and a textDescription body holding desc.
func buildProfileData(desc string) []byte {
	body := append([]byte("desc"), make([]byte, 4)...)
	body = binary.BigEndian.AppendUint32(body, uint32(len(desc)+1))
	body = append(body, desc...)
	body = append(body, 0x00)

	data := make([]byte, iccHeaderSize)
	data[8] = 2    // major version
	data[9] = 0x40 // minor version 4 in the high nibble
	binary.BigEndian.PutUint16(data[24:26], 2024)
	binary.BigEndian.PutUint16(data[26:28], 6)
	binary.BigEndian.PutUint16(data[28:30], 1)

	data = binary.BigEndian.AppendUint32(data, 1) // tag count
	data = append(data, "desc"...)
	data = binary.BigEndian.AppendUint32(data, uint32(iccHeaderSize+16)) // tag offset
	data = binary.BigEndian.AppendUint32(data, uint32(len(body)))
	return append(data, body...)
}

func app2ICCChunk(seq, total byte, part []byte) []byte {
	payload := append([]byte("ICC_PROFILE\x00"), seq, total)
	payload = append(payload, part...)
	segLen := 2 + len(payload)
	seg := []byte{0xFF, 0xE2, byte(segLen >> 8), byte(segLen)}
	return append(seg, payload...)
}

func TestParseICCFields(t *testing.T) {
	p := parseICC(buildProfileData("Display P3"))
	if p.Corrupted {
		t.Fatal("well-formed profile must not be marked corrupted")
	}
	if p.Description != "Display P3" {
		t.Errorf("expected description %q, got %q", "Display P3", p.Description)
	}
	if p.Version != "2.4" {
		t.Errorf("expected version 2.4, got %q", p.Version)
	}
	if p.Created != "2024-06-01" {
		t.Errorf("expected creation date 2024-06-01, got %q", p.Created)
	}
	if p.Size != len(buildProfileData("Display P3")) {
		t.Errorf("expected size %d, got %d", len(buildProfileData("Display P3")), p.Size)
	}
}

func TestParseICCShortProfile(t *testing.T) {
	p := parseICC(make([]byte, 100))
	if !p.Corrupted {
		t.Error("profiles shorter than the header are corrupted")
	}
	if p.Size != 100 {
		t.Errorf("expected size 100, got %d", p.Size)
	}
}

func TestReadDescTagMluc(t *testing.T) {
	// v4 mluc body, one en-US record pointing at UTF-16BE text.
	text := "P3"
	body := make([]byte, 28)
	copy(body, "mluc")
	binary.BigEndian.PutUint32(body[8:12], 1)   // record count
	binary.BigEndian.PutUint32(body[12:16], 12) // record size
	binary.BigEndian.PutUint32(body[20:24], uint32(len(text)*2))
	binary.BigEndian.PutUint32(body[24:28], 28)
	for _, r := range text {
		body = append(body, 0x00, byte(r))
	}

	data := make([]byte, iccHeaderSize)
	data = binary.BigEndian.AppendUint32(data, 1)
	data = append(data, "desc"...)
	data = binary.BigEndian.AppendUint32(data, uint32(iccHeaderSize+16))
	data = binary.BigEndian.AppendUint32(data, uint32(len(body)))
	data = append(data, body...)

	if got := readDescTag(data); got != text {
		t.Errorf("expected %q from mluc record, got %q", text, got)
	}
}

func TestExtractICCProfileReassemblesChunks(t *testing.T) {
	data := buildProfileData("Adobe RGB (1998)")
	half := len(data) / 2

	// Chunks emitted out of order must still reassemble by sequence.
	raw := jpegStream(
		app2ICCChunk(2, 2, data[half:]),
		app2ICCChunk(1, 2, data[:half]),
	)

	p := ExtractICCProfile(raw)
	if p == nil {
		t.Fatal("expected a profile")
	}
	if p.Description != "Adobe RGB (1998)" {
		t.Errorf("expected reassembled description, got %q", p.Description)
	}
	if p.Size != len(data) {
		t.Errorf("expected size %d, got %d", len(data), p.Size)
	}
}

func TestExtractICCProfileNone(t *testing.T) {
	if p := ExtractICCProfile(jpegStream()); p != nil {
		t.Errorf("expected nil without APP2 chunks, got %+v", p)
	}
	if p := ExtractICCProfile([]byte("not jpeg")); p != nil {
		t.Errorf("expected nil for non-JPEG input, got %+v", p)
	}
}
