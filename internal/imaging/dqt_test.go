package imaging

import "testing"

// dqtSegment wraps a raw DQT payload in an FFDB marker segment.
func dqtSegment(payload []byte) []byte {
	segLen := 2 + len(payload)
	seg := []byte{0xFF, 0xDB, byte(segLen >> 8), byte(segLen)}
	return append(seg, payload...)
}

func jpegStream(segments ...[]byte) []byte {
	out := []byte{0xFF, 0xD8}
	for _, s := range segments {
		out = append(out, s...)
	}
	return append(out, 0xFF, 0xD9)
}

func TestExtractQuantTablesNonJPEG(t *testing.T) {
	if got := ExtractQuantTables([]byte{0x89, 'P', 'N', 'G'}); got != nil {
		t.Errorf("PNG input must yield nil, got %v", got)
	}
	if got := ExtractQuantTables([]byte{0xFF}); got != nil {
		t.Errorf("short input must yield nil, got %v", got)
	}
}

func TestExtractQuantTablesZigzag(t *testing.T) {
	// 8-bit table, id 0, stored values 0..63 in file order.
	payload := make([]byte, 65)
	for k := 0; k < 64; k++ {
		payload[1+k] = byte(k)
	}

	tables := ExtractQuantTables(jpegStream(dqtSegment(payload)))
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	q := tables[0]
	if q.ID != 0 || q.Precision != 0 {
		t.Errorf("expected id 0 precision 0, got id %d precision %d", q.ID, q.Precision)
	}

	// First stored coefficients land on the zigzag diagonal walk.
	placements := []struct{ row, col, want int }{
		{0, 0, 0}, {0, 1, 1}, {1, 0, 2}, {2, 0, 3}, {1, 1, 4}, {0, 2, 5}, {7, 7, 63},
	}
	for _, p := range placements {
		if got := q.Values[p.row][p.col]; got != p.want {
			t.Errorf("Values[%d][%d] = %d, want %d", p.row, p.col, got, p.want)
		}
	}

	// Flat is row-major, so index 8 is Values[1][0].
	if flat := q.Flat(); flat[8] != 2 {
		t.Errorf("Flat()[8] = %d, want 2", flat[8])
	}
}

func TestExtractQuantTables16Bit(t *testing.T) {
	payload := make([]byte, 1+64*2)
	payload[0] = 0x11 // precision 1, id 1
	for k := 0; k < 64; k++ {
		v := 256 + k
		payload[1+k*2] = byte(v >> 8)
		payload[2+k*2] = byte(v)
	}

	tables := ExtractQuantTables(jpegStream(dqtSegment(payload)))
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	q := tables[0]
	if q.ID != 1 || q.Precision != 1 {
		t.Errorf("expected id 1 precision 1, got id %d precision %d", q.ID, q.Precision)
	}
	if q.Values[0][0] != 256 {
		t.Errorf("expected 16-bit DC value 256, got %d", q.Values[0][0])
	}
}

func TestExtractQuantTablesTwoInOneSegment(t *testing.T) {
	payload := make([]byte, 2*65)
	payload[0] = 0x00
	for k := 0; k < 64; k++ {
		payload[1+k] = 2
	}
	payload[65] = 0x01
	for k := 0; k < 64; k++ {
		payload[66+k] = 4
	}

	tables := ExtractQuantTables(jpegStream(dqtSegment(payload)))
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0].ID != 0 || tables[1].ID != 1 {
		t.Errorf("expected ids 0 and 1, got %d and %d", tables[0].ID, tables[1].ID)
	}
	if tables[0].Values[3][5] != 2 || tables[1].Values[3][5] != 4 {
		t.Errorf("expected uniform values 2 and 4, got %d and %d",
			tables[0].Values[3][5], tables[1].Values[3][5])
	}
}

func TestExtractQuantTablesStopsAtSOS(t *testing.T) {
	payload := make([]byte, 65)
	for k := 0; k < 64; k++ {
		payload[1+k] = 1
	}
	sos := []byte{0xFF, 0xDA, 0x00, 0x04, 0x00, 0x00}

	// A DQT after the start-of-scan is entropy-coded data, not a marker.
	raw := jpegStream(dqtSegment(payload), sos, dqtSegment(payload))
	if tables := ExtractQuantTables(raw); len(tables) != 1 {
		t.Errorf("expected scan data to end the walk, got %d tables", len(tables))
	}
}

func TestExtractQuantTablesTruncatedSegment(t *testing.T) {
	// Declared length runs past the buffer.
	raw := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x43, 0x00, 0x01, 0x02}
	if tables := ExtractQuantTables(raw); len(tables) != 0 {
		t.Errorf("truncated segment must yield nothing, got %d tables", len(tables))
	}
}
