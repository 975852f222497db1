package imaging

// JPEG quantization-table extraction. DQT segments (FFDB) carry one or
// more tables: a precision/ID byte followed by 64 values in zigzag
// order, 8-bit or 16-bit per the precision nibble. Encoders fingerprint
// themselves through these tables, so the order of appearance matters
// and is preserved.

// QTable is one 8x8 quantization matrix as stored in the file.
type QTable struct {
	ID        int
	Precision int // 0 = 8-bit, 1 = 16-bit entries
	Values    [8][8]int
}

// Flat returns the table in row-major order.
func (q QTable) Flat() []int {
	out := make([]int, 0, 64)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			out = append(out, q.Values[i][j])
		}
	}
	return out
}

// ExtractQuantTables walks the marker stream and collects every DQT
// table up to the start-of-scan. Non-JPEG inputs and truncated streams
// yield an empty slice, never an error.
func ExtractQuantTables(raw []byte) []QTable {
	if len(raw) < 4 || raw[0] != 0xFF || raw[1] != 0xD8 {
		return nil
	}

	var tables []QTable
	i := 2
	for i+4 <= len(raw) {
		if raw[i] != 0xFF {
			break
		}
		marker := raw[i+1]
		switch {
		case marker == 0xDA || marker == 0xD9:
			// SOS or EOI: entropy-coded data / end of image
			return tables
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		case marker == 0xFF:
			// fill byte
			i++
			continue
		}

		segLen := int(raw[i+2])<<8 | int(raw[i+3])
		if segLen < 2 || i+2+segLen > len(raw) {
			return tables
		}

		if marker == 0xDB {
			tables = append(tables, parseDQTPayload(raw[i+4:i+2+segLen])...)
		}
		i += 2 + segLen
	}
	return tables
}

// parseDQTPayload reads the tables packed inside one DQT segment.
func parseDQTPayload(payload []byte) []QTable {
	var tables []QTable
	p := 0
	for p < len(payload) {
		precision := int(payload[p] >> 4)
		id := int(payload[p] & 0x0F)
		p++

		entrySize := 1
		if precision == 1 {
			entrySize = 2
		}
		if p+64*entrySize > len(payload) {
			break
		}

		var t QTable
		t.ID = id
		t.Precision = precision
		for k := 0; k < 64; k++ {
			var v int
			if entrySize == 2 {
				v = int(payload[p])<<8 | int(payload[p+1])
			} else {
				v = int(payload[p])
			}
			p += entrySize
			row, col := zigzagOrder[k][0], zigzagOrder[k][1]
			t.Values[row][col] = v
		}
		tables = append(tables, t)
	}
	return tables
}

// zigzagOrder maps the k-th stored coefficient to its (row, col) slot.
var zigzagOrder = [64][2]int{
	{0, 0}, {0, 1}, {1, 0}, {2, 0}, {1, 1}, {0, 2}, {0, 3}, {1, 2},
	{2, 1}, {3, 0}, {4, 0}, {3, 1}, {2, 2}, {1, 3}, {0, 4}, {0, 5},
	{1, 4}, {2, 3}, {3, 2}, {4, 1}, {5, 0}, {6, 0}, {5, 1}, {4, 2},
	{3, 3}, {2, 4}, {1, 5}, {0, 6}, {0, 7}, {1, 6}, {2, 5}, {3, 4},
	{4, 3}, {5, 2}, {6, 1}, {7, 0}, {7, 1}, {6, 2}, {5, 3}, {4, 4},
	{3, 5}, {2, 6}, {1, 7}, {2, 7}, {3, 6}, {4, 5}, {5, 4}, {6, 3},
	{7, 2}, {7, 3}, {6, 4}, {5, 5}, {4, 6}, {3, 7}, {4, 7}, {5, 6},
	{6, 5}, {7, 4}, {7, 5}, {6, 6}, {5, 7}, {6, 7}, {7, 6}, {7, 7},
}
