package matrix

import "bytes"

// MarshalRows serializes each row's Roaring bitmap to its portable binary
// form, used by pkg/storage to persist the committed matrix only (spec §6:
// "the delta matrix's on-disk form must be the committed matrix only").
func (m *Matrix) MarshalRows() ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.rows))
	for i, r := range m.rows {
		var buf bytes.Buffer
		if _, err := r.WriteTo(&buf); err != nil {
			return nil, err
		}
		out[i] = buf.Bytes()
	}
	return out, nil
}

// UnmarshalRows rebuilds a Matrix of the given dimensions from row blobs
// produced by MarshalRows.
func UnmarshalRows(nrows, ncols int, blobs [][]byte) (*Matrix, error) {
	m := New(nrows, ncols)
	for i, blob := range blobs {
		if i >= nrows {
			break
		}
		if len(blob) == 0 {
			continue
		}
		if _, err := m.rows[i].ReadFrom(bytes.NewReader(blob)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
