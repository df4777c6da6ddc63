package matrix

import "github.com/RoaringBitmap/roaring/v2"

// Descriptor requests the GraphBLAS-style modifiers spec §4.A calls out:
// a structural mask (only touch positions where the mask has an entry),
// an optional complement of that mask, whether the output replaces its
// prior contents or accumulates into them, and whether an input is used
// transposed without materializing the transpose.
type Descriptor struct {
	// MaskComplement, when a mask is supplied, restricts the operation to
	// positions where the mask does NOT have an entry.
	MaskComplement bool
	// Replace clears the output's existing pattern before writing. When
	// false, MxM ORs its result into whatever the output already held (the
	// GraphBLAS default accumulate-via-eWiseAdd shape). EWiseAdd and
	// EWiseMult ignore Replace and always overwrite the output.
	Replace bool
	// TransposeFirst applies the multiply/elementwise op as if its first
	// operand were transposed, without allocating a transposed copy.
	TransposeFirst bool
}

// maskAllows reports whether position (i,j) passes the given mask/descriptor.
func maskAllows(mask *Matrix, desc Descriptor, i, j int) bool {
	if mask == nil {
		return true
	}
	present := mask.rows[i].Contains(uint32(j))
	if desc.MaskComplement {
		return !present
	}
	return present
}

// MxM computes out = A * B (optionally Aᵀ * B when desc.TransposeFirst) over
// the any-pair boolean semiring: out[i][k] = OR_j (A[i][j] AND B[j][k]).
// mask, if non-nil, restricts which output cells may be written, subject to
// desc.MaskComplement; desc.Replace clears out first.
//
// Mirrors GrB_mxm(C, mask, accum, GxB_ANY_PAIR_BOOL, A, B, desc) from the
// matrix primitive's contract (spec §4.A), with accum fixed to logical OR
// (the only accumulation this module ever needs).
func MxM(out *Matrix, mask *Matrix, desc Descriptor, a, b *Matrix) error {
	arows, acols := a.nrows, a.ncols
	if desc.TransposeFirst {
		arows, acols = acols, arows
	}
	if acols != b.nrows {
		return ErrDimensionMismatch
	}
	if out.nrows != arows || out.ncols != b.ncols {
		return ErrDimensionMismatch
	}
	a.mu.RLock()
	b.mu.RLock()
	if mask != nil {
		mask.mu.RLock()
	}
	result := make([]*roaring.Bitmap, arows)
	for i := range result {
		acc := roaring.New()
		var colsOfI *roaring.Bitmap
		if desc.TransposeFirst {
			colsOfI = columnAsBitmap(a, i)
		} else {
			colsOfI = a.rows[i]
		}
		it := colsOfI.Iterator()
		for it.HasNext() {
			j := it.Next()
			acc.Or(b.rows[j])
		}
		if mask != nil {
			filterByMask(acc, mask.rows[i], desc.MaskComplement)
		}
		result[i] = acc
	}
	if mask != nil {
		mask.mu.RUnlock()
	}
	b.mu.RUnlock()
	a.mu.RUnlock()

	out.mu.Lock()
	defer out.mu.Unlock()
	for i := range result {
		if desc.Replace || out.rows[i] == nil {
			out.rows[i] = result[i]
		} else {
			out.rows[i].Or(result[i])
		}
	}
	return nil
}

// columnAsBitmap materializes column i of m as a bitmap of row indices
// (used only to support TransposeFirst without a persistent transposed copy).
func columnAsBitmap(m *Matrix, col int) *roaring.Bitmap {
	b := roaring.New()
	for row, r := range m.rows {
		if r.Contains(uint32(col)) {
			b.Add(uint32(row))
		}
	}
	return b
}

func filterByMask(acc *roaring.Bitmap, maskRow *roaring.Bitmap, complement bool) {
	if complement {
		acc.AndNot(maskRow)
	} else {
		acc.And(maskRow)
	}
}

// EWiseAdd computes out = A OR B (logical OR union of patterns), subject to
// an optional mask/descriptor. Used by the delta-multiply algorithm's
// "add additions, then strip deletions via a complement mask" fused step.
func EWiseAdd(out *Matrix, mask *Matrix, desc Descriptor, a, b *Matrix) error {
	if a.nrows != b.nrows || a.ncols != b.ncols || out.nrows != a.nrows || out.ncols != a.ncols {
		return ErrDimensionMismatch
	}
	a.mu.RLock()
	b.mu.RLock()
	if mask != nil {
		mask.mu.RLock()
	}
	result := make([]*roaring.Bitmap, a.nrows)
	for i := range result {
		acc := a.rows[i].Clone()
		acc.Or(b.rows[i])
		if mask != nil {
			filterByMask(acc, mask.rows[i], desc.MaskComplement)
		}
		result[i] = acc
	}
	if mask != nil {
		mask.mu.RUnlock()
	}
	b.mu.RUnlock()
	a.mu.RUnlock()

	out.mu.Lock()
	defer out.mu.Unlock()
	out.rows = result
	return nil
}

// EWiseMult computes out = A AND B (logical AND intersection of patterns).
func EWiseMult(out *Matrix, mask *Matrix, desc Descriptor, a, b *Matrix) error {
	if a.nrows != b.nrows || a.ncols != b.ncols || out.nrows != a.nrows || out.ncols != a.ncols {
		return ErrDimensionMismatch
	}
	a.mu.RLock()
	b.mu.RLock()
	if mask != nil {
		mask.mu.RLock()
	}
	result := make([]*roaring.Bitmap, a.nrows)
	for i := range result {
		acc := a.rows[i].Clone()
		acc.And(b.rows[i])
		if mask != nil {
			filterByMask(acc, mask.rows[i], desc.MaskComplement)
		}
		result[i] = acc
	}
	if mask != nil {
		mask.mu.RUnlock()
	}
	b.mu.RUnlock()
	a.mu.RUnlock()

	out.mu.Lock()
	defer out.mu.Unlock()
	out.rows = result
	return nil
}

// Transpose returns a new matrix equal to mᵀ.
func Transpose(m *Matrix) *Matrix {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := New(m.ncols, m.nrows)
	for i, r := range m.rows {
		it := r.Iterator()
		for it.HasNext() {
			j := it.Next()
			out.rows[j].Add(uint32(i))
		}
	}
	return out
}

// MaskComplementApply sets out[i][j] = A[i][j] for positions NOT present in
// mask, and clears out elsewhere — the "masked transpose or assign" fallback
// spec §4.B step 4 describes for the deletions-only case. It writes into a
// fresh pattern (desc.Replace is implied).
func MaskComplementApply(out *Matrix, a, mask *Matrix) error {
	if a.nrows != out.nrows || a.ncols != out.ncols || mask.nrows != a.nrows || mask.ncols != a.ncols {
		return ErrDimensionMismatch
	}
	a.mu.RLock()
	mask.mu.RLock()
	result := make([]*roaring.Bitmap, a.nrows)
	for i, r := range a.rows {
		acc := r.Clone()
		acc.AndNot(mask.rows[i])
		result[i] = acc
	}
	mask.mu.RUnlock()
	a.mu.RUnlock()

	out.mu.Lock()
	defer out.mu.Unlock()
	out.rows = result
	return nil
}

// Copy overwrites out's pattern with a's pattern (out = A), dimensions
// already agreeing. Used by delta-multiply step 1 (Out ← F·M) and wherever
// an operand must be duplicated into an existing handle.
func Copy(out, a *Matrix) error {
	if out.nrows != a.nrows || out.ncols != a.ncols {
		return ErrDimensionMismatch
	}
	a.mu.RLock()
	result := make([]*roaring.Bitmap, a.nrows)
	for i, r := range a.rows {
		result[i] = r.Clone()
	}
	a.mu.RUnlock()

	out.mu.Lock()
	defer out.mu.Unlock()
	out.rows = result
	return nil
}
