package delta

import "github.com/orneryd/deltagraph/pkg/matrix"

// Multiply computes out = F · (M ∪ M⁺) \ M⁻ without materializing the
// combined matrix — the hard kernel of spec §4.B, ported step for step
// from delta_multiply() in original_source/delta_matrices/delta_matrices.c:
//
//  1. Out ← F·M using the any-pair boolean semiring. M is never touched.
//  2. If nvals(M⁺) > 0: P ← F·M⁺; else P is empty.
//  3. If nvals(M⁻) > 0: N ← F·M⁻; else N is empty.
//  4. Combine: both P and N nonempty → Out ← (Out ⊕ P) masked by
//     complement(structure(N)) in one fused step, applying N strictly
//     after P so a deletion intersecting a fresh addition still wins
//     (matches the logical identity (M ∪ M⁺) \ M⁻). Only P nonempty →
//     Out ← Out ⊕ P. Only N nonempty → Out ← Out masked by
//     complement(structure(N)). Neither → leave Out as step 1 produced it.
//
// If F has no rows set, Out is empty and only a cheap NVals check is paid.
func (d *DeltaMatrix) Multiply(out *matrix.Matrix, f *matrix.Matrix) error {
	d.mu.RLock()
	m, mp, mn := d.m, d.mp, d.mn
	d.mu.RUnlock()

	if f.NVals() == 0 {
		out.Clear()
		return nil
	}

	// Step 1: Out <- F * M.
	if err := matrix.MxM(out, nil, matrix.Descriptor{Replace: true}, f, m); err != nil {
		return err
	}

	plusCount := mp.NVals()
	minusCount := mn.NVals()
	if plusCount == 0 && minusCount == 0 {
		return nil
	}

	var p, n *matrix.Matrix
	frows := f.NRows()
	mcols := m.NCols()

	if plusCount > 0 {
		p = matrix.New(frows, mcols)
		if err := matrix.MxM(p, nil, matrix.Descriptor{Replace: true}, f, mp); err != nil {
			return err
		}
		if p.NVals() == 0 {
			p = nil
		}
	}
	if minusCount > 0 {
		n = matrix.New(frows, mcols)
		if err := matrix.MxM(n, nil, matrix.Descriptor{Replace: true}, f, mn); err != nil {
			return err
		}
		if n.NVals() == 0 {
			n = nil
		}
	}

	switch {
	case p != nil && n != nil:
		// Out <- (Out + P) masked by complement(structure(N)), fused.
		added := matrix.New(out.NRows(), out.NCols())
		if err := matrix.EWiseAdd(added, nil, matrix.Descriptor{}, out, p); err != nil {
			return err
		}
		if err := matrix.MaskComplementApply(out, added, n); err != nil {
			return err
		}
	case p != nil:
		if err := matrix.EWiseAdd(out, nil, matrix.Descriptor{}, out, p); err != nil {
			return err
		}
	case n != nil:
		stripped := matrix.New(out.NRows(), out.NCols())
		if err := matrix.MaskComplementApply(stripped, out, n); err != nil {
			return err
		}
		if err := matrix.Copy(out, stripped); err != nil {
			return err
		}
	}
	return nil
}

// StandardMultiply computes out = F · D where D is first materialized as
// (M ∪ M⁺) \ M⁻. Used only as the reference implementation P1 (spec §8)
// checks Multiply against, and by pkg/benchmark to measure the win the
// delta form provides when |M⁺|,|M⁻| ≪ |M|.
func (d *DeltaMatrix) StandardMultiply(out *matrix.Matrix, f *matrix.Matrix) error {
	d.mu.RLock()
	m, mp, mn := d.m, d.mp, d.mn
	d.mu.RUnlock()

	combined := matrix.New(m.NRows(), m.NCols())
	if err := matrix.EWiseAdd(combined, nil, matrix.Descriptor{}, m, mp); err != nil {
		return err
	}
	if mn.NVals() > 0 {
		stripped := matrix.New(combined.NRows(), combined.NCols())
		if err := matrix.MaskComplementApply(stripped, combined, mn); err != nil {
			return err
		}
		combined = stripped
	}
	return matrix.MxM(out, nil, matrix.Descriptor{Replace: true}, f, combined)
}
