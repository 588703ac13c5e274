// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embed

import (
	"context"
	"math"
	"testing"
)

func TestCosineBounds(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{-1, 0, 0},
		{0.5, 0.5, 0.7071},
		{1e-8, 1e-8, 1e-8},
	}
	for i, a := range vectors {
		for j, b := range vectors {
			sim := Cosine(a, b)
			if sim < -1 || sim > 1 {
				t.Errorf("Cosine(v%d, v%d) = %v, out of [-1, 1]", i, j, sim)
			}
			if math.IsNaN(sim) {
				t.Errorf("Cosine(v%d, v%d) is NaN", i, j)
			}
		}
	}
}

func TestCosineZeroVector(t *testing.T) {
	zero := []float32{0, 0, 0}
	other := []float32{1, 2, 3}

	if sim := Cosine(zero, other); sim != 0 {
		t.Errorf("Cosine(zero, v) = %v, want 0", sim)
	}
	if sim := Cosine(other, zero); sim != 0 {
		t.Errorf("Cosine(v, zero) = %v, want 0", sim)
	}
	if sim := Cosine(zero, zero); sim != 0 {
		t.Errorf("Cosine(zero, zero) = %v, want 0", sim)
	}
}

func TestCosineMismatchedDimensions(t *testing.T) {
	if sim := Cosine([]float32{1, 2}, []float32{1, 2, 3}); sim != 0 {
		t.Errorf("mismatched dimensions = %v, want 0", sim)
	}
	if sim := Cosine(nil, nil); sim != 0 {
		t.Errorf("nil vectors = %v, want 0", sim)
	}
}

func TestCosineIdentical(t *testing.T) {
	v := []float32{0.3, -0.4, 0.5}
	sim := Cosine(v, v)
	if math.Abs(sim-1) > 1e-9 {
		t.Errorf("Cosine(v, v) = %v, want 1", sim)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	norm := l2Norm(v)
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("norm after Normalize = %v, want 1", norm)
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("Normalize must leave the zero vector untouched")
	}
}

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder()
	a, err := e.Embed(context.Background(), "function helper in src")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, _ := e.Embed(context.Background(), "function helper in src")

	if len(a) != Dimensions {
		t.Fatalf("dimensions = %d, want %d", len(a), Dimensions)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("identical text must embed identically")
		}
	}

	norm := l2Norm(a)
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("embedding norm = %v, want unit length", norm)
	}
}

func TestLocalEmbedderOverlapRaisesSimilarity(t *testing.T) {
	e := NewLocalEmbedder()
	base, _ := e.Embed(context.Background(), "authentication login password check")
	near, _ := e.Embed(context.Background(), "authentication login token check")
	far, _ := e.Embed(context.Background(), "matrix transpose eigenvalue solver")

	if Cosine(base, near) <= Cosine(base, far) {
		t.Error("token overlap should rank nearer than disjoint text")
	}
}
