// Package samples holds the labeled feature vectors captured during a
// teaching session. The store is in-memory only: samples grow monotonically
// and are cleared by process restart, never individually deleted.
package samples

import (
	"sync"

	"github.com/google/uuid"
)

// Class is one of the two user-defined classes.
type Class int

const (
	ClassA Class = iota
	ClassB
)

func (c Class) String() string {
	if c == ClassA {
		return "A"
	}
	return "B"
}

// Sample is one captured, embedded, class-labeled feature vector. Immutable
// once stored.
type Sample struct {
	ID     string
	Class  Class
	Vector []float32
}

// Store keeps two insertion-ordered buckets of samples, one per class.
type Store struct {
	mu sync.RWMutex
	a  []Sample
	b  []Sample
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add appends a sample to the bucket for class. The vector is stored as
// given; no dimensionality check happens here, the extractor's fixed output
// shape is trusted.
func (s *Store) Add(class Class, vector []float32) Sample {
	sample := Sample{
		ID:     uuid.New().String(),
		Class:  class,
		Vector: vector,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if class == ClassA {
		s.a = append(s.a, sample)
	} else {
		s.b = append(s.b, sample)
	}
	return sample
}

// Counts returns the number of samples per class.
func (s *Store) Counts() (nA, nB int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.a), len(s.b)
}

// Vectors snapshots the per-class feature vectors in insertion order. The
// returned slices share backing arrays with the stored vectors, which are
// immutable by convention.
func (s *Store) Vectors() (a, b [][]float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a = make([][]float32, len(s.a))
	for i, smp := range s.a {
		a[i] = smp.Vector
	}
	b = make([][]float32, len(s.b))
	for i, smp := range s.b {
		b[i] = smp.Vector
	}
	return a, b
}
