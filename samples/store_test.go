package samples_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelvision/teachcam/samples"
)

func TestCountsMatchCaptureSequence(t *testing.T) {
	store := samples.NewStore()

	nA, nB := store.Counts()
	assert.Equal(t, 0, nA)
	assert.Equal(t, 0, nB)

	// Arbitrary interleaving: 3 A captures, 2 B captures.
	sequence := []samples.Class{
		samples.ClassA, samples.ClassB, samples.ClassA, samples.ClassA, samples.ClassB,
	}
	for i, class := range sequence {
		sample := store.Add(class, []float32{float32(i)})
		assert.Equal(t, class, sample.Class)
		assert.NotEmpty(t, sample.ID)
	}

	nA, nB = store.Counts()
	assert.Equal(t, 3, nA)
	assert.Equal(t, 2, nB)
}

func TestVectorsPreserveInsertionOrder(t *testing.T) {
	store := samples.NewStore()

	store.Add(samples.ClassB, []float32{10})
	store.Add(samples.ClassA, []float32{1})
	store.Add(samples.ClassA, []float32{2})
	store.Add(samples.ClassB, []float32{20})

	a, b := store.Vectors()
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, []float32{1}, a[0])
	assert.Equal(t, []float32{2}, a[1])
	assert.Equal(t, []float32{10}, b[0])
	assert.Equal(t, []float32{20}, b[1])
}

func TestVectorsSnapshotUnaffectedByLaterAdds(t *testing.T) {
	store := samples.NewStore()
	store.Add(samples.ClassA, []float32{1})

	a, b := store.Vectors()
	store.Add(samples.ClassA, []float32{2})
	store.Add(samples.ClassB, []float32{3})

	assert.Len(t, a, 1)
	assert.Len(t, b, 0)
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "A", samples.ClassA.String())
	assert.Equal(t, "B", samples.ClassB.String())
}
