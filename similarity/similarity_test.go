package similarity

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upsert(t *testing.T, x Index, id string, v ...float32) {
	t.Helper()
	require.NoError(t, x.Upsert(Entry{TicketID: id, Vector: v, Model: "m1", Fingerprint: "fp"}))
}

func TestNearestOrdersAndExcludesSelf(t *testing.T) {
	x := NewLinearIndex()
	upsert(t, x, "T1", 1, 0)
	upsert(t, x, "T2", 1, 0.1)
	upsert(t, x, "T3", 0, 1)
	upsert(t, x, "T0", 1, 0.1) // ties with T2

	res, err := x.Nearest("T1", 0, -1)
	require.NoError(t, err)

	ids := make([]string, len(res.Matches))
	for i, m := range res.Matches {
		ids[i] = m.TicketID
	}
	assert.Equal(t, []string{"T0", "T2", "T3"}, ids)
	assert.Equal(t, res.Matches[0].Similarity, res.Matches[1].Similarity)
	assert.InDelta(t, 0, res.Matches[2].Similarity, 1e-9)
	assert.Empty(t, res.Unindexed)
}

func TestNearestThresholdAndLimit(t *testing.T) {
	x := NewLinearIndex()
	upsert(t, x, "T2", 1, 1, 0)
	upsert(t, x, "T3", 1, 0.9, 0.1)
	upsert(t, x, "T4", 0, 0, 1)

	res, err := x.Nearest("T2", 1, 0.5)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "T3", res.Matches[0].TicketID)

	res, err = x.Nearest("T2", 5, 0.999)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestNearestWithFewerThanTwoEmbeddings(t *testing.T) {
	x := NewLinearIndex()
	res, err := x.Nearest("T1", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	upsert(t, x, "T1", 1, 0)
	res, err = x.Nearest("T1", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	upsert(t, x, "T2", 1, 0)
	x.SetFingerprint("T2", "edited")
	res, err = x.Nearest("T1", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, []string{"T2"}, res.Unindexed)
}

func TestNearestReportsUnindexed(t *testing.T) {
	x := NewLinearIndex()
	upsert(t, x, "T1", 1, 0)
	upsert(t, x, "T2", 1, 0)
	upsert(t, x, "T3", 1, 0)
	x.SetFingerprint("T3", "edited")
	require.NoError(t, x.Upsert(Entry{TicketID: "T4", Vector: []float32{1, 0}, Model: "other"}))
	require.NoError(t, x.Upsert(Entry{TicketID: "T5", Vector: []float32{1, 0, 0}, Model: "m1"}))

	res, err := x.Nearest("T1", 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "T2", res.Matches[0].TicketID)
	assert.Equal(t, []string{"T3", "T4", "T5"}, res.Unindexed)
}

func TestNearestQueryNotIndexed(t *testing.T) {
	x := NewLinearIndex()
	upsert(t, x, "T1", 1, 0)
	upsert(t, x, "T2", 1, 0)
	upsert(t, x, "T3", 1, 0)
	x.SetFingerprint("T3", "edited")

	_, err := x.Nearest("T3", 5, 0)
	assert.True(t, errors.Is(err, ErrNotIndexed))

	_, err = x.Nearest("missing", 5, 0)
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestUpsertReplacesAndClearsStale(t *testing.T) {
	x := NewLinearIndex()
	upsert(t, x, "T1", 1, 0)
	upsert(t, x, "T2", 0, 1)
	x.SetFingerprint("T2", "fp2")
	require.NoError(t, x.Upsert(Entry{TicketID: "T2", Vector: []float32{1, 0}, Model: "m1", Fingerprint: "fp2"}))

	res, err := x.Nearest("T1", 1, 0.9)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.InDelta(t, 1, res.Matches[0].Similarity, 1e-9)
	assert.Equal(t, 2, x.Len())

	x.Remove("T2")
	assert.Equal(t, 1, x.Len())
}

func TestStalenessIgnoresArrivalOrder(t *testing.T) {
	// An embedding computed from old content must stay stale even when it
	// reaches the index after the new fingerprint does.
	x := NewLinearIndex()
	upsert(t, x, "T1", 1, 0)
	upsert(t, x, "T2", 1, 0)
	upsert(t, x, "T3", 1, 0)

	x.SetFingerprint("T3", "fp2")
	require.NoError(t, x.Upsert(Entry{TicketID: "T3", Vector: []float32{1, 0}, Model: "m1", Fingerprint: "fp"}))

	res, err := x.Nearest("T1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"T3"}, res.Unindexed)

	// Restoring the old content makes the same embedding current again.
	x.SetFingerprint("T3", "fp")
	res, err = x.Nearest("T1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.Empty(t, res.Unindexed)
}

func TestUpsertCopiesVector(t *testing.T) {
	x := NewLinearIndex()
	v := []float32{1, 0}
	upsert(t, x, "T1", v...)
	upsert(t, x, "T2", 1, 0)
	v[0], v[1] = 0, 1

	res, err := x.Nearest("T1", 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, res.Matches[0].Similarity, 1e-9)
}

func TestUpsertRejectsEmpty(t *testing.T) {
	x := NewLinearIndex()
	assert.Error(t, x.Upsert(Entry{TicketID: "", Vector: []float32{1}}))
	assert.Error(t, x.Upsert(Entry{TicketID: "T1"}))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1, Cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, -1, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, Cosine([]float32{1, 0}, []float32{1, 1}), 1e-6)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 1}))
}

func TestConcurrentQueriesAndWrites(t *testing.T) {
	x := NewLinearIndex()
	for i := 0; i < 20; i++ {
		upsert(t, x, fmt.Sprintf("T%02d", i), 1, float32(i))
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = x.Upsert(Entry{TicketID: fmt.Sprintf("T%02d", (w*5+i)%20), Vector: []float32{float32(i), 1}, Model: "m1", Fingerprint: "fp"})
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				res, err := x.Nearest("T00", 3, -1)
				if err != nil {
					t.Error(err)
					return
				}
				if len(res.Matches) != 3 {
					t.Errorf("got %d matches, want 3", len(res.Matches))
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestUpsertRejectsNonFiniteVectors(t *testing.T) {
	x := NewLinearIndex()
	upsert(t, x, "A", 1, 0)
	upsert(t, x, "C", 1, 0.1)

	for _, v := range [][]float32{
		{float32(math.NaN()), 1},
		{float32(math.Inf(1)), 1},
		{0, float32(math.Inf(-1))},
	} {
		err := x.Upsert(Entry{TicketID: "B", Vector: v, Model: "m1", Fingerprint: "fp"})
		assert.ErrorIs(t, err, ErrInvalidVector, "%v", v)
	}

	res, err := x.Nearest("A", 5, 0.5)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "C", res.Matches[0].TicketID)
	assert.InDelta(t, 0.995, res.Matches[0].Similarity, 1e-3)
}

func TestNearestVector(t *testing.T) {
	x := NewLinearIndex()
	upsert(t, x, "T1", 1, 0)
	upsert(t, x, "T2", 0.9, 0.1)
	upsert(t, x, "T3", 0, 1)
	require.NoError(t, x.Upsert(Entry{TicketID: "T4", Vector: []float32{1, 0}, Model: "other", Fingerprint: "fp"}))
	upsert(t, x, "T5", 1, 0)
	x.SetFingerprint("T5", "fp2")

	res, err := x.NearestVector([]float32{1, 0}, "m1", 2, 0.5)
	require.NoError(t, err)
	ids := make([]string, len(res.Matches))
	for i, m := range res.Matches {
		ids[i] = m.TicketID
	}
	assert.Equal(t, []string{"T1", "T2"}, ids)
	assert.InDelta(t, 1, res.Matches[0].Similarity, 1e-9)
	assert.Equal(t, []string{"T4", "T5"}, res.Unindexed)

	res, err = x.NearestVector([]float32{0, 0}, "m1", 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	_, err = x.NearestVector([]float32{float32(math.NaN()), 0}, "m1", 5, 0)
	assert.ErrorIs(t, err, ErrInvalidVector)
	_, err = x.NearestVector(nil, "m1", 5, 0)
	assert.ErrorIs(t, err, ErrInvalidVector)
}
