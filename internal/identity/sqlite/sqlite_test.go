package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupOrCreateAllocatesSequentialIDs(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	for i, name := range []string{"alice", "bob", "carol"} {
		id, err := s.LookupOrCreate(ctx, name)
		require.NoError(t, err)
		require.Equal(t, int64(i+1), id)
	}

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestLookupOrCreateIsIdempotent(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	first, err := s.LookupOrCreate(ctx, "alice")
	require.NoError(t, err)

	second, err := s.LookupOrCreate(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, first, second)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "identity.db")
	ctx := context.Background()

	s, err := New(dbPath)
	require.NoError(t, err)

	aliceID, err := s.LookupOrCreate(ctx, "alice")
	require.NoError(t, err)
	bobID, err := s.LookupOrCreate(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	id, err := reopened.LookupOrCreate(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, aliceID, id)

	id, err = reopened.LookupOrCreate(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, bobID, id)

	n, err := reopened.CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestLookupOrCreateConcurrentSameName(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	const callers = 8
	ids := make(chan int64, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			id, err := s.LookupOrCreate(ctx, "alice")
			ids <- id
			errs <- err
		}()
	}

	var first int64
	for i := 0; i < callers; i++ {
		require.NoError(t, <-errs)
		id := <-ids
		if i == 0 {
			first = id
			continue
		}
		require.Equal(t, first, id)
	}

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
