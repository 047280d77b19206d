package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

func add(t *testing.T, b *Backend, owner, label, date string) string {
	t.Helper()
	id, err := b.Add(context.Background(), types.NewRecord{OwnerID: owner, Label: label, Date: date})
	require.NoError(t, err)
	return id
}

func labels(records []types.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Label
	}
	return out
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("stores all fields", func(t *testing.T) {
		b := setupBackend(t)
		id, err := b.Add(ctx, types.NewRecord{
			OwnerID: "42",
			Label:   "Doe Jane",
			Date:    "1990-03-15",
			Group:   types.Optional("family"),
			Details: types.Optional("likes tulips"),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		got, err := b.ListByOwner(ctx, "42")
		require.NoError(t, err)
		require.Len(t, got, 1)
		r := got[0]
		assert.Equal(t, id, r.RecordID)
		assert.Equal(t, "42", r.OwnerID)
		assert.Equal(t, "Doe Jane", r.Label)
		assert.Equal(t, types.Date{Year: 1990, Month: time.March, Day: 15}, r.Date)
		require.NotNil(t, r.Group)
		assert.Equal(t, "family", *r.Group)
		require.NotNil(t, r.Details)
		assert.Equal(t, "likes tulips", *r.Details)
		assert.False(t, r.CreatedAt.IsZero())
	})

	t.Run("optional fields absent", func(t *testing.T) {
		b := setupBackend(t)
		add(t, b, "42", "Doe Jane", "1990-03-15")
		got, err := b.ListByOwner(ctx, "42")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Nil(t, got[0].Group)
		assert.Nil(t, got[0].Details)
	})

	t.Run("invalid date leaves store unchanged", func(t *testing.T) {
		b := setupBackend(t)
		_, err := b.Add(ctx, types.NewRecord{OwnerID: "42", Label: "Doe Jane", Date: "1990-02-30"})
		assert.ErrorIs(t, err, types.ErrInvalidDate)
		assert.NotErrorIs(t, err, types.ErrStorage)

		owners, err := b.ListDistinctOwners(ctx)
		require.NoError(t, err)
		assert.Empty(t, owners)
	})

	t.Run("ids are unique", func(t *testing.T) {
		b := setupBackend(t)
		a := add(t, b, "1", "A", "2000-01-01")
		c := add(t, b, "1", "A", "2000-01-01")
		assert.NotEqual(t, a, c)
	})

	t.Run("canceled context rolls back", func(t *testing.T) {
		b := setupBackend(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := b.Add(cctx, types.NewRecord{OwnerID: "1", Label: "A", Date: "2000-01-01"})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrStorage)

		got, err := b.ListByOwner(ctx, "1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestListByOwner(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	t.Run("unknown owner yields empty slice", func(t *testing.T) {
		got, err := b.ListByOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	add(t, b, "1", "Charlie", "2001-01-03")
	add(t, b, "2", "Other", "2001-01-03")
	add(t, b, "1", "Alice", "2001-01-01")
	add(t, b, "1", "Bob", "2001-01-02")

	t.Run("insertion order and owner scoping", func(t *testing.T) {
		got, err := b.ListByOwner(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, []string{"Charlie", "Alice", "Bob"}, labels(got))
	})
}

func TestDeleteByOwnerAndLabel(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record returns false and changes nothing", func(t *testing.T) {
		b := setupBackend(t)
		add(t, b, "1", "Alice", "2001-01-01")

		ok, err := b.DeleteByOwnerAndLabel(ctx, "1", "Bob")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := b.ListByOwner(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, []string{"Alice"}, labels(got))
	})

	t.Run("other owner's record is not visible", func(t *testing.T) {
		b := setupBackend(t)
		add(t, b, "1", "Alice", "2001-01-01")

		ok, err := b.DeleteByOwnerAndLabel(ctx, "2", "Alice")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := b.ListByOwner(ctx, "1")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("duplicates are removed oldest first, one per call", func(t *testing.T) {
		b := setupBackend(t)
		first := add(t, b, "1", "Alice", "2001-01-01")
		add(t, b, "1", "Bob", "2001-01-02")
		second := add(t, b, "1", "Alice", "1975-06-30")

		ok, err := b.DeleteByOwnerAndLabel(ctx, "1", "Alice")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := b.ListByOwner(ctx, "1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Bob", got[0].Label)
		assert.Equal(t, second, got[1].RecordID)
		assert.NotEqual(t, first, got[1].RecordID)
	})

	t.Run("round trip add list delete list", func(t *testing.T) {
		b := setupBackend(t)
		add(t, b, "9", "Doe Jane", "1990-03-15")

		got, err := b.ListByOwner(ctx, "9")
		require.NoError(t, err)
		assert.Equal(t, []string{"Doe Jane"}, labels(got))

		ok, err := b.DeleteByOwnerAndLabel(ctx, "9", "Doe Jane")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err = b.ListByOwner(ctx, "9")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestListDistinctOwners(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	owners, err := b.ListDistinctOwners(ctx)
	require.NoError(t, err)
	assert.NotNil(t, owners)
	assert.Empty(t, owners)

	add(t, b, "B", "x", "2000-01-01")
	add(t, b, "A", "y", "2000-01-01")
	add(t, b, "B", "z", "2000-01-01")
	add(t, b, "C", "w", "2000-01-01")

	owners, err = b.ListDistinctOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, owners)

	ok, err := b.DeleteByOwnerAndLabel(ctx, "C", "w")
	require.NoError(t, err)
	require.True(t, ok)

	owners, err = b.ListDistinctOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, owners)
}

func TestMatchingToday(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	add(t, b, "1", "2020", "2020-03-15")
	add(t, b, "1", "1999", "1999-03-15")
	add(t, b, "1", "next day", "2020-03-16")
	add(t, b, "1", "other month", "2020-04-15")
	add(t, b, "2", "other owner", "2020-03-15")
	add(t, b, "1", "leap", "2000-02-29")

	tests := []struct {
		name  string
		owner string
		day   types.MonthDay
		want  []string
	}{
		{
			name:  "year agnostic",
			owner: "1",
			day:   types.MonthDay{Month: time.March, Day: 15},
			want:  []string{"2020", "1999"},
		},
		{
			name:  "other owner only sees own",
			owner: "2",
			day:   types.MonthDay{Month: time.March, Day: 15},
			want:  []string{"other owner"},
		},
		{
			name:  "no match",
			owner: "1",
			day:   types.MonthDay{Month: time.December, Day: 25},
			want:  []string{},
		},
		{
			name:  "leap day matches feb 29",
			owner: "1",
			day:   types.MonthDay{Month: time.February, Day: 29},
			want:  []string{"leap"},
		},
		{
			name:  "leap day does not match feb 28",
			owner: "1",
			day:   types.MonthDay{Month: time.February, Day: 28},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.MatchingToday(ctx, tt.owner, tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.want, labels(got))
		})
	}
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	add(t, b, "seed", "seed", "2000-01-01")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := b.Add(ctx, types.NewRecord{OwnerID: "w", Label: "x", Date: "2000-01-01"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := b.ListDistinctOwners(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := b.ListByOwner(ctx, "w")
	require.NoError(t, err)
	assert.Len(t, got, 8)
}
