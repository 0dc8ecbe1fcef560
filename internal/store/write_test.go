package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilesync/internal/profile"
	"github.com/roach88/profilesync/internal/testutil"
)

func TestUpsert_ScenarioJoDoe(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()

	jo, err := profile.New("a", "Jo Doe", 30, "NYC", "https://x/a.jpg")
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []profile.Profile{jo}))

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, profile.DecisionNone, all[0].Decision)
	assert.Equal(t, "Jo Doe", all[0].FullName)
	assert.Equal(t, 30, all[0].Age)
	assert.Equal(t, "https://x/a.jpg", all[0].ImageURLString())
	firstWrite := all[0].UpdatedAt

	ok, err := s.SetDecision(ctx, "a", profile.DecisionAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	all, err = s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, profile.DecisionAccepted, all[0].Decision)
	assert.True(t, all[0].UpdatedAt.After(firstWrite), "updatedAt should advance")

	older, err := profile.New("a", "Jo Doe", 31, "NYC", "https://x/a.jpg")
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []profile.Profile{older}))

	all, err = s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 31, all[0].Age)
	assert.Equal(t, profile.DecisionAccepted, all[0].Decision)
}

func TestUpsert_UniquenessAcrossOverlappingBatches(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()

	batches := [][]string{
		{"a", "b", "c"},
		{"b", "c", "d"},
		{"a", "d", "e"},
		{"e", "e", "a"}, // repeated id inside one batch
	}
	for i, ids := range batches {
		batch := make([]profile.Profile, len(ids))
		for j, id := range ids {
			batch[j] = testutil.Profile(t, id, fmt.Sprintf("Name %s", id), 20+i, "City")
		}
		require.NoError(t, s.Upsert(ctx, batch))
	}

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, sp := range all {
		seen[sp.ID]++
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1, "e": 1}, seen)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestUpsert_PreservesEveryDecision(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Upsert(ctx, []profile.Profile{
		testutil.Profile(t, "a", "Amy", 20, "Oslo"),
		testutil.Profile(t, "b", "Bob", 21, "Rome"),
		testutil.Profile(t, "c", "Cat", 22, "Lima"),
	}))
	_, err := s.SetDecision(ctx, "a", profile.DecisionAccepted)
	require.NoError(t, err)
	_, err = s.SetDecision(ctx, "b", profile.DecisionDeclined)
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, []profile.Profile{
		testutil.Profile(t, "a", "Amy Updated", 30, "Bergen"),
		testutil.Profile(t, "b", "Bob Updated", 31, "Milan"),
		testutil.Profile(t, "c", "Cat Updated", 32, "Cusco"),
	}))

	want := map[string]struct {
		name     string
		city     string
		decision profile.Decision
	}{
		"a": {"Amy Updated", "Bergen", profile.DecisionAccepted},
		"b": {"Bob Updated", "Milan", profile.DecisionDeclined},
		"c": {"Cat Updated", "Cusco", profile.DecisionNone},
	}

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, sp := range all {
		w := want[sp.ID]
		assert.Equal(t, w.name, sp.FullName, sp.ID)
		assert.Equal(t, w.city, sp.City, sp.ID)
		assert.Equal(t, w.decision, sp.Decision, sp.ID)
	}
}

func TestUpsert_EmptyBatch(t *testing.T) {
	s, _ := createTestStore(t)
	require.NoError(t, s.Upsert(t.Context(), nil))

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpsert_CancelledContextAppliesNothing(t *testing.T) {
	s, _ := createTestStore(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := s.Upsert(ctx, []profile.Profile{
		testutil.Profile(t, "a", "Amy", 20, "Oslo"),
		testutil.Profile(t, "b", "Bob", 21, "Rome"),
	})
	require.Error(t, err)
	assert.True(t, IsStoreError(err))

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpsert_FailureRollsBackWholeBatch(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Upsert(ctx, []profile.Profile{
		testutil.Profile(t, "a", "Amy", 20, "Oslo"),
	}))

	// Fail the last insert inside the transaction.
	_, err := s.db.Exec(`
		CREATE TRIGGER reject_z BEFORE INSERT ON profiles
		WHEN NEW.id = 'z'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END
	`)
	require.NoError(t, err)

	err = s.Upsert(ctx, []profile.Profile{
		testutil.Profile(t, "a", "Amy Changed", 99, "Oslo"),
		testutil.Profile(t, "b", "Bob", 21, "Rome"),
		testutil.Profile(t, "z", "Zed", 40, "Kyiv"),
	})
	require.Error(t, err)
	assert.True(t, IsStoreError(err))

	all, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Amy", all[0].FullName)
	assert.Equal(t, 20, all[0].Age)
}

func TestUpsert_InvalidProfileRejectsBatch(t *testing.T) {
	negativeAge := testutil.Profile(t, "z", "Zed", 40, "Kyiv")
	negativeAge.Age = -5

	tests := []struct {
		name string
		bad  profile.Profile
		want error
	}{
		{"nil image url", profile.Profile{ID: "b", FullName: "Bob"}, profile.ErrInvalidURL},
		{"empty id", profile.Profile{FullName: "Nobody", ImageURL: negativeAge.ImageURL}, profile.ErrEmptyID},
		{"negative age", negativeAge, profile.ErrNegativeAge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := createTestStore(t)
			ctx := t.Context()
			require.NoError(t, s.Upsert(ctx, []profile.Profile{
				testutil.Profile(t, "a", "Amy", 20, "Oslo"),
			}))

			err := s.Upsert(ctx, []profile.Profile{
				testutil.Profile(t, "c", "Cal", 33, "Rome"),
				tt.bad,
			})
			require.Error(t, err)
			assert.True(t, IsStoreError(err))
			assert.ErrorIs(t, err, tt.want)

			// The cache stays readable and unchanged.
			all, err := s.FetchAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "a", all[0].ID)
		})
	}
}

func TestSetDecision_UnknownIDIsNoop(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Upsert(ctx, []profile.Profile{testutil.Profile(t, "a", "Amy", 20, "Oslo")}))
	before, err := s.FetchAll(ctx)
	require.NoError(t, err)

	ok, err := s.SetDecision(ctx, "missing", profile.DecisionAccepted)
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetDecision_InvalidDecision(t *testing.T) {
	s, _ := createTestStore(t)
	require.NoError(t, s.Upsert(t.Context(), []profile.Profile{testutil.Profile(t, "a", "Amy", 20, "Oslo")}))

	_, err := s.SetDecision(t.Context(), "a", profile.Decision("maybe"))
	require.Error(t, err)
	assert.True(t, IsStoreError(err))

	sp, err := s.Get(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, profile.DecisionNone, sp.Decision)
}

func TestSetDecision_OnlyTouchesDecisionAndUpdatedAt(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Upsert(ctx, []profile.Profile{testutil.Profile(t, "a", "Amy", 20, "Oslo")}))
	before, err := s.Get(ctx, "a")
	require.NoError(t, err)

	_, err = s.SetDecision(ctx, "a", profile.DecisionDeclined)
	require.NoError(t, err)

	after, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, before.Profile, after.Profile)
	assert.Equal(t, profile.DecisionDeclined, after.Decision)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestDeleteAll(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Upsert(ctx, []profile.Profile{
		testutil.Profile(t, "a", "Amy", 20, "Oslo"),
		testutil.Profile(t, "b", "Bob", 21, "Rome"),
	}))

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	n, err = s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRemoveDuplicates_KeepsLatestUpdatedAt(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()
	dropUniqueIndex(t, s)

	insertRaw(t, s, "a", "Amy v1", 20, "none", 100)
	insertRaw(t, s, "a", "Amy v3", 22, "accepted", 300)
	insertRaw(t, s, "a", "Amy v2", 21, "declined", 200)
	insertRaw(t, s, "b", "Bob", 30, "none", 150)
	require.Equal(t, 3, rowCount(t, s, "a"))

	removed, err := s.RemoveDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	assert.Equal(t, 1, rowCount(t, s, "a"))
	assert.Equal(t, 1, rowCount(t, s, "b"))

	sp, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Amy v3", sp.FullName)
	assert.Equal(t, profile.DecisionAccepted, sp.Decision)

	// Idempotent: second call is a no-op.
	before, err := s.FetchAll(ctx)
	require.NoError(t, err)
	removed, err = s.RemoveDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
	after, err := s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRemoveDuplicates_TieKeepsLastInserted(t *testing.T) {
	s, _ := createTestStore(t)
	dropUniqueIndex(t, s)

	insertRaw(t, s, "a", "First", 20, "none", 100)
	insertRaw(t, s, "a", "Second", 20, "none", 100)

	removed, err := s.RemoveDuplicates(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	sp, err := s.Get(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Second", sp.FullName)
}

func TestRemoveDuplicates_CleanStoreIsNoop(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := t.Context()

	removed, err := s.RemoveDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	require.NoError(t, s.Upsert(ctx, []profile.Profile{testutil.Profile(t, "a", "Amy", 20, "Oslo")}))
	removed, err = s.RemoveDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestUniqueIndex_RejectsRawDuplicate(t *testing.T) {
	s, _ := createTestStore(t)
	insertRaw(t, s, "a", "Amy", 20, "none", 100)

	_, err := s.db.Exec(`
		INSERT INTO profiles (id, full_name, age, city, image_url, decision, updated_at)
		VALUES ('a', 'Amy Again', 20, 'NYC', 'https://x/a.jpg', 'none', 200)
	`)
	assert.Error(t, err)
}
