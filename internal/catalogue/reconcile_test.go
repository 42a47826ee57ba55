package catalogue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rating(t *testing.T, v float64) Fields {
	t.Helper()
	f := Fields{}
	require.NoError(t, f.Set(FieldRating, v))
	return f
}

func TestApply(t *testing.T) {
	base := []Item{
		{ID: 1, Title: "Heat", Rating: 3},
		{ID: 2, Title: "Ran", Rating: 5},
	}

	tests := []struct {
		name      string
		items     []Item
		changes   []Change
		wantIDs   []int64
		wantStats ApplyStats
	}{
		{
			name:      "update of missing id is a no-op",
			items:     nil,
			changes:   []Change{NewUpdate(1, rating(t, 5))},
			wantIDs:   []int64{},
			wantStats: ApplyStats{},
		},
		{
			name:      "add appends",
			items:     base,
			changes:   []Change{NewAdd(Item{ID: 3, Title: "Alien"})},
			wantIDs:   []int64{1, 2, 3},
			wantStats: ApplyStats{Added: 1},
		},
		{
			name:      "add of existing id is skipped",
			items:     base,
			changes:   []Change{NewAdd(Item{ID: 2, Title: "Ran again"})},
			wantIDs:   []int64{1, 2},
			wantStats: ApplyStats{},
		},
		{
			name:      "add without data is skipped",
			items:     base,
			changes:   []Change{{Type: ChangeAdd}},
			wantIDs:   []int64{1, 2},
			wantStats: ApplyStats{},
		},
		{
			name:      "delete removes the item",
			items:     base,
			changes:   []Change{NewDelete(1)},
			wantIDs:   []int64{2},
			wantStats: ApplyStats{Deleted: 1},
		},
		{
			name:      "delete of missing id is skipped",
			items:     base,
			changes:   []Change{NewDelete(9)},
			wantIDs:   []int64{1, 2},
			wantStats: ApplyStats{},
		},
		{
			name:  "changes apply in order",
			items: base,
			changes: []Change{
				NewUpdate(3, rating(t, 4)),
				NewAdd(Item{ID: 3, Title: "Alien"}),
				NewUpdate(3, rating(t, 4)),
				NewDelete(1),
				NewAdd(Item{ID: 1, Title: "Heat"}),
			},
			wantIDs:   []int64{2, 3, 1},
			wantStats: ApplyStats{Added: 2, Updated: 1, Deleted: 1},
		},
		{
			name:      "unknown change type is ignored",
			items:     base,
			changes:   []Change{{Type: "rename", ID: 1}},
			wantIDs:   []int64{1, 2},
			wantStats: ApplyStats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Apply(tt.items, tt.changes)
			require.NotNil(t, result.Items)
			assert.Equal(t, tt.wantIDs, ids(result.Items))
			assert.Equal(t, tt.wantStats, result.Stats)
		})
	}
}

func TestApplyUpdateIsShallowMerge(t *testing.T) {
	items := decodeItems(t, `[{"id":7,"title":"Stalker","rating":2,"review":"slow","overview":"The Zone","genre_ids":[18,878]}]`)

	updates := Fields{}
	require.NoError(t, updates.Set(FieldRating, 5))
	require.NoError(t, updates.Set("tagline", "A wish granted"))

	result := Apply(items, []Change{NewUpdate(7, updates)})
	require.Len(t, result.Items, 1)

	got := result.Items[0]
	assert.Equal(t, 5.0, got.Rating)
	assert.Equal(t, "slow", got.Review)
	assert.Equal(t, "Stalker", got.Title)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":7,"title":"Stalker","rating":5,"review":"slow",
		"overview":"The Zone","genre_ids":[18,878],"tagline":"A wish granted"
	}`, string(data))
}

func TestApplyAddIsIdempotentInResult(t *testing.T) {
	items := []Item{{ID: 1}}
	add := NewAdd(Item{ID: 2, Title: "Solaris"})

	first := Apply(items, []Change{add})
	assert.Len(t, first.Items, 2)
	assert.Contains(t, ids(first.Items), int64(2))
	assert.Equal(t, 1, first.Stats.Added)

	second := Apply(first.Items, []Change{add})
	assert.Equal(t, ids(first.Items), ids(second.Items))
	assert.Equal(t, 0, second.Stats.Added)
}

func TestApplyDeleteIsIdempotentInResult(t *testing.T) {
	items := []Item{{ID: 1}, {ID: 2}}

	first := Apply(items, []Change{NewDelete(2)})
	assert.Equal(t, 1, first.Stats.Deleted)

	second := Apply(first.Items, []Change{NewDelete(2)})
	assert.Equal(t, ids(first.Items), ids(second.Items))
	assert.Equal(t, 0, second.Stats.Deleted)
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	items := []Item{{ID: 1, Rating: 1}, {ID: 2, Rating: 2}}

	Apply(items, []Change{NewUpdate(1, rating(t, 4)), NewDelete(2)})

	assert.Equal(t, []int64{1, 2}, ids(items))
	assert.Equal(t, 1.0, items[0].Rating)
}

func TestChangeJSON(t *testing.T) {
	var changes []Change
	err := json.Unmarshal([]byte(`[
		{"type":"add","data":{"id":5,"title":"Paprika","media_type":"movie"}},
		{"type":"update","id":5,"updates":{"rating":4}},
		{"type":"delete","id":5}
	]`), &changes)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, ChangeAdd, changes[0].Type)
	require.NotNil(t, changes[0].Data)
	assert.Equal(t, "Paprika", changes[0].Data.Title)
	assert.Equal(t, int64(5), changes[1].ID)
	assert.JSONEq(t, "4", string(changes[1].Updates[FieldRating]))

	result := Apply(nil, changes)
	assert.Empty(t, result.Items)
	assert.Equal(t, ApplyStats{Added: 1, Updated: 1, Deleted: 1}, result.Stats)
	assert.Equal(t, 3, result.Stats.Total())
}
