package aggregate

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyapp/tally-server/internal/domain"
)

func drinkType() *domain.ItemType {
	return &domain.ItemType{
		Name: "Drinks",
		Options: []domain.ItemOption{
			{ID: "opt-beer", Name: "Beer", Emoji: "🍺", Points: 5},
			{ID: "opt-wine", Name: "Wine", Emoji: "🍷", Points: 8},
			{ID: "opt-water", Name: "Water", Emoji: "💧", Points: 1},
		},
	}
}

func add(optionID string, count int) *domain.Item {
	return &domain.Item{OptionID: optionID, Count: count}
}

func remove(optionID string, count int) *domain.Item {
	return &domain.Item{OptionID: optionID, Count: count, IsRemoved: true}
}

func TestAggregateNetCounts(t *testing.T) {
	items := []*domain.Item{
		add("opt-beer", 2),
		remove("opt-beer", 1),
	}

	got := Aggregate(items, drinkType())

	require.Len(t, got, 1)
	assert.Equal(t, "opt-beer", got[0].OptionID)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, 5, got[0].TotalPoints)
}

func TestAggregateDropsNonPositive(t *testing.T) {
	items := []*domain.Item{
		add("opt-beer", 2),
		remove("opt-beer", 2),
		add("opt-wine", 1),
		remove("opt-water", 3),
	}

	got := Aggregate(items, drinkType())

	require.Len(t, got, 1)
	assert.Equal(t, "opt-wine", got[0].OptionID)
	assert.Equal(t, 8, got[0].TotalPoints)
}

func TestAggregateIgnoresUnknownOptions(t *testing.T) {
	items := []*domain.Item{
		add("opt-beer", 1),
		add("opt-removed-long-ago", 4),
	}

	got := Aggregate(items, drinkType())

	require.Len(t, got, 1)
	assert.Equal(t, "opt-beer", got[0].OptionID)
}

func TestAggregateOrderInvariant(t *testing.T) {
	items := []*domain.Item{
		add("opt-beer", 3),
		remove("opt-beer", 1),
		add("opt-wine", 2),
		add("opt-water", 5),
		remove("opt-water", 2),
		add("opt-beer", 1),
	}

	want := Aggregate(items, drinkType())

	for i := 0; i < 10; i++ {
		shuffled := make([]*domain.Item, len(items))
		copy(shuffled, items)
		rand.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, want, Aggregate(shuffled, drinkType()))
	}
}

func TestAggregateStableOptionOrder(t *testing.T) {
	items := []*domain.Item{
		add("opt-water", 1),
		add("opt-beer", 1),
		add("opt-wine", 1),
	}

	got := Aggregate(items, drinkType())

	require.Len(t, got, 3)
	assert.Equal(t, "opt-beer", got[0].OptionID)
	assert.Equal(t, "opt-wine", got[1].OptionID)
	assert.Equal(t, "opt-water", got[2].OptionID)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, drinkType()))
	assert.Nil(t, Aggregate([]*domain.Item{add("opt-beer", 1)}, nil))
}

func TestTotalPoints(t *testing.T) {
	items := []*domain.Item{
		add("opt-beer", 2),
		add("opt-wine", 1),
	}

	got := Aggregate(items, drinkType())
	assert.Equal(t, 18, TotalPoints(got))
}
