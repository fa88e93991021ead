package selector

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irt-tools/cat-service/internal/irt"
	"github.com/irt-tools/cat-service/internal/models"
)

// item2PL builds a 2PL item whose information at theta = difficulty is
// exactly a^2 / 4, so banks with known information profiles are easy to set
// up.
func item2PL(id string, position int, infoAtPeak float64) models.Item {
	return models.Item{
		ExternalID:     id,
		Position:       position,
		Discrimination: math.Sqrt(4 * infoAtPeak),
		Difficulty:     0,
	}
}

func TestMaxInfo_PicksHighestInformation(t *testing.T) {
	items := []models.Item{
		item2PL("item-a", 0, 0.5),
		item2PL("item-b", 1, 0.9),
		item2PL("item-c", 2, 0.3),
	}

	best, ok := MaxInfo(0, nil, items, irt.Model2PL, nil)
	require.True(t, ok)
	assert.Equal(t, "item-b", best.ExternalID)
}

func TestMaxInfo_SkipsAdministered(t *testing.T) {
	items := []models.Item{
		item2PL("item-a", 0, 0.5),
		item2PL("item-b", 1, 0.9),
		item2PL("item-c", 2, 0.3),
	}

	best, ok := MaxInfo(0, []string{"item-b"}, items, irt.Model2PL, nil)
	require.True(t, ok)
	assert.Equal(t, "item-a", best.ExternalID)

	best, ok = MaxInfo(0, []string{"item-b", "item-a"}, items, irt.Model2PL, nil)
	require.True(t, ok)
	assert.Equal(t, "item-c", best.ExternalID)
}

func TestMaxInfo_TieBreaksOnBankOrder(t *testing.T) {
	// Identical parameters, so information ties exactly; the earlier bank
	// position must win.
	items := []models.Item{
		item2PL("first", 0, 0.6),
		item2PL("second", 1, 0.6),
		item2PL("third", 2, 0.6),
	}

	best, ok := MaxInfo(0, nil, items, irt.Model2PL, nil)
	require.True(t, ok)
	assert.Equal(t, "first", best.ExternalID)

	best, ok = MaxInfo(0, []string{"first"}, items, irt.Model2PL, nil)
	require.True(t, ok)
	assert.Equal(t, "second", best.ExternalID)
}

func TestMaxInfo_ExhaustedBank(t *testing.T) {
	items := []models.Item{
		item2PL("item-a", 0, 0.5),
		item2PL("item-b", 1, 0.9),
	}

	best, ok := MaxInfo(0, []string{"item-a", "item-b"}, items, irt.Model2PL, nil)
	assert.False(t, ok)
	assert.Nil(t, best)
}

func TestMaxInfo_CategoryCap(t *testing.T) {
	verbal1 := item2PL("verbal-1", 0, 0.9)
	verbal1.Category = "verbal"
	verbal2 := item2PL("verbal-2", 1, 0.8)
	verbal2.Category = "verbal"
	numeric := item2PL("numeric-1", 2, 0.2)
	numeric.Category = "numeric"
	items := []models.Item{verbal1, verbal2, numeric}

	constraints := &Constraints{MaxPerCategory: map[string]int{"verbal": 1}}

	// One verbal item already given: the stronger verbal item is blocked.
	best, ok := MaxInfo(0, []string{"verbal-1"}, items, irt.Model2PL, constraints)
	require.True(t, ok)
	assert.Equal(t, "numeric-1", best.ExternalID)
}

func TestMaxInfo_ExposureCap(t *testing.T) {
	items := []models.Item{
		item2PL("overused", 0, 0.9),
		item2PL("fresh", 1, 0.5),
	}

	constraints := &Constraints{
		MaxExposureRate: 0.5,
		Administrations: map[string]int{"overused": 8},
		TotalSessions:   10,
	}

	best, ok := MaxInfo(0, nil, items, irt.Model2PL, constraints)
	require.True(t, ok)
	assert.Equal(t, "fresh", best.ExternalID)
}

func TestMaxInfo_ExposureCapDisabledWithoutStats(t *testing.T) {
	items := []models.Item{
		item2PL("overused", 0, 0.9),
		item2PL("fresh", 1, 0.5),
	}

	// Without session totals the filter cannot compute rates and stays off.
	constraints := &Constraints{MaxExposureRate: 0.5}

	best, ok := MaxInfo(0, nil, items, irt.Model2PL, constraints)
	require.True(t, ok)
	assert.Equal(t, "overused", best.ExternalID)
}

func TestRandom_Deterministic(t *testing.T) {
	items := []models.Item{
		item2PL("item-a", 0, 0.5),
		item2PL("item-b", 1, 0.9),
		item2PL("item-c", 2, 0.3),
	}

	pick1, ok := Random(rand.New(rand.NewSource(42)), nil, items, nil)
	require.True(t, ok)
	pick2, ok := Random(rand.New(rand.NewSource(42)), nil, items, nil)
	require.True(t, ok)

	assert.Equal(t, pick1.ExternalID, pick2.ExternalID)
}

func TestRandom_OnlyEligibleItems(t *testing.T) {
	items := []models.Item{
		item2PL("item-a", 0, 0.5),
		item2PL("item-b", 1, 0.9),
	}

	for seed := int64(0); seed < 20; seed++ {
		pick, ok := Random(rand.New(rand.NewSource(seed)), []string{"item-a"}, items, nil)
		require.True(t, ok)
		assert.Equal(t, "item-b", pick.ExternalID)
	}
}

func TestRandom_ExhaustedBank(t *testing.T) {
	items := []models.Item{item2PL("item-a", 0, 0.5)}

	pick, ok := Random(rand.New(rand.NewSource(1)), []string{"item-a"}, items, nil)
	assert.False(t, ok)
	assert.Nil(t, pick)
}
