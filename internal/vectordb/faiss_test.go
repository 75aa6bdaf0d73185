package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrowSearchWindow(t *testing.T) {
	t.Run("FirstRoundDoublesK", func(t *testing.T) {
		assert.Equal(t, 10, growSearchWindow(0, 5, 1000))
	})

	t.Run("DoublesEachRound", func(t *testing.T) {
		limit := growSearchWindow(0, 5, 1000)
		limit = growSearchWindow(limit, 5, 1000)
		assert.Equal(t, 20, limit)
		limit = growSearchWindow(limit, 5, 1000)
		assert.Equal(t, 40, limit)
	})

	t.Run("ClampsToTotal", func(t *testing.T) {
		assert.Equal(t, 7, growSearchWindow(0, 5, 7))
		assert.Equal(t, 7, growSearchWindow(6, 5, 7))
	})

	// 过滤条件剔除超过一半候选时，窗口必须能一路涨到全量
	t.Run("ReachesTotalUnderHeavyFiltering", func(t *testing.T) {
		total := 100
		limit := 0
		rounds := 0
		for limit < total {
			limit = growSearchWindow(limit, 3, total)
			rounds++
			assert.LessOrEqual(t, rounds, 10)
		}
		assert.Equal(t, total, limit)
	})
}
