package alert

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeSetFirstSeenIsNotADuplicate(t *testing.T) {
	d := newDedupeSet(500)
	assert.False(t, d.seen("ABCD|1700000000"))
}

func TestDedupeSetSecondSeenIsADuplicate(t *testing.T) {
	d := newDedupeSet(500)
	d.seen("ABCD|1700000000")
	assert.True(t, d.seen("ABCD|1700000000"))
}

func TestDedupeSetEvictsOldestBeyondCapacity(t *testing.T) {
	d := newDedupeSet(2)
	d.seen("a")
	d.seen("b")
	d.seen("c") // evicts "a"

	assert.True(t, d.seen("b"))
	assert.True(t, d.seen("c"))
	assert.False(t, d.seen("a"), "a should have been evicted and re-recorded as new")
}

func TestDedupeSetRefreshesRecencyOnRepeat(t *testing.T) {
	d := newDedupeSet(2)
	d.seen("a")
	d.seen("b")
	d.seen("a") // touched again, "b" is now the oldest
	d.seen("c") // evicts "b", not "a"

	assert.True(t, d.seen("a"))
	assert.False(t, d.seen("b"))
}

func TestDedupeSetManyKeysStayWithinCapacity(t *testing.T) {
	d := newDedupeSet(500)
	for i := 0; i < 1000; i++ {
		d.seen(fmt.Sprintf("key-%d", i))
	}
	assert.LessOrEqual(t, d.order.Len(), 500)
	assert.Len(t, d.index, d.order.Len())
}
