package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func TestNewSortableIsMonotonic(t *testing.T) {
	prev := NewSortable()
	for i := 0; i < 1000; i++ {
		next := NewSortable()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestNewIsUUID(t *testing.T) {
	id := New()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, New())
}

func TestNewSortableParses(t *testing.T) {
	_, err := ulid.ParseStrict(NewSortable())
	assert.NoError(t, err)
}
