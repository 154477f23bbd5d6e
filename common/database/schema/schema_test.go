package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPending(t *testing.T) {
	all := []Migration{{Version: 3}, {Version: 1}, {Version: 2}}
	applied := map[int]time.Time{1: time.Now()}

	pending := Pending(all, applied)
	assert.Equal(t, []Migration{{Version: 2}, {Version: 3}}, pending)
	assert.Empty(t, Pending(all, map[int]time.Time{1: {}, 2: {}, 3: {}}))
}
