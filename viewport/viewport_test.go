package viewport_test

import (
	"testing"

	"scrollfeed/viewport"

	"github.com/stretchr/testify/assert"
)

func TestViewportNotifiesSubscribers(t *testing.T) {
	v := viewport.New()

	var seen []viewport.Position
	unsubscribe := v.Subscribe(func(p viewport.Position) { seen = append(seen, p) })

	pos := viewport.Position{Offset: 100, Height: 50, ContentHeight: 1000}
	v.Set(pos)
	assert.Equal(t, pos, v.Position())
	assert.Equal(t, 150, pos.Bottom())

	unsubscribe()
	unsubscribe()
	v.Set(viewport.Position{Offset: 200})

	assert.Equal(t, []viewport.Position{pos}, seen)
	assert.Equal(t, 0, v.Listeners())
}
