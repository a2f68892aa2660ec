package renderset

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrap-render-server/modules/render"
)

func TestMergeFirstWriterWins(t *testing.T) {
	for _, order := range [][2]string{{"a.webp", "b.webp"}, {"b.webp", "a.webp"}} {
		rs := New()
		assert.True(t, rs.Merge(render.ViewSide, order[0], FirstWins))
		assert.False(t, rs.Merge(render.ViewSide, order[1], FirstWins))
		assert.Equal(t, order[0], rs.URL(render.ViewSide))
		assert.Equal(t, 1, rs.Len())
	}
}

func TestMergeIdempotent(t *testing.T) {
	once := New()
	once.Merge(render.ViewHero, "hero.webp", FirstWins)

	twice := New()
	twice.Merge(render.ViewHero, "hero.webp", FirstWins)
	twice.Merge(render.ViewHero, "hero.webp", FirstWins)

	assert.True(t, once.Equal(twice))
}

func TestMergeKeepsInsertionOrder(t *testing.T) {
	rs := New()
	rs.Merge(render.ViewTop, "top.webp", FirstWins)
	rs.Merge(render.ViewHero, "hero.webp", FirstWins)
	rs.Merge(render.ViewRear, "rear.webp", FirstWins)

	assert.Equal(t, []render.ViewType{render.ViewTop, render.ViewHero, render.ViewRear}, rs.Views())
}

func TestMergeOverride(t *testing.T) {
	rs := New()
	rs.Merge(render.ViewHero, "hero.webp", FirstWins)
	rs.Merge(render.ViewSide, "side-v1.webp", FirstWins)
	rs.Merge(render.ViewRear, "rear.webp", FirstWins)

	assert.True(t, rs.MergeOverride(render.ViewSide, "side-v2.webp"))
	assert.False(t, rs.MergeOverride(render.ViewSide, "side-v2.webp"))

	assert.Equal(t, "side-v2.webp", rs.URL(render.ViewSide))
	assert.Equal(t, []render.ViewType{render.ViewHero, render.ViewSide, render.ViewRear}, rs.Views())

	assert.True(t, rs.MergeOverride(render.ViewTop, "top.webp"))
	assert.Equal(t, 4, rs.Len())
}

func TestMergeIgnoresBlank(t *testing.T) {
	rs := New()
	assert.False(t, rs.Merge("", "x.webp", FirstWins))
	assert.False(t, rs.Merge(render.ViewSide, "", Override))
	assert.Equal(t, 0, rs.Len())
}

func TestMergeValueForm(t *testing.T) {
	base := New()
	base.Merge(render.ViewHero, "hero.webp", FirstWins)

	same := Merge(base, render.ViewHero, "other.webp")
	assert.Same(t, base, same)

	next := Merge(base, render.ViewSide, "side.webp")
	assert.NotSame(t, base, next)
	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, next.Len())

	fromNil := Merge(nil, render.ViewHero, "hero.webp")
	require.NotNil(t, fromNil)
	assert.Equal(t, "hero.webp", fromNil.URL(render.ViewHero))
}

func TestCloneAndReset(t *testing.T) {
	rs := FromEntries([]Entry{
		{View: render.ViewHero, URL: "hero.webp"},
		{View: render.ViewHero, URL: "dup.webp"},
		{View: render.ViewSide, URL: "side.webp"},
	})
	require.Equal(t, 2, rs.Len())

	clone := rs.Clone()
	rs.Reset()

	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, "hero.webp", clone.URL(render.ViewHero))
	assert.Equal(t, 2, clone.Len())
}

func TestConcurrentMergesKeepOneEntryPerView(t *testing.T) {
	rs := New()
	views := []render.ViewType{render.ViewSide, render.ViewRear, render.ViewTop}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view := views[i%len(views)]
			rs.Merge(view, fmt.Sprintf("%s-%d.webp", view, i), FirstWins)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, len(views), rs.Len())
}
