package extensions

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type nickname string

type counter struct {
	N int
}

func TestExtensions(t *testing.T) {
	should := assert.New(t)

	var e Extensions
	_, ok := Get[nickname](&e)
	should.False(ok)

	_, replaced := Insert(&e, nickname("ann"))
	should.False(replaced)
	old, replaced := Insert(&e, nickname("bob"))
	should.True(replaced)
	should.Equal(nickname("ann"), old)

	Insert(&e, &counter{N: 1})
	Insert(&e, "plain")
	should.Equal(3, e.Len())

	n, ok := Get[nickname](&e)
	should.True(ok)
	should.Equal(nickname("bob"), n)

	c, ok := Get[*counter](&e)
	should.True(ok)
	should.Equal(1, c.N)

	s, ok := Get[string](&e)
	should.True(ok)
	should.Equal("plain", s)

	_, ok = Get[counter](&e)
	should.False(ok)

	removed, ok := Remove[nickname](&e)
	should.True(ok)
	should.Equal(nickname("bob"), removed)
	_, ok = Remove[nickname](&e)
	should.False(ok)

	e.Clear()
	should.Zero(e.Len())
	_, ok = Get[string](&e)
	should.False(ok)
}

func TestExtensionsConcurrent(t *testing.T) {
	var e Extensions
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Insert(&e, i)
			Get[int](&e)
			if i%4 == 0 {
				Remove[int](&e)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, e.Len(), 1)
}
