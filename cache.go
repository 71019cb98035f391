package collect

import (
	"sync"
)

// TagCache is the concurrent store backing scope metadata.
type TagCache struct {
	data sync.Map
}

func (c *TagCache) Load(key any) (any, bool) {
	return c.data.Load(key)
}

func (c *TagCache) Store(key any, value any) {
	c.data.Store(key, value)
}

func (c *TagCache) Delete(key any) {
	c.data.Delete(key)
}

func (c *TagCache) Range(fn func(key, value any) bool) {
	c.data.Range(fn)
}

func (c *TagCache) Size() int {
	count := 0
	c.data.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}
