package gocbsessx

import "sync"

const defaultCollectionPath = "_default._default"

// collectionCache maps `scope.collection` paths to collection ids.  The
// default collection is always bound to id 0.
type collectionCache struct {
	lock   sync.Mutex
	cidMap map[string]uint32
}

func newCollectionCache() *collectionCache {
	return &collectionCache{
		cidMap: map[string]uint32{defaultCollectionPath: 0},
	}
}

func (c *collectionCache) Get(path string) (uint32, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	cid, ok := c.cidMap[path]
	return cid, ok
}

func (c *collectionCache) Update(path string, cid uint32) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.cidMap[path] = cid
}

func (c *collectionCache) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.cidMap = map[string]uint32{defaultCollectionPath: 0}
}
