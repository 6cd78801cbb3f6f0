package protect

import (
	"sync"

	"github.com/google/uuid"
)

// stagedContent is raw flagged text held only until its author confirms or
// abandons protection. It never touches the store.
type stagedContent struct {
	Text          string
	OriginChannel string
	OriginSender  string
}

// sessionCache maps ephemeral session ids to staged content. Entries are
// consumed on successful create and otherwise live until process exit;
// production deployments should bound this with a TTL.
type sessionCache struct {
	mu     sync.Mutex
	staged map[string]stagedContent
}

func newSessionCache() *sessionCache {
	return &sessionCache{staged: make(map[string]stagedContent)}
}

func (c *sessionCache) put(content stagedContent) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.staged[id] = content
	c.mu.Unlock()
	return id
}

func (c *sessionCache) get(id string) (stagedContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.staged[id]
	return content, ok
}

func (c *sessionCache) remove(id string) {
	c.mu.Lock()
	delete(c.staged, id)
	c.mu.Unlock()
}
