package vm

import (
	"crypto/sha256"
	"sync"

	"github.com/rove-lang/rove/ast"
)

// scriptCache maps source text, keyed by content hash, to its compiled
// program. Programs are immutable after compilation, so a cached tree
// is shared freely across evaluations.
type scriptCache struct {
	mu    sync.RWMutex
	progs map[[32]byte]*ast.Program
}

func newScriptCache() *scriptCache {
	return &scriptCache{progs: make(map[[32]byte]*ast.Program)}
}

func (c *scriptCache) get(src string) (*ast.Program, bool) {
	key := sha256.Sum256([]byte(src))
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.progs[key]
	return p, ok
}

func (c *scriptCache) put(src string, prog *ast.Program) {
	key := sha256.Sum256([]byte(src))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progs[key] = prog
}

func (c *scriptCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.progs)
}
