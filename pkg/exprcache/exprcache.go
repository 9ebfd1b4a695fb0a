// Package exprcache is a thread-safe LRU cache of compiled expr-lang
// programs, shared by pkg/sequence's QR/LR/TIP/TIA steps and
// pkg/paradigm's code affordances, every call site that re-evaluates
// the same small expression string (an element_result, accumulate, or
// judgement-condition expression) once per cycle.
package exprcache

import (
	"container/list"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Cache is a bounded LRU keyed on expression source text.
type Cache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type entry struct {
	source  string
	program *vm.Program
}

// New creates a Cache holding at most capacity compiled programs.
// capacity <= 0 defaults to 100.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the compiled program for source, if cached.
func (c *Cache) Get(source string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[source]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).program, true
}

// Put stores source's compiled program, evicting the least recently
// used entry if the cache is at capacity.
func (c *Cache) Put(source string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[source]; ok {
		c.order.MoveToFront(el)
		el.Value.(*entry).program = program
		return
	}

	el := c.order.PushFront(&entry{source: source, program: program})
	c.entries[source] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).source)
		}
	}
}

// Len reports how many programs are currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Compile returns source's cached program, compiling and caching it on
// a miss.
func (c *Cache) Compile(source string, opts ...expr.Option) (*vm.Program, error) {
	if program, ok := c.Get(source); ok {
		return program, nil
	}
	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, err
	}
	c.Put(source, program)
	return program, nil
}
