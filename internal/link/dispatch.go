package link

import (
	"sync"

	"github.com/danmuck/packlink/internal/protocol/catalog"
)

// Dispatcher receives accepted actions for local effect (lights, audio,
// motors). Its return value is consulted only for SYNC_END, where true
// means the sync milestone was satisfied.
type Dispatcher interface {
	Handle(link LinkID, action catalog.Action, arg uint16) bool
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(link LinkID, action catalog.Action, arg uint16) bool

func (f DispatcherFunc) Handle(link LinkID, action catalog.Action, arg uint16) bool {
	return f(link, action, arg)
}

// HandlerFunc handles one action on behalf of a Dispatcher.
type HandlerFunc func(link LinkID, arg uint16) bool

// HandlerTable is a Dispatcher keyed by action. Unregistered actions are
// no-ops; an unregistered SYNC_END still satisfies the milestone.
type HandlerTable struct {
	mu       sync.RWMutex
	handlers map[catalog.Action]HandlerFunc
}

func NewHandlerTable() *HandlerTable {
	return &HandlerTable{handlers: make(map[catalog.Action]HandlerFunc)}
}

func (t *HandlerTable) Register(action catalog.Action, fn HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fn == nil {
		delete(t.handlers, action)
		return
	}
	t.handlers[action] = fn
}

func (t *HandlerTable) Handle(link LinkID, action catalog.Action, arg uint16) bool {
	t.mu.RLock()
	fn, ok := t.handlers[action]
	t.mu.RUnlock()
	if !ok {
		return action == catalog.ActionSyncEnd
	}
	return fn(link, arg)
}

func (t *HandlerTable) Registered() []catalog.Action {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]catalog.Action, 0, len(t.handlers))
	for a := range t.handlers {
		out = append(out, a)
	}
	return out
}
