package scope

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type taskKey struct{}

// taskRef is the immutable task identity carried by a context.
type taskRef struct {
	id string
	// parent is the registration that was on top of the forking task's stack, if any.
	parent *entry
}

func taskFrom(ctx context.Context) (*taskRef, bool) {
	if ctx == nil {
		return nil, false
	}
	ref, ok := ctx.Value(taskKey{}).(*taskRef)
	return ref, ok && ref != nil
}

func withTask(ctx context.Context, parent *entry) (context.Context, *taskRef) {
	if ctx == nil {
		ctx = context.Background()
	}
	ref := &taskRef{id: uuid.NewString(), parent: parent}
	return context.WithValue(ctx, taskKey{}, ref), ref
}

// Detach returns a context that carries ctx's values and deadline but no task identity.
// The first Register with it starts an independent task whose registrations do not
// keep any of ctx's registrations open.
func Detach(ctx context.Context) context.Context {
	if _, ok := taskFrom(ctx); !ok {
		return ctx
	}
	return context.WithValue(ctx, taskKey{}, (*taskRef)(nil))
}

// TaskID returns the task identity carried by ctx.
func TaskID(ctx context.Context) (string, bool) {
	ref, ok := taskFrom(ctx)
	if !ok {
		return "", false
	}
	return ref.id, true
}

// entry is one registration on a task stack.
type entry struct {
	jobCtx *JobContext
	// countedAgainst is the forking task's registration this entry keeps open.
	countedAgainst *entry
	// inner counts open registrations of tasks forked while this entry was on top.
	// It holds sealedInner once the entry is closed or released.
	inner atomic.Int32
}

const sealedInner = -1

// reserveInner counts one more inner registration. It fails once e is sealed.
func (e *entry) reserveInner() bool {
	for {
		n := e.inner.Load()
		if n < 0 {
			return false
		}
		if e.inner.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// releaseInner undoes reserveInner. A sealed entry stays sealed.
func (e *entry) releaseInner() {
	for {
		n := e.inner.Load()
		if n <= 0 {
			return
		}
		if e.inner.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// seal marks e closed when no inner registration is open, and otherwise returns
// the number still open.
func (e *entry) seal() (int32, bool) {
	for {
		if e.inner.CompareAndSwap(0, sealedInner) {
			return 0, true
		}
		n := e.inner.Load()
		if n > 0 {
			return n, false
		}
		if n < 0 {
			return 0, true
		}
	}
}

// taskStack is the LIFO of registrations of one task. Only its owner touches it.
type taskStack struct {
	mu      sync.Mutex
	entries []*entry
	// dead is set once the stack emptied and left the registry.
	dead bool
}

func (s *taskStack) top() *entry {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}
