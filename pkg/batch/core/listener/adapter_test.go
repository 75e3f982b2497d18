package listener_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	listener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
)

type listenerWithInterface struct {
	beforeCalls int
	afterCalls  int
}

func (l *listenerWithInterface) BeforeJob(ctx context.Context, je *model.JobExecution) {
	l.beforeCalls++
}

func (l *listenerWithInterface) AfterJob(ctx context.Context, je *model.JobExecution) {
	l.afterCalls++
}

type annotatedNoArgs struct {
	listener.BeforeJob `listener:"Before"`
	listener.AfterJob  `listener:"After"`

	beforeCalled bool
	afterCalled  bool
	otherCalled  bool
}

func (a *annotatedNoArgs) Before() { a.beforeCalled = true }
func (a *annotatedNoArgs) After()  { a.afterCalled = true }
func (a *annotatedNoArgs) Other()  { a.otherCalled = true }

type annotatedWithExecution struct {
	listener.BeforeJob `listener:"Open"`
	listener.AfterJob  `listener:"Finish"`

	seenBefore *model.JobExecution
	seenAfter  any
}

func (a *annotatedWithExecution) Open(je *model.JobExecution) { a.seenBefore = je }
func (a *annotatedWithExecution) Finish(v any)                { a.seenAfter = v }

type beforeOnly struct {
	Marker listener.BeforeJob `listener:"Foo"`
	calls  int
}

func (b *beforeOnly) Foo(*model.JobExecution) { b.calls++ }

type tooManyParams struct {
	listener.BeforeJob `listener:"Before"`
}

func (t *tooManyParams) Before(a, b *model.JobExecution) {}

type wrongParamType struct {
	listener.AfterJob `listener:"After"`
}

func (w *wrongParamType) After(s string) {}

type returnsValue struct {
	listener.AfterJob `listener:"After"`
}

func (r *returnsValue) After() error { return nil }

type missingMethod struct {
	listener.BeforeJob `listener:"Nope"`
}

type oneGoodOneBad struct {
	listener.BeforeJob `listener:"Good"`
	listener.AfterJob  `listener:"Bad"`
}

func (o *oneGoodOneBad) Good()                        {}
func (o *oneGoodOneBad) Bad(a, b, c *model.JobExecution) {}

type embeddedBase struct {
	listener.AfterJob `listener:"Done"`
}

type derived struct {
	embeddedBase
	done bool
}

func (d *derived) Done() { d.done = true }

type plain struct{ Name string }

func (p *plain) BeforeJob() {}

type sliceListener []string

func (s sliceListener) BeforeJob(ctx context.Context, je *model.JobExecution) {}
func (s sliceListener) AfterJob(ctx context.Context, je *model.JobExecution)  {}

func TestGetListener_WithInterface(t *testing.T) {
	delegate := &listenerWithInterface{}
	adapter, err := listener.GetListener(delegate)
	require.NoError(t, err)

	je := model.NewJobExecutionWithID(11)
	adapter.BeforeJob(context.Background(), je)
	adapter.AfterJob(context.Background(), je)

	assert.Equal(t, 1, delegate.beforeCalls)
	assert.Equal(t, 1, delegate.afterCalls)
	assert.Same(t, delegate, adapter.Target())
}

func TestGetListener_WithMarkers(t *testing.T) {
	delegate := &annotatedNoArgs{}
	adapter, err := listener.GetListener(delegate)
	require.NoError(t, err)

	je := model.NewJobExecutionWithID(11)
	adapter.BeforeJob(context.Background(), je)
	assert.True(t, delegate.beforeCalled)
	assert.False(t, delegate.afterCalled)

	adapter.AfterJob(context.Background(), je)
	assert.True(t, delegate.afterCalled)
	assert.False(t, delegate.otherCalled)
}

func TestGetListener_PassesJobExecution(t *testing.T) {
	delegate := &annotatedWithExecution{}
	adapter := listener.MustGetListener(delegate)

	je := model.NewJobExecutionWithID(7)
	adapter.BeforeJob(context.Background(), je)
	adapter.AfterJob(context.Background(), je)

	assert.Same(t, je, delegate.seenBefore)
	assert.Same(t, je, delegate.seenAfter)
}

func TestGetListener_SingleRoleMarker(t *testing.T) {
	delegate := &beforeOnly{}
	adapter, err := listener.GetListener(delegate)
	require.NoError(t, err)

	adapter.BeforeJob(context.Background(), model.NewJobExecutionWithID(1))
	adapter.AfterJob(context.Background(), model.NewJobExecutionWithID(1))
	assert.Equal(t, 1, delegate.calls)
}

func TestGetListener_EmbeddedMarker(t *testing.T) {
	delegate := &derived{}
	adapter, err := listener.GetListener(delegate)
	require.NoError(t, err)
	adapter.AfterJob(context.Background(), model.NewJobExecutionWithID(1))
	assert.True(t, delegate.done)
}

func TestGetListener_UseInSet(t *testing.T) {
	for name, delegate := range map[string]any{
		"interface": &listenerWithInterface{},
		"markers":   &annotatedNoArgs{},
	} {
		t.Run(name, func(t *testing.T) {
			a1, err := listener.GetListener(delegate)
			require.NoError(t, err)
			a2, err := listener.GetListener(delegate)
			require.NoError(t, err)

			assert.True(t, a1 == a2)
			assert.Equal(t, a1.Key(), a2.Key())

			set := map[listener.JobListenerAdapter]struct{}{}
			set[a1] = struct{}{}
			set[a2] = struct{}{}
			assert.Len(t, set, 1)
			_, contains := set[a1]
			assert.True(t, contains)
		})
	}
}

func TestGetListener_DistinctTargetsAreNotEqual(t *testing.T) {
	a1 := listener.MustGetListener(&listenerWithInterface{})
	a2 := listener.MustGetListener(&listenerWithInterface{})
	assert.False(t, a1 == a2)
	assert.NotEqual(t, a1.Key(), a2.Key())
}

func TestGetListener_AdapterIsReturnedAsIs(t *testing.T) {
	a1 := listener.MustGetListener(&annotatedNoArgs{})
	a2, err := listener.GetListener(a1)
	require.NoError(t, err)
	assert.True(t, a1 == a2)
	assert.True(t, listener.IsListener(a1))
}

func TestIsListener(t *testing.T) {
	assert.True(t, listener.IsListener(&listenerWithInterface{}))
	assert.True(t, listener.IsListener(&annotatedNoArgs{}))
	assert.True(t, listener.IsListener(&beforeOnly{}))
	assert.True(t, listener.IsListener(&oneGoodOneBad{}), "one compatible marker is enough")

	assert.False(t, listener.IsListener(nil))
	assert.False(t, listener.IsListener(&plain{}))
	assert.False(t, listener.IsListener("not a listener"))
	assert.False(t, listener.IsListener(&tooManyParams{}))
	assert.False(t, listener.IsListener(&missingMethod{}))
	// Pointer-receiver methods are not in a struct value's method set.
	assert.False(t, listener.IsListener(annotatedNoArgs{}))
}

func TestGetListener_InvalidTarget(t *testing.T) {
	for name, target := range map[string]any{
		"nil":    nil,
		"plain":  &plain{},
		"string": "x",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := listener.GetListener(target)
			require.Error(t, err)
			assert.True(t, errors.Is(err, exception.ErrInvalidTarget), "got %v", err)
			assert.True(t, exception.IsErrorOfType(err, exception.InvalidTargetError))
		})
	}
}

func TestGetListener_NonComparableTarget(t *testing.T) {
	_, err := listener.GetListener(sliceListener{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrInvalidTarget)
}

func TestGetListener_ConfigurationErrors(t *testing.T) {
	for name, target := range map[string]any{
		"two parameters":  &tooManyParams{},
		"wrong parameter": &wrongParamType{},
		"has result":      &returnsValue{},
		"missing method":  &missingMethod{},
		"one bad marker":  &oneGoodOneBad{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := listener.GetListener(target)
			require.Error(t, err)
			assert.ErrorIs(t, err, exception.ErrConfiguration)
			assert.False(t, errors.Is(err, exception.ErrInvalidTarget))
		})
	}
}

func TestMustGetListener_Panics(t *testing.T) {
	assert.Panics(t, func() { listener.MustGetListener(&plain{}) })
}

func TestAdapter_ZeroValueIsInert(t *testing.T) {
	var a listener.JobListenerAdapter
	assert.True(t, a.IsZero())
	assert.NotPanics(t, func() {
		a.BeforeJob(context.Background(), model.NewJobExecutionWithID(1))
		a.AfterJob(context.Background(), model.NewJobExecutionWithID(1))
	})
}

func TestAdapter_SatisfiesPort(t *testing.T) {
	var l port.JobExecutionListener = listener.MustGetListener(&annotatedNoArgs{})
	assert.NotNil(t, l)
}
