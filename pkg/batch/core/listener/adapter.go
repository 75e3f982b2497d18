// Package listener adapts arbitrary objects into job execution listeners.
//
// A target qualifies in one of two ways. It either implements
// port.JobExecutionListener, or it declares marker fields naming plain methods:
//
//	type AuditListener struct {
//		listener.BeforeJob `listener:"Open"`
//		listener.AfterJob  `listener:"Close"`
//	}
//
//	func (a *AuditListener) Open()                         {}
//	func (a *AuditListener) Close(je *model.JobExecution) {}
//
// A marked method must be exported, return nothing, and take either no
// parameter or one parameter that can receive a *model.JobExecution.
//
// Adapters are comparable values: adapting the same target twice yields equal
// adapters, so they can be used as map keys or deduplicated in a set.
package listener

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

const moduleName = "listener"

// MarkerTag is the struct tag key holding the method name of a marker field.
const MarkerTag = "listener"

// BeforeJob marks the method to call before a job execution starts.
type BeforeJob struct{}

// AfterJob marks the method to call after a job execution ends.
type AfterJob struct{}

var (
	listenerType     = reflect.TypeOf((*port.JobExecutionListener)(nil)).Elem()
	jobExecutionType = reflect.TypeOf((*model.JobExecution)(nil))
	beforeMarkerType = reflect.TypeOf(BeforeJob{})
	afterMarkerType  = reflect.TypeOf(AfterJob{})
)

type role int

const (
	roleBefore role = iota
	roleAfter
)

func (r role) String() string {
	if r == roleBefore {
		return "BeforeJob"
	}
	return "AfterJob"
}

type dispatchKind uint8

const (
	dispatchDirect dispatchKind = iota + 1
	dispatchReflective
)

// methodRef locates a marked method in the target type's method set.
type methodRef struct {
	name  string
	index int
	arity int
}

// dispatchPlan is computed once per dynamic type and shared by all adapters of that type.
type dispatchPlan struct {
	kind       dispatchKind
	before     *methodRef
	after      *methodRef
	hasMarkers bool
	configErr  error
}

func (p *dispatchPlan) usable() bool {
	return p.kind == dispatchDirect || p.before != nil || p.after != nil
}

var planCache sync.Map // reflect.Type -> *dispatchPlan

func planFor(t reflect.Type) *dispatchPlan {
	if cached, ok := planCache.Load(t); ok {
		return cached.(*dispatchPlan)
	}
	plan := buildPlan(t)
	actual, _ := planCache.LoadOrStore(t, plan)
	return actual.(*dispatchPlan)
}

type marker struct {
	role   role
	method string
	field  string
}

func buildPlan(t reflect.Type) *dispatchPlan {
	if t.Implements(listenerType) {
		return &dispatchPlan{kind: dispatchDirect}
	}

	plan := &dispatchPlan{kind: dispatchReflective}
	markers := collectMarkers(t)
	plan.hasMarkers = len(markers) > 0

	var errs *multierror.Error
	for _, m := range markers {
		if m.method == "" {
			errs = multierror.Append(errs, fmt.Errorf("marker %s on field %s has no method name in its `%s` tag", m.role, m.field, MarkerTag))
			continue
		}
		ref, err := resolveMethod(t, m.method)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("marker %s: %w", m.role, err))
			continue
		}
		slot := &plan.before
		if m.role == roleAfter {
			slot = &plan.after
		}
		if *slot != nil {
			errs = multierror.Append(errs, fmt.Errorf("marker %s declared more than once (%s and %s)", m.role, (*slot).name, ref.name))
			continue
		}
		*slot = ref
	}
	plan.configErr = errs.ErrorOrNil()
	return plan
}

// collectMarkers walks the struct behind t, descending into embedded structs.
func collectMarkers(t reflect.Type) []marker {
	st := t
	for st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil
	}
	var out []marker
	visited := map[reflect.Type]bool{}
	var walk func(reflect.Type, string)
	walk = func(s reflect.Type, path string) {
		if visited[s] {
			return
		}
		visited[s] = true
		for i := 0; i < s.NumField(); i++ {
			f := s.Field(i)
			name := path + f.Name
			switch f.Type {
			case beforeMarkerType:
				out = append(out, marker{role: roleBefore, method: f.Tag.Get(MarkerTag), field: name})
				continue
			case afterMarkerType:
				out = append(out, marker{role: roleAfter, method: f.Tag.Get(MarkerTag), field: name})
				continue
			}
			if !f.Anonymous {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				walk(ft, name+".")
			}
		}
	}
	walk(st, "")
	return out
}

func resolveMethod(t reflect.Type, name string) (*methodRef, error) {
	m, ok := t.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("method %s not found in the method set of %s (unexported, or declared on a pointer receiver)", name, t)
	}
	mt := m.Type
	if mt.NumOut() != 0 {
		return nil, fmt.Errorf("method %s.%s must not return values", t, name)
	}
	// In(0) is the receiver.
	arity := mt.NumIn() - 1
	switch arity {
	case 0:
	case 1:
		if !jobExecutionType.AssignableTo(mt.In(1)) {
			return nil, fmt.Errorf("method %s.%s parameter %s cannot receive %s", t, name, mt.In(1), jobExecutionType)
		}
	default:
		return nil, fmt.Errorf("method %s.%s takes %d parameters, expected 0 or 1", t, name, arity)
	}
	return &methodRef{name: name, index: m.Index, arity: arity}, nil
}

// JobListenerAdapter is the uniform listener view of a target.
// Equality is derived from the wrapped target, never from the adapter itself.
type JobListenerAdapter struct {
	target any
	direct port.JobExecutionListener
	plan   *dispatchPlan
}

// IsListener reports whether target implements port.JobExecutionListener or
// declares at least one marker naming a compatible method.
func IsListener(target any) bool {
	if target == nil {
		return false
	}
	if _, ok := target.(JobListenerAdapter); ok {
		return true
	}
	return planFor(reflect.TypeOf(target)).usable()
}

// GetListener adapts target.
//
// It returns an InvalidTargetError when target is nil, is neither a listener
// nor marked, or is not comparable. It returns a ConfigurationError when any
// declared marker is malformed, even if another marker is valid.
func GetListener(target any) (JobListenerAdapter, error) {
	if target == nil {
		return JobListenerAdapter{}, exception.NewInvalidTargetError(moduleName, "listener target is nil")
	}
	if a, ok := target.(JobListenerAdapter); ok {
		return a, nil
	}

	t := reflect.TypeOf(target)
	plan := planFor(t)

	if plan.kind == dispatchReflective {
		if plan.configErr != nil {
			return JobListenerAdapter{}, exception.NewConfigurationErrorWithCause(moduleName,
				fmt.Sprintf("invalid listener markers on %s", t), plan.configErr)
		}
		if !plan.usable() {
			return JobListenerAdapter{}, exception.NewInvalidTargetError(moduleName,
				fmt.Sprintf("%s neither implements JobExecutionListener nor declares BeforeJob/AfterJob markers", t))
		}
	}

	if !reflect.ValueOf(target).Comparable() {
		return JobListenerAdapter{}, exception.NewInvalidTargetError(moduleName,
			fmt.Sprintf("%s is not comparable; pass a pointer", t))
	}

	a := JobListenerAdapter{target: target, plan: plan}
	if plan.kind == dispatchDirect {
		a.direct = target.(port.JobExecutionListener)
	}
	logger.Debugf("Adapted %s as job listener (%s).", t, a.mode())
	return a, nil
}

// MustGetListener is like GetListener but panics on error.
func MustGetListener(target any) JobListenerAdapter {
	a, err := GetListener(target)
	if err != nil {
		panic(err)
	}
	return a
}

// BeforeJob invokes the target's before callback, if any.
func (a JobListenerAdapter) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	if a.plan == nil {
		return
	}
	switch a.plan.kind {
	case dispatchDirect:
		a.direct.BeforeJob(ctx, jobExecution)
	case dispatchReflective:
		a.call(a.plan.before, jobExecution)
	}
}

// AfterJob invokes the target's after callback, if any.
func (a JobListenerAdapter) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	if a.plan == nil {
		return
	}
	switch a.plan.kind {
	case dispatchDirect:
		a.direct.AfterJob(ctx, jobExecution)
	case dispatchReflective:
		a.call(a.plan.after, jobExecution)
	}
}

func (a JobListenerAdapter) call(ref *methodRef, jobExecution *model.JobExecution) {
	if ref == nil {
		return
	}
	m := reflect.ValueOf(a.target).Method(ref.index)
	if ref.arity == 0 {
		m.Call(nil)
		return
	}
	m.Call([]reflect.Value{reflect.ValueOf(jobExecution)})
}

// Target returns the wrapped object.
func (a JobListenerAdapter) Target() any {
	return a.target
}

// IsZero reports whether a was not produced by GetListener.
func (a JobListenerAdapter) IsZero() bool {
	return a.plan == nil
}

// Key returns a string identity of the wrapped target, equal for equal adapters.
func (a JobListenerAdapter) Key() string {
	if a.target == nil {
		return "<nil>"
	}
	v := reflect.ValueOf(a.target)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("%s@%#x", v.Type(), v.Pointer())
	default:
		return fmt.Sprintf("%s:%v", v.Type(), a.target)
	}
}

func (a JobListenerAdapter) mode() string {
	if a.plan != nil && a.plan.kind == dispatchDirect {
		return "direct"
	}
	return "markers"
}

// String describes the adapter for logs.
func (a JobListenerAdapter) String() string {
	return fmt.Sprintf("JobListenerAdapter{%s, %s}", a.Key(), a.mode())
}

var _ port.JobExecutionListener = JobListenerAdapter{}
