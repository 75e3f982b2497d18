package scope

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

func TestJobContext_Attributes(t *testing.T) {
	jc := newJobContext(newExecution(1))

	_, ok := jc.GetAttribute("missing")
	assert.False(t, ok)

	jc.SetAttribute("b", 2)
	jc.SetAttribute("a", 1)
	v, ok := jc.GetAttribute("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"a", "b"}, jc.AttributeNames())

	removed, ok := jc.RemoveAttribute("a")
	assert.True(t, ok)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"b"}, jc.AttributeNames())

	_, ok = jc.RemoveAttribute("a")
	assert.False(t, ok)
}

func TestJobContext_RemoveAttributeDropsCallback(t *testing.T) {
	jc := newJobContext(newExecution(1))
	called := false
	jc.SetAttribute("bean", "value")
	jc.RegisterDestructionCallback("bean", func() error {
		called = true
		return nil
	})

	_, ok := jc.RemoveAttribute("bean")
	require.True(t, ok)
	require.NoError(t, jc.close())
	assert.False(t, called)
}

func TestJobContext_JobParametersIsACopy(t *testing.T) {
	params := model.NewJobParameters()
	params.Put("input", "file.csv")
	jc := newJobContext(model.NewJobExecution(9, "importJob", params))

	got := jc.JobParameters()
	got["input"] = "changed"

	assert.Equal(t, "importJob", jc.JobName())
	v, _ := params.GetString("input")
	assert.Equal(t, "file.csv", v)
}

func TestJobContext_DestructionCallbacks(t *testing.T) {
	t.Run("same name replaces", func(t *testing.T) {
		jc := newJobContext(newExecution(1))
		var calls []string
		jc.RegisterDestructionCallback("x", func() error {
			calls = append(calls, "old")
			return nil
		})
		jc.RegisterDestructionCallback("x", func() error {
			calls = append(calls, "new")
			return nil
		})

		require.NoError(t, jc.close())
		assert.Equal(t, []string{"new"}, calls)
	})

	t.Run("errors and panics are aggregated", func(t *testing.T) {
		jc := newJobContext(newExecution(1))
		ran := false
		jc.RegisterDestructionCallback("ok", func() error {
			ran = true
			return nil
		})
		jc.RegisterDestructionCallback("fails", func() error { return errors.New("cannot flush") })
		jc.RegisterDestructionCallback("panics", func() error { panic("bad state") })

		err := jc.close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot flush")
		assert.Contains(t, err.Error(), "bad state")
		assert.True(t, ran)
	})

	t.Run("close runs once", func(t *testing.T) {
		jc := newJobContext(newExecution(1))
		count := 0
		jc.RegisterDestructionCallback("x", func() error {
			count++
			return nil
		})
		require.NoError(t, jc.close())
		require.NoError(t, jc.close())
		assert.Equal(t, 1, count)
	})

	t.Run("registering on a closed context runs immediately", func(t *testing.T) {
		jc := newJobContext(newExecution(1))
		require.NoError(t, jc.close())

		ran := false
		jc.RegisterDestructionCallback("late", func() error {
			ran = true
			return nil
		})
		assert.True(t, ran)
	})
}

func TestJobContext_String(t *testing.T) {
	je := newExecution(4)
	je.ExecutionContext.Put("foo", "bar")
	jc := newJobContext(je)

	assert.Contains(t, jc.String(), "jobExecution#4")
	assert.Contains(t, jc.String(), "foo=bar")
}
