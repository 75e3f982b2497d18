package job

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/forlulz/spring-batch/pkg/batch/core/job/runner"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// JobName is the name under which the job is registered on the launcher.
const JobName = "helloWorldJob"

// Greeter is shared by every partition of one execution.
type Greeter struct {
	greeting string

	mu      sync.Mutex
	greeted []string
}

// Greet records who and returns the greeting for it.
func (g *Greeter) Greet(who string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.greeted = append(g.greeted, who)
	return fmt.Sprintf("%s, %s!", g.greeting, who)
}

// Greeted returns the names greeted so far, sorted.
func (g *Greeter) Greeted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]string(nil), g.greeted...)
	sort.Strings(out)
	return out
}

// NewGreeter declares the job-scoped Greeter. The "greeting" parameter overrides "Hello".
func NewGreeter(manager *scope.JobSynchronizationManager) *scope.Scoped[*Greeter] {
	return scope.NewScoped(manager, "greeter", func(jobCtx *scope.JobContext) (*Greeter, error) {
		greeting := "Hello"
		if v, ok := jobCtx.JobParameters()["greeting"].(string); ok && v != "" {
			greeting = v
		}
		return &Greeter{greeting: greeting}, nil
	}).WithDestroy(func(g *Greeter) error {
		logger.Infof("Greeter released after greeting %v.", g.Greeted())
		return nil
	})
}

// NewHelloWorldJob greets each name on its own partition.
func NewHelloWorldJob(jobRunner *runner.SimpleJobRunner, manager *scope.JobSynchronizationManager, names []string) *runner.SimpleJob {
	greeter := NewGreeter(manager)

	body := func(ctx context.Context, jobCtx *scope.JobContext) error {
		partitions := make([]runner.Partition, 0, len(names))
		for _, name := range names {
			partitions = append(partitions, func(ctx context.Context, _ *scope.JobContext) error {
				g, err := greeter.Get(ctx)
				if err != nil {
					return err
				}
				logger.Infof("%s", g.Greet(name))
				return nil
			})
		}
		if err := jobRunner.RunParallel(ctx, 2, partitions...); err != nil {
			return err
		}

		g, err := greeter.Get(ctx)
		if err != nil {
			return err
		}
		jobCtx.ExecutionContext().Put("greeted", len(g.Greeted()))
		return nil
	}

	return runner.NewSimpleJob(JobName, body, runner.WithManager(manager))
}
