package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/config"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/metrics"
	"github.com/sprite-ai/reviewgate/internal/modify"
	"github.com/sprite-ai/reviewgate/internal/plan"
	"github.com/sprite-ai/reviewgate/internal/review"
	"github.com/sprite-ai/reviewgate/internal/router"
	"github.com/sprite-ai/reviewgate/internal/task"
	"github.com/sprite-ai/reviewgate/internal/tui"
)

// app holds the components shared by commands, built from the loaded
// config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	tasks    *task.Store
	plans    *plan.Store
	sessions *modify.SessionStore
	calc     *complexity.Calculator
	router   *router.Router
	recorder metrics.Recorder
	store    *metrics.Store
}

func newApp(cmd *cobra.Command) *app {
	env := envFrom(cmd.Context())
	c, l := env.cfg, env.logger
	if c == nil {
		c = config.DefaultConfig()
	}
	if l == nil {
		l = zap.NewNop()
	}
	a := &app{
		cfg:      c,
		logger:   l,
		tasks:    task.NewStore(c.Paths.TasksDir),
		plans:    plan.NewStore(c.Paths.StateDir),
		sessions: modify.NewSessionStore(c.Paths.ModificationsDir, l),
		calc:     complexity.NewDefault(l),
		router:   router.New(l),
		recorder: metrics.Nop{},
	}
	if c.Metrics.Enabled {
		s, err := metrics.Open(c.Metrics.DBPath)
		if err != nil {
			l.Warn("review metrics disabled", zap.String("path", c.Metrics.DBPath), zap.Error(err))
		} else {
			a.store = s
			a.recorder = s
		}
	}
	return a
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Debug("closing metrics store", zap.Error(err))
		}
	}
}

// console wraps the command's stdin and stdout.
func (a *app) console(cmd *cobra.Command) *input.Console {
	return input.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
}

// checkpoint builds the quick and full review handlers over con.
func (a *app) checkpoint(cmd *cobra.Command, con *input.Console) *review.Checkpoint {
	var pager review.Pager
	if a.cfg.Review.Pager {
		if f, ok := cmd.InOrStdin().(*os.File); ok {
			pager = tui.NewPager(f, cmd.OutOrStdout())
		}
	}
	return &review.Checkpoint{
		Quick: review.NewQuickHandler(review.QuickDeps{
			Keys:      con.Keys(),
			Out:       con.Out(),
			Logger:    a.logger,
			Results:   review.NewResultStore(a.cfg.Paths.TasksDir),
			Metrics:   a.recorder,
			Countdown: time.Duration(a.cfg.Review.QuickCountdownSeconds) * time.Second,
		}),
		Full: review.NewFullHandler(review.FullDeps{
			Console:    con,
			Pager:      pager,
			Tasks:      a.tasks,
			Plans:      a.plans,
			Calculator: a.calc,
			Sessions:   a.sessions,
			Metrics:    a.recorder,
			Logger:     a.logger,
		}),
		Tasks:  a.tasks,
		Logger: a.logger,
	}
}

// loadTask finds the task file and its saved plan.
func (a *app) loadTask(taskID string) (*task.File, *plan.Record, error) {
	f, err := a.tasks.Find(taskID)
	if err != nil {
		return nil, nil, err
	}
	if f.Meta.ID == "" {
		f.Meta.ID = taskID
	}
	rec, err := a.plans.Load(taskID)
	if errors.Is(err, plan.ErrNotFound) {
		return f, nil, fmt.Errorf("%w for %s (expected %s)", plan.ErrNotFound, taskID, a.plans.Path(taskID))
	}
	if err != nil {
		return f, nil, err
	}
	return f, rec, nil
}

// evaluationContext assembles the scorer's inputs from a task and its plan.
// An empty stack falls back to the task's stack, then "default".
func evaluationContext(f *task.File, p *plan.Record, stack string, forceReview bool) complexity.EvaluationContext {
	if stack == "" {
		stack = f.Meta.Stack
	}
	if stack == "" {
		stack = "default"
	}
	return complexity.EvaluationContext{
		TaskID:          f.Meta.ID,
		TechnologyStack: stack,
		Plan:            p.Plan,
		Metadata:        f.Meta.EvaluationMetadata(),
		Flags:           complexity.UserFlags{ForceReview: forceReview},
	}
}

// signalContext is cancelled on Ctrl+C.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}
