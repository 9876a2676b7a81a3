package review

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/task"
)

// CheckpointRequest asks for whichever review the score's mode calls for.
// Mandatory forces the full review regardless of mode.
type CheckpointRequest struct {
	FullRequest
	Mandatory bool
}

// Outcome is the result of a checkpoint, whichever handler ran it.
type Outcome struct {
	Handler         string
	Approved        bool
	Cancelled       bool
	Plan            *model.ImplementationPlan
	Score           model.ComplexityScore
	MetadataUpdates map[string]any
}

// Checkpoint dispatches to the quick or full handler.
type Checkpoint struct {
	Quick  *QuickHandler
	Full   *FullHandler
	Tasks  *task.Store
	Logger *zap.Logger
}

// Review runs the checkpoint for req.Score.Mode. Auto-proceed scores pass
// without prompting unless the review is mandatory. A quick review the user
// escalates continues as a full review.
func (c *Checkpoint) Review(ctx context.Context, req CheckpointRequest) (Outcome, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := req.Score.Mode
	if req.Mandatory {
		mode = model.FullRequired
	}

	switch mode {
	case model.AutoProceed:
		return Outcome{Handler: "auto", Approved: true, Plan: req.Plan, Score: req.Score}, nil
	case model.QuickOptional:
		if c.Quick == nil {
			break
		}
		res, err := c.Quick.Run(ctx, req.Score, req.Plan, req.TaskID)
		if err != nil {
			return Outcome{}, err
		}
		if _, err := c.Quick.SaveResult(res, req.TaskID); err != nil {
			logger.Debug("quick review result not saved", zap.Error(err))
		}
		switch res.Action {
		case QuickTimeout:
			return Outcome{Handler: "quick", Approved: true, Plan: req.Plan, Score: req.Score, MetadataUpdates: res.MetadataUpdates}, nil
		case QuickCancel:
			c.cancelTask(req.TaskFile, logger)
			return Outcome{Handler: "quick", Cancelled: true, Plan: req.Plan, Score: req.Score, MetadataUpdates: res.MetadataUpdates}, nil
		}
		req.Escalated = true
	}

	if c.Full == nil {
		return Outcome{}, errors.New("full review handler not configured")
	}
	res, err := c.Full.Run(ctx, req.FullRequest)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Handler:         "full",
		Approved:        res.Approved,
		Cancelled:       res.Action == ActionCancel,
		Plan:            res.Plan,
		Score:           res.Score,
		MetadataUpdates: res.MetadataUpdates,
	}, nil
}

func (c *Checkpoint) cancelTask(f *task.File, logger *zap.Logger) {
	if f == nil || c.Tasks == nil {
		return
	}
	if err := c.Tasks.Cancel(f, "user_requested"); err != nil {
		logger.Warn("could not move cancelled task to backlog", zap.String("path", f.Path), zap.Error(err))
	}
}
