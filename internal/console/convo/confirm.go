package convo

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudcrafter/console/common/trace"
	"github.com/cloudcrafter/console/internal/console/jobs"
	"github.com/cloudcrafter/console/internal/console/observability"
	"github.com/cloudcrafter/console/internal/console/session"
)

// ErrNoBlueprint is returned when confirm is invoked but the session carries
// no usable infrastructure blueprint.  The apply is never attempted.
var ErrNoBlueprint = errors.New("convo: no usable blueprint in session attributes")

const noBlueprintText = "⚠️ I can't start the deployment: the infrastructure blueprint is missing from this session. Please regenerate the plan."

// confirmPlan is the plan-confirmation coordinator.  It reads the blueprint
// from the session attributes as they are *now* — not as they were when the
// plan message was created — validates it, asks the backend to start the
// apply, and hands the new job to the poller.
//
// Every failure path appends exactly one user-visible bot message; no
// failure leaves a partial state behind.
func (c *Conversation) confirmPlan(ctx context.Context, planJobID string) error {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	log := observability.WithTrace(ctx).With("conversation_id", c.id, "plan_job_id", planJobID)

	raw := c.sess.Current()[session.AttrBlueprint]
	blueprint, err := parseBlueprint(raw)
	if err != nil {
		log.Warn("confirm rejected", "err", err)
		c.mu.Lock()
		c.appendLocked(&Message{Role: RoleBot, Kind: KindPlain, Text: noBlueprintText})
		c.mu.Unlock()
		return err
	}

	applyJobID, err := c.jobsClient.StartApply(ctx, planJobID, blueprint)
	if err != nil {
		log.Warn("apply start failed", "err", err)
		c.mu.Lock()
		c.appendLocked(&Message{
			Role: RoleBot,
			Kind: KindPlain,
			Text: "❌ The deployment could not be started. Please try again in a moment.",
		})
		c.mu.Unlock()
		return fmt.Errorf("convo: start apply: %w", err)
	}

	c.mu.Lock()
	c.planPending = false
	c.mu.Unlock()

	log.Info("apply job started", "apply_job_id", applyJobID)
	c.startJob(jobs.KindApply, applyJobID)
	return nil
}
