package transfer

import (
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/session"
	"github.com/rs/zerolog"
)

// Journal persists activity records. *execution.Store satisfies it.
type Journal interface {
	Save(action execution.Action) error
}

// tracker owns the activity record of one flow. The record is first written
// when a transaction is submitted or the flow fails.
type tracker struct {
	journal Journal
	action  execution.Action
	saved   bool
	log     zerolog.Logger
}

func newTracker(journal Journal, action execution.Action, logger zerolog.Logger) *tracker {
	return &tracker{journal: journal, action: action, log: logger}
}

func (t *tracker) addStep(step execution.ActionStep) *execution.ActionStep {
	t.action.Steps = append(t.action.Steps, step)
	t.action.Touch()
	return &t.action.Steps[len(t.action.Steps)-1]
}

func (t *tracker) save() {
	if t.journal == nil {
		return
	}
	t.action.Touch()
	if err := t.journal.Save(t.action); err != nil {
		t.log.Warn().Err(err).Str("action_id", t.action.ActionID).Msg("record activity")
		return
	}
	t.saved = true
}

// running marks the action in flight and persists it.
func (t *tracker) running() {
	t.action.Status = execution.ActionStatusRunning
	t.save()
}

// finish records the outcome. Successful and superseded flows are only
// recorded when they submitted a transaction.
func (t *tracker) finish(err error) {
	switch {
	case err == nil:
		if !t.saved {
			return
		}
		t.action.Status = execution.ActionStatusCompleted
	case session.IsSuperseded(err):
		if !t.saved {
			return
		}
		t.action.Status = execution.ActionStatusSuperseded
	default:
		t.action.Status = execution.ActionStatusFailed
		for i := range t.action.Steps {
			step := &t.action.Steps[i]
			if step.Status == execution.StepStatusPending || step.Status == execution.StepStatusSubmitted {
				t.action.MarkStepFailed(step, err.Error())
				break
			}
		}
	}
	t.save()
}
