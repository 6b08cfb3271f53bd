package execution

import "time"

type ActionStatus string

type StepStatus string

type StepType string

const (
	ActionStatusPlanned    ActionStatus = "planned"
	ActionStatusRunning    ActionStatus = "running"
	ActionStatusCompleted  ActionStatus = "completed"
	ActionStatusFailed     ActionStatus = "failed"
	ActionStatusSuperseded ActionStatus = "superseded"
)

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusSimulated StepStatus = "simulated"
	StepStatusSubmitted StepStatus = "submitted"
	StepStatusConfirmed StepStatus = "confirmed"
	StepStatusFailed    StepStatus = "failed"
)

const (
	StepTypeApproval StepType = "approval"
	StepTypeBridge   StepType = "bridge_send"
)

// Intent types recorded in the activity log.
const (
	IntentApprove = "bridge_approve"
	IntentSend    = "bridge_send"
)

type Constraints struct {
	SlippageBps int64  `json:"slippage_bps,omitempty"`
	LzGas       string `json:"lz_gas,omitempty"`
	Simulate    bool   `json:"simulate"`
}

type ActionStep struct {
	StepID          string            `json:"step_id"`
	Type            StepType          `json:"type"`
	Status          StepStatus        `json:"status"`
	ChainID         string            `json:"chain_id"`
	Description     string            `json:"description,omitempty"`
	Target          string            `json:"target"`
	Data            string            `json:"data,omitempty"`
	Value           string            `json:"value"`
	ExpectedOutputs map[string]string `json:"expected_outputs,omitempty"`
	TxHash          string            `json:"tx_hash,omitempty"`
	ExplorerURL     string            `json:"explorer_url,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Action is one approve or send flow as persisted in the activity log.
type Action struct {
	ActionID      string         `json:"action_id"`
	IntentType    string         `json:"intent_type"`
	Direction     string         `json:"direction"`
	Status        ActionStatus   `json:"status"`
	ChainID       string         `json:"chain_id"`
	DestinationID string         `json:"destination_chain_id,omitempty"`
	FromAddress   string         `json:"from_address,omitempty"`
	InputAmount   string         `json:"input_amount,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
	Constraints   Constraints    `json:"constraints"`
	Steps         []ActionStep   `json:"steps"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func NewAction(actionID, intentType, chainID string, constraints Constraints) Action {
	now := time.Now().UTC().Format(time.RFC3339)
	return Action{
		ActionID:    actionID,
		IntentType:  intentType,
		Status:      ActionStatusPlanned,
		ChainID:     chainID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Constraints: constraints,
		Steps:       []ActionStep{},
	}
}

func (a *Action) Touch() {
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Step returns the step with the given id, or nil.
func (a *Action) Step(stepID string) *ActionStep {
	for i := range a.Steps {
		if a.Steps[i].StepID == stepID {
			return &a.Steps[i]
		}
	}
	return nil
}

// MarkStepFailed records msg on the step and fails the whole action.
func (a *Action) MarkStepFailed(step *ActionStep, msg string) {
	step.Status = StepStatusFailed
	step.Error = msg
	a.Status = ActionStatusFailed
	a.Touch()
}
