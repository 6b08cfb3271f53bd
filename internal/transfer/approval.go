package transfer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/network"
	"github.com/ggonzalez94/oftbridge/internal/oft"
	"github.com/ggonzalez94/oftbridge/internal/route"
	"github.com/ggonzalez94/oftbridge/internal/session"
	"github.com/rs/zerolog"
)

// ApprovalResult describes what ensureApproval found and did.
type ApprovalResult struct {
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
	Required  string `json:"required"`
	Submitted bool   `json:"submitted"`
	TxHash    string `json:"tx_hash,omitempty"`
}

// ApprovalManager tops up the spender allowance with an exact approval.
type ApprovalManager struct {
	log zerolog.Logger
}

func NewApprovalManager(logger zerolog.Logger) *ApprovalManager {
	return &ApprovalManager{log: logger.With().Str("component", "approval").Logger()}
}

// Ensure returns without a transaction when the allowance already covers
// amount. Otherwise it approves exactly amount to rt.Spender and returns
// once the approval is confirmed.
func (m *ApprovalManager) Ensure(ctx context.Context, h network.Handle, rt route.Route, amount *big.Int, tr *tracker) (ApprovalResult, error) {
	if err := requireSource(h, rt); err != nil {
		return ApprovalResult{}, err
	}
	owner := h.Conn.Account()
	res := ApprovalResult{Spender: rt.Spender.Hex(), Required: amount.String()}

	allowance, err := oft.NewToken(rt.Token, h.Conn.Caller()).Allowance(ctx, owner, rt.Spender)
	if err != nil {
		return res, h.Result(clierr.Wrap(clierr.CodeUnavailable, "read allowance", err))
	}
	if err := h.Checkpoint(); err != nil {
		return res, err
	}
	res.Allowance = allowance.String()

	stepTemplate := execution.ActionStep{
		StepID:      "approve",
		Type:        execution.StepTypeApproval,
		ChainID:     rt.Source.CAIP2(),
		Description: fmt.Sprintf("Approve %s to spend %s", rt.Spender.Hex(), amount.String()),
		Target:      rt.Token.Hex(),
		Value:       "0",
		Status:      execution.StepStatusPending,
	}
	if allowance.Cmp(amount) >= 0 {
		stepTemplate.Status = execution.StepStatusSkipped
		tr.addStep(stepTemplate)
		m.log.Debug().Str("allowance", allowance.String()).Msg("allowance sufficient")
		return res, nil
	}

	data, err := oft.PackApprove(rt.Spender, amount)
	if err != nil {
		return res, clierr.Wrap(clierr.CodeInternal, "pack approve", err)
	}
	stepTemplate.Data = hexutil.Encode(data)
	step := tr.addStep(stepTemplate)
	if err := execution.ValidateStep(step, execution.Expectations{Token: rt.Token, Spender: rt.Spender, Amount: amount}); err != nil {
		return res, err
	}

	m.log.Info().Str("spender", rt.Spender.Hex()).Str("amount", amount.String()).Msg("requesting approval")
	hash, err := h.Send(ctx, rt.Token, data, nil)
	if err != nil {
		return res, approvalError("submit approval", err)
	}
	res.Submitted = true
	res.TxHash = hash.Hex()
	markSubmitted(step, hash, rt)
	tr.running()

	if _, err := h.WaitReceipt(ctx, hash); err != nil {
		step.Error = err.Error()
		return res, approvalError("approval transaction", h.Result(err))
	}
	step.Status = execution.StepStatusConfirmed
	tr.save()
	if err := h.Checkpoint(); err != nil {
		return res, err
	}
	m.log.Info().Str("tx_hash", hash.Hex()).Msg("approval confirmed")
	return res, nil
}

func approvalError(op string, err error) error {
	if session.IsSuperseded(err) {
		return err
	}
	return clierr.Wrap(clierr.CodeApproval, "approval failed: "+op, err)
}

func markSubmitted(step *execution.ActionStep, hash common.Hash, rt route.Route) {
	step.Status = execution.StepStatusSubmitted
	step.TxHash = hash.Hex()
	if rt.Source.ExplorerURL != "" {
		step.ExplorerURL = rt.Source.ExplorerURL + "/tx/" + hash.Hex()
	}
}
