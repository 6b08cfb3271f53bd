package diag

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/httpx"
	"github.com/ggonzalez94/oftbridge/internal/transfer"
)

const resultPreviewLen = 66

// Simulation is the outcome of replaying a send through eth_call. A revert
// is a successful diagnosis, not an error.
type Simulation struct {
	RPCURL       string             `json:"rpc_url"`
	From         string             `json:"from"`
	To           string             `json:"to"`
	Value        string             `json:"value"`
	Calldata     string             `json:"calldata"`
	OK           bool               `json:"ok"`
	Result       string             `json:"result,omitempty"`
	Message      string             `json:"message,omitempty"`
	RevertReason string             `json:"revert_reason,omitempty"`
	RevertData   string             `json:"revert_data,omitempty"`
	Selector     string             `json:"selector,omitempty"`
	Quote        transfer.QuoteView `json:"quote"`
}

// Simulate runs call against caller. Transport failures are returned as
// errors; execution failures are reported in the result.
func Simulate(ctx context.Context, caller *RPCCaller, call transfer.SendCall) (Simulation, error) {
	to := call.To
	out := Simulation{
		RPCURL:   caller.URL(),
		From:     call.From.Hex(),
		To:       to.Hex(),
		Value:    call.Value.String(),
		Calldata: hexutil.Encode(call.Data),
		Quote:    call.Quote,
	}
	res, err := caller.CallContract(ctx, ethereum.CallMsg{From: call.From, To: &to, Value: call.Value, Data: call.Data}, nil)
	if err == nil {
		out.OK = true
		out.Result = preview(hexutil.Encode(res))
		return out, nil
	}

	var rpcErr *httpx.RPCError
	if !errors.As(err, &rpcErr) {
		return Simulation{}, err
	}
	out.Message = rpcErr.Message
	revert := execution.DecodeRevert(execution.RevertDataFromError(err))
	out.RevertReason = revert.Reason
	out.RevertData = revert.Data
	out.Selector = revert.Selector
	return out, nil
}

func preview(v string) string {
	if len(v) <= resultPreviewLen {
		return v
	}
	return v[:resultPreviewLen] + "..."
}
