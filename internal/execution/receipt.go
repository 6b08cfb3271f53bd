package execution

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
)

type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitForReceipt polls until hash is mined. Polling errors are retried until
// the step timeout. A failed receipt is returned with a reverted error. A
// non-nil check runs after every unsuccessful poll and its error ends the
// wait.
func WaitForReceipt(ctx context.Context, client ReceiptReader, hash common.Hash, opts ExecuteOptions, check func() error) (*types.Receipt, error) {
	opts = opts.normalized()
	waitCtx, cancel := context.WithTimeout(ctx, opts.StepTimeout)
	defer cancel()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return receipt, nil
			}
			return receipt, clierr.New(clierr.CodeReverted, "transaction reverted on-chain: "+hash.Hex())
		}
		if check != nil {
			if err := check(); err != nil {
				return nil, err
			}
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, clierr.Wrap(clierr.CodeActionTimeout, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}
