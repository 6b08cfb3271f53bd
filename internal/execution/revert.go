package execution

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
)

// Revert describes revert data returned by a node.
type Revert struct {
	Reason   string `json:"reason,omitempty"`
	Selector string `json:"selector,omitempty"`
	Data     string `json:"data,omitempty"`
}

// DecodeRevert interprets raw revert bytes. Error(string) and Panic(uint256)
// payloads yield a reason; anything else keeps only its selector.
func DecodeRevert(data []byte) Revert {
	if len(data) == 0 {
		return Revert{}
	}
	out := Revert{Data: "0x" + hex.EncodeToString(data)}
	if len(data) >= 4 {
		out.Selector = "0x" + hex.EncodeToString(data[:4])
	}
	out.Reason = decodeRevertData(data)
	return out
}

func decodeRevertData(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	return fmt.Sprintf("custom error 0x%s", hex.EncodeToString(data[:4]))
}

// RevertDataFromError extracts revert bytes carried by an RPC error.
func RevertDataFromError(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		if !strings.HasPrefix(v, "0x") {
			return nil
		}
		return common.FromHex(v)
	case []byte:
		return v
	default:
		return nil
	}
}

func decodeRevertFromError(err error) string {
	return decodeRevertData(RevertDataFromError(err))
}

// WrapEVMError wraps an eth_call, gas estimation or broadcast failure and
// folds the decoded revert reason into the message.
func WrapEVMError(code clierr.Code, message string, err error) error {
	return wrapEVMExecutionError(code, message, err)
}

func wrapEVMExecutionError(code clierr.Code, message string, err error) error {
	if err == nil {
		return nil
	}
	if reason := decodeRevertFromError(err); reason != "" {
		return clierr.Wrap(code, fmt.Sprintf("%s: %s", message, reason), err)
	}
	return clierr.Wrap(code, message, err)
}
