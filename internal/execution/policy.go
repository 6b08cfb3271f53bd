package execution

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/oft"
	"github.com/ggonzalez94/oftbridge/internal/registry"
)

var (
	policyERC20ABI = mustPolicyABI(registry.ERC20ABI)
	policyOFTABI   = mustPolicyABI(registry.OFTABI)

	policyApproveSelector = policyERC20ABI.Methods["approve"].ID
	policySendSelector    = policyOFTABI.Methods["send"].ID
)

// Expectations are the values a step's calldata must encode before it may be
// submitted. They come from the resolved route and the fresh quote.
type Expectations struct {
	Token        common.Address
	Spender      common.Address
	SendContract common.Address
	Refund       common.Address
	DstEid       uint32
	Amount       *big.Int
	MinAmount    *big.Int
	NativeFee    *big.Int
}

// ValidateStep checks a step against exp. Approvals must target the token,
// name the route spender and approve exactly the amount. Sends must target
// the send contract and pay exactly the quoted native fee.
func ValidateStep(step *ActionStep, exp Expectations) error {
	if step == nil {
		return clierr.New(clierr.CodeInternal, "missing action step")
	}
	if !common.IsHexAddress(step.Target) {
		return clierr.New(clierr.CodeActionPlan, "invalid step target address")
	}
	data, err := decodeHex(step.Data)
	if err != nil {
		return clierr.Wrap(clierr.CodeActionPlan, "decode step calldata", err)
	}
	switch step.Type {
	case StepTypeApproval:
		return validateApprovalPolicy(step, data, exp)
	case StepTypeBridge:
		return validateSendPolicy(step, data, exp)
	default:
		return clierr.New(clierr.CodeActionPlan, fmt.Sprintf("unsupported step type %q", step.Type))
	}
}

func validateApprovalPolicy(step *ActionStep, data []byte, exp Expectations) error {
	if common.HexToAddress(step.Target) != exp.Token {
		return clierr.New(clierr.CodeActionPlan, "approval step must target the route token")
	}
	if len(data) < 4 || !bytes.Equal(data[:4], policyApproveSelector) {
		return clierr.New(clierr.CodeActionPlan, "approval step must use ERC20 approve(spender,amount)")
	}
	args, err := policyERC20ABI.Methods["approve"].Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return clierr.New(clierr.CodeActionPlan, "approval step calldata is invalid")
	}
	spender, ok := toAddress(args[0])
	if !ok || spender != exp.Spender {
		return clierr.New(clierr.CodeActionPlan, "approval step spender does not match route spender")
	}
	amount, ok := toBigInt(args[1])
	if !ok || exp.Amount == nil || amount.Cmp(exp.Amount) != 0 {
		return clierr.New(clierr.CodeActionPlan, "approval amount must equal the transfer amount")
	}
	if v, ok := parseBaseUnits(step.Value); !ok || v.Sign() != 0 {
		return clierr.New(clierr.CodeActionPlan, "approval step must not carry value")
	}
	return nil
}

func validateSendPolicy(step *ActionStep, data []byte, exp Expectations) error {
	if common.HexToAddress(step.Target) != exp.SendContract {
		return clierr.New(clierr.CodeActionPlan, "send step must target the route send contract")
	}
	if len(data) < 4 || !bytes.Equal(data[:4], policySendSelector) {
		return clierr.New(clierr.CodeActionPlan, "send step must call send(p,fee,refundAddress)")
	}
	args, err := policyOFTABI.Methods["send"].Inputs.Unpack(data[4:])
	if err != nil || len(args) != 3 {
		return clierr.New(clierr.CodeActionPlan, "send step calldata is invalid")
	}
	var param oft.SendParam
	if err := convertTuple(args[0], &param); err != nil {
		return clierr.Wrap(clierr.CodeActionPlan, "send step param is invalid", err)
	}
	var fee oft.MessagingFee
	if err := convertTuple(args[1], &fee); err != nil {
		return clierr.Wrap(clierr.CodeActionPlan, "send step fee is invalid", err)
	}
	refund, ok := toAddress(args[2])
	if !ok || refund != exp.Refund {
		return clierr.New(clierr.CodeActionPlan, "send step refund address must be the sender")
	}
	if param.DstEid != exp.DstEid {
		return clierr.New(clierr.CodeActionPlan, fmt.Sprintf("send step destination eid %d does not match route eid %d", param.DstEid, exp.DstEid))
	}
	if exp.Amount == nil || param.AmountLD.Cmp(exp.Amount) != 0 {
		return clierr.New(clierr.CodeActionPlan, "send step amount does not match the quote")
	}
	if exp.MinAmount != nil && param.MinAmountLD.Cmp(exp.MinAmount) != 0 {
		return clierr.New(clierr.CodeActionPlan, "send step min amount does not match the quote")
	}
	if param.MinAmountLD.Cmp(param.AmountLD) > 0 {
		return clierr.New(clierr.CodeActionPlan, "send step min amount exceeds amount")
	}
	if exp.NativeFee == nil || fee.NativeFee.Cmp(exp.NativeFee) != 0 {
		return clierr.New(clierr.CodeActionPlan, "send step fee does not match the quote")
	}
	value, ok := parseBaseUnits(step.Value)
	if !ok || value.Cmp(exp.NativeFee) != 0 {
		return clierr.New(clierr.CodeActionPlan, "send step value must equal the quoted native fee")
	}
	return nil
}

func convertTuple(v any, out any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("convert tuple: %v", r)
		}
	}()
	abi.ConvertType(v, out)
	return nil
}

func parseBaseUnits(value string) (*big.Int, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return new(big.Int), true
	}
	parsed, ok := new(big.Int).SetString(v, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, false
	}
	return parsed, true
}

func toAddress(v any) (common.Address, bool) {
	switch value := v.(type) {
	case common.Address:
		return value, true
	case *common.Address:
		if value == nil {
			return common.Address{}, false
		}
		return *value, true
	default:
		return common.Address{}, false
	}
}

func toBigInt(v any) (*big.Int, bool) {
	switch value := v.(type) {
	case *big.Int:
		if value == nil {
			return nil, false
		}
		return value, true
	case big.Int:
		cpy := value
		return &cpy, true
	default:
		return nil, false
	}
}

func decodeHex(v string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(v), "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return buf, nil
}

func mustPolicyABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
