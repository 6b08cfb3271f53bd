// Package oft encodes LayerZero OFT messages and reads the token and bridge
// contracts a route points at.
package oft

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	optionsTypeV3       uint16 = 3
	workerIDExecutor    uint8  = 1
	optionTypeLzReceive uint8  = 1
	uint128Size                = 16
	bpsDenominator             = 10_000
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// AddressToBytes32 left-pads an EVM address to the 32-byte recipient form.
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// Bytes32ToAddress takes the low 20 bytes of a peer entry.
func Bytes32ToAddress(b [32]byte) common.Address {
	return common.BytesToAddress(b[12:])
}

// ExecutorLzReceiveOptions builds type-3 options carrying one executor
// lzReceive option with the destination gas budget and optional native value.
func ExecutorLzReceiveOptions(gas, value *big.Int) ([]byte, error) {
	if gas == nil || gas.Sign() <= 0 {
		return nil, fmt.Errorf("invalid lz gas: must be greater than zero")
	}
	if gas.Cmp(maxUint128) > 0 {
		return nil, fmt.Errorf("invalid lz gas: exceeds uint128")
	}
	if value != nil && (value.Sign() < 0 || value.Cmp(maxUint128) > 0) {
		return nil, fmt.Errorf("invalid lz receive value")
	}

	option := make([]byte, 0, 2*uint128Size)
	option = append(option, common.LeftPadBytes(gas.Bytes(), uint128Size)...)
	if value != nil && value.Sign() > 0 {
		option = append(option, common.LeftPadBytes(value.Bytes(), uint128Size)...)
	}

	out := make([]byte, 0, 2+1+2+1+len(option))
	out = binary.BigEndian.AppendUint16(out, optionsTypeV3)
	out = append(out, workerIDExecutor)
	out = binary.BigEndian.AppendUint16(out, uint16(len(option)+1))
	out = append(out, optionTypeLzReceive)
	out = append(out, option...)
	return out, nil
}

// SlippageBps converts a percentage into basis points, clamping to [0,100]
// and rounding half away from zero.
func SlippageBps(pct decimal.Decimal) int64 {
	if pct.LessThan(decimal.Zero) {
		pct = decimal.Zero
	}
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}
	return pct.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MinAmount returns amount * (10000 - bps) / 10000 using integer division.
func MinAmount(amount *big.Int, bps int64) *big.Int {
	if bps < 0 {
		bps = 0
	}
	if bps > bpsDenominator {
		bps = bpsDenominator
	}
	out := new(big.Int).Mul(amount, big.NewInt(bpsDenominator-bps))
	return out.Quo(out, big.NewInt(bpsDenominator))
}
