// Package bridge encodes the native-asset bridge call.
package bridge

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	wordSize = 32
	words    = 7

	// PayloadLength is the selector plus seven 32-byte words
	PayloadLength = 4 + words*wordSize

	// emptyBytesOffset points the dynamic bytes argument past the six head words
	emptyBytesOffset = 6 * wordSize
)

// Selector of bridgeAsset(uint32,address,uint256,address,bool,bytes)
var Selector = []byte{0xcd, 0x58, 0x65, 0x79}

var (
	ErrNegativeAmount = fmt.Errorf("bridge amount is negative")
	ErrAmountOverflow = fmt.Errorf("bridge amount does not fit 256 bits")
	ErrInvalidPayload = fmt.Errorf("invalid bridge payload")
)

// Encode builds the bridge call payload. The token is always the zero address
// (native asset) and the permit data is always empty. The result is always
// PayloadLength bytes and depends only on the arguments.
func Encode(destinationNetworkID uint32, destination common.Address, amount *big.Int, forceUpdate bool) ([]byte, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrAmountOverflow
	}

	out := make([]byte, 0, PayloadLength)
	out = append(out, Selector...)
	out = appendWord(out, uint256.NewInt(uint64(destinationNetworkID)))
	out = append(out, common.LeftPadBytes(destination.Bytes(), wordSize)...)
	out = appendWord(out, value)
	out = append(out, make([]byte, wordSize)...) // token
	var flag uint64
	if forceUpdate {
		flag = 1
	}
	out = appendWord(out, uint256.NewInt(flag))
	out = appendWord(out, uint256.NewInt(emptyBytesOffset))
	out = appendWord(out, uint256.NewInt(0)) // permit data length
	return out, nil
}

func appendWord(out []byte, v *uint256.Int) []byte {
	w := v.Bytes32()
	return append(out, w[:]...)
}

// Payload is a decoded bridge call
type Payload struct {
	DestinationNetworkID uint32
	Destination          common.Address
	Amount               *big.Int
	Token                common.Address
	ForceUpdate          bool
}

// Decode parses a payload produced by Encode
func Decode(data []byte) (*Payload, error) {
	if len(data) != PayloadLength {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidPayload, len(data), PayloadLength)
	}
	if !bytes.Equal(data[:4], Selector) {
		return nil, fmt.Errorf("%w: selector %x", ErrInvalidPayload, data[:4])
	}
	word := func(i int) []byte {
		start := 4 + i*wordSize
		return data[start : start+wordSize]
	}

	id := new(uint256.Int).SetBytes(word(0))
	if !id.IsUint64() || id.Uint64() > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: destination network id overflows uint32", ErrInvalidPayload)
	}
	return &Payload{
		DestinationNetworkID: uint32(id.Uint64()),
		Destination:          common.BytesToAddress(word(1)),
		Amount:               new(uint256.Int).SetBytes(word(2)).ToBig(),
		Token:                common.BytesToAddress(word(3)),
		ForceUpdate:          new(uint256.Int).SetBytes(word(4)).Uint64() == 1,
	}, nil
}
