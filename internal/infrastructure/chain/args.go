package chain

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bimakw/vesting-indexer/internal/domain/asset"
)

const nameCharmap = ".12345abcdefghijklmnopqrstuvwxyz"

// delegateArgsSize is name + name + asset(int64 + symbol) + uint16
const delegateArgsSize = 8 + 8 + 16 + 2

// DelegateArgs are the arguments of a vesting delegate action
type DelegateArgs struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Quantity     string `json:"quantity"`
	InterestRate int    `json:"interest_rate"`
}

// DecodeDelegateArgs decodes delegate arguments given either as a JSON object
// or as a JSON string holding the hex-encoded packed action data.
func DecodeDelegateArgs(data json.RawMessage) (*DelegateArgs, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("empty delegate data")
	}

	if data[0] == '{' {
		var args DelegateArgs
		if err := json.Unmarshal(data, &args); err != nil {
			return nil, fmt.Errorf("failed to decode delegate args: %w", err)
		}
		return &args, nil
	}

	var packedHex string
	if err := json.Unmarshal(data, &packedHex); err != nil {
		return nil, fmt.Errorf("delegate data is neither an object nor a hex string: %w", err)
	}

	raw, err := hex.DecodeString(packedHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode delegate hex: %w", err)
	}

	return UnpackDelegateArgs(raw)
}

// UnpackDelegateArgs decodes the packed binary form of delegate arguments
func UnpackDelegateArgs(raw []byte) (*DelegateArgs, error) {
	if len(raw) != delegateArgsSize {
		return nil, fmt.Errorf("invalid delegate data length: expected %d, got %d", delegateArgsSize, len(raw))
	}

	quantity, err := unpackAsset(raw[16:32])
	if err != nil {
		return nil, err
	}

	return &DelegateArgs{
		From:         NameToString(binary.LittleEndian.Uint64(raw[0:8])),
		To:           NameToString(binary.LittleEndian.Uint64(raw[8:16])),
		Quantity:     quantity,
		InterestRate: int(binary.LittleEndian.Uint16(raw[32:34])),
	}, nil
}

// NameToString decodes a base-32 packed account name
func NameToString(v uint64) string {
	out := make([]byte, 13)
	tmp := v
	for i := 0; i <= 12; i++ {
		if i == 0 {
			out[12-i] = nameCharmap[tmp&0x0f]
			tmp >>= 4
		} else {
			out[12-i] = nameCharmap[tmp&0x1f]
			tmp >>= 5
		}
	}
	return strings.TrimRight(string(out), ".")
}

// StringToName packs an account name into its 64-bit form
func StringToName(s string) uint64 {
	var n uint64
	i := 0
	for ; i < len(s) && i < 12; i++ {
		n |= (nameSymbol(s[i]) & 0x1f) << (64 - 5*(i+1))
	}
	if i == 12 && len(s) > 12 {
		n |= nameSymbol(s[12]) & 0x0f
	}
	return n
}

func nameSymbol(c byte) uint64 {
	switch {
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 6
	case c >= '1' && c <= '5':
		return uint64(c-'1') + 1
	default:
		return 0
	}
}

// unpackAsset decodes int64 amount followed by a symbol word
// (low byte precision, then up to 7 symbol characters)
func unpackAsset(raw []byte) (string, error) {
	amount := int64(binary.LittleEndian.Uint64(raw[0:8]))
	precision := raw[8]
	symbol := strings.TrimRight(string(raw[9:16]), "\x00")
	if symbol == "" {
		return "", fmt.Errorf("empty asset symbol")
	}
	if precision > 18 {
		return "", fmt.Errorf("invalid asset precision %d", precision)
	}
	return asset.Format(amount, int32(precision), symbol), nil
}

// PackDelegateArgs is the inverse of UnpackDelegateArgs
func PackDelegateArgs(args DelegateArgs) ([]byte, error) {
	a, err := asset.Parse(args.Quantity)
	if err != nil {
		return nil, err
	}
	if len(a.Symbol) > 7 {
		return nil, fmt.Errorf("symbol %q too long", a.Symbol)
	}

	raw := make([]byte, delegateArgsSize)
	binary.LittleEndian.PutUint64(raw[0:8], StringToName(args.From))
	binary.LittleEndian.PutUint64(raw[8:16], StringToName(args.To))
	binary.LittleEndian.PutUint64(raw[16:24], uint64(a.Units()))
	raw[24] = byte(a.Decimals)
	copy(raw[25:32], a.Symbol)
	binary.LittleEndian.PutUint16(raw[32:34], uint16(args.InterestRate))
	return raw, nil
}
