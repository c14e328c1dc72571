package bindings

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var valueUnits = map[string]int32{
	"wei":   0,
	"gwei":  9,
	"ether": 18,
}

// EncodeCall encodes a call from a human readable signature such as
// "setFee(address,uint256)" and its arguments given as strings.
func EncodeCall(signature string, args []string) ([]byte, error) {
	name, arguments, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}

	values, err := ConvertArgs(arguments, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", signature, err)
	}

	packed, err := arguments.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack arguments of %s: %w", signature, err)
	}

	types := make([]string, len(arguments))
	for i, arg := range arguments {
		types[i] = arg.Type.String()
	}
	selector := crypto.Keccak256([]byte(name + "(" + strings.Join(types, ",") + ")"))[:4]

	return append(selector, packed...), nil
}

// ParseSignature splits "name(type,...)" into the function name and its
// argument list. Tuple and array arguments are not supported.
func ParseSignature(signature string) (string, abi.Arguments, error) {
	signature = strings.TrimSpace(signature)
	open := strings.Index(signature, "(")
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return "", nil, fmt.Errorf("invalid function signature %q", signature)
	}

	name := signature[:open]
	inner := strings.TrimSpace(signature[open+1 : len(signature)-1])
	if strings.ContainsAny(inner, "()[]") {
		return "", nil, fmt.Errorf("invalid function signature %q: tuple and array arguments are not supported", signature)
	}

	var arguments abi.Arguments
	if inner == "" {
		return name, arguments, nil
	}
	for _, part := range strings.Split(inner, ",") {
		// "address owner" is accepted; the parameter name is dropped
		fields := strings.Fields(part)
		if len(fields) == 0 {
			return "", nil, fmt.Errorf("invalid function signature %q: empty argument", signature)
		}
		typ, err := abi.NewType(fields[0], "", nil)
		if err != nil {
			return "", nil, fmt.Errorf("invalid argument type %q: %w", fields[0], err)
		}
		arguments = append(arguments, abi.Argument{Type: typ})
	}
	return name, arguments, nil
}

// ConvertArgs converts string arguments into the Go values expected by the
// abi package for the given argument types.
func ConvertArgs(arguments abi.Arguments, args []string) ([]any, error) {
	if len(args) != len(arguments) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(arguments), len(args))
	}

	values := make([]any, len(args))
	for i, arg := range arguments {
		value, err := convertArg(arg.Type, strings.TrimSpace(args[i]))
		if err != nil {
			return nil, fmt.Errorf("argument #%d (%s): %w", i, arg.Type.String(), err)
		}
		values[i] = value
	}
	return values, nil
}

func convertArg(typ abi.Type, raw string) (any, error) {
	switch typ.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid address %q", raw)
		}
		return common.HexToAddress(raw), nil

	case abi.BoolTy:
		switch strings.ToLower(raw) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid bool %q", raw)

	case abi.StringTy:
		return raw, nil

	case abi.BytesTy:
		return hexutil.Decode(raw)

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(raw)
		if err != nil {
			return nil, err
		}
		if len(b) > typ.Size {
			return nil, fmt.Errorf("%d bytes do not fit in bytes%d", len(b), typ.Size)
		}
		array := reflect.New(typ.GetType()).Elem()
		reflect.Copy(array, reflect.ValueOf(b))
		return array.Interface(), nil

	case abi.IntTy, abi.UintTy:
		n, ok := new(big.Int).SetString(raw, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		if typ.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s for unsigned type", raw)
		}
		goType := typ.GetType()
		if goType == reflect.TypeOf(&big.Int{}) {
			return n, nil
		}
		if typ.T == abi.UintTy {
			if !n.IsUint64() {
				return nil, fmt.Errorf("%s overflows %s", raw, typ.String())
			}
			v := reflect.New(goType).Elem()
			if v.OverflowUint(n.Uint64()) {
				return nil, fmt.Errorf("%s overflows %s", raw, typ.String())
			}
			v.SetUint(n.Uint64())
			return v.Interface(), nil
		}
		if !n.IsInt64() {
			return nil, fmt.Errorf("%s overflows %s", raw, typ.String())
		}
		v := reflect.New(goType).Elem()
		if v.OverflowInt(n.Int64()) {
			return nil, fmt.Errorf("%s overflows %s", raw, typ.String())
		}
		v.SetInt(n.Int64())
		return v.Interface(), nil
	}

	return nil, fmt.Errorf("unsupported argument type %s", typ.String())
}

// ParseValue parses a native value such as "0", "1000000000" (wei),
// "1.5 ether" or "20 gwei". An empty string is zero.
func ParseValue(raw string) (*big.Int, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return new(big.Int), nil
	}
	if len(fields) > 2 {
		return nil, fmt.Errorf("invalid value %q", raw)
	}

	exp := int32(0)
	if len(fields) == 2 {
		unit, ok := valueUnits[strings.ToLower(fields[1])]
		if !ok {
			return nil, fmt.Errorf("invalid value %q: unknown unit %s", raw, fields[1])
		}
		exp = unit
	}

	amount, err := decimal.NewFromString(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", raw, err)
	}
	wei := amount.Shift(exp)
	if !wei.IsInteger() || wei.Sign() < 0 {
		return nil, fmt.Errorf("invalid value %q: not a whole, non-negative wei amount", raw)
	}
	return wei.BigInt(), nil
}

// FormatEther renders a wei amount in ether, trimming trailing zeros
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}
