package feature

import (
	"errors"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

var (
	intPattern     = regexp.MustCompile(`^-?[0-9]+$`)
	decimalPattern = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
	hexPattern     = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
	octalPattern   = regexp.MustCompile(`^0[oO][0-7]+$`)
	binaryPattern  = regexp.MustCompile(`^0[bB][01]+$`)
)

// Parse coerces raw into a typed value for def and applies the definition's
// business rules.
func Parse(def Definition, raw string) (Value, error) {
	v := Value{Key: def.Key, Type: def.ValueType, Raw: raw}

	switch def.ValueType {
	case TypeBoolean:
		switch {
		case strings.EqualFold(raw, "true"):
			v.Bool = true
		case strings.EqualFold(raw, "false"):
			v.Bool = false
		default:
			return Value{}, invalid(def, raw, "")
		}

	case TypeInt:
		if !intPattern.MatchString(raw) {
			return Value{}, invalid(def, raw, "")
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, invalid(def, raw, "out of range")
		}
		v.Int = n

	case TypeDecimal:
		f, ok := parseNumber(raw)
		if !ok {
			return Value{}, invalid(def, raw, "")
		}
		v.Decimal = f

	case TypeString:
		// any string is accepted

	default:
		return Value{}, invalid(def, raw, "unsupported value type")
	}

	if err := checkRules(def, v); err != nil {
		return Value{}, err
	}

	return v, nil
}

// Validate reports whether raw is acceptable for def.
func Validate(def Definition, raw string) error {
	_, err := Parse(def, raw)
	return err
}

func checkRules(def Definition, v Value) error {
	if def.NonNegative {
		switch v.Type {
		case TypeInt:
			if v.Int < 0 {
				return invalid(def, v.Raw, "must not be negative")
			}
		case TypeDecimal:
			if v.Decimal < 0 {
				return invalid(def, v.Raw, "must not be negative")
			}
		}
	}

	if len(def.Options) > 0 && v.Type == TypeString && !slices.Contains(def.Options, v.Raw) {
		return invalid(def, v.Raw, "not one of "+strings.Join(def.Options, ", "))
	}

	return nil
}

func invalid(def Definition, raw, reason string) error {
	return &InvalidValueError{
		Key:      def.Key,
		Expected: def.ValueType,
		Raw:      raw,
		Reason:   reason,
	}
}

// parseNumber converts a lenient numeric string: surrounding whitespace is
// ignored, a blank string is zero, Infinity and unsigned 0x/0o/0b literals
// are accepted, anything else must be a plain decimal literal. The second
// result is false when s is not a number.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimFunc(raw, isNumberSpace)
	if s == "" {
		return 0, true
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	switch {
	case hexPattern.MatchString(s):
		return parseRadix(s[2:], 16)
	case octalPattern.MatchString(s):
		return parseRadix(s[2:], 8)
	case binaryPattern.MatchString(s):
		return parseRadix(s[2:], 2)
	}

	if !decimalPattern.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Overflow saturates to ±Inf and underflow to zero.
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

func parseRadix(digits string, base int) (float64, bool) {
	n, err := strconv.ParseUint(digits, base, 64)
	if err == nil {
		return float64(n), true
	}

	// Literals wider than 64 bits still convert to a (lossy) finite number.
	var f float64
	for _, r := range digits {
		d, _ := strconv.ParseUint(string(r), base, 8)
		f = f*float64(base) + float64(d)
	}
	return f, true
}

func isNumberSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
