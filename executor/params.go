package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Params is the loosely typed parameter bag of a task. Values may arrive as
// JSON numbers, strings or Go values depending on the store.
type Params map[string]any

// String returns the parameter as a string, or def when absent or empty.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

// RequiredString returns the parameter or an error naming it.
func (p Params) RequiredString(key string) (string, error) {
	s := p.String(key, "")
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// Amount returns a required positive amount and its text as given.
func (p Params) Amount(key string) (decimal.Decimal, string, error) {
	raw, err := p.RequiredString(key)
	if err != nil {
		return decimal.Zero, "", err
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("invalid %s: %q", key, raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, "", fmt.Errorf("%s must be greater than zero", key)
	}
	return d, raw, nil
}

// Float returns the parameter as a number, or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil || v == "" {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, v)
	}
	return f, nil
}

// Address returns a required hex account address.
func (p Params) Address(key string) (string, error) {
	s, err := p.RequiredString(key)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid %s address: %s", key, s)
	}
	return s, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
