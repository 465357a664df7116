// Package chain queries Substrate account balances over JSON-RPC with
// ordered multi-endpoint failover per chain.
package chain

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ID identifies a supported chain.
type ID string

const (
	Polkadot ID = "polkadot"
	Kusama   ID = "kusama"
	Westend  ID = "westend"
)

// ParseID validates a chain identifier from request input.
func ParseID(s string) (ID, error) {
	switch ID(s) {
	case Polkadot, Kusama, Westend:
		return ID(s), nil
	}
	return "", fmt.Errorf("unknown chain %q", s)
}

// Balance is the point-in-time account balance on one chain. Amounts are
// base-unit integers; they routinely exceed int64 and are serialized as
// decimal strings. When every endpoint for the chain failed, Error is set
// and the numeric fields are omitted entirely.
type Balance struct {
	Chain        ID
	Address      string
	Free         *big.Int
	Reserved     *big.Int
	Frozen       *big.Int
	Transferable *big.Int
	Total        *big.Int
	Error        string
	Timestamp    time.Time
}

// MarshalJSON renders amounts as decimal strings, or a {chain, address,
// error} shape with no numeric fields when the query failed.
func (b *Balance) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fmt.Fprintf(&buf, `"chain":%s,`, strconv.Quote(string(b.Chain)))
	fmt.Fprintf(&buf, `"address":%s`, strconv.Quote(b.Address))

	if b.Error != "" {
		fmt.Fprintf(&buf, `,"error":%s`, strconv.Quote(b.Error))
	} else {
		fmt.Fprintf(&buf, `,"free":%s`, strconv.Quote(b.Free.String()))
		fmt.Fprintf(&buf, `,"reserved":%s`, strconv.Quote(b.Reserved.String()))
		fmt.Fprintf(&buf, `,"frozen":%s`, strconv.Quote(b.Frozen.String()))
		fmt.Fprintf(&buf, `,"transferable":%s`, strconv.Quote(b.Transferable.String()))
		fmt.Fprintf(&buf, `,"total":%s`, strconv.Quote(b.Total.String()))
	}
	if !b.Timestamp.IsZero() {
		fmt.Fprintf(&buf, `,"timestamp":%s`, strconv.Quote(b.Timestamp.UTC().Format(time.RFC3339)))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Info is basic chain metadata from system_properties / system_chain.
type Info struct {
	Chain      ID             `json:"chain"`
	Name       string         `json:"name"`
	Decimals   int            `json:"decimals"`
	Symbol     string         `json:"symbol"`
	Properties map[string]any `json:"properties"`
}

// flexAmount decodes a balance amount that upstream nodes report as a JSON
// number, a decimal string, or a 0x-prefixed hex string.
type flexAmount struct {
	big.Int
}

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if _, ok := a.SetString(s[2:], 16); !ok {
			return fmt.Errorf("invalid hex amount %q", s)
		}
		return nil
	}
	if _, ok := a.SetString(s, 10); !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	return nil
}
