package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/safdo/cryptoshield/internal/logging"
	"github.com/safdo/cryptoshield/internal/metrics"
	"github.com/safdo/cryptoshield/internal/traces"
)

// ErrAllEndpointsFailed is returned when every endpoint of a chain has been
// tried without success.
var ErrAllEndpointsFailed = errors.New("all RPC endpoints failed")

// Client issues JSON-RPC calls against per-chain ordered endpoint lists.
// Endpoints are tried sequentially; the first success wins and nothing is
// cached between calls.
type Client struct {
	endpoints map[ID][]string
	timeout   time.Duration
	http      *http.Client
}

// NewClient builds a client from per-chain endpoint lists and a per-attempt
// timeout.
func NewClient(endpoints map[ID][]string, timeout time.Duration) *Client {
	return &Client{
		endpoints: endpoints,
		timeout:   timeout,
		// The overall request deadline is enforced per attempt via context;
		// the transport timeout is a backstop.
		http: &http.Client{Timeout: timeout + time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC 2.0 POST against a single endpoint, bounded by
// the per-attempt timeout.
func (c *Client) call(ctx context.Context, endpoint, method string, params []any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, errors.New("empty rpc result")
	}
	return rpcResp.Result, nil
}

// callWithFailover walks the chain's endpoint list in order and returns the
// first successful result. Every attempt outcome is counted; exhausting the
// list returns the accumulated per-endpoint failures.
func (c *Client) callWithFailover(ctx context.Context, chain ID, method string, params []any) (_ json.RawMessage, retErr error) {
	ctx, span := traces.StartSpan(ctx, "chain.rpc",
		traces.Chain(string(chain)), attribute.String("rpc.method", method))
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	endpoints := c.endpoints[chain]
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured for chain %s", chain)
	}

	logger := logging.L(ctx)
	var failures []string
	for _, endpoint := range endpoints {
		result, err := c.attempt(ctx, endpoint, method, params)
		if err == nil {
			metrics.RPCAttemptsTotal.WithLabelValues(string(chain), "success").Inc()
			return result, nil
		}
		metrics.RPCAttemptsTotal.WithLabelValues(string(chain), "failure").Inc()
		logger.Warn("rpc endpoint attempt failed",
			"chain", chain, "endpoint", endpoint, "method", method, "error", err)
		failures = append(failures, fmt.Sprintf("%s: %v", endpoint, err))
	}

	metrics.RPCExhaustedTotal.WithLabelValues(string(chain)).Inc()
	return nil, fmt.Errorf("%w for %s: %s", ErrAllEndpointsFailed, chain, strings.Join(failures, "; "))
}

// attempt wraps one endpoint call in its own span so failover paths show up
// as sibling attempts under the chain.rpc span.
func (c *Client) attempt(ctx context.Context, endpoint, method string, params []any) (_ json.RawMessage, retErr error) {
	ctx, span := traces.StartSpan(ctx, "chain.rpc.attempt", traces.Endpoint(endpoint))
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	return c.call(ctx, endpoint, method, params)
}

type accountData struct {
	Free       flexAmount `json:"free"`
	Reserved   flexAmount `json:"reserved"`
	Frozen     flexAmount `json:"frozen"`
	MiscFrozen flexAmount `json:"miscFrozen"`
}

type accountInfo struct {
	Data accountData `json:"data"`
}

// GetBalance fetches the account balance for one chain. Failures never
// return an error value; they are folded into the Balance's Error field so
// multi-chain queries stay isolated per chain.
func (c *Client) GetBalance(ctx context.Context, chain ID, address string) *Balance {
	result, err := c.callWithFailover(ctx, chain, "system_account", []any{address})
	if err != nil {
		return &Balance{
			Chain:     chain,
			Address:   address,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}

	var info accountInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return &Balance{
			Chain:     chain,
			Address:   address,
			Error:     fmt.Sprintf("malformed account data: %v", err),
			Timestamp: time.Now().UTC(),
		}
	}

	free := &info.Data.Free.Int
	reserved := &info.Data.Reserved.Int
	// Older runtimes report miscFrozen instead of frozen.
	frozen := &info.Data.Frozen.Int
	if frozen.Sign() == 0 && info.Data.MiscFrozen.Sign() != 0 {
		frozen = &info.Data.MiscFrozen.Int
	}

	// transferable = max(0, free - frozen); total = free + reserved
	transferable := new(big.Int).Sub(free, frozen)
	if transferable.Sign() < 0 {
		transferable.SetInt64(0)
	}

	return &Balance{
		Chain:        chain,
		Address:      address,
		Free:         free,
		Reserved:     reserved,
		Frozen:       frozen,
		Transferable: transferable,
		Total:        new(big.Int).Add(free, reserved),
		Timestamp:    time.Now().UTC(),
	}
}

// GetBalances queries the requested chains concurrently. Results preserve
// the input order and each chain fails independently.
func (c *Client) GetBalances(ctx context.Context, address string, chains []ID) []*Balance {
	results := make([]*Balance, len(chains))

	var wg sync.WaitGroup
	for i, chain := range chains {
		wg.Add(1)
		go func(i int, chain ID) {
			defer wg.Done()
			results[i] = c.GetBalance(ctx, chain, address)
		}(i, chain)
	}
	wg.Wait()

	return results
}

// GetChainInfo fetches chain metadata via system_properties and
// system_chain. The chain name is best-effort; properties are required.
func (c *Client) GetChainInfo(ctx context.Context, chain ID) (*Info, error) {
	propsRaw, err := c.callWithFailover(ctx, chain, "system_properties", nil)
	if err != nil {
		return nil, err
	}

	var props map[string]any
	if err := json.Unmarshal(propsRaw, &props); err != nil {
		return nil, fmt.Errorf("malformed system_properties: %w", err)
	}

	info := &Info{
		Chain:      chain,
		Decimals:   10,
		Symbol:     "DOT",
		Properties: props,
	}
	if d, ok := firstListEntry(props["tokenDecimals"]); ok {
		if f, ok := d.(float64); ok {
			info.Decimals = int(f)
		}
	}
	if s, ok := firstListEntry(props["tokenSymbol"]); ok {
		if str, ok := s.(string); ok {
			info.Symbol = str
		}
	}

	if nameRaw, err := c.callWithFailover(ctx, chain, "system_chain", nil); err == nil {
		_ = json.Unmarshal(nameRaw, &info.Name)
	}

	return info, nil
}

// firstListEntry unwraps Substrate's scalar-or-array property encoding.
func firstListEntry(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		if len(t) == 0 {
			return nil, false
		}
		return t[0], true
	default:
		return t, true
	}
}
