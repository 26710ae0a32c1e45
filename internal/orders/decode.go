package orders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	malformedHistoryMessage = "The stored order history is incomplete or malformed."
	unreadableHistoryFormat = "Failed to load your order history: %s. The history has been cleared."
)

// decodeResult separates well-formed orders from the entries that failed the shape check.
type decodeResult struct {
	orders  []Order
	dropped int
	// parseErr is set when the payload is not valid JSON.
	parseErr error
	// notArray is set when valid JSON holds something other than an array.
	notArray bool
	// shapeErr describes the first malformed entry.
	shapeErr error
}

func decodeOrders(raw []byte) decodeResult {
	trimmed := bytes.TrimSpace(raw)
	var generic any
	if err := json.Unmarshal(trimmed, &generic); err != nil {
		return decodeResult{parseErr: err}
	}
	var entries []json.RawMessage
	if trimmed[0] != '[' || json.Unmarshal(trimmed, &entries) != nil {
		return decodeResult{notArray: true, shapeErr: errors.New("order history is not an array")}
	}

	var res decodeResult
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		order, err := decodeOrder(entry)
		if err == nil {
			if _, dup := seen[order.OrderID]; dup {
				err = fmt.Errorf("order %q appears twice", order.OrderID)
			}
		}
		if err != nil {
			if res.shapeErr == nil {
				res.shapeErr = fmt.Errorf("entry %d: %w", i, err)
			}
			res.dropped++
			continue
		}
		seen[order.OrderID] = struct{}{}
		res.orders = append(res.orders, order)
	}
	return res
}

func decodeOrder(entry json.RawMessage) (Order, error) {
	var order Order
	if err := json.Unmarshal(entry, &order); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(order.OrderID) == "" {
		return Order{}, errors.New("missing orderId")
	}
	if !order.Status.IsValid() {
		return Order{}, fmt.Errorf("unknown status %q", order.Status)
	}
	return order, nil
}

// userMessage mirrors the copy shown when the history is reset.
func (r decodeResult) userMessage() string {
	if r.parseErr != nil {
		return fmt.Sprintf(unreadableHistoryFormat, r.parseErr.Error())
	}
	return malformedHistoryMessage
}

// salvageable reports whether individual entries can be kept.
func (r decodeResult) salvageable() bool {
	return r.parseErr == nil && !r.notArray
}

func (r decodeResult) err() error {
	if r.parseErr != nil {
		return r.parseErr
	}
	return r.shapeErr
}
