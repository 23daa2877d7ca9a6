package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// streamEnvelope is the outer shape of a combined-stream message.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// bookTickerMessage is one top-of-book update. Prices and quantities arrive
// as decimal strings.
type bookTickerMessage struct {
	UpdateID  int64  `json:"u"`
	Symbol    string `json:"s"`
	BidPrice  string `json:"b"`
	BidQty    string `json:"B"`
	AskPrice  string `json:"a"`
	AskQty    string `json:"A"`
	EventTime int64  `json:"E"`
}

// parseBookTop decodes a raw stream message into a BookTop. The receivedAt
// time is used when the message carries no event time of its own.
func parseBookTop(raw []byte, receivedAt time.Time) (domain.BookTop, error) {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.BookTop{}, fmt.Errorf("feed: decode envelope: %w", err)
	}
	payload := env.Data
	if payload == nil {
		// Single-stream endpoints deliver the ticker without an envelope.
		payload = raw
	}

	var msg bookTickerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.BookTop{}, fmt.Errorf("feed: decode ticker: %w", err)
	}
	if msg.Symbol == "" {
		return domain.BookTop{}, fmt.Errorf("feed: ticker missing symbol")
	}

	top := domain.BookTop{Symbol: msg.Symbol, UpdatedAt: receivedAt}
	if msg.EventTime > 0 {
		top.UpdatedAt = time.UnixMilli(msg.EventTime).UTC()
	}

	var err error
	if top.BidPrice, err = strconv.ParseFloat(msg.BidPrice, 64); err != nil {
		return domain.BookTop{}, fmt.Errorf("feed: parse bid price %q: %w", msg.BidPrice, err)
	}
	if top.BidQty, err = strconv.ParseFloat(msg.BidQty, 64); err != nil {
		return domain.BookTop{}, fmt.Errorf("feed: parse bid qty %q: %w", msg.BidQty, err)
	}
	if top.AskPrice, err = strconv.ParseFloat(msg.AskPrice, 64); err != nil {
		return domain.BookTop{}, fmt.Errorf("feed: parse ask price %q: %w", msg.AskPrice, err)
	}
	if top.AskQty, err = strconv.ParseFloat(msg.AskQty, 64); err != nil {
		return domain.BookTop{}, fmt.Errorf("feed: parse ask qty %q: %w", msg.AskQty, err)
	}
	return top, nil
}

// StreamURL builds the combined-stream URL subscribing every symbol's
// book-ticker channel.
func StreamURL(baseURL string, symbols []string) string {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@bookTicker"
	}
	return strings.TrimRight(baseURL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}
