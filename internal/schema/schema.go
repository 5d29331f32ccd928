// Package schema defines the message contracts between the engine and its
// collaborators: the API gateway (commands in, replies out), the db-sync
// worker (persistence events) and the websocket fan-out server (stream
// events). The JSON layout is the wire contract and must not drift.
package schema

import "encoding/json"

// MessageType discriminates inbound commands.
type MessageType string

const (
	MessageCreateOrder   MessageType = "CREATE_ORDER"
	MessageCancelOrder   MessageType = "CANCEL_ORDER"
	MessageOnRamp        MessageType = "ON_RAMP"
	MessageGetDepth      MessageType = "GET_DEPTH"
	MessageGetOpenOrders MessageType = "GET_OPEN_ORDERS"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// MessageFromAPI is the type-discriminated command body.
type MessageFromAPI struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// CommandEnvelope is what the gateway pushes onto the command list. ClientID
// is the caller correlation id; the reply is published on that channel.
type CommandEnvelope struct {
	ClientID string         `json:"clientId"`
	Message  MessageFromAPI `json:"message"`
}

// CreateOrderData carries CREATE_ORDER fields. Price and quantity arrive as
// strings and are parsed by the dispatcher.
type CreateOrderData struct {
	Market   string `json:"market"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Side     Side   `json:"side"`
	UserID   string `json:"userId"`
}

type CancelOrderData struct {
	OrderID string `json:"orderId"`
	Market  string `json:"market"`
}

type OnRampData struct {
	Amount string `json:"amount"`
	UserID string `json:"userId"`
	TxnID  string `json:"txnId"`
}

type GetDepthData struct {
	Market string `json:"market"`
}

type GetOpenOrdersData struct {
	UserID string `json:"userId"`
	Market string `json:"market"`
}
