package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/Hritul2/exchange-app/internal/ledger"
	"github.com/Hritul2/exchange-app/internal/orderbook"
	"github.com/Hritul2/exchange-app/internal/schema"
	"github.com/Hritul2/exchange-app/internal/snapshot"
)

var (
	ErrInvalidMarket  = errors.New("invalid market format, expected BASE_QUOTE")
	ErrMarketNotFound = errors.New("orderbook not found for market")
	ErrMarketExists   = errors.New("orderbook already exists for market")
	ErrInvalidSide    = errors.New("invalid order side")
)

// Publisher is the engine's outbound boundary. Implementations must be
// fire-and-forget: the matching loop never waits on them.
type Publisher interface {
	SendToAPI(clientID string, msg schema.MessageToAPI)
	PushDB(msg schema.DBMessage)
	PublishStream(channel string, msg schema.StreamMessage)
}

// Options configures a new engine.
type Options struct {
	BaseCurrency     string
	Markets          []string
	BootstrapUsers   []string
	BootstrapBalance decimal.Decimal
	SnapshotPath     string
	SnapshotInterval time.Duration
	SnapshotEnabled  bool
}

// Engine owns every market's order book and the balance ledger. All methods
// must be called from the single goroutine running the command loop.
type Engine struct {
	opts    Options
	books   map[string]*orderbook.Book
	ledger  *ledger.Ledger
	pub     Publisher
	seenTxn map[string]struct{}
	inbox   chan Command
	now     func() time.Time
}

// New builds an engine from a snapshot when one is configured and readable,
// falling back to the bootstrap markets and balances otherwise.
func New(opts Options, pub Publisher) *Engine {
	e := &Engine{
		opts:    opts,
		books:   make(map[string]*orderbook.Book),
		ledger:  ledger.New(),
		pub:     pub,
		seenTxn: make(map[string]struct{}),
		inbox:   make(chan Command, defaultInboxSize),
		now:     time.Now,
	}

	if opts.SnapshotEnabled {
		snap, err := snapshot.Read(opts.SnapshotPath)
		if err == nil {
			e.restore(snap)
			logs.Infof("restored %d orderbooks from snapshot %s", len(e.books), opts.SnapshotPath)
			return e
		}
		logs.Errorf("snapshot load failed, bootstrapping defaults: %v", err)
	}

	e.bootstrap()
	return e
}

func (e *Engine) bootstrap() {
	for _, market := range e.opts.Markets {
		if err := e.AddMarket(market); err != nil {
			logs.Errorf("skip bootstrap market %s: %v", market, err)
		}
	}

	assets := []string{e.opts.BaseCurrency}
	for _, book := range e.books {
		assets = append(assets, book.BaseAsset())
	}
	for _, userID := range e.opts.BootstrapUsers {
		for _, asset := range assets {
			e.ledger.Seed(userID, asset, e.opts.BootstrapBalance)
		}
	}
	logs.Infof("bootstrapped %d markets and %d users", len(e.books), len(e.opts.BootstrapUsers))
}

func (e *Engine) restore(snap snapshot.Snapshot) {
	for _, bs := range snap.Orderbooks {
		book := orderbook.Restore(bs)
		e.books[book.Ticker()] = book
	}
	e.ledger.Restore(snap.Balances)
	for _, txnID := range snap.OnRampTxnIDs {
		e.seenTxn[txnID] = struct{}{}
	}
}

// AddMarket registers an empty order book for a BASE_QUOTE market.
func (e *Engine) AddMarket(market string) error {
	base, quote, err := splitMarket(market)
	if err != nil {
		return err
	}
	if _, ok := e.books[market]; ok {
		return ErrMarketExists
	}
	e.books[market] = orderbook.New(base, quote)
	return nil
}

// Markets lists registered markets in lexical order.
func (e *Engine) Markets() []string {
	out := make([]string, 0, len(e.books))
	for market := range e.books {
		out = append(out, market)
	}
	sort.Strings(out)
	return out
}

// UserBalance returns the user's balance for one asset, zeroed when unknown.
func (e *Engine) UserBalance(userID, asset string) ledger.Balance {
	return e.ledger.Balance(userID, asset)
}

// MarketStats summarises one market's book.
func (e *Engine) MarketStats(market string) (orderbook.Stats, error) {
	book, ok := e.books[market]
	if !ok {
		return orderbook.Stats{}, ErrMarketNotFound
	}
	return book.Stats(), nil
}

// UserOpenOrders returns the user's resting orders across all markets.
func (e *Engine) UserOpenOrders(userID string) map[string][]schema.OpenOrder {
	out := make(map[string][]schema.OpenOrder)
	for market, book := range e.books {
		orders := book.OpenOrders(userID)
		if len(orders) == 0 {
			continue
		}
		out[market] = toOpenOrders(orders)
	}
	return out
}

// Process handles one command end to end: exactly one reply per failure or
// per read/order command, events as side effects of successful mutations.
func (e *Engine) Process(cmd Command) {
	var err error
	switch cmd.Message.Type {
	case schema.MessageCreateOrder:
		err = e.handleCreateOrder(cmd)
	case schema.MessageCancelOrder:
		err = e.handleCancelOrder(cmd)
	case schema.MessageOnRamp:
		err = e.handleOnRamp(cmd)
	case schema.MessageGetDepth:
		err = e.handleGetDepth(cmd)
	case schema.MessageGetOpenOrders:
		err = e.handleGetOpenOrders(cmd)
	default:
		err = errors.Errorf("unknown action type: %s", cmd.Message.Type)
	}
	if err != nil {
		logs.Errorf("%s rejected: %v", cmd.Message.Type, err)
		e.pub.SendToAPI(cmd.ClientID, schema.ErrorReply(err))
	}
}

func (e *Engine) handleCreateOrder(cmd Command) error {
	var data schema.CreateOrderData
	if err := unmarshal(cmd.Message.Data, &data); err != nil {
		return err
	}

	base, quote, err := splitMarket(data.Market)
	if err != nil {
		return err
	}
	book, ok := e.books[data.Market]
	if !ok {
		return errors.Wrap(ErrMarketNotFound, data.Market)
	}
	if !data.Side.Valid() {
		return ErrInvalidSide
	}
	price, err := parsePositive("price", data.Price)
	if err != nil {
		return err
	}
	qty, err := parsePositive("quantity", data.Quantity)
	if err != nil {
		return err
	}

	// lock-then-match-then-settle; nothing before this point mutates state
	if data.Side == schema.SideBuy {
		err = e.ledger.Lock(data.UserID, quote, price.Mul(qty))
	} else {
		err = e.ledger.Lock(data.UserID, base, qty)
	}
	if err != nil {
		return err
	}

	order := &orderbook.Order{
		OrderID:  uuid.NewString(),
		UserID:   data.UserID,
		Side:     data.Side,
		Price:    price,
		Quantity: qty,
		Filled:   decimal.Zero,
	}
	executed, fills := book.AddOrder(order)

	for _, fill := range fills {
		if err := e.ledger.SettleFill(data.UserID, fill.MakerUserID, base, quote, data.Side, fill.Price, fill.Qty); err != nil {
			// invariant violation: the fill happened in the book but funds
			// cannot move; surfaced in logs, command keeps serving
			logs.Errorf("settle fill %d on %s: %v", fill.TradeID, data.Market, err)
		}
	}

	e.emitTrades(fills, data.Market, data.Side)
	e.emitOrderUpdates(order, executed, fills, data.Market)
	e.publishDepthUpdates(book, order, fills)
	e.publishTrades(fills, data.Side, data.Market)

	e.pub.SendToAPI(cmd.ClientID, schema.MessageToAPI{
		Type: schema.ReplyOrderPlaced,
		Payload: schema.OrderPlacedPayload{
			OrderID:     order.OrderID,
			ExecutedQty: executed,
			Fills:       toFillInfos(fills),
		},
	})
	return nil
}

func (e *Engine) handleCancelOrder(cmd Command) error {
	var data schema.CancelOrderData
	if err := unmarshal(cmd.Message.Data, &data); err != nil {
		return err
	}

	base, quote, err := splitMarket(data.Market)
	if err != nil {
		return err
	}
	book, ok := e.books[data.Market]
	if !ok {
		return errors.Wrap(ErrMarketNotFound, data.Market)
	}
	order, found := book.FindOrder(data.OrderID)
	if !found {
		return orderbook.ErrOrderNotFound
	}

	if order.Side == schema.SideBuy {
		err = e.ledger.Unlock(order.UserID, quote, order.Remaining().Mul(order.Price))
	} else {
		err = e.ledger.Unlock(order.UserID, base, order.Remaining())
	}
	if err != nil {
		return errors.Wrap(err, "unlock canceled order funds")
	}
	if _, err := book.Cancel(order.OrderID); err != nil {
		return err
	}

	e.pub.PushDB(schema.DBMessage{
		Type: schema.EventOrderUpdate,
		Data: schema.OrderUpdateData{OrderID: order.OrderID, ExecutedQty: order.Filled},
	})
	e.publishDepthAt(book, order.Side, order.Price)

	e.pub.SendToAPI(cmd.ClientID, schema.MessageToAPI{
		Type: schema.ReplyOrderCancelled,
		Payload: schema.OrderCancelledPayload{
			OrderID:      order.OrderID,
			ExecutedQty:  order.Filled,
			RemainingQty: order.Remaining(),
		},
	})
	return nil
}

func (e *Engine) handleOnRamp(cmd Command) error {
	var data schema.OnRampData
	if err := unmarshal(cmd.Message.Data, &data); err != nil {
		return err
	}
	amount, err := parsePositive("amount", data.Amount)
	if err != nil {
		return err
	}

	if data.TxnID != "" {
		if _, seen := e.seenTxn[data.TxnID]; seen {
			logs.Infof("on-ramp txn %s already processed, ignoring", data.TxnID)
			return nil
		}
	}

	bal, err := e.ledger.OnRamp(data.UserID, e.opts.BaseCurrency, amount)
	if err != nil {
		return err
	}
	if data.TxnID != "" {
		e.seenTxn[data.TxnID] = struct{}{}
	}

	e.pub.PushDB(schema.DBMessage{
		Type: schema.EventBalanceUpdate,
		Data: schema.BalanceUpdateData{
			UserID:    data.UserID,
			Asset:     e.opts.BaseCurrency,
			Available: bal.Available,
			Locked:    bal.Locked,
		},
	})
	return nil
}

func (e *Engine) handleGetDepth(cmd Command) error {
	var data schema.GetDepthData
	if err := unmarshal(cmd.Message.Data, &data); err != nil {
		return err
	}
	book, ok := e.books[data.Market]
	if !ok {
		return errors.Wrap(ErrMarketNotFound, data.Market)
	}
	bids, asks := book.Depth()
	e.pub.SendToAPI(cmd.ClientID, schema.MessageToAPI{
		Type:    schema.ReplyDepth,
		Payload: schema.DepthPayload{Market: data.Market, Bids: bids, Asks: asks},
	})
	return nil
}

func (e *Engine) handleGetOpenOrders(cmd Command) error {
	var data schema.GetOpenOrdersData
	if err := unmarshal(cmd.Message.Data, &data); err != nil {
		return err
	}
	book, ok := e.books[data.Market]
	if !ok {
		return errors.Wrap(ErrMarketNotFound, data.Market)
	}
	e.pub.SendToAPI(cmd.ClientID, schema.MessageToAPI{
		Type:    schema.ReplyOpenOrders,
		Payload: schema.OpenOrdersPayload{Orders: toOpenOrders(book.OpenOrders(data.UserID))},
	})
	return nil
}

func splitMarket(market string) (base, quote string, err error) {
	parts := strings.Split(market, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidMarket
	}
	return parts[0], parts[1], nil
}

func parsePositive(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, errors.Errorf("invalid %s: must be a positive number", field)
	}
	return d, nil
}

func toFillInfos(fills []orderbook.Fill) []schema.FillInfo {
	out := make([]schema.FillInfo, 0, len(fills))
	for _, f := range fills {
		out = append(out, schema.FillInfo{Price: f.Price.String(), Qty: f.Qty, TradeID: f.TradeID})
	}
	return out
}

func toOpenOrders(orders []*orderbook.Order) []schema.OpenOrder {
	out := make([]schema.OpenOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, schema.OpenOrder{
			OrderID:     o.OrderID,
			Price:       o.Price.String(),
			Quantity:    o.Quantity.String(),
			ExecutedQty: o.Filled,
			Side:        o.Side,
			UserID:      o.UserID,
		})
	}
	return out
}
