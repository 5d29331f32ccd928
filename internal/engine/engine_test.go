package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Hritul2/exchange-app/internal/schema"
)

type capturedReply struct {
	ClientID string
	Msg      schema.MessageToAPI
}

type capturedStream struct {
	Channel string
	Msg     schema.StreamMessage
}

type fakePublisher struct {
	replies []capturedReply
	db      []schema.DBMessage
	streams []capturedStream
}

func (p *fakePublisher) SendToAPI(clientID string, msg schema.MessageToAPI) {
	p.replies = append(p.replies, capturedReply{ClientID: clientID, Msg: msg})
}

func (p *fakePublisher) PushDB(msg schema.DBMessage) {
	p.db = append(p.db, msg)
}

func (p *fakePublisher) PublishStream(channel string, msg schema.StreamMessage) {
	p.streams = append(p.streams, capturedStream{Channel: channel, Msg: msg})
}

func (p *fakePublisher) lastReply(t *testing.T) capturedReply {
	t.Helper()
	require.NotEmpty(t, p.replies)
	return p.replies[len(p.replies)-1]
}

func (p *fakePublisher) dbMessagesOfType(msgType string) []schema.DBMessage {
	var out []schema.DBMessage
	for _, msg := range p.db {
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOptions() Options {
	return Options{
		BaseCurrency:     "INR",
		Markets:          []string{"TATA_INR"},
		BootstrapUsers:   []string{"1", "2"},
		BootstrapBalance: dec("1000"),
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	return New(testOptions(), pub), pub
}

func command(t *testing.T, clientID string, msgType schema.MessageType, data any) Command {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Command{
		ClientID: clientID,
		Message:  schema.MessageFromAPI{Type: msgType, Data: raw},
	}
}

func createOrder(t *testing.T, eng *Engine, pub *fakePublisher, clientID, market, price, qty string, side schema.Side, userID string) schema.OrderPlacedPayload {
	t.Helper()
	eng.Process(command(t, clientID, schema.MessageCreateOrder, schema.CreateOrderData{
		Market:   market,
		Price:    price,
		Quantity: qty,
		Side:     side,
		UserID:   userID,
	}))
	reply := pub.lastReply(t)
	require.Equal(t, schema.ReplyOrderPlaced, reply.Msg.Type, "payload: %+v", reply.Msg.Payload)
	return reply.Msg.Payload.(schema.OrderPlacedPayload)
}

func TestCreateOrderFullMatch(t *testing.T) {
	eng, pub := newTestEngine(t)

	sell := createOrder(t, eng, pub, "c1", "TATA_INR", "100", "5", schema.SideSell, "1")
	require.True(t, sell.ExecutedQty.IsZero())
	require.Empty(t, sell.Fills)

	buy := createOrder(t, eng, pub, "c2", "TATA_INR", "100", "5", schema.SideBuy, "2")
	require.Equal(t, "5", buy.ExecutedQty.String())
	require.Len(t, buy.Fills, 1)
	require.Equal(t, "100", buy.Fills[0].Price)

	seller := eng.UserBalance("1", "TATA")
	require.Equal(t, "995", seller.Available.String())
	require.True(t, seller.Locked.IsZero())
	require.Equal(t, "1500", eng.UserBalance("1", "INR").Available.String())

	buyer := eng.UserBalance("2", "INR")
	require.Equal(t, "500", buyer.Available.String())
	require.True(t, buyer.Locked.IsZero())
	require.Equal(t, "1005", eng.UserBalance("2", "TATA").Available.String())

	eng.Process(command(t, "c2", schema.MessageGetDepth, schema.GetDepthData{Market: "TATA_INR"}))
	depth := pub.lastReply(t).Msg.Payload.(schema.DepthPayload)
	require.Empty(t, depth.Asks)
	require.Empty(t, depth.Bids)
}

func TestCreateOrderEmitsEvents(t *testing.T) {
	eng, pub := newTestEngine(t)

	createOrder(t, eng, pub, "c1", "TATA_INR", "100", "5", schema.SideSell, "1")
	pub.db, pub.streams = nil, nil

	createOrder(t, eng, pub, "c2", "TATA_INR", "100", "5", schema.SideBuy, "2")

	trades := pub.dbMessagesOfType(schema.EventTradeAdded)
	require.Len(t, trades, 1)
	trade := trades[0].Data.(schema.TradeAddedData)
	require.Equal(t, "100", trade.Price)
	require.Equal(t, "5", trade.Quantity)
	require.Equal(t, "500", trade.QuoteQuantity)
	require.Equal(t, "TATA_INR", trade.Market)
	require.False(t, trade.IsBuyerMaker)

	updates := pub.dbMessagesOfType(schema.EventOrderUpdate)
	require.Len(t, updates, 2)

	require.Len(t, pub.streams, 2)
	require.Equal(t, "depth@TATA_INR", pub.streams[0].Channel)
	depth := pub.streams[0].Msg.Data.(schema.DepthUpdateData)
	require.Equal(t, [][2]string{{"100", "0"}}, depth.Asks)
	require.Empty(t, depth.Bids)

	require.Equal(t, "trade@TATA_INR", pub.streams[1].Channel)
	tape := pub.streams[1].Msg.Data.(schema.TradeStreamData)
	require.Equal(t, "100", tape.Price)
	require.Equal(t, "5", tape.Qty)
}

func TestCreateOrderInsufficientFunds(t *testing.T) {
	eng, pub := newTestEngine(t)

	eng.Process(command(t, "c1", schema.MessageCreateOrder, schema.CreateOrderData{
		Market:   "TATA_INR",
		Price:    "100",
		Quantity: "50",
		Side:     schema.SideBuy,
		UserID:   "2",
	}))

	reply := pub.lastReply(t)
	require.Equal(t, schema.ReplyError, reply.Msg.Type)
	require.Equal(t, "c1", reply.ClientID)

	bal := eng.UserBalance("2", "INR")
	require.Equal(t, "1000", bal.Available.String())
	require.True(t, bal.Locked.IsZero())
	require.Empty(t, pub.db)
	require.Empty(t, pub.streams)
}

func TestCancelOrderRestoresFunds(t *testing.T) {
	eng, pub := newTestEngine(t)

	placed := createOrder(t, eng, pub, "c1", "TATA_INR", "100", "3", schema.SideBuy, "2")
	require.Equal(t, "300", eng.UserBalance("2", "INR").Locked.String())

	eng.Process(command(t, "c1", schema.MessageCancelOrder, schema.CancelOrderData{
		Market:  "TATA_INR",
		OrderID: placed.OrderID,
	}))
	reply := pub.lastReply(t)
	require.Equal(t, schema.ReplyOrderCancelled, reply.Msg.Type)
	cancelled := reply.Msg.Payload.(schema.OrderCancelledPayload)
	require.Equal(t, placed.OrderID, cancelled.OrderID)
	require.Equal(t, "3", cancelled.RemainingQty.String())

	bal := eng.UserBalance("2", "INR")
	require.Equal(t, "1000", bal.Available.String())
	require.True(t, bal.Locked.IsZero())

	eng.Process(command(t, "c1", schema.MessageGetOpenOrders, schema.GetOpenOrdersData{
		Market: "TATA_INR",
		UserID: "2",
	}))
	open := pub.lastReply(t).Msg.Payload.(schema.OpenOrdersPayload)
	require.Empty(t, open.Orders)
}

func TestCancelUnknownOrder(t *testing.T) {
	eng, pub := newTestEngine(t)

	eng.Process(command(t, "c1", schema.MessageCancelOrder, schema.CancelOrderData{
		Market:  "TATA_INR",
		OrderID: "missing",
	}))
	require.Equal(t, schema.ReplyError, pub.lastReply(t).Msg.Type)
}

func TestPartialFillLeavesRemainderResting(t *testing.T) {
	eng, pub := newTestEngine(t)

	maker := createOrder(t, eng, pub, "c1", "TATA_INR", "100", "10", schema.SideSell, "1")
	taker := createOrder(t, eng, pub, "c2", "TATA_INR", "100", "4", schema.SideBuy, "2")
	require.Equal(t, "4", taker.ExecutedQty.String())

	eng.Process(command(t, "c2", schema.MessageGetDepth, schema.GetDepthData{Market: "TATA_INR"}))
	depth := pub.lastReply(t).Msg.Payload.(schema.DepthPayload)
	require.Equal(t, [][2]string{{"100", "6"}}, depth.Asks)

	eng.Process(command(t, "c1", schema.MessageGetOpenOrders, schema.GetOpenOrdersData{
		Market: "TATA_INR",
		UserID: "1",
	}))
	open := pub.lastReply(t).Msg.Payload.(schema.OpenOrdersPayload)
	require.Len(t, open.Orders, 1)
	require.Equal(t, maker.OrderID, open.Orders[0].OrderID)
	require.Equal(t, "4", open.Orders[0].ExecutedQty.String())

	require.Equal(t, "6", eng.UserBalance("1", "TATA").Locked.String())
}

func TestFundsConservation(t *testing.T) {
	eng, pub := newTestEngine(t)

	total := func(asset string) decimal.Decimal {
		sum := decimal.Zero
		for _, userID := range []string{"1", "2"} {
			bal := eng.UserBalance(userID, asset)
			sum = sum.Add(bal.Available).Add(bal.Locked)
		}
		return sum
	}
	inrBefore, tataBefore := total("INR"), total("TATA")

	createOrder(t, eng, pub, "c1", "TATA_INR", "100", "5", schema.SideSell, "1")
	createOrder(t, eng, pub, "c2", "TATA_INR", "101", "2", schema.SideBuy, "2")
	createOrder(t, eng, pub, "c2", "TATA_INR", "99", "3", schema.SideBuy, "2")
	createOrder(t, eng, pub, "c1", "TATA_INR", "99", "1", schema.SideSell, "1")

	require.True(t, total("INR").Equal(inrBefore))
	require.True(t, total("TATA").Equal(tataBefore))
}

func TestGetDepthIsIdempotent(t *testing.T) {
	eng, pub := newTestEngine(t)

	createOrder(t, eng, pub, "c1", "TATA_INR", "100", "5", schema.SideSell, "1")
	createOrder(t, eng, pub, "c2", "TATA_INR", "98", "2", schema.SideBuy, "2")

	eng.Process(command(t, "c1", schema.MessageGetDepth, schema.GetDepthData{Market: "TATA_INR"}))
	first := pub.lastReply(t).Msg.Payload.(schema.DepthPayload)
	eng.Process(command(t, "c1", schema.MessageGetDepth, schema.GetDepthData{Market: "TATA_INR"}))
	second := pub.lastReply(t).Msg.Payload.(schema.DepthPayload)
	require.Equal(t, first, second)
}

func TestOnRampCreditsBaseCurrency(t *testing.T) {
	eng, pub := newTestEngine(t)

	eng.Process(command(t, "c1", schema.MessageOnRamp, schema.OnRampData{
		UserID: "9",
		Amount: "250",
		TxnID:  "txn-1",
	}))
	require.Empty(t, pub.replies)

	bal := eng.UserBalance("9", "INR")
	require.Equal(t, "250", bal.Available.String())

	updates := pub.dbMessagesOfType(schema.EventBalanceUpdate)
	require.Len(t, updates, 1)
	update := updates[0].Data.(schema.BalanceUpdateData)
	require.Equal(t, "9", update.UserID)
	require.Equal(t, "INR", update.Asset)
}

func TestOnRampIgnoresDuplicateTxn(t *testing.T) {
	eng, pub := newTestEngine(t)

	ramp := command(t, "c1", schema.MessageOnRamp, schema.OnRampData{
		UserID: "9",
		Amount: "250",
		TxnID:  "txn-1",
	})
	eng.Process(ramp)
	eng.Process(ramp)

	require.Equal(t, "250", eng.UserBalance("9", "INR").Available.String())
	require.Len(t, pub.dbMessagesOfType(schema.EventBalanceUpdate), 1)
}

func TestRejectsInvalidCommands(t *testing.T) {
	eng, pub := newTestEngine(t)

	cases := []Command{
		command(t, "c1", schema.MessageCreateOrder, schema.CreateOrderData{
			Market: "SOL_INR", Price: "100", Quantity: "1", Side: schema.SideBuy, UserID: "1",
		}),
		command(t, "c1", schema.MessageCreateOrder, schema.CreateOrderData{
			Market: "TATA_INR", Price: "-5", Quantity: "1", Side: schema.SideBuy, UserID: "1",
		}),
		command(t, "c1", schema.MessageCreateOrder, schema.CreateOrderData{
			Market: "TATA_INR", Price: "100", Quantity: "0", Side: schema.SideSell, UserID: "1",
		}),
		command(t, "c1", schema.MessageCreateOrder, schema.CreateOrderData{
			Market: "TATA_INR", Price: "100", Quantity: "1", Side: "hold", UserID: "1",
		}),
		command(t, "c1", schema.MessageGetDepth, schema.GetDepthData{Market: "nope"}),
		{ClientID: "c1", Message: schema.MessageFromAPI{Type: "UNKNOWN"}},
	}
	for _, cmd := range cases {
		before := len(pub.replies)
		eng.Process(cmd)
		require.Len(t, pub.replies, before+1)
		require.Equal(t, schema.ReplyError, pub.lastReply(t).Msg.Type)
	}
	require.Empty(t, pub.db)
}

func TestAddMarket(t *testing.T) {
	eng, pub := newTestEngine(t)

	require.NoError(t, eng.AddMarket("SOL_INR"))
	require.ErrorIs(t, eng.AddMarket("SOL_INR"), ErrMarketExists)
	require.ErrorIs(t, eng.AddMarket("SOLINR"), ErrInvalidMarket)
	require.Equal(t, []string{"SOL_INR", "TATA_INR"}, eng.Markets())

	createOrder(t, eng, pub, "c1", "SOL_INR", "20", "2", schema.SideBuy, "1")
	require.Equal(t, "40", eng.UserBalance("1", "INR").Locked.String())
}

func TestUserOpenOrdersAcrossMarkets(t *testing.T) {
	eng, pub := newTestEngine(t)
	require.NoError(t, eng.AddMarket("SOL_INR"))

	createOrder(t, eng, pub, "c1", "TATA_INR", "100", "1", schema.SideBuy, "1")
	createOrder(t, eng, pub, "c1", "SOL_INR", "20", "2", schema.SideBuy, "1")

	open := eng.UserOpenOrders("1")
	require.Len(t, open, 2)
	require.Len(t, open["TATA_INR"], 1)
	require.Len(t, open["SOL_INR"], 1)
}

func TestMarketStats(t *testing.T) {
	eng, pub := newTestEngine(t)

	createOrder(t, eng, pub, "c1", "TATA_INR", "100", "5", schema.SideSell, "1")
	createOrder(t, eng, pub, "c2", "TATA_INR", "100", "2", schema.SideBuy, "2")

	stats, err := eng.MarketStats("TATA_INR")
	require.NoError(t, err)
	require.Equal(t, "100", stats.LastPrice.String())
	require.Equal(t, "2", stats.Volume24h.String())
	require.Equal(t, "100", stats.BestAsk)

	_, err = eng.MarketStats("nope")
	require.ErrorIs(t, err, ErrMarketNotFound)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	opts := testOptions()
	opts.SnapshotEnabled = true
	opts.SnapshotPath = path

	pub := &fakePublisher{}
	eng := New(opts, pub)

	maker := createOrder(t, eng, pub, "c1", "TATA_INR", "100", "10", schema.SideSell, "1")
	createOrder(t, eng, pub, "c2", "TATA_INR", "100", "4", schema.SideBuy, "2")
	eng.Process(command(t, "c1", schema.MessageOnRamp, schema.OnRampData{
		UserID: "9", Amount: "250", TxnID: "txn-1",
	}))
	eng.SaveSnapshot()

	pub2 := &fakePublisher{}
	restored := New(opts, pub2)

	for _, c := range []struct{ user, asset string }{
		{"1", "TATA"}, {"1", "INR"}, {"2", "TATA"}, {"2", "INR"},
	} {
		want := eng.UserBalance(c.user, c.asset)
		got := restored.UserBalance(c.user, c.asset)
		require.Equal(t, want.Available.String(), got.Available.String())
		require.Equal(t, want.Locked.String(), got.Locked.String())
	}
	require.Equal(t, "250", restored.UserBalance("9", "INR").Available.String())

	restored.Process(command(t, "c1", schema.MessageGetDepth, schema.GetDepthData{Market: "TATA_INR"}))
	depth := pub2.lastReply(t).Msg.Payload.(schema.DepthPayload)
	require.Equal(t, [][2]string{{"100", "6"}}, depth.Asks)

	open := restored.UserOpenOrders("1")
	require.Len(t, open["TATA_INR"], 1)
	require.Equal(t, maker.OrderID, open["TATA_INR"][0].OrderID)

	restored.Process(command(t, "c1", schema.MessageOnRamp, schema.OnRampData{
		UserID: "9", Amount: "250", TxnID: "txn-1",
	}))
	require.Equal(t, "250", restored.UserBalance("9", "INR").Available.String())
}

type notifyPublisher struct {
	fakePublisher
	pushed chan struct{}
}

func (p *notifyPublisher) PushDB(msg schema.DBMessage) {
	p.fakePublisher.PushDB(msg)
	select {
	case p.pushed <- struct{}{}:
	default:
	}
}

func TestRunWritesFinalSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	opts := testOptions()
	opts.SnapshotEnabled = true
	opts.SnapshotPath = path
	opts.SnapshotInterval = time.Hour

	pub := &notifyPublisher{pushed: make(chan struct{}, 1)}
	eng := New(opts, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	eng.Submit(command(t, "c1", schema.MessageOnRamp, schema.OnRampData{
		UserID: "9", Amount: "100",
	}))

	select {
	case <-pub.pushed:
	case <-time.After(time.Second):
		t.Fatal("command was not processed")
	}
	cancel()
	<-done

	restored := New(opts, &fakePublisher{})
	require.Equal(t, "100", restored.UserBalance("9", "INR").Available.String())
}
