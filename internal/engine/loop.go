package engine

import (
	"context"
	"sort"
	"time"

	"github.com/yanun0323/logs"

	"github.com/Hritul2/exchange-app/internal/schema"
	"github.com/Hritul2/exchange-app/internal/snapshot"
)

const defaultInboxSize = 1024

// Command is one dequeued gateway command with its caller correlation id.
type Command struct {
	ClientID string
	Message  schema.MessageFromAPI
}

// Submit queues a command for the engine loop. Blocks when the inbox is
// full, which backpressures the inbound consumer, never the loop itself.
func (e *Engine) Submit(cmd Command) {
	e.inbox <- cmd
}

// Run drains the inbox one command at a time. The snapshot ticker shares
// this select, so a snapshot can never observe a half-applied command. A
// final snapshot is written synchronously before returning.
func (e *Engine) Run(ctx context.Context) {
	logs.Info("engine loop started")

	var tick <-chan time.Time
	if e.opts.SnapshotEnabled && e.opts.SnapshotInterval > 0 {
		t := time.NewTicker(e.opts.SnapshotInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			e.SaveSnapshot()
			logs.Info("engine loop stopped")
			return
		case cmd := <-e.inbox:
			e.Process(cmd)
		case <-tick:
			e.SaveSnapshot()
		}
	}
}

// SaveSnapshot serializes books, balances and processed on-ramp txn ids.
// I/O failures are logged and swallowed; the engine keeps serving from
// memory.
func (e *Engine) SaveSnapshot() {
	if !e.opts.SnapshotEnabled {
		return
	}
	if err := snapshot.Write(e.opts.SnapshotPath, e.buildSnapshot()); err != nil {
		logs.Errorf("snapshot write failed: %v", err)
	}
}

func (e *Engine) buildSnapshot() snapshot.Snapshot {
	snap := snapshot.Snapshot{
		Balances: e.ledger.Export(),
	}
	for _, market := range e.Markets() {
		snap.Orderbooks = append(snap.Orderbooks, e.books[market].Snapshot())
	}
	for txnID := range e.seenTxn {
		snap.OnRampTxnIDs = append(snap.OnRampTxnIDs, txnID)
	}
	sort.Strings(snap.OnRampTxnIDs)
	return snap
}
