// Package snapshot persists the engine's full in-memory state as one JSON
// document: every book's raw orders plus the balance ledger. Depth caches
// are excluded; they are derived state and get rebuilt on restore.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Hritul2/exchange-app/internal/ledger"
	"github.com/Hritul2/exchange-app/internal/orderbook"
)

// Snapshot is the persisted layout.
type Snapshot struct {
	Orderbooks   []orderbook.BookSnapshot             `json:"orderbooks"`
	Balances     map[string]map[string]ledger.Balance `json:"balances"`
	OnRampTxnIDs []string                             `json:"onRampTxnIds,omitempty"`
}

// Write serializes the snapshot to path via a temp file and rename, so a
// crash mid-write never corrupts the previous snapshot.
func Write(path string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Read loads a snapshot from disk.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
