// Package ledger holds per-user, per-asset available/locked balances. It is
// owned by the dispatcher; the order book never touches money.
package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/Hritul2/exchange-app/internal/schema"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientLocked = errors.New("insufficient locked funds")
	ErrNegativeAmount     = errors.New("amount must not be negative")
)

// Balance is one (user, asset) entry. Entries are created lazily and zeroed
// rather than removed.
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

// Ledger maps userId -> asset -> balance.
type Ledger struct {
	accounts map[string]map[string]*Balance
}

func New() *Ledger {
	return &Ledger{accounts: make(map[string]map[string]*Balance)}
}

func (l *Ledger) entry(userID, asset string) *Balance {
	assets, ok := l.accounts[userID]
	if !ok {
		assets = make(map[string]*Balance)
		l.accounts[userID] = assets
	}
	bal, ok := assets[asset]
	if !ok {
		bal = &Balance{Available: decimal.Zero, Locked: decimal.Zero}
		assets[asset] = bal
	}
	return bal
}

// Balance returns a copy of the entry, zeroed when unknown.
func (l *Ledger) Balance(userID, asset string) Balance {
	if assets, ok := l.accounts[userID]; ok {
		if bal, ok := assets[asset]; ok {
			return *bal
		}
	}
	return Balance{Available: decimal.Zero, Locked: decimal.Zero}
}

// HasUser reports whether the user has any ledger entry.
func (l *Ledger) HasUser(userID string) bool {
	_, ok := l.accounts[userID]
	return ok
}

// Seed credits available funds directly, creating the user if absent. Used
// only for bootstrap balances.
func (l *Ledger) Seed(userID, asset string, amount decimal.Decimal) {
	bal := l.entry(userID, asset)
	bal.Available = bal.Available.Add(amount)
}

// OnRamp credits available funds and returns the resulting balance.
func (l *Ledger) OnRamp(userID, asset string, amount decimal.Decimal) (Balance, error) {
	if amount.IsNegative() {
		return Balance{}, ErrNegativeAmount
	}
	bal := l.entry(userID, asset)
	bal.Available = bal.Available.Add(amount)
	return *bal, nil
}

// Lock reserves funds against an open order. All-or-nothing: it fails
// without touching the entry when available < amount.
func (l *Ledger) Lock(userID, asset string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !l.HasUser(userID) {
		return ErrUserNotFound
	}
	bal := l.entry(userID, asset)
	if bal.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	bal.Available = bal.Available.Sub(amount)
	bal.Locked = bal.Locked.Add(amount)
	return nil
}

// Unlock returns reserved funds to available, used on cancellation.
func (l *Ledger) Unlock(userID, asset string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !l.HasUser(userID) {
		return ErrUserNotFound
	}
	bal := l.entry(userID, asset)
	if bal.Locked.LessThan(amount) {
		return ErrInsufficientLocked
	}
	bal.Locked = bal.Locked.Sub(amount)
	bal.Available = bal.Available.Add(amount)
	return nil
}

// SettleFill settles one fill between taker and maker at the maker's price.
// The quote amount moves from the buyer's locked balance to the seller's
// available balance, and the base amount from the seller's locked balance to
// the buyer's available balance. Both debits are validated before either
// side is mutated, so a failed settlement leaves the ledger untouched.
func (l *Ledger) SettleFill(takerID, makerID, baseAsset, quoteAsset string, takerSide schema.Side, price, qty decimal.Decimal) error {
	quoteAmount := price.Mul(qty)

	buyerID, sellerID := takerID, makerID
	if takerSide == schema.SideSell {
		buyerID, sellerID = makerID, takerID
	}

	buyerQuote := l.entry(buyerID, quoteAsset)
	sellerBase := l.entry(sellerID, baseAsset)
	if buyerQuote.Locked.LessThan(quoteAmount) {
		return errors.Wrap(ErrInsufficientLocked, "settle quote leg for user "+buyerID)
	}
	if sellerBase.Locked.LessThan(qty) {
		return errors.Wrap(ErrInsufficientLocked, "settle base leg for user "+sellerID)
	}

	buyerQuote.Locked = buyerQuote.Locked.Sub(quoteAmount)
	sellerBase.Locked = sellerBase.Locked.Sub(qty)

	sellerQuote := l.entry(sellerID, quoteAsset)
	sellerQuote.Available = sellerQuote.Available.Add(quoteAmount)
	buyerBase := l.entry(buyerID, baseAsset)
	buyerBase.Available = buyerBase.Available.Add(qty)
	return nil
}

// TotalSupply sums available+locked over all users for one asset.
func (l *Ledger) TotalSupply(asset string) decimal.Decimal {
	total := decimal.Zero
	for _, assets := range l.accounts {
		if bal, ok := assets[asset]; ok {
			total = total.Add(bal.Available).Add(bal.Locked)
		}
	}
	return total
}

// Export copies all entries for snapshotting.
func (l *Ledger) Export() map[string]map[string]Balance {
	out := make(map[string]map[string]Balance, len(l.accounts))
	for userID, assets := range l.accounts {
		entries := make(map[string]Balance, len(assets))
		for asset, bal := range assets {
			entries[asset] = *bal
		}
		out[userID] = entries
	}
	return out
}

// Restore replaces all entries from a snapshot.
func (l *Ledger) Restore(balances map[string]map[string]Balance) {
	l.accounts = make(map[string]map[string]*Balance, len(balances))
	for userID, assets := range balances {
		entries := make(map[string]*Balance, len(assets))
		for asset, bal := range assets {
			b := bal
			entries[asset] = &b
		}
		l.accounts[userID] = entries
	}
}
