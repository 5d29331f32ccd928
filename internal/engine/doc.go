/*
Engine implements the exchange matching core.

# Module
  - command dispatcher: validates gateway commands then orchestrates ledger
    and order books in one synchronous step per command
  - balance ledger: per-user per-asset available/locked funds; locked before
    matching, settled per fill
  - order books: one per market, price-time priority matching
  - snapshotter: periodic durable serialization of books and balances

# Source
 1. commands from the API gateway via the Redis command list
 2. snapshot restore at startup

# Produce
  - one reply per command on the caller correlation channel
  - persistence events for the db-sync worker
  - depth/trade deltas on per-market fan-out channels

# Concurrency
  - a single goroutine owns all state; the snapshot timer shares its select
*/
package engine
