package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Account is one ledger record: arbitrary-sized data addressed by a fixed
// key, owned by exactly one authority at a time.
type Account struct {
	Key       Address `json:"key"`
	Authority Address `json:"authority"`
	Lamports  uint64  `json:"lamports"`
	Data      []byte  `json:"data"`
}

// Key prefixes. Account state lives under "acct:"; escrow balances are plain
// accounts with empty data, no separate prefix needed.
const prefixAccount = "acct:"

func accountKey(addr Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixAccount, addr.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// Store provides Pebble-based persistence for one ledger layer.
// Multi-reader; writers serialize through the owning program's lock.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get loads an account. Returns nil if the account does not exist.
func (s *Store) Get(addr Address) (*Account, error) {
	data, closer, err := s.db.Get(accountKey(addr))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	defer closer.Close()

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &acc, nil
}

// Put persists an account, overwriting any previous state.
func (s *Store) Put(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := s.db.Set(accountKey(acc.Key), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// SetAuthority transfers account ownership. The account must exist.
func (s *Store) SetAuthority(addr, authority Address) error {
	acc, err := s.Get(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("account %s not found", addr.Hex())
	}
	acc.Authority = authority
	return s.Put(acc)
}

// Delete removes an account.
func (s *Store) Delete(addr Address) error {
	if err := s.db.Delete(accountKey(addr), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// Scan visits every account in key order. The visitor returns false to stop.
// Accounts with undecodable values are skipped, not surfaced as errors.
func (s *Store) Scan(visit func(*Account) bool) error {
	prefix := []byte(prefixAccount)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var acc Account
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			continue
		}
		if !visit(&acc) {
			break
		}
	}
	return nil
}

// Reader is the read-only view components take when they must not mutate
// ledger state (keeper discovery, delegation checks, privacy assessment).
type Reader interface {
	Get(addr Address) (*Account, error)
	Scan(visit func(*Account) bool) error
}

var _ Reader = (*Store)(nil)

// Batch groups writes for atomic commit.
type Batch struct {
	batch *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (b *Batch) Put(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	return b.batch.Set(accountKey(acc.Key), data, nil)
}

func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *Batch) Close() error {
	return b.batch.Close()
}
