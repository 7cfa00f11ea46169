package marketdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// DB indexes observed market data in sqlite. Writes go through a single
// writer goroutine with batched transactions; if the writer falls
// behind, records are dropped. The session journal remains the source
// of truth, this index exists for queries.
type DB struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqPrice reqKind = iota + 1
	reqPosition
	reqName
	reqFlush
)

type req struct {
	kind reqKind

	price    priceRow
	position positionRow
	name     nameRow
	flushed  chan struct{}
}

type priceRow struct {
	Block uint64
	Price uint64
}

type positionRow struct {
	Address  string
	Block    uint64
	Balance  uint64
	Holdings uint64
}

type nameRow struct {
	Address string
	Name    string
}

// PricePoint is one indexed price observation.
type PricePoint struct {
	Block uint64
	Price uint64
}

// PositionRow is the latest indexed portfolio for one participant.
type PositionRow struct {
	Address  string
	Name     string
	Balance  uint64
	Holdings uint64
	Block    uint64
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS price_points (
			block INTEGER PRIMARY KEY,
			price INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS positions (
			address TEXT NOT NULL,
			block INTEGER NOT NULL,
			balance INTEGER NOT NULL,
			holdings INTEGER NOT NULL,
			PRIMARY KEY (address, block)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_block ON positions(block);`,
		`CREATE TABLE IF NOT EXISTS names (
			address TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *DB) RecordPrice(blockHeight, price uint64) {
	s.enqueue(req{kind: reqPrice, price: priceRow{Block: blockHeight, Price: price}})
}

func (s *DB) RecordPosition(address string, balance, holdings, blockHeight uint64) {
	s.enqueue(req{kind: reqPosition, position: positionRow{
		Address:  address,
		Block:    blockHeight,
		Balance:  balance,
		Holdings: holdings,
	}})
}

func (s *DB) RecordName(address, name string) {
	s.enqueue(req{kind: reqName, name: nameRow{Address: address, Name: name}})
}

func (s *DB) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind.
	}
}

// Flush blocks until every record enqueued before the call is committed.
func (s *DB) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, flushed: done}
	<-done
}

// PriceRange returns the indexed prices with from <= block <= to,
// ordered by block.
func (s *DB) PriceRange(ctx context.Context, from, to uint64) ([]PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block, price FROM price_points WHERE block >= ? AND block <= ? ORDER BY block`,
		int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Block, &p.Price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopPositions returns each participant's latest indexed position,
// ordered by net worth at the given price, best first.
func (s *DB) TopPositions(ctx context.Context, price uint64, limit int) ([]PositionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.address, COALESCE(n.name, ''), p.balance, p.holdings, p.block
		FROM positions p
		JOIN (SELECT address, MAX(block) AS block FROM positions GROUP BY address) latest
			ON p.address = latest.address AND p.block = latest.block
		LEFT JOIN names n ON n.address = p.address
		ORDER BY p.balance + p.holdings * ? DESC
		LIMIT ?`, int64(price), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var r PositionRow
		if err := rows.Scan(&r.Address, &r.Name, &r.Balance, &r.Holdings, &r.Block); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LookupName returns the indexed display name for address, if any.
func (s *DB) LookupName(ctx context.Context, address string) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM names WHERE address = ?`, address).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (s *DB) loop() {
	ctx := context.Background()

	insertPrice, _ := s.db.Prepare(`INSERT OR REPLACE INTO price_points(block,price,recorded_at) VALUES(?,?,?)`)
	insertPosition, _ := s.db.Prepare(`INSERT OR REPLACE INTO positions(address,block,balance,holdings) VALUES(?,?,?,?)`)
	insertName, _ := s.db.Prepare(`INSERT OR REPLACE INTO names(address,name,updated_at) VALUES(?,?,?)`)
	defer func() {
		if insertPrice != nil {
			_ = insertPrice.Close()
		}
		if insertPosition != nil {
			_ = insertPosition.Close()
		}
		if insertName != nil {
			_ = insertName.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.flushed)
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		switch r.kind {
		case reqPrice:
			if insertPrice != nil {
				if _, err := tx.Stmt(insertPrice).Exec(int64(r.price.Block), int64(r.price.Price), now); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqPosition:
			p := r.position
			if insertPosition != nil {
				if _, err := tx.Stmt(insertPosition).Exec(p.Address, int64(p.Block), int64(p.Balance), int64(p.Holdings)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqName:
			if insertName != nil {
				if _, err := tx.Stmt(insertName).Exec(r.name.Address, r.name.Name, now); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
