// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/MostProtocol/most-mbtc-core/state"
	"github.com/ethereum/go-ethereum/log"
	_ "github.com/mattn/go-sqlite3"
)

// maxIssues bounds the number of write errors kept between two flushes.
const maxIssues = 10

// SQLite is a journal persisted in a SQLite database. Receipts are handed to
// a background worker so that consuming them never blocks on disk.
type SQLite struct {
	db *sql.DB

	commands chan<- command  // < commands to background worker
	syncs    <-chan error    // < signalled when syncing with background worker
	done     <-chan struct{} // < when background work is done

	closeOnce sync.Once
	closeErr  error
}

type command struct {
	receipt *state.Receipt // nil for a sync request
}

// OpenSQLite opens (or creates) the journal at path. The special path
// ":memory:" keeps the journal in memory.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	commands := make(chan command, 1024)
	syncs := make(chan error)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var issues []error
		extraIssues := 0
		for command := range commands {
			if command.receipt == nil {
				if extraIssues > 0 {
					issues = append(issues, fmt.Errorf("%d additional errors truncated", extraIssues))
					extraIssues = 0
				}
				syncs <- errors.Join(issues...)
				issues = issues[:0]
				continue
			}
			if err := insert(db, command.receipt); err != nil {
				if len(issues) < maxIssues {
					issues = append(issues, fmt.Errorf("receipt at %d: %w", command.receipt.Time, err))
				} else {
					extraIssues++
				}
			}
		}
	}()

	log.Info("Journal opened", "path", path)
	return &SQLite{db: db, commands: commands, syncs: syncs, done: done}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq      INTEGER PRIMARY KEY AUTOINCREMENT,
			time     INTEGER NOT NULL,
			caller   TEXT NOT NULL,
			contract TEXT NOT NULL,
			name     TEXT NOT NULL,
			data     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_name ON events(name, time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_contract ON events(contract, time)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:32], err)
		}
	}
	return nil
}

// insert stores all logs of a receipt in one transaction.
func insert(db *sql.DB, receipt *state.Receipt) error {
	if len(receipt.Logs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, entry := range receipt.Logs {
		data, err := json.Marshal(entry.Event)
		if err != nil {
			return errors.Join(err, tx.Rollback())
		}
		_, err = tx.Exec(`INSERT INTO events (time, caller, contract, name, data) VALUES (?,?,?,?,?)`,
			receipt.Time, receipt.Caller.Hex(), entry.Address.Hex(), entry.Event.EventName(), string(data))
		if err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	return tx.Commit()
}

// Consume queues the receipt for writing.
func (s *SQLite) Consume(receipt *state.Receipt) {
	if receipt == nil || len(receipt.Logs) == 0 {
		return
	}
	s.commands <- command{receipt: receipt}
}

// Flush waits for all queued receipts and reports the write errors
// encountered since the last flush.
func (s *SQLite) Flush() error {
	s.commands <- command{}
	return <-s.syncs
}

// Query returns the matching entries in commit order.
func (s *SQLite) Query(filter Filter) ([]Entry, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Name != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Contract != common.ZeroAddress {
		conditions = append(conditions, "contract = ?")
		args = append(args, filter.Contract.Hex())
	}
	if filter.Since > 0 {
		conditions = append(conditions, "time >= ?")
		args = append(args, filter.Since)
	}
	query := "SELECT seq, time, caller, contract, name, data FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var (
			entry            Entry
			caller, contract string
		)
		if err := rows.Scan(&entry.Seq, &entry.Time, &caller, &contract, &entry.Name, &entry.Data); err != nil {
			return nil, err
		}
		entry.Caller = common.HexToAddress(caller)
		entry.Contract = common.HexToAddress(contract)
		res = append(res, entry)
	}
	return res, rows.Err()
}

// Close flushes pending receipts, stops the worker and closes the database.
func (s *SQLite) Close() error {
	s.closeOnce.Do(func() {
		flushErr := s.Flush()
		close(s.commands)
		<-s.done
		s.closeErr = errors.Join(flushErr, s.db.Close())
		log.Info("Journal closed")
	})
	return s.closeErr
}
