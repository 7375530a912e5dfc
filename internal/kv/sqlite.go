package kv

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"

	"github.com/nishad/redbiom/internal/rerr"
)

// SQLiteClient backs Client with a single SQLite database, repurposing
// the teacher's connection-setup/pragma-tuning pattern
// (internal/database/database.go) on three generic tables instead of the
// SRA relational schema. A semaphore bounds the number of in-flight
// pipelined requests, mirroring the concurrency budget the Context
// Store and Loader place on the real backend.
type SQLiteClient struct {
	db  *sql.DB
	sem *semaphore.Weighted
}

// Open creates (or reopens) a SQLite-backed KV store at path. path may be
// ":memory:" for tests.
func Open(path string, maxInFlight int64) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=10000")
	if err != nil {
		return nil, rerr.E(rerr.Op("kv.Open"), rerr.KindTransport, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-100000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=10000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, rerr.E(rerr.Op("kv.Open"), rerr.KindTransport, err, "applying pragma: "+p)
		}
	}

	if maxInFlight <= 0 {
		maxInFlight = 32
	}
	c := &SQLiteClient{db: db, sem: semaphore.NewWeighted(maxInFlight)}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteClient) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv_hash (
			hkey  TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (hkey, field)
		)`,
		`CREATE TABLE IF NOT EXISTS kv_set (
			skey   TEXT NOT NULL,
			member TEXT NOT NULL,
			PRIMARY KEY (skey, member)
		)`,
		`CREATE INDEX IF NOT EXISTS kv_set_member_idx ON kv_set(member)`,
		`CREATE TABLE IF NOT EXISTS kv_list (
			lkey TEXT NOT NULL,
			seq  INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (lkey, seq)
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return rerr.E(rerr.Op("kv.createSchema"), rerr.KindTransport, err)
		}
	}
	return nil
}

func (c *SQLiteClient) acquire(ctx context.Context) (func(), error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, rerr.E(rerr.Op("kv"), rerr.KindTransport, err, "acquiring in-flight slot")
	}
	return func() { c.sem.Release(1) }, nil
}

func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// --- Hash commands ---

func (c *SQLiteClient) HGet(ctx context.Context, key, field string) (string, bool, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return "", false, err
	}
	defer release()

	var value string
	err = c.db.QueryRowContext(ctx, `SELECT value FROM kv_hash WHERE hkey = ? AND field = ?`, key, field).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, rerr.E(rerr.Op("kv.HGet"), rerr.KindTransport, err)
	}
	return value, true, nil
}

func (c *SQLiteClient) HSet(ctx context.Context, key, field, value string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	_, err = c.db.ExecContext(ctx, `INSERT INTO kv_hash(hkey, field, value) VALUES (?, ?, ?)
		ON CONFLICT(hkey, field) DO UPDATE SET value = excluded.value`, key, field, value)
	if err != nil {
		return rerr.E(rerr.Op("kv.HSet"), rerr.KindTransport, err)
	}
	return nil
}

func (c *SQLiteClient) HMSet(ctx context.Context, key string, fields map[string]string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return rerr.E(rerr.Op("kv.HMSet"), rerr.KindTransport, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO kv_hash(hkey, field, value) VALUES (?, ?, ?)
		ON CONFLICT(hkey, field) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return rerr.E(rerr.Op("kv.HMSet"), rerr.KindTransport, err)
	}
	defer stmt.Close()

	for field, value := range fields {
		if _, err := stmt.ExecContext(ctx, key, field, value); err != nil {
			return rerr.E(rerr.Op("kv.HMSet"), rerr.KindTransport, err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := c.db.QueryContext(ctx, `SELECT field, value FROM kv_hash WHERE hkey = ?`, key)
	if err != nil {
		return nil, rerr.E(rerr.Op("kv.HGetAll"), rerr.KindTransport, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, rerr.E(rerr.Op("kv.HGetAll"), rerr.KindTransport, err)
		}
		out[field] = value
	}
	return out, rows.Err()
}

func (c *SQLiteClient) HMGet(ctx context.Context, key string, fields []string) ([]string, []bool, error) {
	all, err := c.HGetAll(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	values := make([]string, len(fields))
	found := make([]bool, len(fields))
	for i, f := range fields {
		if v, ok := all[f]; ok {
			values[i] = v
			found[i] = true
		}
	}
	return values, found, nil
}

func (c *SQLiteClient) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, rerr.E(rerr.Op("kv.HIncrBy"), rerr.KindTransport, err)
	}
	defer tx.Rollback()

	var cur int64
	row := tx.QueryRowContext(ctx, `SELECT value FROM kv_hash WHERE hkey = ? AND field = ?`, key, field)
	var s string
	switch err := row.Scan(&s); err {
	case nil:
		cur, _ = strconv.ParseInt(s, 10, 64)
	case sql.ErrNoRows:
		cur = 0
	default:
		return 0, rerr.E(rerr.Op("kv.HIncrBy"), rerr.KindTransport, err)
	}

	next := cur + delta
	_, err = tx.ExecContext(ctx, `INSERT INTO kv_hash(hkey, field, value) VALUES (?, ?, ?)
		ON CONFLICT(hkey, field) DO UPDATE SET value = excluded.value`, key, field, strconv.FormatInt(next, 10))
	if err != nil {
		return 0, rerr.E(rerr.Op("kv.HIncrBy"), rerr.KindTransport, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, rerr.E(rerr.Op("kv.HIncrBy"), rerr.KindTransport, err)
	}
	return next, nil
}

func (c *SQLiteClient) HLen(ctx context.Context, key string) (int64, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int64
	err = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_hash WHERE hkey = ?`, key).Scan(&n)
	if err != nil {
		return 0, rerr.E(rerr.Op("kv.HLen"), rerr.KindTransport, err)
	}
	return n, nil
}

func (c *SQLiteClient) HDel(ctx context.Context, key, field string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	_, err = c.db.ExecContext(ctx, `DELETE FROM kv_hash WHERE hkey = ? AND field = ?`, key, field)
	if err != nil {
		return rerr.E(rerr.Op("kv.HDel"), rerr.KindTransport, err)
	}
	return nil
}

func (c *SQLiteClient) HExists(ctx context.Context, key, field string) (bool, error) {
	_, ok, err := c.HGet(ctx, key, field)
	return ok, err
}

// --- Set commands ---

func (c *SQLiteClient) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return rerr.E(rerr.Op("kv.SAdd"), rerr.KindTransport, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO kv_set(skey, member) VALUES (?, ?)`)
	if err != nil {
		return rerr.E(rerr.Op("kv.SAdd"), rerr.KindTransport, err)
	}
	defer stmt.Close()

	for _, m := range members {
		if _, err := stmt.ExecContext(ctx, key, m); err != nil {
			return rerr.E(rerr.Op("kv.SAdd"), rerr.KindTransport, err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteClient) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	placeholders := make([]string, len(members))
	args := make([]interface{}, 0, len(members)+1)
	args = append(args, key)
	for i, m := range members {
		placeholders[i] = "?"
		args = append(args, m)
	}
	q := fmt.Sprintf(`DELETE FROM kv_set WHERE skey = ? AND member IN (%s)`, strings.Join(placeholders, ","))
	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return rerr.E(rerr.Op("kv.SRem"), rerr.KindTransport, err)
	}
	return nil
}

func (c *SQLiteClient) SMembers(ctx context.Context, key string) ([]string, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := c.db.QueryContext(ctx, `SELECT member FROM kv_set WHERE skey = ?`, key)
	if err != nil {
		return nil, rerr.E(rerr.Op("kv.SMembers"), rerr.KindTransport, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, rerr.E(rerr.Op("kv.SMembers"), rerr.KindTransport, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *SQLiteClient) SCard(ctx context.Context, key string) (int64, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int64
	err = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_set WHERE skey = ?`, key).Scan(&n)
	if err != nil {
		return 0, rerr.E(rerr.Op("kv.SCard"), rerr.KindTransport, err)
	}
	return n, nil
}

func (c *SQLiteClient) SIsMember(ctx context.Context, key, member string) (bool, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	var one int
	err = c.db.QueryRowContext(ctx, `SELECT 1 FROM kv_set WHERE skey = ? AND member = ?`, key, member).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, rerr.E(rerr.Op("kv.SIsMember"), rerr.KindTransport, err)
	}
	return true, nil
}

// SInter computes the intersection of multiple sets, mirroring SINTER.
func (c *SQLiteClient) SInter(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	counts := make(map[string]int)
	for _, key := range keys {
		members, err := c.SMembers(ctx, key)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(members))
		for _, m := range members {
			if !seen[m] {
				counts[m]++
				seen[m] = true
			}
		}
	}
	var out []string
	for m, n := range counts {
		if n == len(keys) {
			out = append(out, m)
		}
	}
	return out, nil
}

// SUnion computes the union of multiple sets, mirroring SUNION.
func (c *SQLiteClient) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, key := range keys {
		members, err := c.SMembers(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// --- List commands ---

func (c *SQLiteClient) LPush(ctx context.Context, key string, value string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return rerr.E(rerr.Op("kv.LPush"), rerr.KindTransport, err)
	}
	defer tx.Rollback()

	var minSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MIN(seq) FROM kv_list WHERE lkey = ?`, key).Scan(&minSeq); err != nil {
		return rerr.E(rerr.Op("kv.LPush"), rerr.KindTransport, err)
	}
	next := int64(0)
	if minSeq.Valid {
		next = minSeq.Int64 - 1
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO kv_list(lkey, seq, value) VALUES (?, ?, ?)`, key, next, value); err != nil {
		return rerr.E(rerr.Op("kv.LPush"), rerr.KindTransport, err)
	}
	return tx.Commit()
}

func (c *SQLiteClient) LRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := c.db.QueryContext(ctx, `SELECT value FROM kv_list WHERE lkey = ? ORDER BY seq ASC`, key)
	if err != nil {
		return nil, rerr.E(rerr.Op("kv.LRange"), rerr.KindTransport, err)
	}
	defer rows.Close()

	var all []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, rerr.E(rerr.Op("kv.LRange"), rerr.KindTransport, err)
		}
		all = append(all, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	n := len(all)
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop || n == 0 {
		return nil, nil
	}
	return all[start : stop+1], nil
}

func (c *SQLiteClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.HLen(ctx, key)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	card, err := c.SCard(ctx, key)
	if err != nil {
		return false, err
	}
	return card > 0, nil
}

var _ Client = (*SQLiteClient)(nil)

// keyMu protects the read-modify-write sequence GetOrCreateIndex performs
// across two hash keys (forward and inverted) that a plain HINCRBY cannot
// express atomically over two hashes in one round trip. One mutex per
// logical (context, axis) pair is enough since all contention for a given
// axis' index counter is local to that axis.
type keyMu struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyMu() *keyMu {
	return &keyMu{locks: make(map[string]*sync.Mutex)}
}

func (k *keyMu) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
