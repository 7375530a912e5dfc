package kv

import (
	"context"
	"strconv"
)

// Scripter is implemented by Client backends that can run GetOrCreateIndex
// atomically. SQLiteClient satisfies it by serializing the two-hash
// read-modify-write behind a per-key mutex, since there is no Lua
// EVALSHA runtime in this stack to reuse redbiom's _INDEX_SCRIPT
// verbatim; the contract it implements is identical:
//
//	_INDEX_SCRIPT (Lua, from redbiom.admin):
//	    if redis.call('HEXISTS', forward, name) == 1 then
//	        return redis.call('HGET', forward, name)
//	    end
//	    local idx = redis.call('HINCRBY', state, counter, 1) - 1
//	    redis.call('HSET', forward, name, idx)
//	    redis.call('HSET', inverted, idx, name)
//	    return idx
type Scripter interface {
	GetOrCreateIndex(ctx context.Context, forwardKey, invertedKey, counterKey, counterField, name string) (int64, error)
}

// sharedKeyMu guards all SQLiteClient instances' index-allocation critical
// sections. It is process-global because a *sql.DB with MaxOpenConns(1)
// already serializes actual queries; the mutex exists to make the
// check-then-act sequence atomic with respect to other goroutines sharing
// the same *SQLiteClient, not to serialize disk I/O.
var sharedKeyMu = newKeyMu()

// GetOrCreateIndex assigns the next integer index to name under
// forwardKey (name -> idx) and invertedKey (idx -> name), or returns the
// index already assigned. counterKey/counterField hold the running
// HINCRBY counter redbiom keys as "state"/"<context>:<axis>-counter".
func (c *SQLiteClient) GetOrCreateIndex(ctx context.Context, forwardKey, invertedKey, counterKey, counterField, name string) (int64, error) {
	unlock := sharedKeyMu.lock(forwardKey)
	defer unlock()

	if existing, ok, err := c.HGet(ctx, forwardKey, name); err != nil {
		return 0, err
	} else if ok {
		idx, _ := strconv.ParseInt(existing, 10, 64)
		return idx, nil
	}

	next, err := c.HIncrBy(ctx, counterKey, counterField, 1)
	if err != nil {
		return 0, err
	}
	idx := next - 1

	if err := c.HSet(ctx, forwardKey, name, strconv.FormatInt(idx, 10)); err != nil {
		return 0, err
	}
	if err := c.HSet(ctx, invertedKey, strconv.FormatInt(idx, 10), name); err != nil {
		return 0, err
	}
	return idx, nil
}

var _ Scripter = (*SQLiteClient)(nil)
