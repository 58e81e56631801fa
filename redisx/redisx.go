// Package redisx layers a handful of synchronous, typed convenience
// wrappers over a *redis.Engine for the commands a caller reaches for
// most often: plain key/value, hashes, and sets. It adds no behavior of
// its own beyond argument construction and reply unwrapping — every
// actual round trip is a redis.Engine.CommandSync call, and every
// wrapper frees its Command before returning per CommandSync's ownership
// contract.
//
// Grounded on the original C++ client's redoxHash/redoxSet convenience
// layers (original_source/src/redoxHash.cpp, redoxSet.cpp), reworked
// here as free functions over an Engine rather than a wrapping type,
// since Go has no analogue to the C++ client's public inheritance from
// Redox for RedoxHash/RedoxSet.
package redisx

import (
	"context"

	"github.com/hmartiro/redox/redis"
)

func argv(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

// Get returns the value of key, or (nil, false) if it does not exist.
func Get(ctx context.Context, eng *redis.Engine, key string) ([]byte, bool, error) {
	cmd, err := eng.CommandSync(ctx, argv("GET", key), redis.ShapeString)
	if err != nil {
		return nil, false, err
	}
	defer eng.Free(cmd)
	switch cmd.Status() {
	case redis.Ok:
		return cmd.Reply().([]byte), true, nil
	case redis.NilReply:
		return nil, false, nil
	default:
		return nil, false, statusErr(cmd)
	}
}

// Set stores value at key.
func Set(ctx context.Context, eng *redis.Engine, key string, value []byte) error {
	cmd, err := eng.CommandSync(ctx, [][]byte{[]byte("SET"), []byte(key), value}, redis.ShapeString)
	if err != nil {
		return err
	}
	defer eng.Free(cmd)
	if cmd.Status() != redis.Ok {
		return statusErr(cmd)
	}
	return nil
}

// Del deletes key. It is not an error for key to already be absent.
func Del(ctx context.Context, eng *redis.Engine, key string) error {
	cmd, err := eng.CommandSync(ctx, argv("DEL", key), redis.ShapeLong)
	if err != nil {
		return err
	}
	defer eng.Free(cmd)
	if cmd.Status() != redis.Ok {
		return statusErr(cmd)
	}
	return nil
}

// HGet returns one field of the hash at key, or (nil, false) if the hash
// or the field does not exist.
func HGet(ctx context.Context, eng *redis.Engine, key, field string) ([]byte, bool, error) {
	cmd, err := eng.CommandSync(ctx, argv("HGET", key, field), redis.ShapeString)
	if err != nil {
		return nil, false, err
	}
	defer eng.Free(cmd)
	switch cmd.Status() {
	case redis.Ok:
		return cmd.Reply().([]byte), true, nil
	case redis.NilReply:
		return nil, false, nil
	default:
		return nil, false, statusErr(cmd)
	}
}

// HSet sets one field of the hash at key.
func HSet(ctx context.Context, eng *redis.Engine, key, field string, value []byte) error {
	cmd, err := eng.CommandSync(ctx, [][]byte{[]byte("HSET"), []byte(key), []byte(field), value}, redis.ShapeLong)
	if err != nil {
		return err
	}
	defer eng.Free(cmd)
	if cmd.Status() != redis.Ok {
		return statusErr(cmd)
	}
	return nil
}

// HGetAll returns every field/value pair of the hash at key.
func HGetAll(ctx context.Context, eng *redis.Engine, key string) (map[string]string, error) {
	cmd, err := eng.CommandSync(ctx, argv("HGETALL", key), redis.ShapeVectorStrings)
	if err != nil {
		return nil, err
	}
	defer eng.Free(cmd)
	if cmd.Status() == redis.NilReply {
		return map[string]string{}, nil
	}
	if cmd.Status() != redis.Ok {
		return nil, statusErr(cmd)
	}
	flat := cmd.Reply().([]string)
	out := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out[flat[i]] = flat[i+1]
	}
	return out, nil
}

// SAdd adds member to the set at key.
func SAdd(ctx context.Context, eng *redis.Engine, key, member string) error {
	cmd, err := eng.CommandSync(ctx, argv("SADD", key, member), redis.ShapeLong)
	if err != nil {
		return err
	}
	defer eng.Free(cmd)
	if cmd.Status() != redis.Ok {
		return statusErr(cmd)
	}
	return nil
}

// SMembers returns every member of the set at key.
func SMembers(ctx context.Context, eng *redis.Engine, key string) (map[string]struct{}, error) {
	cmd, err := eng.CommandSync(ctx, argv("SMEMBERS", key), redis.ShapeSetStrings)
	if err != nil {
		return nil, err
	}
	defer eng.Free(cmd)
	if cmd.Status() == redis.NilReply {
		return map[string]struct{}{}, nil
	}
	if cmd.Status() != redis.Ok {
		return nil, statusErr(cmd)
	}
	return cmd.Reply().(map[string]struct{}), nil
}

func statusErr(cmd *redis.Command) error {
	if err := cmd.Err(); err != nil {
		return err
	}
	return redis.Error(cmd.Status().String())
}
