package redis

import "time"

// OpKind tags a pipeline operation.
type OpKind int

const (
	OpZAdd OpKind = iota
	OpHSet
	OpExpire
)

// Op is one step of an atomic pipeline. Only the fields for its kind are set.
type Op struct {
	Kind   OpKind
	Key    string
	Member string
	Score  float64
	Field  string
	Value  string
	TTL    time.Duration
}

// ZAdd adds member with score to the sorted set at key.
func ZAdd(key, member string, score float64) Op {
	return Op{Kind: OpZAdd, Key: key, Member: member, Score: score}
}

// HSet stores value under field in the hash at key.
func HSet(key, field, value string) Op {
	return Op{Kind: OpHSet, Key: key, Field: field, Value: value}
}

// Expire (re)sets the TTL on key.
func Expire(key string, ttl time.Duration) Op {
	return Op{Kind: OpExpire, Key: key, TTL: ttl}
}
