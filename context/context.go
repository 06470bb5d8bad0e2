// Package context carries per-call values across dispatch boundaries: a
// propagated key/value map that survives inter-server hops, and the
// session/message relation data an API handler uses to route a deferred
// reply back to the right client.
package context

import (
	stdctx "context"

	jsoniter "github.com/json-iterator/go"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/relation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AddToPropagateCtx adds a key/value that handlers further down the call
// chain (including across an inter-server request) can read back.
func AddToPropagateCtx(ctx stdctx.Context, key string, val interface{}) stdctx.Context {
	propagate := ToMap(ctx)
	propagate[key] = val
	return stdctx.WithValue(ctx, constants.PropagateCtxKey, propagate)
}

// GetFromPropagateCtx reads a propagated value, nil if absent.
func GetFromPropagateCtx(ctx stdctx.Context, key string) interface{} {
	propagate := ToMap(ctx)
	if val, ok := propagate[key]; ok {
		return val
	}
	return nil
}

// WithRelation stashes the (sid, msgSeq) relation for accountID on ctx so a
// later continuation can reply to the originating session.
func WithRelation(ctx stdctx.Context, accountID string, data relation.Data) stdctx.Context {
	m := RelationMap(ctx)
	m[accountID] = data
	return stdctx.WithValue(ctx, constants.MsgRelationKey, m)
}

// RelationByAccount returns the relation data captured for accountID, the
// zero value if none was stored.
func RelationByAccount(ctx stdctx.Context, accountID string) relation.Data {
	if ctx == nil {
		return relation.Data{}
	}
	return RelationMap(ctx)[accountID]
}

// RelationMap returns a copy of every stored relation entry.
func RelationMap(ctx stdctx.Context) map[string]relation.Data {
	ret := make(map[string]relation.Data)
	if ctx == nil {
		return ret
	}
	if val := ctx.Value(constants.MsgRelationKey); val != nil {
		if v, ok := val.(map[string]relation.Data); ok {
			for uid, r := range v {
				ret[uid] = r
			}
		}
	}
	return ret
}

// ToMap returns the propagated values as a plain map.
func ToMap(ctx stdctx.Context) map[string]interface{} {
	if ctx == nil {
		return map[string]interface{}{}
	}
	p := ctx.Value(constants.PropagateCtxKey)
	if p != nil {
		return p.(map[string]interface{})
	}
	return map[string]interface{}{}
}

// FromMap creates a fresh context preloaded with propagated values.
func FromMap(val map[string]interface{}) stdctx.Context {
	return stdctx.WithValue(stdctx.Background(), constants.PropagateCtxKey, val)
}

// Encode serializes the propagated values for transport; nil when there is
// nothing to carry.
func Encode(ctx stdctx.Context) ([]byte, error) {
	m := ToMap(ctx)
	if len(m) > 0 {
		return json.Marshal(m)
	}
	return nil, nil
}

// Decode reverses Encode; a nil/empty input yields a nil context.
func Decode(m []byte) (stdctx.Context, error) {
	if len(m) == 0 {
		return nil, nil
	}
	mp := make(map[string]interface{})
	if err := json.Unmarshal(m, &mp); err != nil {
		return nil, err
	}
	return FromMap(mp), nil
}
