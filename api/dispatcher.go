// Package api implements the stateless request/reply dispatcher: a handler
// registry keyed by msgId, an ordered middleware chain around every call,
// and unbounded concurrency — unlike Stages, API handlers have no
// per-entity serialization.
package api

import (
	stdctx "context"

	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/relation"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/serialize"
	"github.com/ulala-x/playhouse/tracing"
	"github.com/ulala-x/playhouse/util"
)

const handlerType = "handler"

// HandlerFunc handles one inbound message: it returns the reply payload,
// or an error whose framework code becomes the reply's errorCode.
type HandlerFunc func(ctx Context, payload []byte) ([]byte, error)

// Registrar is handed to controllers at startup so they can bind their
// msgIds explicitly; there is no reflection-based discovery.
type Registrar func(msgID string, h HandlerFunc)

// Controller is a group of related handlers an application registers as a
// unit.
type Controller interface {
	RegisterHandlers(register Registrar)
}

// Middleware wraps every handler invocation. Before may enrich the
// Context (e.g. add propagated values); After sees — and may rewrite — the
// handler's result.
type Middleware interface {
	Before(ctx Context) Context
	After(ctx Context, result []byte, err error) ([]byte, error)
}

// Dispatcher is the per-process API service runtime.
type Dispatcher struct {
	selfID     string
	handlers   map[string]HandlerFunc
	middleware []Middleware
	out        Outbound
	serializer serialize.Serializer
	reporters  []metrics.Reporter
}

// New builds an empty Dispatcher sending through out. serializer shapes the
// error envelope attached to failed replies; nil leaves those replies
// body-less.
func New(selfID string, out Outbound, serializer serialize.Serializer, reporters []metrics.Reporter) *Dispatcher {
	return &Dispatcher{
		selfID:     selfID,
		handlers:   make(map[string]HandlerFunc),
		out:        out,
		serializer: serializer,
		reporters:  reporters,
	}
}

// Register binds one msgId to a handler. Later registrations for the same
// id win, with a log so the shadowing is visible.
func (d *Dispatcher) Register(msgID string, h HandlerFunc) {
	if _, exists := d.handlers[msgID]; exists {
		logger.Log.Warnf("api: handler for %q re-registered, previous one shadowed", msgID)
	}
	d.handlers[msgID] = h
}

// RegisterController lets c bind all of its handlers.
func (d *Dispatcher) RegisterController(c Controller) {
	c.RegisterHandlers(d.Register)
}

// Use appends mw to the middleware chain; Before runs in registration
// order, After in reverse.
func (d *Dispatcher) Use(mw Middleware) {
	d.middleware = append(d.middleware, mw)
}

// HasHandler reports whether msgID is bound.
func (d *Dispatcher) HasHandler(msgID string) bool {
	_, ok := d.handlers[msgID]
	return ok
}

// Dispatch runs the handler for h.MsgID and returns its reply payload and
// error code. Unknown msgIds yield CodeHandlerNotFound; the caller decides
// whether a reply is owed (inbound request) or the result is dropped
// (notification).
func (d *Dispatcher) Dispatch(stdCtx stdctx.Context, h route.Header, payload []byte) ([]byte, uint16) {
	handler, ok := d.handlers[h.MsgID]
	if !ok {
		logger.Log.Debugf("api: no handler for msgId=%s from=%s", h.MsgID, h.From)
		return nil, uint16(errors.CodeHandlerNotFound)
	}

	stdCtx = pcontext.AddToPropagateCtx(stdCtx, "requestor", h.From)
	if h.AccountID != "" {
		stdCtx = pcontext.WithRelation(stdCtx, h.AccountID, relation.Data{SessID: h.SID, MsgSeq: h.MsgSeq})
	}
	stdCtx = metrics.StartTiming(stdCtx, h.MsgID)
	stdCtx, _ = tracing.StartSpan(stdCtx, h.MsgID, map[string]string{
		"span.kind": "server",
		"msg.id":    h.MsgID,
		"peer.id":   h.From,
	})

	ctx := Context{Std: stdCtx, Header: h, out: d.out}
	result, err := d.invoke(ctx, handler, payload)

	tracing.FinishSpan(stdCtx, err)
	metrics.ReportTimingFromCtx(stdCtx, d.reporters, handlerType, err)

	if err != nil {
		logger.Log.Warnf("api: handler %s failed: %s", h.MsgID, err.Error())
		if result == nil && d.serializer != nil {
			if body, perr := util.GetErrorPayload(d.serializer, err); perr == nil {
				result = body
			}
		}
		return result, uint16(errors.CodeOf(err))
	}
	return result, uint16(errors.CodeSuccess)
}

// invoke runs the middleware chain around handler, converting a panic into
// an error instead of letting it unwind into the mesh read loop.
func (d *Dispatcher) invoke(ctx Context, handler HandlerFunc, payload []byte) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("api: handler panic for msgId=%s: %v\n%s", ctx.Header.MsgID, r, util.Stack())
			result, err = nil, errors.NewErrorf(errors.CodeUncheckedContentsError, "api: handler %s panicked", ctx.Header.MsgID)
		}
	}()

	for _, mw := range d.middleware {
		ctx = mw.Before(ctx)
	}
	result, err = handler(ctx, payload)
	for i := len(d.middleware) - 1; i >= 0; i-- {
		result, err = d.middleware[i].After(ctx, result, err)
	}
	return result, err
}
