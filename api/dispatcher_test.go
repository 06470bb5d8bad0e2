package api

import (
	stdctx "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/route"
	serializejson "github.com/ulala-x/playhouse/serialize/json"
	"github.com/ulala-x/playhouse/util"
)

type echoController struct{}

func (echoController) RegisterHandlers(register Registrar) {
	register("Echo", func(ctx Context, payload []byte) ([]byte, error) {
		return payload, nil
	})
	register("Fail", func(ctx Context, payload []byte) ([]byte, error) {
		return nil, errors.NewErrorf(errors.Code(1001), "application said no")
	})
	register("Boom", func(ctx Context, payload []byte) ([]byte, error) {
		panic("boom")
	})
}

func newTestDispatcher() *Dispatcher {
	d := New("api-1", nil, serializejson.New(), nil)
	d.RegisterController(echoController{})
	return d
}

func TestDispatchEcho(t *testing.T) {
	d := newTestDispatcher()

	reply, code := d.Dispatch(stdctx.Background(), route.Header{MsgID: "Echo", MsgSeq: 5, From: "play-1"}, []byte("hi"))
	assert.Equal(t, uint16(errors.CodeSuccess), code)
	assert.Equal(t, []byte("hi"), reply)
}

func TestDispatchUnknownMsgID(t *testing.T) {
	d := newTestDispatcher()

	reply, code := d.Dispatch(stdctx.Background(), route.Header{MsgID: "NoSuch", MsgSeq: 11}, nil)
	assert.Equal(t, uint16(errors.CodeHandlerNotFound), code)
	assert.Nil(t, reply)
}

func TestDispatchHandlerErrorBecomesCode(t *testing.T) {
	d := newTestDispatcher()

	reply, code := d.Dispatch(stdctx.Background(), route.Header{MsgID: "Fail", MsgSeq: 1}, nil)
	assert.Equal(t, uint16(1001), code)

	err := util.GetErrorFromPayload(serializejson.New(), reply)
	assert.Equal(t, errors.Code(1001), errors.CodeOf(err))
}

func TestDispatchPanicIsContained(t *testing.T) {
	d := newTestDispatcher()

	_, code := d.Dispatch(stdctx.Background(), route.Header{MsgID: "Boom", MsgSeq: 1}, nil)
	assert.Equal(t, uint16(errors.CodeUncheckedContentsError), code)
}

// orderedMiddleware records Before/After invocation order and can rewrite
// the result.
type orderedMiddleware struct {
	name  string
	calls *[]string
}

func (m orderedMiddleware) Before(ctx Context) Context {
	*m.calls = append(*m.calls, "before:"+m.name)
	return ctx
}

func (m orderedMiddleware) After(ctx Context, result []byte, err error) ([]byte, error) {
	*m.calls = append(*m.calls, "after:"+m.name)
	return result, err
}

func TestMiddlewareOrdering(t *testing.T) {
	d := newTestDispatcher()
	var calls []string
	d.Use(orderedMiddleware{name: "outer", calls: &calls})
	d.Use(orderedMiddleware{name: "inner", calls: &calls})

	_, code := d.Dispatch(stdctx.Background(), route.Header{MsgID: "Echo", MsgSeq: 1}, []byte("x"))
	require.Equal(t, uint16(errors.CodeSuccess), code)
	assert.Equal(t, []string{"before:outer", "before:inner", "after:inner", "after:outer"}, calls)
}

func TestRelationAndPropagationReachHandler(t *testing.T) {
	d := New("api-1", nil, serializejson.New(), nil)

	var gotRequestor interface{}
	var gotSessID int64
	d.Register("Check", func(ctx Context, payload []byte) ([]byte, error) {
		gotRequestor = pcontext.GetFromPropagateCtx(ctx.Std, "requestor")
		gotSessID = pcontext.RelationByAccount(ctx.Std, "acct-9").SessID
		return nil, nil
	})

	h := route.Header{MsgID: "Check", MsgSeq: 3, From: "session-1", AccountID: "acct-9", SID: 77}
	_, code := d.Dispatch(stdctx.Background(), h, nil)
	require.Equal(t, uint16(errors.CodeSuccess), code)
	assert.Equal(t, "session-1", gotRequestor)
	assert.Equal(t, int64(77), gotSessID)
}
