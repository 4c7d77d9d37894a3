package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Wirlhawk/skillswap-sub000/config"
)

func TestDisabledTracer(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{})
	require.NoError(t, err)
	require.Nil(t, tracer.Application())

	ctx, txn := tracer.StartTransaction(context.Background(), "job")
	require.Nil(t, txn)
	require.NotNil(t, ctx)

	seg := tracer.StartSegment(ctx, "step")
	require.Nil(t, seg)
	seg.End()

	tracer.RecordError(ctx, errors.New("boom"))
	tracer.AddAttribute(ctx, "order_id", "x")
	tracer.EndTransaction(txn)
	tracer.Close()

	var _ Tracer = NewNoopTracer()
}
