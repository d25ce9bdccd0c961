package serial

import (
	"context"
	"testing"

	"github.com/score-p/scorep-measurement-core/internal/ipc"
	"github.com/stretchr/testify/assert"
)

func TestSerialCommIsSizeOneRankZero(t *testing.T) {
	c := New()
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 0, c.Rank())
}

func TestSerialReduceIsIdentity(t *testing.T) {
	c := New()
	v, err := c.Reduce(context.Background(), ipc.ReduceMin, 42)
	assert.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestSerialSendRecvAlwaysFail(t *testing.T) {
	c := New()
	err := c.Send(context.Background(), 1, 0, ipc.ValueUint64, nil)
	assert.Error(t, err)
	_, _, err = c.Recv(context.Background(), 0, 0)
	assert.Error(t, err)
}
