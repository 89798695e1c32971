package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tcgsync_api/internal/tcg/business/models"
)

type fakeSignals struct {
	cancelled map[string]bool
	err       error
	lastKey   string
}

func (f *fakeSignals) IsCancelled(ctx context.Context, opType, opID string) (bool, error) {
	f.lastKey = opType + "/" + opID
	if f.err != nil {
		return false, f.err
	}
	return f.cancelled[f.lastKey], nil
}

func TestMonitorShouldCancel(t *testing.T) {
	signals := &fakeSignals{cancelled: map[string]bool{"products/op-1": true}}
	m := NewMonitor(signals, testLogger())

	assert.True(t, m.ShouldCancel(context.Background(), models.OpProducts, "op-1"))
	assert.False(t, m.ShouldCancel(context.Background(), models.OpProducts, "op-2"))
}

func TestMonitorFailsOpenOnReadError(t *testing.T) {
	signals := &fakeSignals{err: errors.New("db gone")}
	m := NewMonitor(signals, testLogger())

	assert.False(t, m.ShouldCancel(context.Background(), models.OpGroups, "op-1"),
		"a broken signal store must not halt running syncs")
}

func TestMonitorCheckpointBindsRunIdentity(t *testing.T) {
	signals := &fakeSignals{cancelled: map[string]bool{}}
	m := NewMonitor(signals, testLogger())

	checkpoint := m.Checkpoint(models.OpPrices, "op-9")
	assert.False(t, checkpoint(context.Background()))
	assert.Equal(t, "prices/op-9", signals.lastKey)

	signals.cancelled["prices/op-9"] = true
	assert.True(t, checkpoint(context.Background()))
}
