package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hisaab/internal/amqp"
	"hisaab/internal/core"
	"hisaab/internal/log"
	"hisaab/internal/storage/memory"
)

type recordingWriter struct {
	mu      sync.Mutex
	written map[string]core.Dashboard
	failFor string
}

func (w *recordingWriter) WriteDashboard(_ context.Context, d core.Dashboard) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d.OwnerID == w.failFor {
		return errors.New("sheets unavailable")
	}
	if w.written == nil {
		w.written = make(map[string]core.Dashboard)
	}
	w.written[d.OwnerID] = d
	return nil
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	records := []core.Hisaab{
		{Title: "Week 1", Label: "Food", OwnerID: "alice", Content: []core.LineItem{{Key: "a", Value: "10"}, {Key: "b", Value: "20"}}},
		{Title: "Week 2", Label: "Food", OwnerID: "alice", Content: []core.LineItem{{Key: "a", Value: "25"}, {Key: "b", Value: "abc"}}},
		{Title: "Rent", Label: "Housing", OwnerID: "alice", Encrypted: true, SecretHash: "$2a$x", Content: []core.LineItem{{Key: "r", Value: "1000"}}},
		{Title: "Bus", Label: "Transport", OwnerID: "bob", Content: []core.LineItem{{Key: "pass", Value: "40"}}},
	}
	for _, h := range records {
		_, err := store.Save(ctx, h)
		require.NoError(t, err)
	}
	return store
}

func newWorker(store *memory.Store, w *recordingWriter) *DashboardWorker {
	return NewDashboardWorker(store, w, log.NewText(io.Discard, slog.LevelError, log.ComponentWorker), 2)
}

func TestHandleHisaabEvent(t *testing.T) {
	writer := &recordingWriter{}
	w := newWorker(seed(t), writer)

	err := w.HandleHisaabEvent(context.Background(), amqp.NewHisaabEvent(amqp.EventHisaabUpdated, "h1", "alice"))
	require.NoError(t, err)

	d, ok := writer.written["alice"]
	require.True(t, ok)
	require.Len(t, d.ExpensesByCategory, 1)
	assert.Equal(t, "Food", d.ExpensesByCategory[0].Label)
	assert.True(t, d.ExpensesByCategory[0].Total.Equal(core.NewMoney(55)))
	assert.Equal(t, 2, d.HisaabCount)
	assert.NotContains(t, writer.written, "bob")
}

func TestHandleHisaabEvent_WriterFailureIsReturned(t *testing.T) {
	writer := &recordingWriter{failFor: "alice"}
	w := newWorker(seed(t), writer)

	err := w.HandleHisaabEvent(context.Background(), amqp.NewHisaabEvent(amqp.EventHisaabCreated, "h1", "alice"))
	assert.ErrorContains(t, err, "sheets unavailable")
}

func TestHandleHisaabEvent_DeletedOwnerGetsEmptyDashboard(t *testing.T) {
	writer := &recordingWriter{}
	w := newWorker(memory.New(), writer)

	require.NoError(t, w.HandleHisaabEvent(context.Background(), amqp.NewHisaabEvent(amqp.EventHisaabDeleted, "h1", "carol")))
	d := writer.written["carol"]
	assert.Empty(t, d.HisaabTotals)
	assert.True(t, d.GrandTotal.Equal(core.Zero))
}

func TestStartupSync(t *testing.T) {
	writer := &recordingWriter{}
	w := newWorker(seed(t), writer)

	require.NoError(t, w.StartupSync(context.Background()))
	assert.Len(t, writer.written, 2)
	assert.True(t, writer.written["bob"].GrandTotal.Equal(core.NewMoney(40)))
}

func TestStartupSync_ContinuesPastFailures(t *testing.T) {
	writer := &recordingWriter{failFor: "alice"}
	w := newWorker(seed(t), writer)

	err := w.StartupSync(context.Background())
	assert.ErrorContains(t, err, "sheets unavailable")
	assert.Contains(t, writer.written, "bob")
}

func TestStartupSync_Empty(t *testing.T) {
	writer := &recordingWriter{}
	w := newWorker(memory.New(), writer)
	require.NoError(t, w.StartupSync(context.Background()))
	assert.Empty(t, writer.written)
}
