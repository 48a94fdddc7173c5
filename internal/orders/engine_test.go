package orders

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lokman32/leadprep/internal/apperr"
	"github.com/Lokman32/leadprep/internal/catalog"
	"github.com/Lokman32/leadprep/internal/events"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// tickingClock returns a clock that advances one second per call.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func testParts() *catalog.MemoryStore {
	return catalog.NewMemoryStore(
		catalog.Part{Identifier: "X1", Rack: "R-01", Description: "lead 1", Class: catalog.ClassStandard},
		catalog.Part{Identifier: "X2", AltIdentifier: "U-2", Rack: "R-02", Class: catalog.ClassAlternate},
		catalog.Part{Identifier: "X3", Rack: "R-03", Class: catalog.ClassStandard},
	)
}

func newTestEngine(t *testing.T, repo Repository) (*Engine, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	e := NewEngine(repo, testParts(), rec, quietLogger(), EngineConfig{})
	e.nowFunc = tickingClock(time.Date(2024, 5, 2, 7, 0, 0, 0, time.UTC))
	return e, rec
}

func mustCreate(t *testing.T, e *Engine, items ...Item) *Order {
	t.Helper()
	o, err := e.CreateOrder(context.Background(), "M100", items)
	require.NoError(t, err)
	return o
}

func TestCreateOrder(t *testing.T) {
	e, rec := newTestEngine(t, NewMemoryStore())
	o := mustCreate(t, e, Item{Part: " x1 ", Quantity: 2}, Item{Part: "X2", Quantity: 1})

	assert.Regexp(t, `^CMD-20240502-[0-9A-Z]{5}$`, o.SerialCode)
	assert.Equal(t, OrderPending, o.Status)
	assert.Equal(t, 1, o.Version)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "X1", o.Lines[0].PartKey)
	assert.Equal(t, "R-01", o.Lines[0].Rack)
	assert.Equal(t, "lead 1", o.Lines[0].Description)
	assert.Equal(t, "U-2", o.Lines[1].AltIdentifier)
	assert.Equal(t, catalog.ClassAlternate, o.Lines[1].Class)
	for _, l := range o.Lines {
		assert.Equal(t, LinePending, l.Status)
		assert.Empty(t, l.Deliveries)
	}
	assert.Equal(t, []events.Type{events.OrderCreated}, rec.Types())
}

func TestCreateOrderValidation(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	ctx := context.Background()

	tests := []struct {
		name      string
		requester string
		items     []Item
		kind      apperr.Kind
	}{
		{"missing requester", " ", []Item{{Part: "X1", Quantity: 1}}, apperr.KindValidation},
		{"no items", "M1", nil, apperr.KindValidation},
		{"zero quantity", "M1", []Item{{Part: "X1", Quantity: 0}}, apperr.KindValidation},
		{"blank part", "M1", []Item{{Part: "  ", Quantity: 1}}, apperr.KindValidation},
		{"duplicate part", "M1", []Item{{Part: "X1", Quantity: 1}, {Part: "x1", Quantity: 2}}, apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateOrder(ctx, tt.requester, tt.items)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

// An unknown part rejects the whole order.
func TestCreateOrderUnknownPartPersistsNothing(t *testing.T) {
	repo := NewMemoryStore()
	e, rec := newTestEngine(t, repo)

	_, err := e.CreateOrder(context.Background(), "M100", []Item{{Part: "X1", Quantity: 1}, {Part: "NOPE", Quantity: 1}})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Contains(t, apperr.Message(err), "NOPE")

	all, err := repo.List(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, rec.Events())
}

func TestCreateOrderRegeneratesCollidingCode(t *testing.T) {
	repo := NewMemoryStore()
	e, _ := newTestEngine(t, repo)
	calls := 0
	e.newCode = func(time.Time) string {
		calls++
		if calls <= 2 {
			return "CMD-20240502-SAME0"
		}
		return fmt.Sprintf("CMD-20240502-NEW%02d", calls)
	}

	first := mustCreate(t, e, Item{Part: "X1", Quantity: 1})
	second := mustCreate(t, e, Item{Part: "X1", Quantity: 1})
	assert.Equal(t, "CMD-20240502-SAME0", first.SerialCode)
	assert.Equal(t, "CMD-20240502-NEW03", second.SerialCode)
}

// Deliver then confirm a two-unit line, against both repositories.
func TestDeliverAndConfirmLifecycle(t *testing.T) {
	for name, mk := range repositories() {
		t.Run(name, func(t *testing.T) {
			repo := mk()
			e, rec := newTestEngine(t, repo)
			ctx := context.Background()
			o := mustCreate(t, e, Item{Part: "X1", Quantity: 2})

			res, err := e.RecordDelivery(ctx, "x1", "S1")
			require.NoError(t, err)
			assert.Equal(t, o.SerialCode, res.OrderCode)
			assert.Equal(t, 1, res.DeliveredCount)
			assert.Equal(t, LinePartiallyDelivered, res.LineStatus)
			assert.False(t, res.OrderFullyDelivered)

			res, err = e.RecordDelivery(ctx, "X1", "S2")
			require.NoError(t, err)
			assert.Equal(t, 2, res.DeliveredCount)
			assert.Equal(t, LineDelivered, res.LineStatus)
			assert.True(t, res.OrderFullyDelivered)

			got, err := repo.Get(ctx, o.SerialCode)
			require.NoError(t, err)
			assert.Equal(t, OrderDelivered, got.Status)

			conf, err := e.ConfirmDelivery(ctx, "X1", "S1")
			require.NoError(t, err)
			assert.False(t, conf.LineConfirmed)
			assert.False(t, conf.OrderConfirmed)

			conf, err = e.ConfirmDelivery(ctx, "X1", "S2")
			require.NoError(t, err)
			assert.True(t, conf.LineConfirmed)
			assert.True(t, conf.OrderConfirmed)

			got, err = repo.Get(ctx, o.SerialCode)
			require.NoError(t, err)
			assert.Equal(t, OrderConfirmed, got.Status)
			assert.Equal(t, LineConfirmed, got.Lines[0].Status)
			for _, d := range got.Lines[0].Deliveries {
				assert.Equal(t, DeliveryConfirmed, d.Status)
				assert.NotNil(t, d.ConfirmedAt)
			}

			assert.Equal(t, []events.Type{
				events.OrderCreated,
				events.DeliveryRecorded,
				events.DeliveryRecorded, events.OrderDelivered,
				events.DeliveryConfirmed,
				events.DeliveryConfirmed, events.OrderConfirmed,
			}, rec.Types())
		})
	}
}

// A serial used on another order is rejected without change.
func TestRecordDeliveryDuplicateSerial(t *testing.T) {
	repo := NewMemoryStore()
	e, _ := newTestEngine(t, repo)
	ctx := context.Background()
	first := mustCreate(t, e, Item{Part: "X1", Quantity: 1})
	second := mustCreate(t, e, Item{Part: "X2", Quantity: 2})

	_, err := e.RecordDelivery(ctx, "X1", "S1")
	require.NoError(t, err)

	_, err = e.RecordDelivery(ctx, "X2", "S1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, apperr.Message(err), "elsewhere")

	got, err := repo.Get(ctx, second.SerialCode)
	require.NoError(t, err)
	assert.Empty(t, got.Lines[0].Deliveries)
	assert.Equal(t, 1, got.Version)

	claim, err := repo.FindSerial(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, first.SerialCode, claim.OrderCode)
}

func TestRecordDeliverySameLineDuplicate(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	ctx := context.Background()
	mustCreate(t, e, Item{Part: "X1", Quantity: 3})

	_, err := e.RecordDelivery(ctx, "X1", "S1")
	require.NoError(t, err)
	_, err = e.RecordDelivery(ctx, "X1", "S1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, apperr.Message(err), "already registered on this line")
}

// A full line rejects further deliveries.
func TestRecordDeliveryFullLine(t *testing.T) {
	repo := NewMemoryStore()
	e, _ := newTestEngine(t, repo)
	ctx := context.Background()
	o := mustCreate(t, e, Item{Part: "X1", Quantity: 1})

	_, err := e.RecordDelivery(ctx, "X1", "S1")
	require.NoError(t, err)
	_, err = e.RecordDelivery(ctx, "X1", "S2")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	got, err := repo.Get(ctx, o.SerialCode)
	require.NoError(t, err)
	assert.Len(t, got.Lines[0].Deliveries, 1)
	claim, err := repo.FindSerial(ctx, "S2")
	require.NoError(t, err)
	assert.Nil(t, claim)
}

// Rescanning a serial on a full line reports the duplicate, not the full line.
func TestRecordDeliveryRescanOnFullLine(t *testing.T) {
	for name, mk := range repositories() {
		t.Run(name, func(t *testing.T) {
			e, _ := newTestEngine(t, mk())
			ctx := context.Background()
			mustCreate(t, e, Item{Part: "X1", Quantity: 1})
			mustCreate(t, e, Item{Part: "X2", Quantity: 1})
			_, err := e.RecordDelivery(ctx, "X1", "S1")
			require.NoError(t, err)
			_, err = e.RecordDelivery(ctx, "X2", "S2")
			require.NoError(t, err)

			_, err = e.RecordDelivery(ctx, "X1", "S1")
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindConflict))
			assert.Contains(t, apperr.Message(err), "already registered on this line")

			_, err = e.RecordDelivery(ctx, "X1", "S2")
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindConflict))
			assert.Contains(t, apperr.Message(err), "already delivered elsewhere")
		})
	}
}

func TestRecordDeliveryPicksOldestOpenLine(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	ctx := context.Background()
	older := mustCreate(t, e, Item{Part: "X1", Quantity: 1})
	newer := mustCreate(t, e, Item{Part: "X1", Quantity: 1})

	res, err := e.RecordDelivery(ctx, "X1", "S1")
	require.NoError(t, err)
	assert.Equal(t, older.SerialCode, res.OrderCode)

	res, err = e.RecordDelivery(ctx, "X1", "S2")
	require.NoError(t, err)
	assert.Equal(t, newer.SerialCode, res.OrderCode)
}

func TestRecordDeliveryErrors(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	ctx := context.Background()

	_, err := e.RecordDelivery(ctx, "", "S1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = e.RecordDelivery(ctx, "X1", " ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = e.RecordDelivery(ctx, "X1", "S1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConfirmDeliveryErrors(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	ctx := context.Background()
	o := mustCreate(t, e, Item{Part: "X1", Quantity: 2})
	_, err := e.RecordDelivery(ctx, "X1", "S1")
	require.NoError(t, err)

	_, err = e.ConfirmDelivery(ctx, "X1", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = e.ConfirmDelivery(ctx, "X1", "S404")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = e.ConfirmDelivery(ctx, "X2", "S1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = e.CancelLine(ctx, o.SerialCode, "X1")
	require.NoError(t, err)
	_, err = e.ConfirmDelivery(ctx, "X1", "S1")
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestConfirmDeliveryIsIdempotent(t *testing.T) {
	repo := NewMemoryStore()
	e, _ := newTestEngine(t, repo)
	ctx := context.Background()
	o := mustCreate(t, e, Item{Part: "X1", Quantity: 2})
	_, err := e.RecordDelivery(ctx, "X1", "S1")
	require.NoError(t, err)

	_, err = e.ConfirmDelivery(ctx, "X1", "S1")
	require.NoError(t, err)
	first, err := repo.Get(ctx, o.SerialCode)
	require.NoError(t, err)
	stamp := *first.Lines[0].Deliveries[0].ConfirmedAt

	res, err := e.ConfirmDelivery(ctx, "X1", "S1")
	require.NoError(t, err)
	assert.False(t, res.LineConfirmed, "a partial line never confirms")

	again, err := repo.Get(ctx, o.SerialCode)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(*again.Lines[0].Deliveries[0].ConfirmedAt))
	assert.Equal(t, first.Version, again.Version)
	assert.Equal(t, LinePartiallyDelivered, again.Lines[0].Status)
}

func TestRecordDeliveryRetriesOnVersionConflict(t *testing.T) {
	store, db := newDynamoStore()
	e, _ := newTestEngine(t, store)
	ctx := context.Background()
	o := mustCreate(t, e, Item{Part: "X1", Quantity: 1})

	// A competing scan lands between our read and our write.
	raced := false
	db.OnTransact = func(*dyn.TransactWriteItemsInput) {
		if raced {
			return
		}
		raced = true
		_, err := e.RecordDelivery(ctx, "X1", "S-OTHER")
		require.NoError(t, err)
	}

	_, err := e.RecordDelivery(ctx, "X1", "S-MINE")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "reread sees the line full")

	got, err := store.Get(ctx, o.SerialCode)
	require.NoError(t, err)
	require.Len(t, got.Lines[0].Deliveries, 1)
	assert.Equal(t, "S-OTHER", got.Lines[0].Deliveries[0].Serial)
	claim, err := store.FindSerial(ctx, "S-MINE")
	require.NoError(t, err)
	assert.Nil(t, claim)
}

func TestRecordDeliveryRetryExhaustion(t *testing.T) {
	store, db := newDynamoStore()
	e, _ := newTestEngine(t, store)
	e.retries = 2
	ctx := context.Background()
	o := mustCreate(t, e, Item{Part: "X1", Quantity: 5})

	// Bump the stored version before every write so each attempt is stale.
	db.OnTransact = func(*dyn.TransactWriteItemsInput) {
		cur, err := store.Get(ctx, o.SerialCode)
		require.NoError(t, err)
		db.Seed("orders", bumpVersion(t, cur))
	}

	_, err := e.RecordDelivery(ctx, "X1", "S1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestConcurrentDeliveriesNeverExceedQuantity(t *testing.T) {
	repo := NewMemoryStore()
	e, _ := newTestEngine(t, repo)
	e.retries = 50
	ctx := context.Background()
	o := mustCreate(t, e, Item{Part: "X1", Quantity: 3})

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.RecordDelivery(ctx, "X1", fmt.Sprintf("S%02d", i))
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			kind := apperr.KindOf(err)
			assert.Contains(t, []apperr.Kind{apperr.KindInvalidState, apperr.KindNotFound, apperr.KindConflict}, kind)
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(ctx, o.SerialCode)
	require.NoError(t, err)
	assert.Equal(t, 3, ok)
	assert.Len(t, got.Lines[0].Deliveries, 3)
	assert.Equal(t, LineDelivered, got.Lines[0].Status)
}

func TestConcurrentSameSerialClaimedOnce(t *testing.T) {
	repo := NewMemoryStore()
	e, _ := newTestEngine(t, repo)
	e.retries = 50
	ctx := context.Background()
	mustCreate(t, e, Item{Part: "X1", Quantity: 1})
	mustCreate(t, e, Item{Part: "X2", Quantity: 1})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, part := range []string{"X1", "X2"} {
		wg.Add(1)
		go func(i int, part string) {
			defer wg.Done()
			_, errs[i] = e.RecordDelivery(ctx, part, "SHARED")
		}(i, part)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, apperr.Is(err, apperr.KindConflict))
		}
	}
	assert.Equal(t, 1, failures)
}
