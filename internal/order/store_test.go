package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(id string) Order {
	return Order{
		ID:         id,
		ExternalID: "img_" + id,
		Prompt:     "a lighthouse at dusk",
		PaymentID:  "pay_" + id,
		Status:     StatusPendingPayment,
		CVU:        "0000003100010000000001",
		Alias:      "pixpago.orders",
		PaymentURL: "https://pay.example.com/p/" + id,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Create(testOrder("o1")))

	got, err := s.Get("o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)
	assert.Equal(t, StatusPendingPayment, got.Status)
	assert.Nil(t, got.ImageURL)

	byExt, err := s.GetByExternalID("img_o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", byExt.ID)
}

func TestStore_Get_NotFound(t *testing.T) {
	s := NewStore()

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetByExternalID("img_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Create_Conflict(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(testOrder("o1")))

	err := s.Create(testOrder("o1"))
	assert.ErrorIs(t, err, ErrConflict)

	other := testOrder("o2")
	other.ExternalID = "img_o1"
	err = s.Create(other)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStore_Update_NotFound(t *testing.T) {
	s := NewStore()

	_, err := s.Update("missing", statusPatch(StatusExpired))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Update_AppliesPatch(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(testOrder("o1")))

	updated, err := s.Update("o1", statusPatch(StatusPaymentConfirmed))
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentConfirmed, updated.Status)
	assert.Nil(t, updated.ImageURL)

	url := "https://cdn.example.com/img.png"
	status := StatusCompleted
	updated, err = s.Update("o1", Patch{Status: &status, ImageURL: &url})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	require.NotNil(t, updated.ImageURL)
	assert.Equal(t, url, *updated.ImageURL)

	// Untouched fields survive the patch.
	assert.Equal(t, "a lighthouse at dusk", updated.Prompt)
}

func TestStore_Update_NotifiesAllSubscribersBeforeReturning(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(testOrder("o1")))

	var first, second []Status
	s.Subscribe("o1", func(o Order) { first = append(first, o.Status) })
	s.Subscribe("o1", func(o Order) { second = append(second, o.Status) })

	_, err := s.Update("o1", statusPatch(StatusPaymentConfirmed))
	require.NoError(t, err)
	_, err = s.Update("o1", statusPatch(StatusGeneratingImage))
	require.NoError(t, err)

	// Delivery is synchronous with the write: both subscribers have seen
	// both updates, in the order applied.
	want := []Status{StatusPaymentConfirmed, StatusGeneratingImage}
	assert.Equal(t, want, first)
	assert.Equal(t, want, second)
}

func TestStore_Update_DeliversFullRecord(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(testOrder("o1")))

	var got Order
	s.Subscribe("o1", func(o Order) { got = o })

	url := "https://cdn.example.com/img.png"
	status := StatusCompleted
	_, err := s.Update("o1", Patch{Status: &status, ImageURL: &url})
	require.NoError(t, err)

	assert.Equal(t, "o1", got.ID)
	assert.Equal(t, "a lighthouse at dusk", got.Prompt)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, url, *got.ImageURL)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(testOrder("o1")))

	var calls int
	unsubscribe := s.Subscribe("o1", func(Order) { calls++ })
	assert.Equal(t, 1, s.SubscriberCount("o1"))

	_, err := s.Update("o1", statusPatch(StatusPaymentConfirmed))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	unsubscribe()
	assert.Equal(t, 0, s.SubscriberCount("o1"))

	_, err = s.Update("o1", statusPatch(StatusGeneratingImage))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Unsubscribing twice is harmless.
	unsubscribe()
	assert.Equal(t, 0, s.SubscriberCount("o1"))
}

func TestStore_Attach_NotFound(t *testing.T) {
	s := NewStore()

	_, err := s.Attach("missing", func(Order) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Attach_DeliversSnapshotBeforeUpdates(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(testOrder("o1")))

	var seen []Status
	unsubscribe, err := s.Attach("o1", func(o Order) { seen = append(seen, o.Status) })
	require.NoError(t, err)
	defer unsubscribe()

	// The snapshot is delivered synchronously, during Attach itself.
	assert.Equal(t, []Status{StatusPendingPayment}, seen)

	_, err = s.Update("o1", statusPatch(StatusPaymentConfirmed))
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusPendingPayment, StatusPaymentConfirmed}, seen)
}

func TestStore_SubscribersAreScopedPerOrder(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create(testOrder("o1")))
	require.NoError(t, s.Create(testOrder("o2")))

	var calls int
	s.Subscribe("o1", func(Order) { calls++ })

	_, err := s.Update("o2", statusPatch(StatusExpired))
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}
