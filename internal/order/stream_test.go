package order

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamService builds a service over a fresh store without touching any
// provider; stream tests drive transitions through the store directly.
func streamService(t *testing.T) (*Service, *Store) {
	t.Helper()
	store := NewStore()
	svc := NewService(store, nil, nil, ServiceConfig{}, testLogger())
	return svc, store
}

func TestOpenStream_NotFound(t *testing.T) {
	svc, _ := streamService(t)

	_, err := svc.OpenStream("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenStream_TerminalAttach(t *testing.T) {
	svc, store := streamService(t)
	require.NoError(t, store.Create(testOrder("o1")))

	url := "https://cdn.example.com/img.png"
	status := StatusCompleted
	_, err := store.Update("o1", Patch{Status: &status, ImageURL: &url})
	require.NoError(t, err)

	stream, err := svc.OpenStream("o1")
	require.NoError(t, err)
	defer stream.Close()

	// Exactly one event, no live subscription registered.
	view := <-stream.Events()
	assert.Equal(t, StatusCompleted, view.Status)
	require.NotNil(t, view.ImageURL)
	assert.Equal(t, url, *view.ImageURL)
	assert.Equal(t, 0, store.SubscriberCount("o1"))

	select {
	case v := <-stream.Events():
		t.Fatalf("unexpected second event: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOpenStream_SnapshotThenUpdates(t *testing.T) {
	svc, store := streamService(t)
	require.NoError(t, store.Create(testOrder("o1")))

	stream, err := svc.OpenStream("o1")
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, 1, store.SubscriberCount("o1"))

	url := "https://cdn.example.com/img.png"
	for _, status := range []Status{StatusPaymentConfirmed, StatusGeneratingImage} {
		_, err := store.Update("o1", statusPatch(status))
		require.NoError(t, err)
	}
	completed := StatusCompleted
	_, err = store.Update("o1", Patch{Status: &completed, ImageURL: &url})
	require.NoError(t, err)

	var seen []Status
	for len(seen) < 4 {
		select {
		case v := <-stream.Events():
			seen = append(seen, v.Status)
			if v.Status == StatusCompleted {
				require.NotNil(t, v.ImageURL)
			} else {
				assert.Nil(t, v.ImageURL)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out after %v", seen)
		}
	}

	assert.Equal(t, []Status{
		StatusPendingPayment,
		StatusPaymentConfirmed,
		StatusGeneratingImage,
		StatusCompleted,
	}, seen)
}

// An update landing while a listener attaches must never be observed
// ahead of an older snapshot: attach registers the subscription and
// delivers the snapshot in one store critical section.
func TestOpenStream_AttachRacingUpdateNeverRegresses(t *testing.T) {
	svc, store := streamService(t)

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("o%d", i)
		require.NoError(t, store.Create(testOrder(id)))

		done := make(chan struct{})
		go func() {
			_, _ = store.Update(id, statusPatch(StatusPaymentConfirmed))
			close(done)
		}()

		stream, err := svc.OpenStream(id)
		require.NoError(t, err)
		<-done

		// Attach and update have both completed, so every delivery for
		// this order is already queued.
		var seen []Status
	drain:
		for {
			select {
			case v := <-stream.Events():
				seen = append(seen, v.Status)
			default:
				break drain
			}
		}
		stream.Close()

		require.NotEmpty(t, seen)
		confirmed := false
		for _, status := range seen {
			if status == StatusPaymentConfirmed {
				confirmed = true
			} else if confirmed {
				t.Fatalf("status regression: %v", seen)
			}
		}
		require.True(t, confirmed, "update not observed: %v", seen)
	}
}

func TestStream_CloseReleasesSubscription(t *testing.T) {
	svc, store := streamService(t)
	require.NoError(t, store.Create(testOrder("o1")))

	stream, err := svc.OpenStream("o1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.SubscriberCount("o1"))

	stream.Close()
	assert.Equal(t, 0, store.SubscriberCount("o1"))

	// After close nothing further is delivered, even if an update is
	// (incorrectly) triggered.
	<-stream.Events() // drain the snapshot
	_, err = store.Update("o1", statusPatch(StatusExpired))
	require.NoError(t, err)

	select {
	case v := <-stream.Events():
		t.Fatalf("delivery after close: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}

	stream.Close()
}
