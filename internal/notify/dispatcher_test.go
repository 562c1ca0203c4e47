package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/model"
)

type recordedFailure struct {
	id        uuid.UUID
	next      time.Time
	permanent bool
}

type fakeDispatchStore struct {
	pending    []model.Notification
	emails     map[uuid.UUID]string
	delivered  []uuid.UUID
	failures   []recordedFailure
	pendingErr error
}

func (f *fakeDispatchStore) PendingNotifications(_ context.Context, limit int) ([]model.Notification, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeDispatchStore) RecipientEmail(_ context.Context, id uuid.UUID) (string, error) {
	return f.emails[id], nil
}

func (f *fakeDispatchStore) MarkDelivered(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.delivered = append(f.delivered, id)
	return nil
}

func (f *fakeDispatchStore) RecordFailure(_ context.Context, id uuid.UUID, next time.Time, permanent bool) error {
	f.failures = append(f.failures, recordedFailure{id: id, next: next, permanent: permanent})
	return nil
}

// fakeTransport fails for addresses listed in reject.
type fakeTransport struct {
	sent   []string
	reject map[string]bool
}

func (f *fakeTransport) Send(to, _, _ string) error {
	if f.reject[to] {
		return errors.New("connection reset")
	}
	f.sent = append(f.sent, to)
	return nil
}

func pendingNotification(recipient uuid.UUID) model.Notification {
	return model.Notification{
		ID:          uuid.New(),
		RecipientID: recipient,
		Kind:        model.NotificationNewMatch,
		Title:       "New match for \"go work\"",
		Body:        "A listing matched your saved search.",
		Status:      model.DeliveryPending,
	}
}

func TestDrainDeliversAndIsolatesFailures(t *testing.T) {
	good1 := uuid.New()
	bad := uuid.New()
	good2 := uuid.New()

	st := &fakeDispatchStore{
		pending: []model.Notification{
			pendingNotification(good1),
			pendingNotification(bad),
			pendingNotification(good2),
		},
		emails: map[uuid.UUID]string{
			good1: "one@example.com",
			bad:   "down@example.com",
			good2: "two@example.com",
		},
	}
	transport := &fakeTransport{reject: map[string]bool{"down@example.com": true}}

	d := NewDispatcher(st, transport, 0, 0, zap.NewNop())

	report, err := d.Drain(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sent)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], st.pending[1].ID.String())

	assert.Equal(t, []string{"one@example.com", "two@example.com"}, transport.sent)
	assert.Equal(t, []uuid.UUID{st.pending[0].ID, st.pending[2].ID}, st.delivered)

	require.Len(t, st.failures, 1)
	assert.Equal(t, st.pending[1].ID, st.failures[0].id)
	assert.False(t, st.failures[0].permanent)
}

func TestDrainMissingEmailDoesNotBurnAnAttempt(t *testing.T) {
	recipient := uuid.New()

	st := &fakeDispatchStore{
		pending: []model.Notification{pendingNotification(recipient)},
		emails:  map[uuid.UUID]string{},
	}
	transport := &fakeTransport{}

	d := NewDispatcher(st, transport, 0, 0, zap.NewNop())

	report, err := d.Drain(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Sent)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "no delivery address")

	// The row stays pending untouched until an address shows up.
	assert.Empty(t, st.failures)
	assert.Empty(t, st.delivered)
	assert.Empty(t, transport.sent)
}

func TestDrainParksAfterMaxAttempts(t *testing.T) {
	recipient := uuid.New()

	n := pendingNotification(recipient)
	n.Attempts = 2 // the next failure is the third and last

	st := &fakeDispatchStore{
		pending: []model.Notification{n},
		emails:  map[uuid.UUID]string{recipient: "gone@example.com"},
	}
	transport := &fakeTransport{reject: map[string]bool{"gone@example.com": true}}

	d := NewDispatcher(st, transport, 3, time.Minute, zap.NewNop())

	_, err := d.Drain(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, st.failures, 1)
	assert.True(t, st.failures[0].permanent)
}

func TestDrainBacksOffExponentially(t *testing.T) {
	recipient := uuid.New()

	n := pendingNotification(recipient)
	n.Attempts = 3

	st := &fakeDispatchStore{
		pending: []model.Notification{n},
		emails:  map[uuid.UUID]string{recipient: "flaky@example.com"},
	}
	transport := &fakeTransport{reject: map[string]bool{"flaky@example.com": true}}

	d := NewDispatcher(st, transport, 0, time.Minute, zap.NewNop())

	before := time.Now()
	_, err := d.Drain(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, st.failures, 1)
	// Fourth failure waits 2^3 minutes.
	wait := st.failures[0].next.Sub(before)
	assert.InDelta(t, (8 * time.Minute).Seconds(), wait.Seconds(), 5)
}

func TestDrainRespectsBatchLimit(t *testing.T) {
	recipient := uuid.New()

	st := &fakeDispatchStore{
		pending: []model.Notification{
			pendingNotification(recipient),
			pendingNotification(recipient),
			pendingNotification(recipient),
		},
		emails: map[uuid.UUID]string{recipient: "busy@example.com"},
	}
	transport := &fakeTransport{}

	d := NewDispatcher(st, transport, 0, 0, zap.NewNop())

	report, err := d.Drain(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sent)
}

func TestDrainFailsWhenPendingFetchFails(t *testing.T) {
	st := &fakeDispatchStore{pendingErr: errors.New("connection refused")}

	d := NewDispatcher(st, &fakeTransport{}, 0, 0, zap.NewNop())

	_, err := d.Drain(context.Background(), 0)
	require.Error(t, err)
}

func TestBackoffFor(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{5, 16 * time.Minute},
		{20, 24 * time.Hour},
	}

	for _, tc := range cases {
		if got := backoffFor(time.Minute, tc.attempts); got != tc.want {
			t.Fatalf("backoffFor(1m, %d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}
}
