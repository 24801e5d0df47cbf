package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bher20/equotemanager/internal/alerting"
	"github.com/bher20/equotemanager/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDigester struct {
	calls [][]storage.Lead
	err   error
}

func (f *fakeDigester) SendDigest(ctx context.Context, to string, leads []storage.Lead, after time.Duration) error {
	f.calls = append(f.calls, leads)
	return f.err
}

type fakeAlerter struct {
	alerts []alerting.Alert
	err    error
}

func (f *fakeAlerter) Send(ctx context.Context, a alerting.Alert) error {
	f.alerts = append(f.alerts, a)
	return f.err
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seedLead(t *testing.T, st storage.Storage, id, status string, created time.Time) {
	t.Helper()
	require.NoError(t, st.CreateSubmission(context.Background(), storage.Submission{
		Customer: storage.Customer{ID: "c-" + id, FirstName: "Ada", CreatedAt: created},
		Lead: storage.Lead{
			ID:         id,
			CustomerID: "c-" + id,
			Source:     storage.LeadSourceQuoteForm,
			Status:     status,
			CreatedAt:  created,
			UpdatedAt:  created,
		},
	}))
}

func newTestWorker(st storage.Storage, d Digester, a Alerter) *Worker {
	w := NewWorker(st, d, a, Config{StaleAfter: 48 * time.Hour, NotifyTo: "owner@example.com"})
	w.now = func() time.Time { return now }
	return w
}

func TestRunOnce_RemindsStaleLeadsOnce(t *testing.T) {
	st := storage.NewMemory()
	seedLead(t, st, "old", storage.LeadStatusNew, now.Add(-72*time.Hour))
	seedLead(t, st, "fresh", storage.LeadStatusNew, now.Add(-time.Hour))
	seedLead(t, st, "handled", storage.LeadStatusContacted, now.Add(-96*time.Hour))

	d := &fakeDigester{}
	a := &fakeAlerter{}
	w := newTestWorker(st, d, a)

	rep, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Stale: 1, Reminded: 1}, rep)
	require.Len(t, d.calls, 1)
	require.Len(t, d.calls[0], 1)
	assert.Equal(t, "old", d.calls[0][0].ID)
	require.Len(t, a.alerts, 1)
	assert.Equal(t, "stale_leads", a.alerts[0].Type)

	lead, err := st.GetLead(context.Background(), "old")
	require.NoError(t, err)
	require.NotNil(t, lead.RemindedAt)
	assert.True(t, lead.RemindedAt.Equal(now))

	rep, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Stale: 1}, rep)
	assert.Len(t, d.calls, 1, "already reminded leads are not sent again")

	job, err := st.GetScheduledJob(context.Background(), JobFollowup)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.LastSuccess)
}

func TestRunOnce_NoDeliveryKeepsLeadsPending(t *testing.T) {
	st := storage.NewMemory()
	seedLead(t, st, "old", storage.LeadStatusNew, now.Add(-72*time.Hour))

	d := &fakeDigester{err: errors.New("smtp down")}
	w := newTestWorker(st, d, nil)

	rep, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, rep.Reminded)

	lead, err := st.GetLead(context.Background(), "old")
	require.NoError(t, err)
	assert.Nil(t, lead.RemindedAt)

	job, err := st.GetScheduledJob(context.Background(), JobFollowup)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 0, job.LastSuccess)
	assert.Contains(t, job.LastError, "smtp down")
}

func TestRunOnce_PartialDeliveryMarksReminded(t *testing.T) {
	st := storage.NewMemory()
	seedLead(t, st, "old", storage.LeadStatusNew, now.Add(-72*time.Hour))

	w := newTestWorker(st, &fakeDigester{}, &fakeAlerter{err: errors.New("webhook 500")})
	rep, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, rep.Reminded)
}

func TestRunOnce_SkipsWhenLocked(t *testing.T) {
	st := storage.NewMemory()
	ok, err := st.AcquireAdvisoryLock(context.Background(), lockKey)
	require.NoError(t, err)
	require.True(t, ok)

	rep, err := newTestWorker(st, &fakeDigester{}, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("3600"))
	assert.NoError(t, ValidateSchedule("0 9 * * 1-5"))
	assert.Error(t, ValidateSchedule("0"))
	assert.Error(t, ValidateSchedule("-5"))
	assert.Error(t, ValidateSchedule("every morning"))
}

func TestNextRun(t *testing.T) {
	assert.Equal(t, now.Add(90*time.Second), NextRun("90", now))
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), NextRun("0 9 * * *", now))
	assert.Equal(t, now.Add(time.Hour), NextRun("garbage", now))
}

func TestSchedule_PrefersValidSetting(t *testing.T) {
	st := storage.NewMemory()
	w := newTestWorker(st, nil, nil)
	ctx := context.Background()

	assert.Equal(t, "3600", w.schedule(ctx, "3600"))
	require.NoError(t, st.SetSetting(ctx, SettingFollowupInterval, "600"))
	assert.Equal(t, "600", w.schedule(ctx, "3600"))
	require.NoError(t, st.SetSetting(ctx, SettingFollowupInterval, "nonsense"))
	assert.Equal(t, "3600", w.schedule(ctx, "3600"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := storage.NewMemory()
	w := NewWorker(st, nil, nil, Config{Tick: 5 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
