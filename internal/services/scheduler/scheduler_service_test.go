package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

type expiringAuth struct {
	checks  atomic.Int32
	expired bool
}

func (a *expiringAuth) CurrentState() models.AuthState { return models.AuthStateAuthenticated }
func (a *expiringAuth) GetHandle() (interfaces.BrowserSession, error) {
	return nil, interfaces.ErrNotAuthenticated
}
func (a *expiringAuth) IsExpired() bool {
	a.checks.Add(1)
	return a.expired
}

func TestService_RegisterAndRunJob(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	var runs atomic.Int32
	require.NoError(t, svc.RegisterJob("count", "@every 1h", "counts runs", func() error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, svc.RunJobNow("count"))
	assert.Equal(t, int32(1), runs.Load())

	status, err := svc.GetJobStatus("count")
	require.NoError(t, err)
	assert.Equal(t, 1, status.RunCount)
	assert.NotNil(t, status.LastRun)
	assert.Empty(t, status.LastError)
	assert.False(t, status.IsRunning)
}

func TestService_RejectsBadSchedule(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	assert.Error(t, svc.RegisterJob("bad", "every so often", "", func() error { return nil }))
	assert.Error(t, svc.RegisterJob("nil", "@every 1m", "", nil))
}

func TestService_DuplicateName(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	require.NoError(t, svc.RegisterJob("job", "@every 1m", "", func() error { return nil }))
	assert.Error(t, svc.RegisterJob("job", "@every 1m", "", func() error { return nil }))
}

func TestService_JobErrorRecorded(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	require.NoError(t, svc.RegisterJob("fails", "@every 1h", "", func() error { return errors.New("boom") }))

	assert.EqualError(t, svc.RunJobNow("fails"), "boom")
	status, err := svc.GetJobStatus("fails")
	require.NoError(t, err)
	assert.Equal(t, "boom", status.LastError)
}

func TestService_PanicRecovered(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	require.NoError(t, svc.RegisterJob("panics", "@every 1h", "", func() error { panic("bad state") }))

	err := svc.RunJobNow("panics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad state")

	status, _ := svc.GetJobStatus("panics")
	assert.False(t, status.IsRunning)
}

func TestService_UnknownJob(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	assert.Error(t, svc.RunJobNow("missing"))
	_, err := svc.GetJobStatus("missing")
	assert.Error(t, err)
}

func TestService_StartStop(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	require.NoError(t, svc.RegisterJob("job", "@every 1h", "", func() error { return nil }))

	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())

	jobs := svc.ListJobs()
	require.Len(t, jobs, 1)
	assert.NotNil(t, jobs[0].NextRun)

	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
}

func TestExpirySweep(t *testing.T) {
	auth := &expiringAuth{expired: true}
	sweep := NewExpirySweep(func() interfaces.AuthSession { return auth }, arbor.NewLogger())

	require.NoError(t, sweep())
	assert.Equal(t, int32(1), auth.checks.Load())

	noSession := NewExpirySweep(func() interfaces.AuthSession { return nil }, arbor.NewLogger())
	assert.NoError(t, noSession())
}
