package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder logs job starts and finishes in the order they happen.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) index(e string) int {
	for i, got := range r.Events() {
		if got == e {
			return i
		}
	}
	return -1
}

func (r *recorder) job(name string, err error) Job {
	return JobFunc(func(ctx context.Context) error {
		r.add("start " + name)
		defer r.add("end " + name)
		return err
	})
}

// transitions captures emitter calls.
type transitions struct {
	mu  sync.Mutex
	got []string
}

func (t *transitions) OnJobStateChange(job string, previous, current JobState, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.got = append(t.got, job+":"+previous.String()+"->"+current.String())
}

func releaseJobs(r *recorder, failures map[string]error) map[string]Job {
	jobs := make(map[string]Job)
	for _, s := range releaseSpecs() {
		jobs[s.Name] = r.job(s.Name, failures[s.Name])
	}
	return jobs
}

func runRelease(t *testing.T, jobs map[string]Job, opts Options) *Result {
	t.Helper()
	g, err := NewGraph(releaseSpecs())
	require.NoError(t, err)
	ex, err := NewExecutor(g, jobs, opts)
	require.NoError(t, err)
	res, err := ex.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestExecutor_BuildRunsBeforeDependents(t *testing.T) {
	r := &recorder{}
	res := runRelease(t, releaseJobs(r, nil), Options{})

	require.NoError(t, res.Err())
	buildEnd := r.index("end build_packages")
	require.GreaterOrEqual(t, buildEnd, 0)
	for _, dep := range []string{"push_to_pypi", "release", "push_to_cloudsmith"} {
		assert.Greater(t, r.index("start "+dep), buildEnd, dep)
	}
	assert.Greater(t, r.index("start push_to_tap"), r.index("end push_to_pypi"))

	for name, o := range res.Jobs {
		assert.Equal(t, StateSucceeded, o.State, name)
	}
	assert.Len(t, res.Started, 7)
}

func TestExecutor_BuildFailureSkipsDependents(t *testing.T) {
	r := &recorder{}
	res := runRelease(t, releaseJobs(r, map[string]error{
		"build_packages": errors.New("nfpm: exit status 1"),
	}), Options{})

	assert.Equal(t, StateFailed, res.Jobs["build_packages"].State)
	for _, dep := range []string{"push_to_pypi", "release", "push_to_cloudsmith"} {
		assert.Equal(t, StateSkipped, res.Jobs[dep].State, dep)
		assert.Equal(t, "needs build_packages", res.Jobs[dep].Reason, dep)
		assert.Equal(t, -1, r.index("start "+dep), dep)
	}
	assert.Equal(t, StateSkipped, res.Jobs["push_to_tap"].State)
	assert.Equal(t, "needs push_to_pypi", res.Jobs["push_to_tap"].Reason)

	// Container jobs do not depend on the build.
	assert.Equal(t, StateSucceeded, res.Jobs["push_to_docker_hub"].State)
	assert.Equal(t, StateSucceeded, res.Jobs["push_to_github_packages"].State)

	err := res.Err()
	require.ErrorIs(t, err, ErrPipelineFailed)
	assert.Contains(t, err.Error(), "build_packages")
}

func TestExecutor_ContinueOnError(t *testing.T) {
	r := &recorder{}
	res := runRelease(t, releaseJobs(r, map[string]error{
		"release": errors.New("github: 502"),
	}), Options{})

	o := res.Jobs["release"]
	assert.Equal(t, StateFailed, o.State)
	assert.True(t, o.Tolerated)
	assert.EqualError(t, o.Err, "github: 502")
	assert.NoError(t, res.Err())
}

func TestExecutor_ToleratedFailureSatisfiesDependents(t *testing.T) {
	r := &recorder{}
	g, err := NewGraph([]JobSpec{
		{Name: "flaky", ContinueOnError: true},
		{Name: "after", Needs: []string{"flaky"}},
	})
	require.NoError(t, err)
	ex, err := NewExecutor(g, map[string]Job{
		"flaky": r.job("flaky", errors.New("boom")),
		"after": r.job("after", nil),
	}, Options{})
	require.NoError(t, err)

	res, err := ex.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.Jobs["after"].State)
	assert.NoError(t, res.Err())
}

func TestExecutor_IndependentJobsRunConcurrently(t *testing.T) {
	g, err := NewGraph([]JobSpec{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	barrier := func(ctx context.Context) error {
		wg.Done()
		waited := make(chan struct{})
		go func() { wg.Wait(); close(waited) }()
		select {
		case <-waited:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("peer job never started")
		}
	}

	ex, err := NewExecutor(g, map[string]Job{"a": JobFunc(barrier), "b": JobFunc(barrier)}, Options{})
	require.NoError(t, err)
	res, err := ex.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, res.Err())
}

func TestExecutor_MaxParallel(t *testing.T) {
	var cur, peak int32
	job := JobFunc(func(ctx context.Context) error {
		n := atomic.AddInt32(&cur, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&cur, -1)
		return nil
	})
	jobs := make(map[string]Job)
	for _, s := range releaseSpecs() {
		jobs[s.Name] = job
	}

	res := runRelease(t, jobs, Options{MaxParallel: 1})
	require.NoError(t, res.Err())
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestExecutor_Only(t *testing.T) {
	r := &recorder{}
	res := runRelease(t, releaseJobs(r, nil), Options{Only: []string{"push_to_pypi", "push_to_tap"}})

	assert.Equal(t, StateExcluded, res.Jobs["build_packages"].State)
	assert.Equal(t, StateExcluded, res.Jobs["push_to_docker_hub"].State)
	assert.Equal(t, StateSucceeded, res.Jobs["push_to_pypi"].State)
	assert.Equal(t, StateSucceeded, res.Jobs["push_to_tap"].State)
	assert.Equal(t, []string{"push_to_pypi", "push_to_tap"}, res.Started)
	assert.Equal(t, -1, r.index("start build_packages"))
}

func TestExecutor_Cancel(t *testing.T) {
	g, err := NewGraph([]JobSpec{
		{Name: "slow"},
		{Name: "after", Needs: []string{"slow"}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	ex, err := NewExecutor(g, map[string]Job{
		"slow": JobFunc(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}),
		"after": JobFunc(func(ctx context.Context) error { return nil }),
	}, Options{})
	require.NoError(t, err)

	go func() {
		<-started
		cancel()
	}()
	res, err := ex.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.Jobs["slow"].State)
	assert.ErrorIs(t, res.Jobs["slow"].Err, context.Canceled)
	assert.Equal(t, StateSkipped, res.Jobs["after"].State)
	assert.Equal(t, "canceled", res.Jobs["after"].Reason)
}

func TestExecutor_CancelSkipsJobWaitingForSlot(t *testing.T) {
	g, err := NewGraph([]JobSpec{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var bRan atomic.Bool
	ex, err := NewExecutor(g, map[string]Job{
		"a": JobFunc(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}),
		"b": JobFunc(func(ctx context.Context) error {
			bRan.Store(true)
			return nil
		}),
	}, Options{MaxParallel: 1})
	require.NoError(t, err)

	go func() {
		<-started
		cancel()
	}()
	res, err := ex.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.Jobs["a"].State)
	assert.Equal(t, StateSkipped, res.Jobs["b"].State)
	assert.Equal(t, "canceled", res.Jobs["b"].Reason)
	assert.False(t, bRan.Load())
	assert.Equal(t, []string{"a"}, res.Started)
}

func TestExecutor_PanicIsFailure(t *testing.T) {
	g, err := NewGraph([]JobSpec{{Name: "a"}})
	require.NoError(t, err)
	ex, err := NewExecutor(g, map[string]Job{
		"a": JobFunc(func(ctx context.Context) error { panic("kaboom") }),
	}, Options{})
	require.NoError(t, err)

	res, err := ex.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.Jobs["a"].State)
	assert.Contains(t, res.Jobs["a"].Reason, "kaboom")
}

func TestExecutor_Emitter(t *testing.T) {
	g, err := NewGraph([]JobSpec{{Name: "a"}, {Name: "b", Needs: []string{"a"}}})
	require.NoError(t, err)
	tr := &transitions{}
	r := &recorder{}
	ex, err := NewExecutor(g, map[string]Job{
		"a": r.job("a", errors.New("x")),
		"b": r.job("b", nil),
	}, Options{Emitter: tr})
	require.NoError(t, err)

	_, err = ex.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"a:pending->running",
		"a:running->failed",
		"b:pending->skipped",
	}, tr.got)
}

func TestNewExecutor_Validation(t *testing.T) {
	g, err := NewGraph([]JobSpec{{Name: "a"}})
	require.NoError(t, err)

	_, err = NewExecutor(g, map[string]Job{}, Options{})
	assert.ErrorIs(t, err, ErrUnknownJob)

	ok := map[string]Job{"a": JobFunc(func(context.Context) error { return nil })}
	_, err = NewExecutor(g, ok, Options{Only: []string{"zzz"}})
	assert.ErrorIs(t, err, ErrUnknownJob)

	_, err = NewExecutor(g, ok, Options{MaxParallel: -1})
	assert.Error(t, err)

	_, err = NewExecutor(nil, ok, Options{})
	assert.Error(t, err)
}

func TestStateTable_RejectsInvalidTransition(t *testing.T) {
	table := newStateTable([]string{"a"}, nil)
	require.NoError(t, table.transition("a", StateRunning, ""))
	require.NoError(t, table.transition("a", StateSucceeded, ""))

	assert.ErrorIs(t, table.transition("a", StateRunning, ""), ErrInvalidTransition)
	assert.ErrorIs(t, table.transition("b", StateRunning, ""), ErrUnknownJob)
}

func TestJobState_String(t *testing.T) {
	tests := []struct {
		state JobState
		want  string
	}{
		{StatePending, "pending"},
		{StateRunning, "running"},
		{StateSucceeded, "succeeded"},
		{StateFailed, "failed"},
		{StateSkipped, "skipped"},
		{StateExcluded, "excluded"},
		{JobState(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
