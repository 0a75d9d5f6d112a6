package benchmark

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boreq/persistence_benchmark/fixtures"
	"github.com/stretchr/testify/require"
)

func TestStartStopRecordsNonNegativeDuration(t *testing.T) {
	b, _ := newTestBenchmark(t, Config{})

	require.NoError(t, b.Start())
	require.NoError(t, b.Stop(OneByOneCreate))

	values := b.Measurements().Values(OneByOneCreate)
	require.Len(t, values, 1)
	require.GreaterOrEqual(t, values[0], int64(0))
}

func TestStopWithoutStartFails(t *testing.T) {
	b, _ := newTestBenchmark(t, Config{})

	err := b.Stop(OneByOneCreate)
	require.ErrorIs(t, err, ErrNotStarted)
	require.Empty(t, b.Measurements().Values(OneByOneCreate))
}

func TestStartTwiceFails(t *testing.T) {
	b, _ := newTestBenchmark(t, Config{})

	require.NoError(t, b.Start())
	require.ErrorIs(t, b.Start(), ErrAlreadyStarted)
}

func TestStopWithUnknownKindFails(t *testing.T) {
	b, _ := newTestBenchmark(t, Config{})

	require.NoError(t, b.Start())
	require.ErrorIs(t, b.Stop(Kind(100)), ErrUnknownKind)
	require.NoError(t, b.Stop(BatchRead), "measurement should still be running")
}

func TestCommitWhileStartedFails(t *testing.T) {
	b, sink := newTestBenchmark(t, Config{})

	require.NoError(t, b.Start())
	require.ErrorIs(t, b.Commit(), ErrCommitWhileStarted)
	require.Empty(t, sink.Rows)
}

func TestStopMeasuresElapsedTime(t *testing.T) {
	clock := newFakeClock(false)
	b, sink := newTestBenchmark(t, Config{Clock: clock})

	require.NoError(t, b.Start())
	clock.Advance(12*time.Millisecond+500*time.Microsecond, 0)
	require.NoError(t, b.Stop(BatchCreate))
	require.NoError(t, b.Commit())

	require.Equal(t, []int64{12}, b.Measurements().Values(BatchCreate))
	require.Equal(t,
		[]testRow{
			{
				Names:  []string{"device", "time", "BATCH_CREATE"},
				Values: []string{"test-device", "2026-10-18 12:30:00", "12"},
			},
		},
		sink.Rows,
	)
}

func TestWarmUpRunsAreNotPersisted(t *testing.T) {
	clock := newFakeClock(false)
	b, sink := newTestBenchmark(t, Config{Clock: clock, WarmUpRuns: 2})

	for i := 1; i <= 4; i++ {
		require.NoError(t, b.Start())
		clock.Advance(time.Duration(i)*time.Millisecond, 0)
		require.NoError(t, b.Stop(BatchRead))
		require.NoError(t, b.Commit())

		if i <= 2 {
			require.Empty(t, sink.Rows)
		} else {
			require.Len(t, sink.Rows, i-2)
		}
	}

	require.Equal(t, 4, b.Runs())
	require.Equal(t, []int64{3, 4}, b.Measurements().Values(BatchRead))
}

func TestRowIsClearedAfterCommit(t *testing.T) {
	clock := newFakeClock(false)
	b, sink := newTestBenchmark(t, Config{Clock: clock})

	require.NoError(t, b.Start())
	require.NoError(t, b.Stop(BatchCreate))
	require.NoError(t, b.Start())
	require.NoError(t, b.Stop(BatchUpdate))
	require.NoError(t, b.Commit())

	require.NoError(t, b.Start())
	require.NoError(t, b.Stop(BatchRead))
	require.NoError(t, b.Commit())

	require.Len(t, sink.Rows, 2)
	require.Equal(t, []string{"device", "time", "BATCH_CREATE", "BATCH_UPDATE"}, sink.Rows[0].Names)
	require.Equal(t, []string{"device", "time", "BATCH_READ"}, sink.Rows[1].Names)
}

func TestThreadTimeColumns(t *testing.T) {
	clock := newFakeClock(true)
	b, sink := newTestBenchmark(t, Config{Clock: clock, ThreadTime: true})

	require.True(t, b.ThreadTimeSupported())

	require.NoError(t, b.Start())
	clock.Advance(10*time.Millisecond, 4*time.Millisecond)
	require.NoError(t, b.Stop(QueryIndexed))
	require.NoError(t, b.Commit())

	require.Equal(t,
		[]testRow{
			{
				Names:  []string{"device", "time", "QUERY_INDEXED", "QUERY_INDEXED-thread"},
				Values: []string{"test-device", "2026-10-18 12:30:00", "10", "4"},
			},
		},
		sink.Rows,
	)
}

func TestThreadTimeIsLoggedButNotPersistedWhenDisabled(t *testing.T) {
	clock := newFakeClock(true)
	logs := bytes.NewBuffer(nil)
	b, sink := newTestBenchmark(t, Config{Clock: clock, Logger: newTestLogger(logs)})

	require.NoError(t, b.Start())
	clock.Advance(10*time.Millisecond, 4*time.Millisecond)
	require.NoError(t, b.Stop(QueryIndexed))
	require.NoError(t, b.Commit())

	require.Equal(t, []string{"device", "time", "QUERY_INDEXED"}, sink.Rows[0].Names)
	require.Contains(t, logs.String(), "QUERY_INDEXED: 10 ms (thread: 4 ms)")
}

func TestThreadTimeUnsupported(t *testing.T) {
	_, err := NewBenchmark(&recordingSink{}, "test", Config{
		Clock:      newFakeClock(false),
		ThreadTime: true,
	})
	require.ErrorIs(t, err, ErrThreadTimeUnsupported)
}

func TestSettleIsCalledBeforeEveryStart(t *testing.T) {
	var calls int
	b, _ := newTestBenchmark(t, Config{Settle: func() { calls++ }})

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Start())
		require.NoError(t, b.Stop(BatchRead))
	}

	require.Equal(t, 3, calls)
}

func TestObserverIsNotified(t *testing.T) {
	clock := newFakeClock(false)
	observer := &recordingObserver{}
	b, _ := newTestBenchmark(t, Config{Clock: clock, Observer: observer})

	require.NoError(t, b.Start())
	clock.Advance(7*time.Millisecond, 0)
	require.NoError(t, b.Stop(BatchUpdate))
	require.Empty(t, observer.Kinds, "observations are delivered on commit")

	require.NoError(t, b.Commit())

	require.Equal(t, []Kind{BatchUpdate}, observer.Kinds)
	require.Equal(t, []time.Duration{7 * time.Millisecond}, observer.Elapsed)
}

func TestObserverIsNotNotifiedAboutWarmUpRuns(t *testing.T) {
	clock := newFakeClock(false)
	observer := &recordingObserver{}
	b, _ := newTestBenchmark(t, Config{Clock: clock, Observer: observer, WarmUpRuns: 1})

	require.NoError(t, b.Start())
	clock.Advance(3*time.Millisecond, 0)
	require.NoError(t, b.Stop(BatchCreate))
	require.NoError(t, b.Commit())

	require.Empty(t, observer.Kinds)

	require.NoError(t, b.Start())
	clock.Advance(5*time.Millisecond, 0)
	require.NoError(t, b.Stop(BatchRead))
	require.NoError(t, b.Commit())

	require.Equal(t, []Kind{BatchRead}, observer.Kinds)
	require.Equal(t, []time.Duration{5 * time.Millisecond}, observer.Elapsed)
}

func TestSummary(t *testing.T) {
	clock := newFakeClock(false)
	b, _ := newTestBenchmark(t, Config{Clock: clock})

	for _, d := range []time.Duration{5, 1, 3} {
		require.NoError(t, b.Start())
		clock.Advance(d*time.Millisecond, 0)
		require.NoError(t, b.Stop(OneByOneCreate))
	}

	for _, d := range []time.Duration{5, 1, 3, 7} {
		require.NoError(t, b.Start())
		clock.Advance(d*time.Millisecond, 0)
		require.NoError(t, b.Stop(QueryIndexed))
	}

	buf := bytes.NewBuffer(nil)
	require.NoError(t, b.WriteSummary(buf))

	require.Equal(t,
		"----Results\n"+
			"All values in [ms]\n"+
			"\n"+
			"QUERY_INDEXED\n"+
			"5\n1\n3\n7\n"+
			"4.0 MEDIAN\n"+
			"\n"+
			"ONE_BY_ONE_CREATE\n"+
			"5\n1\n3\n"+
			"3.0 MEDIAN\n"+
			"\n"+
			"----\n",
		buf.String(),
	)
}

func TestEndToEnd(t *testing.T) {
	dir := fixtures.Directory(t, "")
	path := filepath.Join(dir, "results.tsv")

	sink, err := OpenResultFile(path, DefaultSeparator)
	require.NoError(t, err)

	logs := bytes.NewBuffer(nil)
	b, err := NewBenchmark(sink, "TestEndToEnd", Config{
		WarmUpRuns:   0,
		FixedColumns: []Column{{Name: "device", Value: "test-device"}},
		Logger:       newTestLogger(logs),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Start())
		require.NoError(t, b.Stop(OneByOneCreate))
		require.NoError(t, b.Commit())
	}

	b.LogSummary()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(contents), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "device\ttime\tONE_BY_ONE_CREATE", lines[0])
	for _, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		require.Len(t, fields, 3)
		require.Equal(t, "test-device", fields[0])
		require.Regexp(t, `^[0-9]+$`, fields[2])
	}

	summary := logs.String()
	require.Contains(t, summary, "test=TestEndToEnd")
	require.Contains(t, summary, "msg=ONE_BY_ONE_CREATE")
	require.Equal(t, 1, strings.Count(summary, "MEDIAN"))

	summaryBuf := bytes.NewBuffer(nil)
	require.NoError(t, b.WriteSummary(summaryBuf))
	summaryLines := strings.Split(summaryBuf.String(), "\n")
	require.Equal(t, "ONE_BY_ONE_CREATE", summaryLines[3])
	for _, line := range summaryLines[4:7] {
		require.Regexp(t, `^[0-9]+$`, line)
	}
	require.Regexp(t, `^[0-9]+\.[0-9] MEDIAN$`, summaryLines[7])
}

func TestEndToEndThreadTimeAddsOneHeader(t *testing.T) {
	dir := fixtures.Directory(t, "")
	path := filepath.Join(dir, "results.tsv")

	commit := func(threadTime bool) {
		sink, err := OpenResultFile(path, DefaultSeparator)
		require.NoError(t, err)

		b, err := NewBenchmark(sink, "test", Config{
			ThreadTime: threadTime,
			Clock:      newFakeClock(true),
			Logger:     newTestLogger(io.Discard),
		})
		require.NoError(t, err)

		require.NoError(t, b.Start())
		require.NoError(t, b.Stop(BatchCreate))
		require.NoError(t, b.Commit())
	}

	commit(false)
	commit(false)
	commit(true)
	commit(true)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, 2, strings.Count(string(contents), "time\tBATCH_CREATE"))
	require.Equal(t, 1, strings.Count(string(contents), "BATCH_CREATE-thread"))
	require.Equal(t,
		[]string{"time", "BATCH_CREATE", "BATCH_CREATE-thread"},
		ParseLastHeader(string(contents), DefaultSeparator),
	)
}

func TestNewBenchmarkValidatesConfig(t *testing.T) {
	_, err := NewBenchmark(nil, "test", Config{})
	require.Error(t, err)

	_, err = NewBenchmark(&recordingSink{}, "test", Config{WarmUpRuns: -1})
	require.Error(t, err)
}

func newTestBenchmark(t *testing.T, config Config) (*Benchmark, *recordingSink) {
	sink := &recordingSink{}

	config.FixedColumns = []Column{{Name: "device", Value: "test-device"}}
	config.Timestamp = func() time.Time {
		return time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)
	}
	if config.Logger == nil {
		config.Logger = newTestLogger(io.Discard)
	}

	b, err := NewBenchmark(sink, t.Name(), config)
	require.NoError(t, err)
	return b, sink
}

func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testRow struct {
	Names  []string
	Values []string
}

type recordingSink struct {
	Rows []testRow
}

func (r *recordingSink) AppendRow(names, values []string) error {
	r.Rows = append(r.Rows, testRow{Names: names, Values: values})
	return nil
}

type recordingObserver struct {
	Kinds   []Kind
	Elapsed []time.Duration
}

func (r *recordingObserver) Observe(kind Kind, elapsed time.Duration) {
	r.Kinds = append(r.Kinds, kind)
	r.Elapsed = append(r.Elapsed, elapsed)
}

type fakeClock struct {
	now             time.Duration
	thread          time.Duration
	threadSupported bool
}

func newFakeClock(threadSupported bool) *fakeClock {
	return &fakeClock{threadSupported: threadSupported}
}

func (c *fakeClock) Advance(wall, thread time.Duration) {
	c.now += wall
	c.thread += thread
}

func (c *fakeClock) Now() time.Duration {
	return c.now
}

func (c *fakeClock) ThreadNow() time.Duration {
	return c.thread
}

func (c *fakeClock) ThreadTimeSupported() bool {
	return c.threadSupported
}
