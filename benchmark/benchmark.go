package benchmark

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/boreq/errors"
)

var (
	ErrAlreadyStarted        = errors.New("already started")
	ErrNotStarted            = errors.New("not started")
	ErrUnknownKind           = errors.New("unknown kind")
	ErrCommitWhileStarted    = errors.New("commit called while a measurement is running")
	ErrThreadTimeUnsupported = errors.New("thread time is not supported on this platform")
)

const (
	timeColumn       = "time"
	timeFormat       = "2006-01-02 15:04:05"
	ThreadTimeSuffix = "-thread"
)

// Column is a named value of a result row.
type Column struct {
	Name  string
	Value string
}

// DeviceColumn describes the machine running the benchmark.
func DeviceColumn() Column {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return Column{
		Name:  "device",
		Value: fmt.Sprintf("%s-%s-%s", host, runtime.GOOS, runtime.GOARCH),
	}
}

// Observer is notified about the measurements of every committed run which is
// not a warm up run.
type Observer interface {
	Observe(kind Kind, elapsed time.Duration)
}

type Config struct {
	// Results of the first WarmUpRuns commits are not persisted.
	WarmUpRuns int

	// ThreadTime adds a "-thread" column with the thread CPU time next to
	// every measurement. Requires a clock which supports thread time.
	ThreadTime bool

	// FixedColumns start every row, followed by the time column.
	FixedColumns []Column

	// Settle is called before every measurement is started, optional.
	Settle func()

	// Clock defaults to the system clock.
	Clock Clock

	// Timestamp returns the value of the time column, defaults to time.Now.
	Timestamp func() time.Time

	Logger   *slog.Logger
	Observer Observer
}

// Benchmark times operations with Start and Stop and persists the collected
// durations once per run with Commit. It is not safe for concurrent use.
type Benchmark struct {
	sink         RowWriter
	config       Config
	logger       *slog.Logger
	clock        Clock
	measurements *Measurements
	row          []Column
	stopped      []observation

	started         bool
	startedAt       time.Duration
	threadStartedAt time.Duration
	runs            int
}

type observation struct {
	kind    Kind
	elapsed time.Duration
}

// NewBenchmark creates a benchmark persisting committed runs using the sink.
// The logTag identifies the test case in log messages.
func NewBenchmark(sink RowWriter, logTag string, config Config) (*Benchmark, error) {
	if sink == nil {
		return nil, errors.New("sink is nil")
	}

	if config.WarmUpRuns < 0 {
		return nil, errors.New("warm up runs can not be negative")
	}

	if config.Clock == nil {
		config.Clock = NewSystemClock()
	}

	if config.Timestamp == nil {
		config.Timestamp = time.Now
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.ThreadTime && !config.Clock.ThreadTimeSupported() {
		return nil, ErrThreadTimeUnsupported
	}

	return &Benchmark{
		sink:         sink,
		config:       config,
		logger:       config.Logger.With(slog.String("test", logTag)),
		clock:        config.Clock,
		measurements: NewMeasurements(),
	}, nil
}

// ThreadTimeSupported reports whether thread CPU time is captured.
func (b *Benchmark) ThreadTimeSupported() bool {
	return b.clock.ThreadTimeSupported()
}

func (b *Benchmark) Measurements() *Measurements {
	return b.measurements
}

func (b *Benchmark) Start() error {
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true

	if b.config.Settle != nil {
		b.config.Settle()
	}

	if len(b.row) == 0 {
		b.row = append(b.row, b.config.FixedColumns...)
		b.row = append(b.row, Column{
			Name:  timeColumn,
			Value: b.config.Timestamp().Format(timeFormat),
		})
	}

	if b.clock.ThreadTimeSupported() {
		b.threadStartedAt = b.clock.ThreadNow()
	}
	b.startedAt = b.clock.Now()
	return nil
}

func (b *Benchmark) Stop(kind Kind) error {
	now := b.clock.Now()

	var threadNow time.Duration
	if b.clock.ThreadTimeSupported() {
		threadNow = b.clock.ThreadNow()
	}

	if !b.started {
		return ErrNotStarted
	}

	if !kind.Valid() {
		return ErrUnknownKind
	}
	b.started = false

	elapsed := now - b.startedAt
	millis := elapsed.Milliseconds()

	b.measurements.Record(kind, millis)
	b.stopped = append(b.stopped, observation{kind: kind, elapsed: elapsed})
	b.row = append(b.row, Column{Name: kind.String(), Value: strconv.FormatInt(millis, 10)})

	if b.clock.ThreadTimeSupported() {
		threadMillis := (threadNow - b.threadStartedAt).Milliseconds()
		b.log(fmt.Sprintf("%s: %d ms (thread: %d ms)", kind, millis, threadMillis))
		if b.config.ThreadTime {
			b.row = append(b.row, Column{Name: kind.String() + ThreadTimeSuffix, Value: strconv.FormatInt(threadMillis, 10)})
		}
	} else {
		b.log(fmt.Sprintf("%s: %d ms", kind, millis))
	}

	return nil
}

// abort discards a running measurement.
func (b *Benchmark) abort() {
	b.started = false
}

// Commit finishes a run. Runs past the warm up are written to the sink.
func (b *Benchmark) Commit() error {
	if b.started {
		return ErrCommitWhileStarted
	}

	defer func() {
		b.row = nil
		b.stopped = nil
	}()

	b.runs++
	if b.runs <= b.config.WarmUpRuns {
		for _, o := range b.stopped {
			b.measurements.discardLast(o.kind)
		}
		b.log(fmt.Sprintf("Ignoring results for run %d (warm up)", b.runs))
		return nil
	}

	b.log(fmt.Sprintf("Writing results for run %d", b.runs))

	names := make([]string, 0, len(b.row))
	values := make([]string, 0, len(b.row))
	for _, column := range b.row {
		names = append(names, column.Name)
		values = append(values, column.Value)
	}

	if err := b.sink.AppendRow(names, values); err != nil {
		return errors.Wrap(err, "error appending the row")
	}

	if b.config.Observer != nil {
		for _, o := range b.stopped {
			b.config.Observer.Observe(o.kind, o.elapsed)
		}
	}

	return nil
}

// Runs returns the number of commits so far.
func (b *Benchmark) Runs() int {
	return b.runs
}

// WriteSummary writes all durations grouped by kind followed by their median.
func (b *Benchmark) WriteSummary(w io.Writer) error {
	buf := bytes.NewBuffer(nil)
	buf.WriteString("----Results\n")
	buf.WriteString("All values in [ms]\n\n")

	for kind := range b.measurements.Kinds() {
		buf.WriteString(kind.String() + "\n")
		for _, v := range b.measurements.Values(kind) {
			buf.WriteString(strconv.FormatInt(v, 10) + "\n")
		}
		m, _ := b.measurements.Median(kind)
		buf.WriteString(fmt.Sprintf("%.1f MEDIAN\n", m))
		buf.WriteString("\n")
	}

	buf.WriteString("----\n")

	_, err := buf.WriteTo(w)
	return err
}

// LogSummary logs the output of WriteSummary line by line.
func (b *Benchmark) LogSummary() {
	buf := bytes.NewBuffer(nil)
	if err := b.WriteSummary(buf); err != nil {
		b.logger.Error("error writing the summary", "err", err)
		return
	}

	scan := bufio.NewScanner(buf)
	for scan.Scan() {
		b.log(scan.Text())
	}
}

// Log creates a log message tagged with the test name.
func (b *Benchmark) Log(message string) {
	b.log(message)
}

func (b *Benchmark) log(message string) {
	b.logger.Info(message)
}
