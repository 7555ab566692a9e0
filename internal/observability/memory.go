package observability

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// MemoryMonitor samples the resident memory of the current process and
// signals when it crosses a limit.
type MemoryMonitor struct {
	interval time.Duration
	limit    uint64 // bytes, 0 = no limit
	logger   *zap.SugaredLogger
	sample   func(ctx context.Context) (uint64, error)

	mu       sync.Mutex
	peak     uint64
	exceeded chan struct{}
	once     sync.Once
}

// NewMemoryMonitor creates a monitor of the current process.
func NewMemoryMonitor(interval time.Duration, limitBytes uint64, logger *zap.SugaredLogger) (*MemoryMonitor, error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	m := newMonitor(interval, limitBytes, logger)
	m.sample = func(ctx context.Context) (uint64, error) {
		info, err := proc.MemoryInfoWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return info.RSS, nil
	}
	return m, nil
}

func newMonitor(interval time.Duration, limit uint64, logger *zap.SugaredLogger) *MemoryMonitor {
	return &MemoryMonitor{
		interval: interval,
		limit:    limit,
		logger:   logger,
		exceeded: make(chan struct{}),
	}
}

// Exceeded is closed once RSS crosses the limit.
func (m *MemoryMonitor) Exceeded() <-chan struct{} {
	return m.exceeded
}

// Peak returns the highest RSS sampled so far.
func (m *MemoryMonitor) Peak() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Run samples until ctx is done.
func (m *MemoryMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *MemoryMonitor) check(ctx context.Context) {
	rss, err := m.sample(ctx)
	if err != nil {
		m.logger.Warnw("memory sample failed", "error", err)
		return
	}

	m.mu.Lock()
	if rss > m.peak {
		m.peak = rss
	}
	peak := m.peak
	m.mu.Unlock()

	RecordMemory(rss, peak)
	if m.limit > 0 && rss > m.limit {
		m.once.Do(func() {
			m.logger.Errorw("memory limit exceeded",
				"rss", humanize.IBytes(rss),
				"limit", humanize.IBytes(m.limit))
			close(m.exceeded)
		})
	}
}

// FormatBytes renders a byte count for logs and reports.
func FormatBytes(b uint64) string {
	return humanize.IBytes(b)
}
