package reports

import (
	"context"
	"sync"
	"time"
)

// StatusSnapshot is what a StatusSource reports for one download.
type StatusSnapshot struct {
	Status     DownloadStatus
	FileCount  int
	ErrorCount int
}

// StatusSource fetches the current state of a download.
type StatusSource interface {
	FetchStatus(ctx context.Context, downloadID uint) (StatusSnapshot, error)
}

// ErrorSink receives polling failures. Implementations must not block for long.
type ErrorSink interface {
	ReportPollError(ctx context.Context, downloadID uint, err error)
}

type ProgressUpdate struct {
	DownloadID uint
	StatusSnapshot
	Percent int
	// Err is set when the fetch for this tick failed. The other fields then
	// hold the last successful snapshot.
	Err error
}

type PollerOptions struct {
	// Interval between fetches. Default: 1s
	Interval time.Duration
	// TotalFiles is the denominator of the estimate. Default: AssumedTotalFiles
	TotalFiles int
	Errors     ErrorSink
}

// Poller periodically fetches download status and turns it into progress updates.
type Poller struct {
	source StatusSource
	opts   PollerOptions
}

func NewPoller(source StatusSource, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.TotalFiles <= 0 {
		opts.TotalFiles = AssumedTotalFiles
	}
	return &Poller{source: source, opts: opts}
}

// PollTask is one running poll loop. Updates is closed when the task ends.
type PollTask struct {
	updates chan ProgressUpdate
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (t *PollTask) Updates() <-chan ProgressUpdate { return t.updates }

// Done is closed once the loop has exited.
func (t *PollTask) Done() <-chan struct{} { return t.done }

// Stop cancels the loop, including any fetch in flight, and waits for it to exit.
func (t *PollTask) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Start launches a poll loop for downloadID. The loop ends on Stop, when ctx
// is done, or after delivering the update for a terminal status. A zero id
// returns a task that has already finished.
func (p *Poller) Start(ctx context.Context, downloadID uint) *PollTask {
	ctx, cancel := context.WithCancel(ctx)
	t := &PollTask{
		updates: make(chan ProgressUpdate, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if downloadID == 0 {
		close(t.updates)
		close(t.done)
		return t
	}
	go p.loop(ctx, downloadID, t)
	return t
}

func (p *Poller) loop(ctx context.Context, id uint, t *PollTask) {
	defer close(t.done)
	defer close(t.updates)
	defer t.once.Do(t.cancel)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	var last StatusSnapshot
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// The fetch runs to completion before the next tick is read, so
		// slow responses delay the schedule instead of overlapping.
		snap, err := p.source.FetchStatus(ctx, id)
		if ctx.Err() != nil {
			return
		}
		u := ProgressUpdate{DownloadID: id}
		if err != nil {
			if p.opts.Errors != nil {
				p.opts.Errors.ReportPollError(ctx, id, err)
			}
			u.StatusSnapshot = last
			u.Percent = EstimateProgress(last.Status, last.FileCount, p.opts.TotalFiles)
			u.Err = err
		} else {
			last = snap
			u.StatusSnapshot = snap
			u.Percent = EstimateProgress(snap.Status, snap.FileCount, p.opts.TotalFiles)
		}

		select {
		case t.updates <- u:
		case <-ctx.Done():
			return
		}
		if err == nil && snap.Status.IsTerminal() {
			return
		}
	}
}
