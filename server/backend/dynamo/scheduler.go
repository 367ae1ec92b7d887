package dynamo

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job represents a scheduled job that can be closed
type Job interface {
	Close() error
}

// JobScheduler is an interface for scheduling recurring jobs
type JobScheduler interface {
	Schedule(jobID string, interval time.Duration, callback func()) (Job, error)
}

// CronJobScheduler runs jobs on a cron instance. Each job runs once immediately and then every
// interval; a run that is still going when the next one is due causes that one to be skipped.
type CronJobScheduler struct {
	cron   *cron.Cron
	logger *zap.SugaredLogger
	mu     sync.Mutex
	jobs   int
}

// NewCronJobScheduler creates a new cron-backed scheduler
func NewCronJobScheduler(logger *zap.SugaredLogger) *CronJobScheduler {
	l := cronLogger{logger: logger}
	return &CronJobScheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		logger: logger,
	}
}

// Schedule adds a recurring job and triggers its first run right away.
func (s *CronJobScheduler) Schedule(jobID string, interval time.Duration, callback func()) (Job, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval %s for job %s", interval, jobID)
	}

	job := &cronJob{scheduler: s, jobID: jobID, callback: callback}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), job.run)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule job %s: %w", jobID, err)
	}
	job.entryID = entryID
	if s.jobs == 0 {
		s.cron.Start()
	}
	s.jobs++

	go s.cron.Entry(entryID).WrappedJob.Run()

	s.logger.Debugw("Scheduled job", "jobId", jobID, "interval", interval.String())
	return job, nil
}

func (s *CronJobScheduler) remove(entryID cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron.Remove(entryID)
	s.jobs--
	if s.jobs == 0 {
		s.cron.Stop()
	}
}

type cronJob struct {
	scheduler *CronJobScheduler
	entryID   cron.EntryID
	jobID     string
	callback  func()

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
	once    sync.Once
}

// run invokes the callback unless the job was closed. Every run, the immediate first one
// included, is tracked so Close can wait for it.
func (j *cronJob) run() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.running.Add(1)
	j.mu.Unlock()

	defer j.running.Done()
	j.callback()
}

// Close removes the job and waits for runs in progress to return.
func (j *cronJob) Close() error {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		j.mu.Unlock()

		j.scheduler.remove(j.entryID)
		j.running.Wait()
		j.scheduler.logger.Debugw("Removed job", "jobId", j.jobID)
	})
	return nil
}

// cronLogger adapts a zap logger to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
