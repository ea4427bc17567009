package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/logging"
)

// DefaultMaxBackups is how many backups each target keeps.
const DefaultMaxBackups = 10

// Recorder observes backup runs. metrics.Metrics implements it.
type Recorder interface {
	ObserveBackup(target string, d time.Duration, err error)
}

// Result describes one backup run.
type Result struct {
	Key     string    `json:"key"`
	Targets []string  `json:"targets"`
	Pruned  int       `json:"pruned"`
	Size    int       `json:"size"`
	TakenAt time.Time `json:"takenAt"`
}

// Status is the state of the backup relay.
type Status struct {
	Targets    []string   `json:"targets"`
	InProgress bool       `json:"inProgress"`
	LastBackup *time.Time `json:"lastBackup,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}

// Manager writes snapshots to targets, one run at a time.
type Manager struct {
	state      State
	targets    []Target
	maxBackups int
	clock      generic.Clock
	recorder   Recorder
	log        *logging.Logger

	sem     *semaphore.Weighted
	running atomic.Bool

	mu         sync.RWMutex
	lastBackup time.Time
	lastErr    error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxBackups sets how many backups each target keeps (n > 0).
func WithMaxBackups(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxBackups = n
		}
	}
}

// WithClock overrides the clock used for object keys and export dates.
func WithClock(clock generic.Clock) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithRecorder sets the observer of backup runs.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a manager writing to the given targets.
func NewManager(state State, targets []Target, opts ...ManagerOption) *Manager {
	m := &Manager{
		state:      state,
		targets:    targets,
		maxBackups: DefaultMaxBackups,
		clock:      generic.SystemClock,
		log:        logging.Nop(),
		sem:        semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent(logging.ComponentBackup)
	return m
}

// Targets returns the configured targets.
func (m *Manager) Targets() []Target { return m.targets }

// Backup takes a snapshot and writes it to every target, then prunes each
// target to the newest maxBackups objects. It fails with
// generic.ErrBackupInProgress while another backup runs, and with
// generic.ErrNoBackup when no target is configured.
func (m *Manager) Backup(ctx context.Context) (Result, error) {
	if len(m.targets) == 0 {
		return Result{}, fmt.Errorf("%w: no backup target configured", generic.ErrNoBackup)
	}
	if !m.sem.TryAcquire(1) {
		return Result{}, generic.ErrBackupInProgress
	}
	defer m.sem.Release(1)
	m.running.Store(true)
	defer m.running.Store(false)

	res, err := m.backup(ctx)

	m.mu.Lock()
	m.lastErr = err
	if err == nil {
		m.lastBackup = res.TakenAt
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Failure(ctx, logging.OpBackup, err)
		return res, err
	}
	m.log.InfoContext(ctx, "backup written",
		logging.FieldObjectKey, res.Key, "targets", len(res.Targets), "pruned", res.Pruned)
	return res, nil
}

func (m *Manager) backup(ctx context.Context) (Result, error) {
	now := m.clock().UTC()
	snap, err := Take(ctx, m.state, now)
	if err != nil {
		return Result{}, err
	}
	data, err := Encode(snap)
	if err != nil {
		return Result{}, fmt.Errorf("encode snapshot: %w", err)
	}

	res := Result{Key: ObjectKey(now), Size: len(data), TakenAt: now}
	pruned := make([]int, len(m.targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range m.targets {
		g.Go(func() error {
			start := time.Now()
			err := t.Put(gctx, res.Key, data)
			if err == nil {
				pruned[i], err = m.prune(gctx, t)
			}
			if m.recorder != nil {
				m.recorder.ObserveBackup(t.Name(), time.Since(start), err)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", t.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for i, t := range m.targets {
		res.Targets = append(res.Targets, t.Name())
		res.Pruned += pruned[i]
	}
	return res, nil
}

// prune deletes the oldest backups beyond maxBackups.
func (m *Manager) prune(ctx context.Context, t Target) (int, error) {
	objs, err := t.List(ctx)
	if err != nil {
		return 0, err
	}
	excess := len(objs) - m.maxBackups
	if excess <= 0 {
		return 0, nil
	}
	for _, o := range objs[:excess] {
		if err := t.Delete(ctx, o.Key); err != nil {
			return 0, err
		}
	}
	return excess, nil
}

// List returns the backups held by the named target (first target when
// name is empty).
func (m *Manager) List(ctx context.Context, name string) ([]Object, error) {
	t, err := m.target(name)
	if err != nil {
		return nil, err
	}
	return t.List(ctx)
}

// Restore imports the newest backup of the named target (first target
// when name is empty).
func (m *Manager) Restore(ctx context.Context, name string) (ImportResult, error) {
	t, err := m.target(name)
	if err != nil {
		return ImportResult{}, err
	}
	objs, err := t.List(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	if len(objs) == 0 {
		return ImportResult{}, fmt.Errorf("%w: %s is empty", generic.ErrNoBackup, t.Name())
	}
	latest := objs[len(objs)-1]

	data, err := t.Get(ctx, latest.Key)
	if err != nil {
		return ImportResult{}, err
	}
	res, err := Import(ctx, m.state, data)
	if err != nil {
		m.log.Failure(ctx, logging.OpRestore, err, logging.FieldObjectKey, latest.Key)
		return ImportResult{}, err
	}
	m.log.InfoContext(ctx, "backup restored",
		logging.FieldTarget, t.Name(), logging.FieldObjectKey, latest.Key,
		"rates", res.Rates, "missions", res.Missions)
	return res, nil
}

func (m *Manager) target(name string) (Target, error) {
	if len(m.targets) == 0 {
		return nil, fmt.Errorf("%w: no backup target configured", generic.ErrNoBackup)
	}
	if name == "" {
		return m.targets[0], nil
	}
	for _, t := range m.targets {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown target %q", generic.ErrNoBackup, name)
}

// Status reports the last successful backup and whether one is running.
func (m *Manager) Status() Status {
	st := Status{Targets: make([]string, 0, len(m.targets))}
	for _, t := range m.targets {
		st.Targets = append(st.Targets, t.Name())
	}

	st.InProgress = m.running.Load()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.lastBackup.IsZero() {
		last := m.lastBackup
		st.LastBackup = &last
	}
	if m.lastErr != nil && !errors.Is(m.lastErr, context.Canceled) {
		st.LastError = m.lastErr.Error()
	}
	return st
}
