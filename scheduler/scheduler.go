package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// Task registry errors.
var (
	ErrTaskNotFound = errors.New("scheduler: task not found")
	ErrTaskExists   = errors.New("scheduler: task id already exists")
)

// Executor runs a due task. Implementations may mutate the task to record
// an outcome or to disable one-shot tasks.
type Executor interface {
	Execute(ctx context.Context, task *Task) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *Task) error

func (f ExecutorFunc) Execute(ctx context.Context, task *Task) error { return f(ctx, task) }

// Scheduler holds the task registry of a single agent. It is safe for
// concurrent use.
type Scheduler struct {
	mu     sync.Mutex
	owner  id.Principal
	tasks  map[uint64]*Task
	logger *slog.Logger
}

// New creates an empty scheduler owned by the given principal.
func New(owner id.Principal, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		owner:  owner,
		tasks:  make(map[uint64]*Task),
		logger: logger,
	}
}

// Owner returns the principal that owns the task registry.
func (s *Scheduler) Owner() id.Principal { return s.owner }

// CreateTask registers a task. An ID of zero auto-assigns the next free ID,
// starting at one; an explicit ID that already exists is rejected.
func (s *Scheduler) CreateTask(task Task) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == 0 {
		var max uint64
		for tid := range s.tasks {
			if tid > max {
				max = tid
			}
		}
		task.ID = max + 1
	} else if _, ok := s.tasks[task.ID]; ok {
		return 0, ErrTaskExists
	}

	if task.ActionType == "" {
		task.ActionType = ActionCustom
	}
	task.Enabled = true
	task.LastRun = 0
	task.Entity = types.NewEntity()

	t := task
	s.tasks[t.ID] = &t

	s.logger.Debug("task created",
		"task_id", t.ID,
		"action_type", t.ActionType,
		"frequency", t.Frequency,
	)
	return t.ID, nil
}

// UpdateTask applies the non-nil fields of args to an existing task.
func (s *Scheduler) UpdateTask(taskID uint64, args UpdateArgs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if args.Data != nil {
		t.Data = *args.Data
	}
	if args.Frequency != nil {
		t.Frequency = *args.Frequency
	}
	if args.URL != nil {
		t.URL = *args.URL
	}
	if args.ActionType != nil {
		t.ActionType = *args.ActionType
	}
	if args.Enabled != nil {
		t.Enabled = *args.Enabled
	}
	t.Touch()
	return nil
}

// GetTask returns a copy of the task with the given ID.
func (s *Scheduler) GetTask(taskID uint64) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return *t, nil
}

// DeleteTask removes a task.
func (s *Scheduler) DeleteTask(taskID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, taskID)
	return nil
}

// ListTasks returns copies of all tasks ordered by ID.
func (s *Scheduler) ListTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(*Task) bool { return true })
}

// ListTasksByType returns copies of all tasks with the given action type,
// ordered by ID.
func (s *Scheduler) ListTasksByType(actionType string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(t *Task) bool { return t.ActionType == actionType })
}

func (s *Scheduler) listLocked(keep func(*Task) bool) []Task {
	ids := make([]uint64, 0, len(s.tasks))
	for tid, t := range s.tasks {
		if keep(t) {
			ids = append(ids, tid)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Task, 0, len(ids))
	for _, tid := range ids {
		out = append(out, *s.tasks[tid])
	}
	return out
}

// Count returns the number of registered tasks.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// RunDue executes every due task through exec, updates each task's LastRun
// to now, and returns a record per executed task. A failing task does not
// stop the sweep.
func (s *Scheduler) RunDue(ctx context.Context, now uint64, exec Executor) []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.tasks))
	for tid := range s.tasks {
		ids = append(ids, tid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var runs []Execution
	for _, tid := range ids {
		t := s.tasks[tid]
		if !t.Due(now) {
			continue
		}

		err := exec.Execute(ctx, t)
		t.LastRun = now
		t.Touch()

		if err != nil {
			s.logger.Warn("task execution failed",
				"task_id", t.ID,
				"action_type", t.ActionType,
				"error", err,
			)
		} else {
			s.logger.Debug("task executed",
				"task_id", t.ID,
				"action_type", t.ActionType,
			)
		}
		runs = append(runs, Execution{TaskID: t.ID, Action: t.ActionType, Err: err})
	}
	return runs
}
