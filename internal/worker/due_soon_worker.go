package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/task"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type TaskLister interface {
	DueWithin(ctx context.Context, from, to time.Time) ([]*task.Task, error)
}

// Reminder groups the due-soon tasks of one assignee. AssigneeID is nil for unassigned tasks.
type Reminder struct {
	AssigneeID *uuid.UUID
	Tasks      []*task.Task
}

// DueSoonWorker periodically looks for unfinished tasks due within window and logs
// one reminder per assignee. A task is reminded once per due date.
type DueSoonWorker struct {
	tasks     TaskLister
	schedule  cron.Schedule
	spec      string
	window    time.Duration
	reminders prometheus.Counter
	now       func() time.Time

	mu       sync.Mutex
	reminded map[uuid.UUID]time.Time
}

// NewDueSoonWorker validates schedule, a standard cron expression or descriptor such
// as "@every 1h". reminders may be nil.
func NewDueSoonWorker(tasks TaskLister, schedule string, window time.Duration, reminders prometheus.Counter) (*DueSoonWorker, error) {
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse due-soon schedule %q: %w", schedule, err)
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &DueSoonWorker{
		tasks:     tasks,
		schedule:  parsed,
		spec:      schedule,
		window:    window,
		reminders: reminders,
		now:       time.Now,
		reminded:  make(map[uuid.UUID]time.Time),
	}, nil
}

// Run blocks until ctx is cancelled, then waits for a running check to finish.
func (w *DueSoonWorker) Run(ctx context.Context) {
	c := cron.New()
	c.Schedule(w.schedule, cron.FuncJob(func() { w.Check(ctx) }))
	c.Start()
	logger.Info("Worker: due-soon reminders scheduled",
		zap.String("schedule", w.spec),
		zap.Duration("window", w.window))

	<-ctx.Done()
	logger.Info("Worker: due-soon reminders stopping")
	<-c.Stop().Done()
}

func (w *DueSoonWorker) Check(ctx context.Context) []Reminder {
	start := w.now()

	tasks, err := w.tasks.DueWithin(ctx, start, start.Add(w.window))
	if err != nil {
		logger.Warn("Worker: failed to list due tasks", zap.Error(err))
		return nil
	}

	fresh := w.filterReminded(tasks, start)
	reminders := group(fresh)
	for _, r := range reminders {
		assignee := "unassigned"
		if r.AssigneeID != nil {
			assignee = r.AssigneeID.String()
		}
		ids := make([]string, len(r.Tasks))
		for i, t := range r.Tasks {
			ids[i] = t.UUID.String()
		}
		logger.Info("Worker: tasks due soon",
			zap.String("assignee_id", assignee),
			zap.Strings("task_ids", ids),
			zap.Time("first_due", *r.Tasks[0].DueDate))
		if w.reminders != nil {
			w.reminders.Inc()
		}
	}

	logger.Info("Worker: due-soon check finished",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", len(tasks)),
		zap.Int("reminded", len(fresh)))
	return reminders
}

// filterReminded drops tasks already reminded for their current due date and forgets
// tasks whose due date has passed.
func (w *DueSoonWorker) filterReminded(tasks []*task.Task, now time.Time) []*task.Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, due := range w.reminded {
		if due.Before(now) {
			delete(w.reminded, id)
		}
	}

	var fresh []*task.Task
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		if due, ok := w.reminded[t.UUID]; ok && due.Equal(*t.DueDate) {
			continue
		}
		w.reminded[t.UUID] = *t.DueDate
		fresh = append(fresh, t)
	}
	return fresh
}

func group(tasks []*task.Task) []Reminder {
	byAssignee := map[uuid.UUID]*Reminder{}
	var unassigned *Reminder
	var order []*Reminder

	for _, t := range tasks {
		var r *Reminder
		if t.AssigneeID == nil {
			if unassigned == nil {
				unassigned = &Reminder{}
				order = append(order, unassigned)
			}
			r = unassigned
		} else {
			r = byAssignee[*t.AssigneeID]
			if r == nil {
				id := *t.AssigneeID
				r = &Reminder{AssigneeID: &id}
				byAssignee[id] = r
				order = append(order, r)
			}
		}
		r.Tasks = append(r.Tasks, t)
	}

	out := make([]Reminder, len(order))
	for i, r := range order {
		sort.SliceStable(r.Tasks, func(a, b int) bool { return r.Tasks[a].DueDate.Before(*r.Tasks[b].DueDate) })
		out[i] = *r
	}
	return out
}
