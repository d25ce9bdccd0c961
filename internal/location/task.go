package location

import "github.com/score-p/scorep-measurement-core/internal/defs"

// Task is a first-class unit of work that may be suspended and resumed
// across region enters, named by a thread-id x generation-number pair
// (spec §4.4, §3). Each Task owns its own region sub-stack, independent
// of whatever Task last ran on the Location; the Location recomputes its
// stack hash over that sub-stack when the Task is switched in.
type Task struct {
	ThreadID   uint64
	Generation uint64

	regionStack []defs.Handle
}

// taskFreeList recycles completed Tasks' backing slices (spec §4.4:
// "on task_complete, the stack is released back to a free list").
type taskFreeList struct {
	tasks []*Task
}

func (f *taskFreeList) get(threadID, generation uint64) *Task {
	if n := len(f.tasks); n > 0 {
		t := f.tasks[n-1]
		f.tasks = f.tasks[:n-1]
		t.ThreadID = threadID
		t.Generation = generation
		t.regionStack = t.regionStack[:0]
		return t
	}
	return &Task{ThreadID: threadID, Generation: generation}
}

func (f *taskFreeList) put(t *Task) {
	f.tasks = append(f.tasks, t)
}

// CreateTask assigns a fresh (thread_id, generation) task with an
// empty stack (spec §4.4 "task_create").
func (l *Location) CreateTask(threadID, generation uint64, free *taskFreeList) *Task {
	if free == nil {
		return &Task{ThreadID: threadID, Generation: generation}
	}
	return free.get(threadID, generation)
}

// SwitchTask moves the location's active region-stack pointer to t's
// saved stack (spec §4.4 "task_switch"), returning the previously
// active task (nil if none).
func (l *Location) SwitchTask(t *Task) *Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.currentTask
	l.currentTask = t
	l.recomputeHash()
	return prev
}

// CompleteTask detaches t from the location (if it is current) and
// releases its stack to free for reuse (spec §4.4 "task_complete").
func (l *Location) CompleteTask(t *Task, free *taskFreeList) {
	l.mu.Lock()
	if l.currentTask == t {
		l.currentTask = nil
	}
	l.mu.Unlock()
	if free != nil {
		free.put(t)
	}
}

// CurrentTask returns the task currently active on this location, or
// nil if the location is running outside any task.
func (l *Location) CurrentTask() *Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentTask
}
