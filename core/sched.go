package core

// Task is a scheduled callback. Periodic tasks reschedule themselves;
// a zero period makes the task one-shot.
type Task struct {
	wakeMS   uint32
	periodMS uint32
	run      func(nowMS uint32)
	next     *Task
}

// Scheduler keeps tasks in a list sorted by wake time and fires the due
// ones from the main loop. All wake-time comparisons use signed
// differences so uint32 clock wraparound is transparent.
type Scheduler struct {
	head *Task
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// AddPeriodic registers run to fire every periodMS, first at
// now+periodMS.
func (s *Scheduler) AddPeriodic(periodMS uint32, run func(nowMS uint32)) *Task {
	t := &Task{
		periodMS: periodMS,
		run:      run,
	}
	s.schedule(t, NowMS()+periodMS)
	return t
}

// AddOneShot registers run to fire once at now+delayMS.
func (s *Scheduler) AddOneShot(delayMS uint32, run func(nowMS uint32)) *Task {
	t := &Task{run: run}
	s.schedule(t, NowMS()+delayMS)
	return t
}

// schedule inserts t in wake order.
func (s *Scheduler) schedule(t *Task, wakeMS uint32) {
	t.wakeMS = wakeMS
	if s.head == nil || before(wakeMS, s.head.wakeMS) {
		t.next = s.head
		s.head = t
		return
	}
	cur := s.head
	for cur.next != nil && !before(wakeMS, cur.next.wakeMS) {
		cur = cur.next
	}
	t.next = cur.next
	cur.next = t
}

// Run fires every task due at now. Periodic tasks are rescheduled from
// their nominal wake time, not from now, so cadence does not drift when
// the loop runs late.
func (s *Scheduler) Run(now uint32) {
	for s.head != nil && !before(now, s.head.wakeMS) {
		t := s.head
		s.head = t.next
		t.next = nil

		t.run(now)

		if t.periodMS > 0 {
			next := t.wakeMS + t.periodMS
			if !before(now, next) {
				// Fell more than a whole period behind; skip forward.
				next = now + t.periodMS
			}
			s.schedule(t, next)
		}
	}
}

// before reports whether wrap-aware time a precedes b.
func before(a, b uint32) bool {
	return int32(a-b) < 0
}
