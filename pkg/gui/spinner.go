package gui

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Spinner animates while any console action is running. Several actions may
// run at once on different rows, so each Start returns a handle for Done.
type Spinner struct {
	mu       sync.Mutex
	frames   []string
	current  int
	tasks    map[int]string
	nextID   int
	stopCh   chan struct{}
	interval time.Duration
	updateFn func()
}

func NewSpinner(updateFn func()) *Spinner {
	return &Spinner{
		frames:   spinnerFrames,
		tasks:    make(map[int]string),
		interval: 100 * time.Millisecond,
		updateFn: updateFn,
	}
}

// Start registers a running task and begins animating if idle.
func (s *Spinner) Start(message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.tasks[id] = message
	if s.stopCh == nil {
		s.stopCh = make(chan struct{})
		go s.tick(s.stopCh)
	}
	return id
}

// Done removes a task; the animation stops with the last one.
func (s *Spinner) Done(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return
	}
	delete(s.tasks, id)
	if len(s.tasks) == 0 && s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *Spinner) tick(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.current = (s.current + 1) % len(s.frames)
			s.mu.Unlock()
			if s.updateFn != nil {
				s.updateFn()
			}
		}
	}
}

// IsRunning reports whether any task is active.
func (s *Spinner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks) > 0
}

// String returns the current frame and the running task names.
func (s *Spinner) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return ""
	}
	ids := make([]int, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = s.tasks[id]
	}
	return yellow(s.frames[s.current]) + " " + strings.Join(names, ", ")
}
