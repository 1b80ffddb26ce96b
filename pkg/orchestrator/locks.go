package orchestrator

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Scope says which kind of entity a lock key refers to.
type Scope int

const (
	ScopeApplication Scope = iota
	ScopeDeployment
)

func (s Scope) String() string {
	switch s {
	case ScopeApplication:
		return "application"
	case ScopeDeployment:
		return "deployment"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Key identifies one lockable entity.
type Key struct {
	Scope Scope
	ID    int64
}

// AppKey is the lock key of an application.
func AppKey(id int64) Key { return Key{Scope: ScopeApplication, ID: id} }

// DeploymentKey is the lock key of a deployment row.
func DeploymentKey(id int64) Key { return Key{Scope: ScopeDeployment, ID: id} }

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Scope, k.ID)
}

// ActionKind names a lockable action.
type ActionKind string

const (
	ActionEdit   ActionKind = "edit"
	ActionDelete ActionKind = "delete"
	ActionDeploy ActionKind = "deploy"
	ActionKill   ActionKind = "kill"
)

// State of one (entity, action) slot. Settled outcomes are not stored: a
// slot returns to idle the moment its request settles.
type State int

const (
	StateIdle State = iota
	StateGatePending
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGatePending:
		return "gate-pending"
	case StateInFlight:
		return "in-flight"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LockEvent reports a loading flag change. Held is set when a flag clears.
type LockEvent struct {
	Key     Key
	Kind    ActionKind
	Loading bool
	Held    time.Duration
}

type slot struct {
	key  Key
	kind ActionKind
}

type entry struct {
	state State
	since time.Time
}

// LockTable tracks the state of every (entity, action) pair. Only
// StateInFlight counts as loading.
type LockTable struct {
	mu       sync.Mutex
	slots    map[slot]entry
	observer func(LockEvent)
	now      func() time.Time
}

// NewLockTable returns an empty table. observer may be nil; it is called
// outside the table's mutex.
func NewLockTable(observer func(LockEvent)) *LockTable {
	return &LockTable{
		slots:    make(map[slot]entry),
		observer: observer,
		now:      time.Now,
	}
}

// SetLoading sets or clears the loading flag of one action on one entity.
func (t *LockTable) SetLoading(key Key, kind ActionKind, loading bool) {
	ev, changed := t.setLoading(key, kind, loading)
	if changed {
		t.notify(ev)
	}
}

func (t *LockTable) setLoading(key Key, kind ActionKind, loading bool) (LockEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := slot{key, kind}
	cur, ok := t.slots[s]
	if loading {
		if ok && cur.state == StateInFlight {
			return LockEvent{}, false
		}
		t.slots[s] = entry{state: StateInFlight, since: t.now()}
		return LockEvent{Key: key, Kind: kind, Loading: true}, true
	}
	if !ok {
		return LockEvent{}, false
	}
	delete(t.slots, s)
	if cur.state != StateInFlight {
		return LockEvent{}, false
	}
	return LockEvent{Key: key, Kind: kind, Held: t.now().Sub(cur.since)}, true
}

// IsLoading reports whether kind is in flight on key.
func (t *LockTable) IsLoading(key Key, kind ActionKind) bool {
	return t.State(key, kind) == StateInFlight
}

// IsAnyActionLoading reports whether any action is in flight on key.
func (t *LockTable) IsAnyActionLoading(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.anyInFlight(key)
}

func (t *LockTable) anyInFlight(key Key) bool {
	for s, e := range t.slots {
		if s.key == key && e.state == StateInFlight {
			return true
		}
	}
	return false
}

// State returns the current state of one slot.
func (t *LockTable) State(key Key, kind ActionKind) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[slot{key, kind}].state
}

// begin moves a slot from idle to gate-pending. It refuses while anything
// is already pending or in flight on the same entity.
func (t *LockTable) begin(key Key, kind ActionKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for s := range t.slots {
		if s.key == key {
			return fmt.Errorf("%w: %s on %s", ErrBusy, s.kind, key)
		}
	}
	t.slots[slot{key, kind}] = entry{state: StateGatePending, since: t.now()}
	return nil
}

// abort returns a gate-pending slot to idle. In-flight slots are untouched.
func (t *LockTable) abort(key Key, kind ActionKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := slot{key, kind}
	if t.slots[s].state == StateGatePending {
		delete(t.slots, s)
	}
}

// acquire marks a slot in flight. Another action already in flight on the
// same entity makes it fail with ErrBusy.
func (t *LockTable) acquire(key Key, kind ActionKind) error {
	t.mu.Lock()
	s := slot{key, kind}
	if t.slots[s].state == StateInFlight {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", ErrBusy, kind, key)
	}
	if t.anyInFlight(key) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", ErrBusy, kind, key)
	}
	t.slots[s] = entry{state: StateInFlight, since: t.now()}
	t.mu.Unlock()
	t.notify(LockEvent{Key: key, Kind: kind, Loading: true})
	return nil
}

// acquireBeside marks kind in flight on a key where owner is already in
// flight. Any other slot on the key makes it fail with ErrBusy.
func (t *LockTable) acquireBeside(key Key, kind, owner ActionKind) error {
	t.mu.Lock()
	if t.slots[slot{key, owner}].state != StateInFlight {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s not held on %s", ErrBusy, owner, key)
	}
	for s := range t.slots {
		if s.key == key && s.kind != owner {
			t.mu.Unlock()
			return fmt.Errorf("%w: %s on %s", ErrBusy, s.kind, key)
		}
	}
	t.slots[slot{key, kind}] = entry{state: StateInFlight, since: t.now()}
	t.mu.Unlock()
	t.notify(LockEvent{Key: key, Kind: kind, Loading: true})
	return nil
}

func (t *LockTable) notify(ev LockEvent) {
	if t.observer != nil {
		t.observer(ev)
	}
}

// LockEntry is a read-only view of one non-idle slot.
type LockEntry struct {
	Key   Key
	Kind  ActionKind
	State State
}

// Entries lists every non-idle slot, ordered by key then action.
func (t *LockTable) Entries() []LockEntry {
	t.mu.Lock()
	out := make([]LockEntry, 0, len(t.slots))
	for s, e := range t.slots {
		out = append(out, LockEntry{Key: s.key, Kind: s.kind, State: e.state})
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Key.Scope != b.Key.Scope {
			return a.Key.Scope < b.Key.Scope
		}
		if a.Key.ID != b.Key.ID {
			return a.Key.ID < b.Key.ID
		}
		return a.Kind < b.Kind
	})
	return out
}

// claim is one action's hold on a slot from gate to settlement.
type claim struct {
	t        *LockTable
	key      Key
	kind     ActionKind
	inFlight bool
	done     bool
}

// claim opens the gate-pending phase for kind on key.
func (t *LockTable) claim(key Key, kind ActionKind) (*claim, error) {
	if err := t.begin(key, kind); err != nil {
		return nil, err
	}
	return &claim{t: t, key: key, kind: kind}, nil
}

// hold goes straight to in flight, for steps inside an already gated action.
func (t *LockTable) hold(key Key, kind ActionKind) (*claim, error) {
	c := &claim{t: t, key: key, kind: kind}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	return c, nil
}

// beside takes kind on the claim's own key while the claim is in flight,
// for a compound action that needs two kinds on one entity.
func (c *claim) beside(kind ActionKind) (*claim, error) {
	if err := c.t.acquireBeside(c.key, kind, c.kind); err != nil {
		return nil, err
	}
	return &claim{t: c.t, key: c.key, kind: kind, inFlight: true}, nil
}

func (c *claim) acquire() error {
	if err := c.t.acquire(c.key, c.kind); err != nil {
		return err
	}
	c.inFlight = true
	return nil
}

// settle returns the slot to idle. Only the first call has an effect.
func (c *claim) settle() {
	if c.done {
		return
	}
	c.done = true
	if c.inFlight {
		c.t.SetLoading(c.key, c.kind, false)
		return
	}
	c.t.abort(c.key, c.kind)
}

func settleAll(claims []*claim) {
	for i := len(claims) - 1; i >= 0; i-- {
		claims[i].settle()
	}
}
