package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

// ChannelFactory opens a new voice channel for one call.
type ChannelFactory func() domain.VoiceChannel

// Snapshot is what the HTTP layer sees of a managed call.
type Snapshot struct {
	ID          domain.CallID
	UserID      domain.UserID
	Type        domain.SessionType
	InterviewID domain.InterviewID
	CreatedAt   time.Time

	State State

	// Redirect is the last route the controller navigated to, "" until the call ends.
	Redirect string
}

// Manager keeps one controller per call and records where each call navigates.
type Manager struct {
	newChannel ChannelFactory
	feedback   domain.FeedbackCreator
	workflows  Workflows
	now        func() time.Time

	mu sync.RWMutex
	// TODO: evict finished calls after a retention period; they currently live until Close.
	calls map[domain.CallID]*managedCall
}

func NewManager(newChannel ChannelFactory, feedback domain.FeedbackCreator, workflows Workflows) *Manager {
	return &Manager{
		newChannel: newChannel,
		feedback:   feedback,
		workflows:  workflows,
		now:        time.Now,
		calls:      make(map[domain.CallID]*managedCall),
	}
}

type managedCall struct {
	id        domain.CallID
	params    domain.SessionParameters
	createdAt time.Time
	ctrl      *Controller

	mu       sync.Mutex
	state    State
	redirect string
	watchers map[int]chan Snapshot
	nextW    int
}

// Start creates a controller for params and begins the call.
func (m *Manager) Start(ctx context.Context, params domain.SessionParameters) (Snapshot, error) {
	mc := &managedCall{
		id:        domain.CallID(uuid.NewString()),
		params:    params,
		createdAt: m.now(),
		watchers:  make(map[int]chan Snapshot),
	}

	log := observability.LoggerFromContext(ctx).With("call_id", mc.id, "session_type", params.Type)

	mc.ctrl = NewController(m.newChannel(), m.feedback, domain.NavigatorFunc(mc.navigate), m.workflows)
	mc.state = mc.ctrl.State()
	mc.ctrl.OnChange(mc.stateChanged)

	m.mu.Lock()
	m.calls[mc.id] = mc
	m.mu.Unlock()

	if err := mc.ctrl.Begin(ctx, params); err != nil {
		m.mu.Lock()
		delete(m.calls, mc.id)
		m.mu.Unlock()
		mc.ctrl.Close()
		return Snapshot{}, err
	}

	log.Info("call registered")
	return mc.snapshot(), nil
}

// Get returns the current snapshot of a call.
func (m *Manager) Get(id domain.CallID) (Snapshot, error) {
	mc, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return mc.snapshot(), nil
}

// End stops the call's voice channel.
func (m *Manager) End(ctx context.Context, id domain.CallID) (Snapshot, error) {
	mc, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := mc.ctrl.End(ctx); err != nil {
		return Snapshot{}, err
	}
	return mc.snapshot(), nil
}

// Watch streams snapshots of a call. Only the latest unread snapshot is kept
// for a slow reader. cancel must be called to release the watcher.
func (m *Manager) Watch(id domain.CallID) (<-chan Snapshot, func(), error) {
	mc, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	ch := make(chan Snapshot, 1)
	wid := mc.nextW
	mc.nextW++
	mc.watchers[wid] = ch
	ch <- mc.snapshotLocked()

	cancel := func() {
		mc.mu.Lock()
		defer mc.mu.Unlock()
		delete(mc.watchers, wid)
	}
	return ch, cancel, nil
}

// Close releases every controller, waiting for pending feedback saves.
func (m *Manager) Close() {
	m.mu.Lock()
	calls := m.calls
	m.calls = make(map[domain.CallID]*managedCall)
	m.mu.Unlock()

	for _, mc := range calls {
		mc.ctrl.Close()
	}
}

func (m *Manager) lookup(id domain.CallID) (*managedCall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mc, ok := m.calls[id]
	if !ok {
		return nil, fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
	}
	return mc, nil
}

// ─────────────────────────────────────────
// managedCall
// ─────────────────────────────────────────

func (mc *managedCall) stateChanged(s State) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.state = s
	mc.broadcastLocked()
}

func (mc *managedCall) navigate(path string) {
	observability.Logger().Info("call navigated", "call_id", mc.id, "path", path)

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.redirect = path
	mc.broadcastLocked()
}

func (mc *managedCall) snapshot() Snapshot {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.snapshotLocked()
}

func (mc *managedCall) snapshotLocked() Snapshot {
	return Snapshot{
		ID:          mc.id,
		UserID:      mc.params.ParticipantID,
		Type:        mc.params.Type,
		InterviewID: mc.params.InterviewID,
		CreatedAt:   mc.createdAt,
		State:       mc.state,
		Redirect:    mc.redirect,
	}
}

func (mc *managedCall) broadcastLocked() {
	snap := mc.snapshotLocked()
	for _, ch := range mc.watchers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot, keep the newest
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
