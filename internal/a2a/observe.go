package a2a

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// ObserveArgs selects which tasks to observe.
type ObserveArgs struct {
	TaskIDs     []string
	Endpoint    string
	ServiceName string
	Tasks       []TaskSnapshot // literal entries merged in verbatim
	Refresh     *bool          // nil means default true
}

func (a ObserveArgs) refresh() bool {
	if a.Refresh == nil {
		return true
	}
	return *a.Refresh
}

// Manager ties the Client, Store and service configuration together
// for observe/wait.
type Manager struct {
	client   *Client
	store    *Store
	services map[string]ServiceConfig
}

// NewManager builds a Manager over the given services, keyed by name.
func NewManager(client *Client, store *Store, services []ServiceConfig) *Manager {
	byName := make(map[string]ServiceConfig, len(services))
	for _, svc := range services {
		byName[svc.Name] = svc
	}
	return &Manager{client: client, store: store, services: byName}
}

func (m *Manager) serviceFor(endpoint, name string) (ServiceConfig, bool) {
	if name != "" {
		svc, ok := m.services[name]
		return svc, ok
	}
	for _, svc := range m.services {
		if svc.Endpoint == endpoint {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}

// Send backs the dispatcher's "a2a@<service>"
// routing: look up the named service, send the message,
// and record the resulting task snapshot in the user's task store.
func (m *Manager) Send(ctx context.Context, user, serviceName, text, taskID, contextID string) (*TaskSnapshot, error) {
	svc, ok := m.services[serviceName]
	if !ok {
		return nil, coreerr.New(coreerr.ConfigurationError, "a2a service %q is not configured", serviceName)
	}
	snap, err := m.client.SendMessage(ctx, svc, user, text, taskID, contextID)
	if err != nil {
		return nil, err
	}
	snap.ServiceName = serviceName
	m.store.Put(user, snap)
	return snap, nil
}

// Observe returns the union of stored tasks matching the
// filter, literal task entries, and not-yet-seen bare task ids; refreshed
// from each task's endpoint unless args.Refresh is false. Refresh
// failures are recorded per-task and do not abort the batch.
func (m *Manager) Observe(ctx context.Context, user string, args ObserveArgs) []*TaskSnapshot {
	byID := make(map[string]*TaskSnapshot)

	for _, snap := range m.store.Filter(user, args.TaskIDs, args.Endpoint, args.ServiceName) {
		byID[snap.TaskID] = snap
	}
	for i := range args.Tasks {
		t := args.Tasks[i]
		byID[t.TaskID] = &t
	}
	for _, id := range args.TaskIDs {
		if _, ok := byID[id]; ok {
			continue
		}
		if stored, ok := m.store.Get(user, id); ok {
			byID[id] = stored
			continue
		}
		// Not-yet-seen bare id: include a bare snapshot so refresh can
		// fetch it from the explicitly named endpoint/service.
		byID[id] = &TaskSnapshot{TaskID: id, Endpoint: args.Endpoint, ServiceName: args.ServiceName}
	}

	snapshots := make([]*TaskSnapshot, 0, len(byID))
	for _, snap := range byID {
		snapshots = append(snapshots, snap)
	}

	if !args.refresh() {
		return snapshots
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, snap := range snapshots {
		snap := snap
		group.Go(func() error {
			svc, ok := m.serviceFor(snap.Endpoint, snap.ServiceName)
			if !ok {
				snap.RefreshError = "a2a service not found for task " + snap.TaskID
				return nil
			}
			fresh, err := m.client.GetTask(gctx, svc, snap.TaskID)
			if err != nil {
				snap.RefreshError = err.Error()
				return nil
			}
			fresh.RefreshError = ""
			*snap = *fresh
			m.store.Put(user, snap)
			return nil
		})
	}
	_ = group.Wait()

	return snapshots
}

// WaitResult is Wait's return shape.
type WaitResult struct {
	Tasks   []*TaskSnapshot
	Done    bool
	Elapsed time.Duration
	Timeout bool
}

// WaitArgs parameterizes Wait.
type WaitArgs struct {
	Observe        ObserveArgs
	WaitS          float64
	PollIntervalS  float64 // default 1.5, min 0.2
}

// Wait repeatedly observes, sleeping the poll
// interval clamped to remaining time, until no pending tasks remain or
// wait_s elapses.
func (m *Manager) Wait(ctx context.Context, user string, args WaitArgs) WaitResult {
	pollInterval := args.PollIntervalS
	if pollInterval <= 0 {
		pollInterval = 1.5
	}
	if pollInterval < 0.2 {
		pollInterval = 0.2
	}
	waitDuration := time.Duration(args.WaitS * float64(time.Second))

	start := time.Now()
	deadline := start.Add(waitDuration)

	var snapshots []*TaskSnapshot
	for {
		snapshots = m.Observe(ctx, user, args.Observe)
		if allTerminal(snapshots) {
			return WaitResult{Tasks: snapshots, Done: true, Elapsed: time.Since(start)}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return WaitResult{Tasks: snapshots, Done: false, Elapsed: time.Since(start), Timeout: true}
		}

		sleep := time.Duration(pollInterval * float64(time.Second))
		if sleep > remaining {
			sleep = remaining
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return WaitResult{Tasks: snapshots, Done: false, Elapsed: time.Since(start), Timeout: true}
		}
	}
}

func allTerminal(snapshots []*TaskSnapshot) bool {
	for _, s := range snapshots {
		if !IsTerminal(s.Status) {
			return false
		}
	}
	return true
}
