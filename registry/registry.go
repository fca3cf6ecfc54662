package registry

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/signadot/sessiond/api"
)

// Recognized update_session field names. Anything else in an updates map is
// ignored.
const (
	FieldStatus        = "status"
	FieldCurrentTask   = "current_task"
	FieldProgress      = "progress"
	FieldResourcesUsed = "resources_used"
)

// Registry is the authoritative in-memory store of live sessions. One lock
// guards the whole map; every operation takes it, so readers always observe
// a complete mutation or none of it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*api.SessionInfo
	now      func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		sessions: map[string]*api.SessionInfo{},
		now:      time.Now,
	}
}

// Register creates a session with default fields and returns a copy of it.
// Registering an id that is already live is refused: the second return is
// false and the existing session is untouched.
func (r *Registry) Register(sessionID, userID string) (api.SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; ok {
		return api.SessionInfo{}, false
	}
	now := r.now()
	info := &api.SessionInfo{
		SessionID:     sessionID,
		UserID:        userID,
		Status:        api.StatusActive,
		CurrentTask:   api.DefaultTask,
		Progress:      0,
		CreatedAt:     now,
		LastActivity:  now,
		ResourcesUsed: map[string]any{},
	}
	r.sessions[sessionID] = info
	return info.Clone(), true
}

// Apply merges updates into the session named by sessionID and refreshes its
// last activity time. Unrecognized fields and values of the wrong type are
// skipped rather than rejected. When mergeResources is set, a resources_used
// value is combined with the existing map as a JSON merge patch instead of
// replacing it. The second return is false when no such session exists.
func (r *Registry) Apply(sessionID string, updates map[string]any, mergeResources bool) (api.SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return api.SessionInfo{}, false
	}
	for k, v := range updates {
		switch k {
		case FieldStatus:
			if s, ok := v.(string); ok {
				info.Status = s
			}
		case FieldCurrentTask:
			if s, ok := v.(string); ok {
				info.CurrentTask = s
			}
		case FieldProgress:
			if f, ok := asFloat(v); ok {
				info.Progress = f
			}
		case FieldResourcesUsed:
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if mergeResources {
				if merged, err := mergeResourceMaps(info.ResourcesUsed, m); err == nil {
					info.ResourcesUsed = merged
				}
			} else {
				// copy so later caller mutations cannot bypass the lock
				cp := make(map[string]any, len(m))
				for mk, mv := range m {
					cp[mk] = mv
				}
				info.ResourcesUsed = cp
			}
		}
	}
	info.LastActivity = r.now()
	return info.Clone(), true
}

// Get returns a copy of the named session.
func (r *Registry) Get(sessionID string) (api.SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return api.SessionInfo{}, false
	}
	return info.Clone(), true
}

// ListAll returns copies of every session, ordered by session id. The result
// is never nil.
func (r *Registry) ListAll() []api.SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]api.SessionInfo, 0, len(r.sessions))
	for _, info := range r.sessions {
		res = append(res, info.Clone())
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].SessionID < res[j].SessionID
	})
	return res
}

// Evict removes the named session, reporting whether it was present.
func (r *Registry) Evict(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	return ok
}

// SweepIdle removes every session whose last activity is strictly older than
// timeout and returns copies of the removed sessions. A session exactly at
// the boundary is retained.
func (r *Registry) SweepIdle(timeout time.Duration) []api.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var evicted []api.SessionInfo
	for id, info := range r.sessions {
		if now.Sub(info.LastActivity) > timeout {
			evicted = append(evicted, info.Clone())
			delete(r.sessions, id)
		}
	}
	return evicted
}

// Seed installs sessions as-is, preserving their stored timestamps. It is
// used to restore state from a checkpoint on startup.
func (r *Registry) Seed(sessions []api.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range sessions {
		cp := sessions[i].Clone()
		if cp.ResourcesUsed == nil {
			cp.ResourcesUsed = map[string]any{}
		}
		r.sessions[cp.SessionID] = &cp
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case int:
		return float64(x), true
	}
	return 0, false
}

func mergeResourceMaps(base, patch map[string]any) (map[string]any, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	mergedJSON, err := jsonpatch.MergePatch(baseJSON, patchJSON)
	if err != nil {
		return nil, err
	}
	var merged map[string]any
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return merged, nil
}
