package collab

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// PresenceManager tracks the cursor of every client in a session, in world
// coordinates.
type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload // clientID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

// Update replaces the presence of one connection. Presence is keyed by
// client ID, so a viewer with two tabs open shows two cursors.
func (pm *PresenceManager) Update(clientID string, p *PresencePayload) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[clientID] = p
}

// Remove drops the presence of a client that left the session.
func (pm *PresenceManager) Remove(clientID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, clientID)
}

// GetAll returns a copy of the presence map keyed by client ID.
func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		result[k] = v
	}
	return result
}

func (pm *PresenceManager) StateMessage() *Message {
	all := pm.GetAll()
	payload, err := json.Marshal(PresenceStatePayload{Presences: all})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}
