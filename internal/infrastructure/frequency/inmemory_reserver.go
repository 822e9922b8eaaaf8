package frequency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/google/uuid"
)

type slotEntry struct {
	count     int
	expiresAt time.Time
}

// InMemoryFrequencyReserver implements communication.FrequencyReserver with a
// process-local map. Suitable for single-instance deployments and tests; it
// cannot arbitrate caps across instances.
type InMemoryFrequencyReserver struct {
	mu    sync.Mutex
	slots map[string]*slotEntry
	now   func() time.Time
}

// NewInMemoryFrequencyReserver creates a new in-memory reserver
func NewInMemoryFrequencyReserver() *InMemoryFrequencyReserver {
	return &InMemoryFrequencyReserver{
		slots: make(map[string]*slotEntry),
		now:   time.Now,
	}
}

func slotKey(userID uuid.UUID, trigger communication.TriggerType) string {
	return fmt.Sprintf("%s:%s", userID, trigger)
}

// Reserve claims an in-flight slot for the (user, trigger) key
func (r *InMemoryFrequencyReserver) Reserve(_ context.Context, userID uuid.UUID, trigger communication.TriggerType) (*communication.Reservation, error) {
	key := slotKey(userID, trigger)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.slots[key]
	if !ok || r.now().After(entry.expiresAt) {
		entry = &slotEntry{}
		r.slots[key] = entry
	}
	entry.count++
	entry.expiresAt = r.now().Add(reservationTTL)

	return &communication.Reservation{
		UserID:      userID,
		TriggerType: trigger,
		InFlight:    entry.count,
	}, nil
}

// Release returns a previously reserved slot
func (r *InMemoryFrequencyReserver) Release(_ context.Context, reservation *communication.Reservation) error {
	if reservation == nil {
		return nil
	}

	key := slotKey(reservation.UserID, reservation.TriggerType)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.slots[key]
	if !ok {
		return nil
	}
	entry.count--
	if entry.count <= 0 {
		delete(r.slots, key)
	}
	return nil
}
