package vars

import "sync"

// Keys published by the GPS poller and consumed by connectors.
const (
	KeyLatitude  = "latitude"
	KeyLongitude = "longitude"
	KeyYawDeg    = "yaw_deg"
)

// Provider is the read side of the dynamic variable store. Connectors
// look values up by name; a missing key means no value has been
// published yet.
type Provider interface {
	Get(key string) (float64, bool)
}

// Store is an in-memory variable store safe for concurrent use.
// The GPS poll loop writes, connectors read.
type Store struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string]float64)}
}

func (s *Store) Get(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// SetPose publishes a full position fix in one lock acquisition.
func (s *Store) SetPose(lat, lon, yawDeg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyLatitude] = lat
	s.values[KeyLongitude] = lon
	s.values[KeyYawDeg] = yawDeg
}
