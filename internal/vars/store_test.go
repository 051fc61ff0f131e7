package vars

import (
	"sync"
	"testing"
)

func TestStoreGetMissingKey(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get(KeyLatitude); ok {
		t.Fatalf("expected miss for unset key")
	}
}

func TestStoreSetGet(t *testing.T) {
	s := NewStore()
	s.Set(KeyLatitude, 43.6532)

	v, ok := s.Get(KeyLatitude)
	if !ok {
		t.Fatalf("expected hit after Set")
	}
	if v != 43.6532 {
		t.Fatalf("got %v, want 43.6532", v)
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore()
	s.Set(KeyYawDeg, 90)
	s.Delete(KeyYawDeg)
	if _, ok := s.Get(KeyYawDeg); ok {
		t.Fatalf("expected miss after Delete")
	}
}

func TestStoreSetPose(t *testing.T) {
	s := NewStore()
	s.SetPose(43.6532, -79.3832, 181.5)

	checks := map[string]float64{
		KeyLatitude:  43.6532,
		KeyLongitude: -79.3832,
		KeyYawDeg:    181.5,
	}
	for key, want := range checks {
		got, ok := s.Get(key)
		if !ok {
			t.Fatalf("missing %s after SetPose", key)
		}
		if got != want {
			t.Fatalf("%s: got %v, want %v", key, got, want)
		}
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.SetPose(float64(n), float64(j), 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Get(KeyLatitude)
			}
		}()
	}
	wg.Wait()
}
