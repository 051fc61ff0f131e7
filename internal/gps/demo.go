package gps

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// DemoProvider generates a simulated patrol route for development:
// the robot loops around a fixed point with its yaw tracking the
// direction of travel.
type DemoProvider struct {
	mu sync.Mutex
	t  float64
}

func NewDemo() *DemoProvider { return &DemoProvider{} }

func (d *DemoProvider) Name() string   { return "Demo GPS (Simulated)" }
func (d *DemoProvider) Connect() error { return nil }
func (d *DemoProvider) Close() error   { return nil }

func (d *DemoProvider) Read() (*Pose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.t += 0.1

	// Circular patrol around a point, ~200m radius
	centerLat := 37.7793 // San Francisco
	centerLon := -122.4193
	radius := 0.002

	angle := d.t * 0.05
	// Tangent to the circle, so the heading matches the motion
	yaw := math.Mod(angle*180/math.Pi+90, 360)

	return &Pose{
		Valid:      true,
		Latitude:   centerLat + radius*math.Sin(angle),
		Longitude:  centerLon + radius*math.Cos(angle),
		YawDegrees: yaw,
		Speed:      4 + rand.Float64(), // Walking pace
		Satellites: 11,
		FixQuality: 1,
		HDOP:       0.9,
		Timestamp:  time.Now().UTC().Format("150405.00"),
	}, nil
}
