package gps

// Provider is the interface for position sources.
type Provider interface {
	Name() string
	Connect() error
	Close() error
	// Read returns the latest pose. May block briefly.
	Read() (*Pose, error)
}

// Pose holds a single position fix with heading.
type Pose struct {
	Valid      bool    `json:"valid"`      // Fix is valid
	Latitude   float64 `json:"latitude"`   // Decimal degrees
	Longitude  float64 `json:"longitude"`  // Decimal degrees
	YawDegrees float64 `json:"yawDeg"`     // Heading, degrees true
	Speed      float64 `json:"speed"`      // km/h
	Satellites int     `json:"satellites"` // Sats in use
	FixQuality int     `json:"fixQuality"` // 0=none, 1=GPS, 2=DGPS
	HDOP       float64 `json:"hdop"`       // Horizontal dilution
	Timestamp  string  `json:"timestamp"`  // UTC time string
}
