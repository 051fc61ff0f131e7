package gps

import (
	"io"
	"log/slog"
	"math"
	"testing"
)

const (
	sampleRMC = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	sampleGGA = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func newTestNMEA() *NMEAProvider {
	return NewNMEA(NMEAConfig{PortPath: "/dev/null"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidateNMEAChecksum(t *testing.T) {
	if !validateNMEAChecksum(sampleRMC) {
		t.Fatalf("valid RMC rejected")
	}
	if !validateNMEAChecksum(sampleGGA) {
		t.Fatalf("valid GGA rejected")
	}
	if validateNMEAChecksum("$GPRMC,123519,A*00") {
		t.Fatalf("bad checksum accepted")
	}
	if validateNMEAChecksum("$GPRMC,no,checksum") {
		t.Fatalf("sentence without checksum accepted")
	}
}

func TestParseNMEACoord(t *testing.T) {
	cases := []struct {
		raw, dir string
		want     float64
	}{
		{"4807.038", "N", 48.1173},
		{"4807.038", "S", -48.1173},
		{"01131.000", "E", 11.516667},
		{"01131.000", "W", -11.516667},
		{"", "N", 0},
		{"garbage", "N", 0},
	}
	for _, tc := range cases {
		if got := parseNMEACoord(tc.raw, tc.dir); !almostEqual(got, tc.want) {
			t.Fatalf("parseNMEACoord(%q, %q) = %v, want %v", tc.raw, tc.dir, got, tc.want)
		}
	}
}

func TestParseRMC(t *testing.T) {
	n := newTestNMEA()
	n.parseRMC(sampleRMC)

	p := n.last
	if !p.Valid {
		t.Fatalf("fix not valid")
	}
	if !almostEqual(p.Latitude, 48.1173) || !almostEqual(p.Longitude, 11.516667) {
		t.Fatalf("position %v,%v", p.Latitude, p.Longitude)
	}
	if !almostEqual(p.YawDegrees, 84.4) {
		t.Fatalf("yaw %v, want 84.4", p.YawDegrees)
	}
	if !almostEqual(p.Speed, 22.4*1.852) {
		t.Fatalf("speed %v", p.Speed)
	}
	if p.Timestamp != "123519" {
		t.Fatalf("timestamp %q", p.Timestamp)
	}
}

func TestParseRMCVoidFix(t *testing.T) {
	n := newTestNMEA()
	n.parseRMC("$GPRMC,123519,V,,,,,,,230394,,*00")

	if n.last.Valid {
		t.Fatalf("void fix marked valid")
	}
}

func TestParseGGA(t *testing.T) {
	n := newTestNMEA()
	n.parseGGA(sampleGGA)

	p := n.last
	if p.FixQuality != 1 {
		t.Fatalf("fix quality %d", p.FixQuality)
	}
	if p.Satellites != 8 {
		t.Fatalf("satellites %d", p.Satellites)
	}
	if !almostEqual(p.HDOP, 0.9) {
		t.Fatalf("hdop %v", p.HDOP)
	}
}

func TestReadNotConnected(t *testing.T) {
	n := newTestNMEA()
	if _, err := n.Read(); err == nil {
		t.Fatalf("expected error before Connect")
	}
}

func TestDemoProviderProducesValidPoses(t *testing.T) {
	d := NewDemo()
	if err := d.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer d.Close()

	for i := 0; i < 5; i++ {
		p, err := d.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !p.Valid {
			t.Fatalf("demo pose not valid")
		}
		if p.YawDegrees < 0 || p.YawDegrees >= 360 {
			t.Fatalf("yaw out of range: %v", p.YawDegrees)
		}
	}
}
