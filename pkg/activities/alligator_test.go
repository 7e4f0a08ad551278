package activities

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wedo-robotics/wedo-go/pkg/hub"
)

// fakeBricks scripts the distance sensor and records motor commands.
type fakeBricks struct {
	mu     sync.Mutex
	speeds []int8

	// farReads is how many polls report nothing in the mouth before the
	// bait appears.
	farReads int

	distErr error
}

func (f *fakeBricks) Motor(speed int8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speeds = append(f.speeds, speed)
	return nil
}

func (f *fakeBricks) Distances() ([]hub.DistanceValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.distErr != nil {
		return nil, f.distErr
	}

	raw := byte(0x00) // bait: right up against the lens
	if f.farReads > 0 {
		f.farReads--
		raw = 0xa0
	}
	return []hub.DistanceValue{distance(raw)}, nil
}

func (f *fakeBricks) recorded() []int8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int8(nil), f.speeds...)
}

var _ MotorBricks = (*fakeBricks)(nil)

func distance(raw byte) hub.DistanceValue {
	return hub.NewBrickValue('A', hub.Distance, raw).Distance()
}

func fastConfig() AlligatorConfig {
	return AlligatorConfig{
		OpenTime:     time.Millisecond,
		SlamTime:     time.Millisecond,
		PollInterval: time.Millisecond,
	}
}

func TestAlligator_OneCycle(t *testing.T) {
	f := &fakeBricks{farReads: 3}
	a := NewAlligator(f, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// let at least one full cycle complete, then stop the activity
	deadline := time.After(5 * time.Second)
	for {
		speeds := f.recorded()
		if len(speeds) >= 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no full cycle after 5s, recorded %v", speeds)
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	speeds := f.recorded()
	want := []int8{30, 0, -127, 0}
	for i, s := range want {
		if speeds[i] != s {
			t.Fatalf("motor sequence %v, want prefix %v", speeds, want)
		}
	}
	// the deferred stop runs on the way out
	if speeds[len(speeds)-1] != 0 {
		t.Errorf("last motor command = %d, want 0", speeds[len(speeds)-1])
	}
}

func TestAlligator_SensorErrorAborts(t *testing.T) {
	f := &fakeBricks{distErr: errors.New("hub unplugged")}
	a := NewAlligator(f, fastConfig())

	err := a.Run(context.Background())
	if err == nil || errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want the sensor error", err)
	}
}

func TestAlligator_CancelDuringOpen(t *testing.T) {
	f := &fakeBricks{farReads: 1 << 30} // bait never appears
	cfg := fastConfig()
	cfg.OpenTime = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	a := NewAlligator(f, cfg)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() stuck in the open phase after cancel")
	}
}
