// Package activities holds small demo programs for WeDo models.
package activities

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wedo-robotics/wedo-go/pkg/hub"
)

// MotorBricks is the brick surface an activity drives. Implemented by
// wedo.Bricks.
type MotorBricks interface {
	Motor(speed int8) error
	Distances() ([]hub.DistanceValue, error)
}

// AlligatorConfig tunes the alligator's movements. The defaults match the
// model's gearing; zero values select them.
type AlligatorConfig struct {
	// OpenTime is how long the jaw motor runs while opening.
	OpenTime time.Duration

	// SlamTime is how long the jaw motor runs while slamming shut.
	SlamTime time.Duration

	// PollInterval is how often the distance sensor is sampled while
	// waiting for bait.
	PollInterval time.Duration

	// Log is the operational logger. Nil means slog.Default().
	Log *slog.Logger
}

// Movement tuning for the standard alligator model.
const (
	defaultOpenTime     = 3 * time.Second
	defaultSlamTime     = 400 * time.Millisecond
	defaultPollInterval = 100 * time.Millisecond

	openSpeed int8 = 30
	slamSpeed int8 = -127

	// baitCm is how close a finger must come before the jaw slams shut.
	baitCm = 1
)

// Alligator runs the hungry alligator: slowly open the jaw, wait until the
// distance sensor in the mouth sees bait, slam shut, repeat. Runs until the
// context is canceled; the motor is stopped on the way out.
type Alligator struct {
	bricks MotorBricks
	cfg    AlligatorConfig
	log    *slog.Logger
}

// NewAlligator creates the activity on the given bricks.
func NewAlligator(bricks MotorBricks, cfg AlligatorConfig) *Alligator {
	if cfg.OpenTime <= 0 {
		cfg.OpenTime = defaultOpenTime
	}
	if cfg.SlamTime <= 0 {
		cfg.SlamTime = defaultSlamTime
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Alligator{bricks: bricks, cfg: cfg, log: cfg.Log}
}

// Run loops the open-wait-slam cycle until ctx is canceled.
func (a *Alligator) Run(ctx context.Context) error {
	defer func() {
		if err := a.bricks.Motor(0); err != nil {
			a.log.Warn("failed to stop jaw motor", "err", err)
		}
	}()

	for {
		if err := a.openJawSlowly(ctx); err != nil {
			return err
		}
		if err := a.waitForBait(ctx); err != nil {
			return err
		}
		if err := a.slamShut(ctx); err != nil {
			return err
		}
	}
}

func (a *Alligator) openJawSlowly(ctx context.Context) error {
	a.log.Debug("opening jaw")
	if err := a.bricks.Motor(openSpeed); err != nil {
		return fmt.Errorf("failed to open jaw: %w", err)
	}
	if err := sleep(ctx, a.cfg.OpenTime); err != nil {
		return err
	}
	if err := a.bricks.Motor(0); err != nil {
		return fmt.Errorf("failed to stop jaw: %w", err)
	}
	return nil
}

func (a *Alligator) waitForBait(ctx context.Context) error {
	a.log.Debug("waiting for bait")
	for {
		if err := sleep(ctx, a.cfg.PollInterval); err != nil {
			return err
		}

		distances, err := a.bricks.Distances()
		if err != nil {
			return fmt.Errorf("failed to read distance sensor: %w", err)
		}
		if len(distances) > 0 && distances[0].Cm() < baitCm {
			return nil
		}
	}
}

func (a *Alligator) slamShut(ctx context.Context) error {
	a.log.Debug("slamming shut")
	if err := a.bricks.Motor(slamSpeed); err != nil {
		return fmt.Errorf("failed to slam jaw: %w", err)
	}
	if err := sleep(ctx, a.cfg.SlamTime); err != nil {
		return err
	}
	if err := a.bricks.Motor(0); err != nil {
		return fmt.Errorf("failed to stop jaw: %w", err)
	}
	return sleep(ctx, a.cfg.SlamTime)
}

// sleep waits for the duration or the context, whichever ends first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
