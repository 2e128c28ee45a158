package auth

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/oshokin/media-grabber/internal/logger"
)

// simulateHumanBehavior moves the mouse around the viewport between cookie checks.
func (s *ServiceImpl) simulateHumanBehavior(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf(ctx, "simulateHumanBehavior panic recovered: %v", r)
		}
	}()

	eval, err := s.page.Eval(`() => ({width: window.innerWidth, height: window.innerHeight})`)
	if err != nil {
		return
	}

	dims := eval.Value.Map()
	maxX := int(dims["width"].Num())
	maxY := int(dims["height"].Num())

	if maxX <= 0 || maxY <= 0 {
		return
	}

	for range mouseMovementsPerCheck {
		if err = s.page.Mouse.MoveTo(randomPoint(maxX, maxY)); err != nil {
			return
		}

		if !sleepContext(ctx, randomHumanDelay()) {
			return
		}
	}
}

// randomPoint returns a random viewport position.
func randomPoint(maxX, maxY int) proto.Point {
	return proto.Point{
		X: float64(rand.IntN(maxX)), //nolint:gosec // Weak random is fine for simulating human behavior.
		Y: float64(rand.IntN(maxY)), //nolint:gosec // Weak random is fine for simulating human behavior.
	}
}

// randomHumanDelay returns a random pause between simulated actions.
func randomHumanDelay() time.Duration {
	//nolint:gosec // Weak random is fine for simulating human behavior.
	return time.Duration(rand.Int64N(int64(humanBehaviorMaxDelay-humanBehaviorMinDelay))) + humanBehaviorMinDelay
}

// sleepContext sleeps for d and reports false when ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
