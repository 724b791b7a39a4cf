package zklogin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ahwlsqja/zklogin-session-engine/internal/common/logfield"
	"github.com/ahwlsqja/zklogin-session-engine/internal/session"
	"go.uber.org/zap"
)

// DefaultLookahead is how many epochs past the current one a login stays usable
const DefaultLookahead uint64 = 10

// EpochSource reports the network's current epoch
type EpochSource interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
}

// Window is the epoch range a login is valid for
type Window struct {
	CurrentEpoch uint64 `json:"current_epoch"`
	MaxEpoch     uint64 `json:"max_epoch"`
}

// IsExpired reports whether a window ending at maxEpoch is over at currentEpoch.
// The window is inclusive: currentEpoch == maxEpoch is still valid.
func IsExpired(maxEpoch, currentEpoch uint64) bool {
	return currentEpoch > maxEpoch
}

// EpochWindow fixes and checks the validity window of each session
type EpochWindow struct {
	source  EpochSource
	durable session.Store
	logger  *zap.Logger
}

// NewEpochWindow creates an EpochWindow
func NewEpochWindow(source EpochSource, durable session.Store, logger *zap.Logger) *EpochWindow {
	return &EpochWindow{source: source, durable: durable, logger: logger}
}

// Current queries the node once
func (w *EpochWindow) Current(ctx context.Context) (uint64, error) {
	epoch, err := w.source.CurrentEpoch(ctx)
	if err != nil {
		w.logger.Warn("epoch query failed", zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrEpochQueryFailed, err)
	}
	return epoch, nil
}

// Next queries the node and returns the window current .. current+lookahead
func (w *EpochWindow) Next(ctx context.Context, lookahead uint64) (Window, error) {
	current, err := w.Current(ctx)
	if err != nil {
		return Window{}, err
	}
	return Window{CurrentEpoch: current, MaxEpoch: current + lookahead}, nil
}

// Save persists the session's max epoch
func (w *EpochWindow) Save(ctx context.Context, sessionID string, win Window) error {
	if err := w.durable.Set(ctx, sessionID, slotMaxEpoch, strconv.FormatUint(win.MaxEpoch, 10)); err != nil {
		return fmt.Errorf("persist max epoch: %w", err)
	}

	w.logger.Info("epoch window opened",
		logfield.Session(sessionID),
		zap.Uint64("current_epoch", win.CurrentEpoch),
		zap.Uint64("max_epoch", win.MaxEpoch),
	)
	return nil
}

// MaxEpoch reads back the persisted max epoch
func (w *EpochWindow) MaxEpoch(ctx context.Context, sessionID string) (uint64, error) {
	v, err := w.durable.Get(ctx, sessionID, slotMaxEpoch)
	if errors.Is(err, session.ErrNotFound) {
		return 0, fmt.Errorf("%w: no epoch window", ErrSessionNotFound)
	}
	if err != nil {
		return 0, err
	}
	maxEpoch, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt max epoch", ErrSessionNotFound)
	}
	return maxEpoch, nil
}

// Check returns the current epoch, or ErrExpiredWindow if the window has passed
func (w *EpochWindow) Check(ctx context.Context, maxEpoch uint64) (uint64, error) {
	current, err := w.Current(ctx)
	if err != nil {
		return 0, err
	}
	if IsExpired(maxEpoch, current) {
		return current, fmt.Errorf("%w: current epoch %d > max epoch %d", ErrExpiredWindow, current, maxEpoch)
	}
	return current, nil
}
