package rtproc

import (
	"fmt"
	"sync"
)

// ThreadChecker validates that realtime-sensitive calls happen on the
// thread the design requires: the single preprocessor goroutine, or the
// audio goroutine (and its worker slaves) during a cycle. Adapted from
// justyntemme-clapgo's pkg/thread.Checker, which asks the CLAP host
// extension whether the current call is on its main/audio thread; here
// there is no host to ask, so callers register IDs and pass an ID to
// each Assert* call. The engine itself neither registers threads nor
// calls the Assert* methods.
type ThreadChecker struct {
	mu          sync.RWMutex
	preprocess  int64
	audioThread map[int64]bool
}

// NewThreadChecker creates an empty checker. Call SetPreprocessThread and
// MarkAudioThread once each, from the goroutines that will own those
// roles, before relying on the Assert* methods.
func NewThreadChecker() *ThreadChecker {
	return &ThreadChecker{audioThread: make(map[int64]bool)}
}

// SetPreprocessThread records the calling goroutine as the single
// preprocessor thread.
func (c *ThreadChecker) SetPreprocessThread(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preprocess = id
}

// MarkAudioThread records id (audio thread or a worker slave) as
// RT-privileged.
func (c *ThreadChecker) MarkAudioThread(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioThread[id] = true
}

// AssertPreprocessThread panics if id is not the registered preprocessor
// thread. It does nothing while no preprocessor thread is registered.
func (c *ThreadChecker) AssertPreprocessThread(operation string, id int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.preprocess != 0 && id != c.preprocess {
		panic(fmt.Sprintf("rtproc: %s called off the preprocessor thread (got %d, want %d)", operation, id, c.preprocess))
	}
}

// AssertAudioThread panics if id is not a registered audio/worker
// thread. It does nothing while no audio thread is registered.
func (c *ThreadChecker) AssertAudioThread(operation string, id int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.audioThread) != 0 && !c.audioThread[id] {
		panic(fmt.Sprintf("rtproc: %s called off an audio thread (goroutine %d)", operation, id))
	}
}
