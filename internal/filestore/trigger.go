// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"context"

	"github.com/MKhiriev/kegsync/models"
)

// Digest notifications are coalesced through a single debounce timer: a
// notification sets the pending flag and (re)arms the timer, and only the
// timer firing runs an update cycle. A burst of notifications therefore
// collapses into one cycle.

func (s *Store) subscribeLocked() {
	s.unsubscribe = s.tracker.Subscribe(s.db.ID, models.KegTypeFile, s.onDigestNotification)
}

// onDigestNotification runs on the tracker's goroutine and must not block.
func (s *Store) onDigestNotification(models.Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingDigest = true
	if s.paused {
		return
	}
	s.armTimerLocked()
}

func (s *Store) armTimerLocked() {
	if s.timer == nil {
		s.timer = s.clock.AfterFunc(s.opts.UpdateDebounce, s.fireUpdate)
		return
	}
	s.timer.Reset(s.opts.UpdateDebounce)
}

// fireUpdate runs when the debounce timer expires. A firing that raced
// with Pause leaves the pending flag set for Resume to pick up.
func (s *Store) fireUpdate() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	s.pendingDigest = false
	s.mu.Unlock()

	go s.runUpdateCycle(context.Background())
}

// Pause suppresses reaction to digest notifications without losing them:
// the pending flag survives and Resume picks it up.
func (s *Store) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Resume re-enables digest reactions and immediately re-checks for
// anything missed while paused.
func (s *Store) Resume() {
	s.mu.Lock()
	pending := s.pendingDigest
	s.pendingDigest = false
	s.paused = false
	s.mu.Unlock()

	if pending {
		go s.runUpdateCycle(context.Background())
	}
}
