package pipeline

import (
	"sync"

	"assetgen/internal/domain"
)

// Retry reasons, also used as metric label values.
const (
	retryBackoff   = "backoff"
	retryTextGuard = "text_guard"
	retryProvider  = "provider"
)

// Trace accumulates provider activity for one job run. The guard and the
// orchestrator write to it from the worker goroutine while Snapshot may be
// called from elsewhere, so every field sits behind mu.
type Trace struct {
	mu sync.Mutex

	imageCalls    int
	imageAttempts int
	videoCalled   bool
	ttsCalled     bool
	plannerCalled bool
	creatorCalled bool
	creatorErr    string

	backoffRetries   int
	textGuardRetries int
	providerRetries  int

	blocked    []string
	charCounts map[string]int
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{charCounts: make(map[string]int)}
}

func (t *Trace) imageCall() {
	t.mu.Lock()
	t.imageCalls++
	t.imageAttempts++
	t.mu.Unlock()
}

func (t *Trace) retry(reason string) {
	t.mu.Lock()
	switch reason {
	case retryBackoff:
		t.backoffRetries++
	case retryTextGuard:
		t.textGuardRetries++
	default:
		t.providerRetries++
	}
	t.mu.Unlock()
}

// block records id as blocked. Repeated calls for the same id are ignored.
func (t *Trace) block(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range t.blocked {
		if b == id {
			return
		}
	}
	t.blocked = append(t.blocked, id)
}

func (t *Trace) charCount(id string, n int) {
	t.mu.Lock()
	t.charCounts[id] = n
	t.mu.Unlock()
}

func (t *Trace) markVideo() {
	t.mu.Lock()
	t.videoCalled = true
	t.mu.Unlock()
}

func (t *Trace) markTTS() {
	t.mu.Lock()
	t.ttsCalled = true
	t.mu.Unlock()
}

func (t *Trace) markPlanner() {
	t.mu.Lock()
	t.plannerCalled = true
	t.mu.Unlock()
}

func (t *Trace) markCreator(err error) {
	t.mu.Lock()
	t.creatorCalled = true
	if err != nil {
		t.creatorErr = err.Error()
	}
	t.mu.Unlock()
}

// Blocked returns the identifiers that exhausted their attempts.
func (t *Trace) Blocked() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.blocked...)
}

// ImageAttempts is the number of image provider calls made so far.
func (t *Trace) ImageAttempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.imageAttempts
}

// Snapshot copies the provider counters into their persisted shape.
func (t *Trace) Snapshot() domain.ProviderTrace {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.ProviderTrace{
		ImageCalls:             t.imageCalls,
		VideoCalled:            t.videoCalled,
		TTSCalled:              t.ttsCalled,
		ScenePlannerCalled:     t.plannerCalled,
		CreatorReferenceCalled: t.creatorCalled,
		CreatorReferenceError:  t.creatorErr,
		BackoffRetries:         t.backoffRetries,
		TextGuardRetries:       t.textGuardRetries,
		ProviderRetries:        t.providerRetries,
		BlockedFrames:          append([]string{}, t.blocked...),
	}
}

// TextGuard summarizes quality gate activity. enabled and reason come from
// the detector, which is resolved once at process start.
func (t *Trace) TextGuard(enabled bool, reason string, maxFrame, maxThumb int) domain.TextGuardSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[string]int, len(t.charCounts))
	for k, v := range t.charCounts {
		counts[k] = v
	}
	s := domain.TextGuardSummary{
		Enabled:           enabled,
		MaxCharsFrame:     maxFrame,
		MaxCharsThumbnail: maxThumb,
		Retries:           t.textGuardRetries,
		CharCounts:        counts,
		Blocked:           append([]string{}, t.blocked...),
	}
	if !enabled {
		s.UnavailableReason = reason
	}
	return s
}
