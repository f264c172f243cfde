package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sidenote-ai/sidenote/events"
	"github.com/sidenote-ai/sidenote/providers"
)

type stubTranslator struct {
	name string
	err  error
	gate chan struct{} // when non-nil, Translate blocks until closed

	mu    sync.Mutex
	calls []string
}

func (s *stubTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return "[" + targetLang + "] " + text, nil
}

func (s *stubTranslator) ID() string { return s.name }

func (s *stubTranslator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *eventRecorder) listen(e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) results() []events.TranslationResultData {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.TranslationResultData
	for _, e := range r.events {
		if e.Type == events.EventTranslationResult {
			out = append(out, e.Data.(events.TranslationResultData))
		}
	}
	return out
}

func (r *eventRecorder) liveUpdates() []events.TranslationLiveData {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.TranslationLiveData
	for _, e := range r.events {
		if e.Type == events.EventTranslationLive {
			out = append(out, e.Data.(events.TranslationLiveData))
		}
	}
	return out
}

func newTestPipeline(t *testing.T, primary, fallback *stubTranslator, opts ...Option) (*Pipeline, *eventRecorder) {
	t.Helper()
	bus := events.NewBus()
	rec := &eventRecorder{}
	bus.SubscribeAll(rec.listen)

	var p, f providers.Translator
	if primary != nil {
		p = primary
	}
	if fallback != nil {
		f = fallback
	}
	pipe := New(events.NewEmitter(bus, "test"), p, f, opts...)
	if err := pipe.SetConfig(Config{Enabled: true, SourceLang: "en", TargetLang: "es"}); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	return pipe, rec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPipeline_SentenceEndFlushesImmediately(t *testing.T) {
	primary := &stubTranslator{name: "bulk"}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(time.Hour))

	pipe.Ingest("Hello there. This is", "them")

	lives := rec.liveUpdates()
	if len(lives) == 0 || !lives[0].Flushed {
		t.Fatal("sentence-terminal punctuation did not flush immediately")
	}

	waitFor(t, "translation result", func() bool { return len(rec.results()) == 1 })
	res := rec.results()[0]
	if res.Original != "Hello there. This is" {
		t.Errorf("result original = %q", res.Original)
	}
	if res.Translated != "[es] Hello there. This is" {
		t.Errorf("result translated = %q", res.Translated)
	}
	if res.Speaker != "them" {
		t.Errorf("result speaker = %q", res.Speaker)
	}
}

func TestPipeline_ShortFragmentWaitsForIdleFlush(t *testing.T) {
	primary := &stubTranslator{name: "bulk"}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(30*time.Millisecond))

	pipe.Ingest("hola amigo", "them")

	// No flush rule matched, so the first live-update is unflushed.
	if lives := rec.liveUpdates(); len(lives) == 0 || lives[0].Flushed {
		t.Fatal("short fragment flushed before the idle window")
	}

	waitFor(t, "idle flush result", func() bool { return len(rec.results()) == 1 })
}

func TestPipeline_WordAndCharThresholdsFlush(t *testing.T) {
	primary := &stubTranslator{name: "bulk"}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(time.Hour))

	// Eight words, no punctuation.
	pipe.Ingest("one two three four five six seven eight", "them")
	waitFor(t, "word-count flush", func() bool { return len(rec.results()) == 1 })

	// Over thirty characters, still no punctuation.
	pipe.Ingest("aaaaaaaaaa bbbbbbbbbb cccccccccc", "them")
	waitFor(t, "char-count flush", func() bool { return len(rec.results()) == 2 })
}

func TestPipeline_SelfSpeakerIgnored(t *testing.T) {
	primary := &stubTranslator{name: "bulk"}
	pipe, rec := newTestPipeline(t, primary, nil)

	pipe.Ingest("My own words.", SelfSpeaker)

	if len(rec.liveUpdates()) != 0 {
		t.Error("self-speaker fragment produced a live update")
	}
	if primary.callCount() != 0 {
		t.Error("self-speaker fragment was dispatched for translation")
	}
}

func TestPipeline_FallbackOnPrimaryFailure(t *testing.T) {
	primary := &stubTranslator{name: "bulk", err: errors.New("quota exceeded")}
	fallback := &stubTranslator{name: "model"}
	pipe, rec := newTestPipeline(t, primary, fallback)

	pipe.Ingest("This has failed upstream.", "them")

	waitFor(t, "fallback result", func() bool { return len(rec.results()) == 1 })
	res := rec.results()[0]
	if res.Err != "" {
		t.Fatalf("result error = %q, fallback should have succeeded", res.Err)
	}
	if res.Translated != "[es] This has failed upstream." {
		t.Errorf("result translated = %q", res.Translated)
	}
	if fallback.callCount() != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.callCount())
	}
}

func TestPipeline_BothProvidersFailingYieldsErrorResult(t *testing.T) {
	primary := &stubTranslator{name: "bulk", err: errors.New("down")}
	fallback := &stubTranslator{name: "model", err: errors.New("also down")}
	pipe, rec := newTestPipeline(t, primary, fallback)

	pipe.Ingest("Nobody can translate this.", "them")

	waitFor(t, "error result", func() bool { return len(rec.results()) == 1 })
	res := rec.results()[0]
	if res.Err == "" {
		t.Error("result should carry an error when both providers fail")
	}
	if res.Original != "Nobody can translate this." {
		t.Errorf("error result original = %q", res.Original)
	}
}

func TestPipeline_InFlightNeverExceedsCap(t *testing.T) {
	gate := make(chan struct{})
	primary := &stubTranslator{name: "bulk", gate: gate}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pipe.Ingest(fmt.Sprintf("Burst item number %d.", i), "them")
		}(i)
	}
	wg.Wait()

	waitFor(t, "dispatches to saturate", func() bool {
		return pipe.Stats().InFlight == maxInFlight
	})
	close(gate)
	waitFor(t, "all results", func() bool { return len(rec.results()) == 12 })

	pipe.mu.Lock()
	maxSeen := pipe.maxSeen
	pipe.mu.Unlock()
	if maxSeen > maxInFlight {
		t.Errorf("in-flight high-water mark = %d, cap is %d", maxSeen, maxInFlight)
	}
}

func TestPipeline_QueueCapEvictsOldestWithErrorResult(t *testing.T) {
	gate := make(chan struct{})
	primary := &stubTranslator{name: "bulk", gate: gate}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(time.Hour))

	// Three items saturate the dispatcher; the next twenty fill the queue.
	for i := 0; i < maxInFlight+maxQueueDepth; i++ {
		pipe.Ingest(fmt.Sprintf("Fill item %d.", i), "them")
	}
	waitFor(t, "dispatcher saturation", func() bool {
		s := pipe.Stats()
		return s.InFlight == maxInFlight && s.QueueDepth == maxQueueDepth
	})

	// The twenty-first enqueue evicts exactly one item with an error result.
	pipe.Ingest("Overflow item.", "them")

	if got := pipe.Stats().QueueDepth; got != maxQueueDepth {
		t.Errorf("queue depth = %d, want %d", got, maxQueueDepth)
	}
	if got := pipe.Stats().Dropped; got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}

	var evictions int
	for _, res := range rec.results() {
		if strings.Contains(res.Err, "overflow") {
			evictions++
			if res.Original != fmt.Sprintf("Fill item %d.", maxInFlight) {
				t.Errorf("evicted item original = %q, want oldest queued", res.Original)
			}
		}
	}
	if evictions != 1 {
		t.Errorf("eviction error results = %d, want 1", evictions)
	}

	close(gate)
	waitFor(t, "remaining results", func() bool {
		return len(rec.results()) == maxInFlight+maxQueueDepth+1
	})
}

func TestPipeline_DisableClearsStateAndSuppressesResults(t *testing.T) {
	gate := make(chan struct{})
	primary := &stubTranslator{name: "bulk", gate: gate}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(time.Hour))

	// Saturate the dispatcher and leave two items queued.
	for i := 0; i < maxInFlight+2; i++ {
		pipe.Ingest(fmt.Sprintf("Pending item %d.", i), "them")
	}
	waitFor(t, "two items queued", func() bool { return pipe.Stats().QueueDepth == 2 })

	if err := pipe.SetConfig(Config{Enabled: false}); err != nil {
		t.Fatalf("SetConfig(disable) error = %v", err)
	}

	s := pipe.Stats()
	if s.QueueDepth != 0 {
		t.Errorf("queue depth after disable = %d, want 0", s.QueueDepth)
	}

	// In-flight calls may still complete, but their results never surface.
	close(gate)
	waitFor(t, "in-flight calls to drain", func() bool { return pipe.Stats().InFlight == 0 })
	time.Sleep(20 * time.Millisecond)

	if got := len(rec.results()); got != 0 {
		t.Errorf("results after disable = %d, want 0", got)
	}

	// Ingestion while disabled is a no-op.
	pipe.Ingest("Should be ignored.", "them")
	if got := len(rec.liveUpdates()); got != maxInFlight+2 {
		t.Errorf("live updates = %d, ingestion while disabled emitted events", got)
	}
}

func TestPipeline_TentativePreview(t *testing.T) {
	primary := &stubTranslator{name: "bulk"}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(time.Hour))

	pipe.Ingest("hola", "them")

	waitFor(t, "tentative live update", func() bool {
		for _, live := range rec.liveUpdates() {
			if live.TentativeTranslation != "" {
				return true
			}
		}
		return false
	})

	var tentative events.TranslationLiveData
	for _, live := range rec.liveUpdates() {
		if live.TentativeTranslation != "" {
			tentative = live
		}
	}
	if tentative.TentativeTranslation != "[es] hola" {
		t.Errorf("tentative translation = %q", tentative.TentativeTranslation)
	}
	if tentative.Flushed {
		t.Error("tentative preview marked as flushed")
	}
}

func TestPipeline_TentativeNeverFollowsFinalResult(t *testing.T) {
	gate := make(chan struct{})
	primary := &stubTranslator{name: "bulk", gate: gate}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(time.Hour))

	// Short fragment: schedules a tentative call that parks on the gate.
	pipe.Ingest("hola", "them")
	waitFor(t, "tentative call in flight", func() bool { return primary.callCount() == 1 })

	// The sentence end flushes the same buffer and dispatches it.
	pipe.Ingest("Que tal amigo mio.", "them")

	close(gate)
	waitFor(t, "final result", func() bool { return len(rec.results()) == 1 })
	time.Sleep(20 * time.Millisecond)

	// The tentative was computed for a buffer that flushed while the call
	// was in flight; it must be discarded, never delivered after the final.
	for _, live := range rec.liveUpdates() {
		if live.TentativeTranslation != "" {
			t.Fatalf("stale tentative delivered: %+v", live)
		}
	}

	finalSeen := make(map[int64]bool)
	rec.mu.Lock()
	for _, e := range rec.events {
		switch data := e.Data.(type) {
		case events.TranslationResultData:
			finalSeen[data.ID] = true
		case events.TranslationLiveData:
			if data.TentativeTranslation != "" && finalSeen[data.ID] {
				t.Errorf("tentative for id %d delivered after its final result", data.ID)
			}
		}
	}
	rec.mu.Unlock()
}

func TestPipeline_SequenceIDsIncrease(t *testing.T) {
	primary := &stubTranslator{name: "bulk"}
	pipe, rec := newTestPipeline(t, primary, nil, WithIdleFlush(time.Hour))

	pipe.Ingest("First sentence.", "them")
	pipe.Ingest("Second sentence.", "them")
	pipe.Ingest("Third sentence.", "them")

	waitFor(t, "three results", func() bool { return len(rec.results()) == 3 })

	lives := rec.liveUpdates()
	var prev int64
	for _, live := range lives {
		if live.ID <= prev {
			t.Fatalf("sequence ids not strictly increasing: %d after %d", live.ID, prev)
		}
		prev = live.ID
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled needs nothing", Config{Enabled: false}, false},
		{"simple codes", Config{Enabled: true, SourceLang: "en", TargetLang: "es"}, false},
		{"subtags", Config{Enabled: true, SourceLang: "pt-BR", TargetLang: "zh-Hant"}, false},
		{"empty source", Config{Enabled: true, SourceLang: "", TargetLang: "es"}, true},
		{"numeric junk", Config{Enabled: true, SourceLang: "12", TargetLang: "es"}, true},
		{"same language", Config{Enabled: true, SourceLang: "en", TargetLang: "EN"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPipeline_InvalidConfigRetainsPrior(t *testing.T) {
	pipe, _ := newTestPipeline(t, &stubTranslator{name: "bulk"}, nil)

	err := pipe.SetConfig(Config{Enabled: true, SourceLang: "english", TargetLang: "es"})
	if err == nil {
		t.Fatal("invalid language code accepted")
	}

	cfg := pipe.Config()
	if !cfg.Enabled || cfg.SourceLang != "en" || cfg.TargetLang != "es" {
		t.Errorf("prior config not retained: %+v", cfg)
	}
}
