// Package translate implements the speech translation pipeline: transcript
// fragments accumulate in a buffer, flush into a bounded queue under the
// flush rules, and are dispatched with bounded concurrency against a primary
// bulk translator with a conversational-model fallback.
package translate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/sidenote-ai/sidenote/events"
	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/providers"
)

const (
	// SelfSpeaker tags fragments from the primary user; those are never
	// translated.
	SelfSpeaker = "self"

	// DefaultIdleFlush flushes a buffer that stopped growing before any
	// flush rule matched.
	DefaultIdleFlush = 500 * time.Millisecond

	// Flush rules: a buffer flushes immediately once any threshold is met.
	flushWordCount = 8
	flushCharCount = 30

	// maxQueueDepth bounds pending translations; the oldest item is
	// evicted with an error result when a flush would exceed it.
	maxQueueDepth = 20

	// maxInFlight caps concurrent outbound translation calls.
	maxInFlight = 3

	// tentativeInterval debounces the best-effort early translation.
	tentativeInterval = 150 * time.Millisecond

	dispatchTimeout = 15 * time.Second
)

var sentenceEnd = ".!?。！？…"

var errNoTranslator = errors.New("no translator configured")

// langCodePattern accepts two/three-letter codes with optional subtags
// ("en", "pt-BR", "zh-Hant").
var langCodePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// Config is the translation pipeline configuration.
type Config struct {
	Enabled    bool
	SourceLang string
	TargetLang string
}

// Validate rejects malformed language codes. Disabled configs need none.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !langCodePattern.MatchString(c.SourceLang) {
		return fmt.Errorf("invalid source language code %q", c.SourceLang)
	}
	if !langCodePattern.MatchString(c.TargetLang) {
		return fmt.Errorf("invalid target language code %q", c.TargetLang)
	}
	if strings.EqualFold(c.SourceLang, c.TargetLang) {
		return fmt.Errorf("source and target language are both %q", c.SourceLang)
	}
	return nil
}

type queueItem struct {
	id      int64
	text    string
	speaker string
}

// Stats is a point-in-time snapshot of pipeline load, for metrics.
type Stats struct {
	QueueDepth int
	InFlight   int
	Dropped    int64
}

// Pipeline buffers transcript fragments and translates them.
//
// Disabling the pipeline clears the buffer, timer, and queue immediately
// and bumps the epoch so in-flight results for discarded items are never
// surfaced.
type Pipeline struct {
	emitter   *events.Emitter
	primary   providers.Translator // low-latency bulk provider, may be nil
	fallback  providers.Translator // conversational model, may be nil
	idleFlush time.Duration

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu        sync.Mutex
	cfg       Config
	epoch     uint64
	nextSeq   int64
	buf       strings.Builder
	bufID     int64
	speaker   string
	queue     []queueItem
	inFlight  int
	maxSeen   int // high-water mark of inFlight, for tests
	dropped   int64
	idleTimer *time.Timer
	timerGen  uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIdleFlush overrides the idle flush window (used in tests).
func WithIdleFlush(d time.Duration) Option {
	return func(p *Pipeline) { p.idleFlush = d }
}

// New creates a translation pipeline. primary is tried first for each item
// and also powers the debounced tentative preview; fallback handles primary
// failures. Either may be nil.
func New(emitter *events.Emitter, primary, fallback providers.Translator, opts ...Option) *Pipeline {
	p := &Pipeline{
		emitter:   emitter,
		primary:   primary,
		fallback:  fallback,
		idleFlush: DefaultIdleFlush,
		sem:       semaphore.NewWeighted(maxInFlight),
		limiter:   rate.NewLimiter(rate.Every(tentativeInterval), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetConfig applies a new configuration. Invalid configs are rejected and
// the prior config is kept. Disabling clears all pipeline state.
func (p *Pipeline) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	wasEnabled := p.cfg.Enabled
	p.cfg = cfg
	if wasEnabled && !cfg.Enabled {
		p.resetLocked()
	}
	return nil
}

// Config returns the current configuration.
func (p *Pipeline) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Reset discards the buffer, queue, and any result not yet delivered.
// The session manager calls this when a session restarts.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

// Stats reports current pipeline load.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		QueueDepth: len(p.queue),
		InFlight:   p.inFlight,
		Dropped:    p.dropped,
	}
}

// Ingest appends one transcript fragment to the pending buffer. Fragments
// from the primary speaker are ignored. Every accepted fragment emits a
// live-update with the whole buffer, then the flush rules are evaluated.
func (p *Pipeline) Ingest(fragment, speaker string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || speaker == SelfSpeaker {
		return
	}

	p.mu.Lock()
	if !p.cfg.Enabled {
		p.mu.Unlock()
		return
	}

	if p.buf.Len() == 0 {
		p.nextSeq++
		p.bufID = p.nextSeq
		p.speaker = speaker
	} else {
		p.buf.WriteString(" ")
	}
	p.buf.WriteString(fragment)

	id := p.bufID
	text := p.buf.String()
	spk := p.speaker
	epoch := p.epoch

	var flushed *queueItem
	if shouldFlush(text) {
		flushed = p.flushLocked()
	} else {
		p.scheduleIdleFlushLocked()
	}
	p.mu.Unlock()

	p.emitter.TranslationLive(events.TranslationLiveData{
		ID:      id,
		Text:    text,
		Speaker: spk,
		Flushed: flushed != nil,
	})

	if flushed != nil {
		p.drain()
	} else {
		p.maybeTentative(id, text, spk, epoch)
	}
}

// shouldFlush applies the immediate flush rules to the buffer. Any
// sentence-terminal punctuation triggers a flush, even mid-buffer, so a
// completed sentence never waits behind the fragment that follows it.
func shouldFlush(text string) bool {
	if strings.ContainsAny(text, sentenceEnd) {
		return true
	}
	if len(strings.Fields(text)) >= flushWordCount {
		return true
	}
	return utf8.RuneCountInString(text) >= flushCharCount
}

// flushLocked moves the buffer into the queue, evicting the oldest item
// with an error result if the queue is full. Returns the enqueued item.
func (p *Pipeline) flushLocked() *queueItem {
	if p.buf.Len() == 0 {
		return nil
	}

	item := queueItem{id: p.bufID, text: p.buf.String(), speaker: p.speaker}
	p.buf.Reset()
	p.cancelIdleFlushLocked()

	if len(p.queue) >= maxQueueDepth {
		evicted := p.queue[0]
		p.queue = p.queue[1:]
		p.dropped++
		logger.Warn("translation queue full, dropping oldest item", "id", evicted.id)
		// Emitted outside the lock would be cleaner, but eviction is rare
		// and listeners are required to be non-blocking.
		p.emitter.TranslationResult(events.TranslationResultData{
			ID:        evicted.id,
			Original:  evicted.text,
			Speaker:   evicted.speaker,
			Timestamp: time.Now(),
			Err:       "dropped: translation queue overflow",
		})
	}

	p.queue = append(p.queue, item)
	return &item
}

// scheduleIdleFlushLocked arms the idle timer, replacing any prior one.
func (p *Pipeline) scheduleIdleFlushLocked() {
	p.timerGen++
	gen := p.timerGen
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.idleFlush, func() {
		p.mu.Lock()
		if gen != p.timerGen || !p.cfg.Enabled {
			p.mu.Unlock()
			return
		}
		item := p.flushLocked()
		var live *events.TranslationLiveData
		if item != nil {
			live = &events.TranslationLiveData{
				ID:      item.id,
				Text:    item.text,
				Speaker: item.speaker,
				Flushed: true,
			}
		}
		p.mu.Unlock()

		if live != nil {
			p.emitter.TranslationLive(*live)
			p.drain()
		}
	})
}

func (p *Pipeline) cancelIdleFlushLocked() {
	p.timerGen++
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

// resetLocked discards all pipeline state and invalidates in-flight work.
func (p *Pipeline) resetLocked() {
	p.epoch++
	p.buf.Reset()
	p.speaker = ""
	p.queue = nil
	p.cancelIdleFlushLocked()
}
