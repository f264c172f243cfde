package translate

import (
	"context"
	"time"

	"github.com/sidenote-ai/sidenote/events"
	"github.com/sidenote-ai/sidenote/logger"
)

// drain launches dispatches for queued items while fewer than the cap are
// in flight. Called after every flush and after every dispatch completion.
func (p *Pipeline) drain() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) > 0 && p.sem.TryAcquire(1) {
		item := p.queue[0]
		p.queue = p.queue[1:]
		p.inFlight++
		if p.inFlight > p.maxSeen {
			p.maxSeen = p.inFlight
		}
		go p.dispatch(item, p.epoch, p.cfg)
	}
}

// dispatch translates one item: the bulk provider first, the conversational
// model on any failure. The result is suppressed when the epoch moved on
// (config disabled or session restarted) while the call was in flight.
func (p *Pipeline) dispatch(item queueItem, epoch uint64, cfg Config) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	translated, err := p.translate(ctx, item.text, cfg)

	result := events.TranslationResultData{
		ID:        item.id,
		Original:  item.text,
		Speaker:   item.speaker,
		Timestamp: time.Now(),
	}
	if err != nil {
		logger.Warn("translation failed", "id", item.id, "error", err)
		result.Err = err.Error()
	} else {
		result.Translated = translated
	}

	p.mu.Lock()
	p.inFlight--
	stale := epoch != p.epoch
	p.mu.Unlock()
	p.sem.Release(1)

	if !stale {
		p.emitter.TranslationResult(result)
	}
	p.drain()
}

func (p *Pipeline) translate(ctx context.Context, text string, cfg Config) (string, error) {
	var primaryErr error
	if p.primary != nil {
		translated, err := p.primary.Translate(ctx, text, cfg.SourceLang, cfg.TargetLang)
		if err == nil {
			return translated, nil
		}
		primaryErr = err
		logger.Debug("primary translator failed, falling back",
			"provider", p.primary.ID(), "error", err)
	}
	if p.fallback != nil {
		return p.fallback.Translate(ctx, text, cfg.SourceLang, cfg.TargetLang)
	}
	if primaryErr != nil {
		return "", primaryErr
	}
	return "", errNoTranslator
}

// maybeTentative runs the debounced best-effort early translation of the
// unflushed buffer. Failures are silent; a result is discarded if the
// buffer flushed or the epoch changed while the call was in flight.
func (p *Pipeline) maybeTentative(id int64, text, speaker string, epoch uint64) {
	if p.primary == nil || !p.limiter.Allow() {
		return
	}

	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		translated, err := p.primary.Translate(ctx, text, cfg.SourceLang, cfg.TargetLang)
		if err != nil {
			logger.Debug("tentative translation failed", "error", err)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if epoch != p.epoch || p.bufID != id || p.buf.Len() == 0 {
			return
		}

		// Emitted under the lock: a flush of this buffer cannot interleave
		// between the currency check and the emit, so a tentative never
		// arrives after the final result for its id.
		p.emitter.TranslationLive(events.TranslationLiveData{
			ID:                   id,
			Text:                 p.buf.String(),
			Speaker:              speaker,
			TentativeTranslation: translated,
		})
	}()
}
