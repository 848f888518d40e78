// Package engine implements the Forwarding Engine (spec §4.8): for each
// configured (source, targets) pair, it resolves and probes every
// channel, chooses between direct-forward and download-upload delivery,
// and accumulates run statistics.
//
// Grounded on forwarder.py's Forwarder orchestration loop
// (original_source/tg_forwarder/core/forwarder.py): the
// resolve-then-probe-then-branch-on-capability sequence and the
// per-target ForwardRecord idempotence check are ported from there,
// generalized onto platform.Client.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tgforward/internal/capability"
	"tgforward/internal/downloader"
	"tgforward/internal/fetcher"
	"tgforward/internal/history"
	"tgforward/internal/model"
	"tgforward/internal/pipeline"
	"tgforward/internal/platform"
	"tgforward/internal/ratelimit"
	"tgforward/internal/resolver"
	"tgforward/internal/uploader"
)

// Pair is one source's forwarding configuration, mirroring the
// forward_channel_pairs entries of spec §10.
type Pair struct {
	Source  string
	Targets []string
}

// Config is the run(forward-config) input of spec §4.8.
type Config struct {
	Pairs           []Pair
	StartID         int
	EndID           int // 0 means "up to latest"
	Limit           int // 0 means unbounded
	MediaTypes      map[model.MediaKind]bool // empty/nil allows every kind
	RemoveCaptions  bool
	CaptionTemplate string
	Attribution     string
	ForwardDelay    time.Duration
	MaxRetries      int
	PipelineOptions pipeline.Options
	DownloadOptions downloader.Options
}

// maxErrorMessages bounds the Stats.ErrorMessages list; beyond this the
// overflow is counted instead of stored, per the supplemented bounded
// error-list behavior.
const maxErrorMessages = 100

// Stats is the run() result: run(forward-config) -> stats{total, success,
// failed, skipped} from spec §4.8, extended with a bounded,
// overflow-counted error list.
type Stats struct {
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Failed        int      `json:"failed"`
	Skipped       int      `json:"skipped"`
	ErrorMessages []string `json:"error_messages"`
	ErrorOverflow int      `json:"error_overflow"`
}

func (s *Stats) recordError(msg string) {
	if len(s.ErrorMessages) < maxErrorMessages {
		s.ErrorMessages = append(s.ErrorMessages, msg)
	} else {
		s.ErrorOverflow++
	}
}

// Engine orchestrates one forwarding run.
type Engine struct {
	client    platform.Client
	resolver  *resolver.Resolver
	prober    *capability.Prober
	store     *history.Store
	rateLimit *ratelimit.Adapter
	log       *zap.Logger
}

// New builds an Engine from its collaborators.
func New(client platform.Client, res *resolver.Resolver, prober *capability.Prober, store *history.Store, rl *ratelimit.Adapter, log *zap.Logger) *Engine {
	return &Engine{client: client, resolver: res, prober: prober, store: store, rateLimit: rl, log: log.Named("Engine")}
}

// Run executes every configured pair in order, aggregating statistics.
func (e *Engine) Run(ctx context.Context, cfg Config) Stats {
	var stats Stats
	for _, pair := range cfg.Pairs {
		pairStats := e.runPair(ctx, pair, cfg)
		stats.Total += pairStats.Total
		stats.Success += pairStats.Success
		stats.Failed += pairStats.Failed
		stats.Skipped += pairStats.Skipped
		for _, msg := range pairStats.ErrorMessages {
			stats.recordError(msg)
		}
		stats.ErrorOverflow += pairStats.ErrorOverflow
	}
	return stats
}

func (e *Engine) runPair(ctx context.Context, pair Pair, cfg Config) Stats {
	var stats Stats

	sourceRef, err := e.resolver.Resolve(ctx, pair.Source)
	if err != nil {
		stats.recordError("resolve source " + pair.Source + ": " + err.Error())
		return stats
	}

	targetRefs := e.resolver.FilterChannels(ctx, pair.Targets)
	targets := dedupeByCanonicalKey(targetRefs)
	if len(targets) == 0 {
		stats.recordError("no valid targets for source " + pair.Source)
		return stats
	}

	sourceCap, err := e.prober.Probe(ctx, sourceRef.Key)
	if err != nil {
		stats.recordError("probe source " + pair.Source + ": " + err.Error())
		return stats
	}

	targetCaps := map[model.ChannelKey]model.CapabilityRecord{}
	for _, t := range targets {
		rec, err := e.prober.Probe(ctx, t)
		if err != nil {
			stats.recordError("probe target " + t.String() + ": " + err.Error())
			continue
		}
		targetCaps[t] = rec
	}
	targets = capability.SortByForwardAllowed(targets, targetCaps)

	if sourceCap.ForwardAllowed {
		return e.directForward(ctx, sourceRef.Key, targets, cfg)
	}
	return e.downloadUpload(ctx, sourceRef.Key, targets, cfg)
}

func dedupeByCanonicalKey(refs []model.ChannelRef) []model.ChannelKey {
	seen := map[string]bool{}
	var out []model.ChannelKey
	for _, r := range refs {
		k := r.Key.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r.Key)
	}
	return out
}

// directForward implements spec §4.8's direct-forward algorithm: per
// message, per target, native forward (or copy, for remove_captions /
// hide-source), idempotent via ForwardRecord.
func (e *Engine) directForward(ctx context.Context, source model.ChannelKey, targets []model.ChannelKey, cfg Config) Stats {
	var stats Stats

	rl := e.rateLimitFor(cfg)
	f := fetcher.New(e.client, e.log, 0)
	err := f.Stream(ctx, source, cfg.StartID, cfg.EndID, func(batch fetcher.Batch) bool {
		msgs := batch.Singles
		if batch.Album != nil {
			msgs = batch.Album
		}
		for _, m := range msgs {
			if cfg.Limit > 0 && stats.Total >= cfg.Limit {
				return false
			}
			stats.Total++

			if !kindAllowed(cfg.MediaTypes, m.Kind) {
				stats.Skipped++
				continue
			}

			pending := e.pendingTargets(source, m.MessageID, targets)
			if len(pending) == 0 {
				stats.Skipped++
				continue
			}

			delivered := e.deliverDirect(ctx, rl, source, m, pending, cfg)
			if len(delivered) > 0 {
				if markErr := e.store.MarkForwarded(source, m.MessageID, delivered); markErr != nil {
					e.log.Warn("failed to persist forward record", zap.Error(markErr))
				}
			}
			if len(delivered) == len(pending) {
				stats.Success++
			} else {
				stats.Failed++
			}

			if cfg.ForwardDelay > 0 {
				select {
				case <-time.After(cfg.ForwardDelay):
				case <-ctx.Done():
					return false
				}
			}
		}
		return true
	})
	if err != nil {
		stats.recordError("fetch " + source.String() + ": " + err.Error())
	}
	return stats
}

// pendingTargets returns targets not already recorded as delivered for
// (source, msgID).
func (e *Engine) pendingTargets(source model.ChannelKey, msgID int, targets []model.ChannelKey) []model.ChannelKey {
	delivered := e.store.GetForwardTargets(source, msgID)
	var pending []model.ChannelKey
	for _, t := range targets {
		if !delivered[t.String()] {
			pending = append(pending, t)
		}
	}
	return pending
}

// rateLimitFor returns an Adapter honoring cfg.MaxRetries when set,
// falling back to the Engine's shared default otherwise.
func (e *Engine) rateLimitFor(cfg Config) *ratelimit.Adapter {
	if cfg.MaxRetries <= 0 {
		return e.rateLimit
	}
	opts := ratelimit.DefaultOptions()
	opts.MaxRetries = cfg.MaxRetries
	return ratelimit.New(opts, e.log)
}

func (e *Engine) deliverDirect(ctx context.Context, rl *ratelimit.Adapter, source model.ChannelKey, m *model.MessageDescriptor, targets []model.ChannelKey, cfg Config) []model.ChannelKey {
	var delivered []model.ChannelKey
	for _, target := range targets {
		err := rl.Do(ctx, nil, func(ctx context.Context) error {
			var rpcErr error
			if cfg.RemoveCaptions {
				_, rpcErr = e.client.CopyMessage(ctx, target, source, m.MessageID)
			} else {
				_, rpcErr = e.client.ForwardMessages(ctx, target, source, []int{m.MessageID})
			}
			return rpcErr
		})
		if err != nil {
			e.log.Warn("forward failed", zap.Int("message_id", m.MessageID), zap.String("target", target.String()), zap.Error(err))
			continue
		}
		delivered = append(delivered, target)
	}
	return delivered
}

func kindAllowed(allow map[model.MediaKind]bool, kind model.MediaKind) bool {
	if len(allow) == 0 {
		return true
	}
	return allow[kind]
}

// downloadUpload delegates to the Pipeline Controller (spec §4.8: "the
// Engine merely provides the source ID window and the target list and
// accumulates statistics from Uploader results").
func (e *Engine) downloadUpload(ctx context.Context, source model.ChannelKey, targets []model.ChannelKey, cfg Config) Stats {
	var stats Stats

	f := fetcher.New(e.client, e.log, 0)
	d, err := downloader.New(e.client, e.store, cfg.DownloadOptions, e.log)
	if err != nil {
		stats.recordError("init downloader for " + source.String() + ": " + err.Error())
		return stats
	}
	u := uploader.New(e.client, e.store, e.resolver, e.log)
	controller := pipeline.New(f, d, u, cfg.PipelineOptions, e.log)

	policy := uploader.Policy{RemoveCaptions: cfg.RemoveCaptions, Template: cfg.CaptionTemplate, Attribution: cfg.Attribution}
	result, err := controller.Run(ctx, source, cfg.StartID, cfg.EndID, targets, policy)
	if err != nil {
		stats.recordError("pipeline run for " + source.String() + ": " + err.Error())
	}
	if result.TimedOut {
		stats.recordError("pipeline run for " + source.String() + " hit the timeout ceiling, partial success only")
	}
	stats.Failed += len(result.FailedDownloads)
	for _, item := range result.Items {
		stats.Total++
		if len(item.Failed) == 0 {
			stats.Success++
		} else if len(item.Succeeded) > 0 {
			stats.Success++
			stats.Failed++
		} else {
			stats.Failed++
		}
		for target, err := range item.Failed {
			stats.recordError("upload to " + target.String() + " for " + item.Path + ": " + err.Error())
		}
	}
	return stats
}
