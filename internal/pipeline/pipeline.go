// Package pipeline implements the Pipeline Controller (spec §4.9): wires
// the Fetcher, Downloader, Reassembler, and Uploader through two bounded
// queues, with a timeout-capped run that reports partial success.
//
// The Python original (task_manager.py,
// original_source/tg_forwarder/core/task_manager.py) drives this topology
// with asyncio queues and a "downloads_complete" flag polled by upload
// workers; here the same termination condition — no more batches once
// fetching is done and the download queue is empty — falls out of Go's
// channel-close idiom instead of a polled flag, while still exposing
// DownloadsComplete for callers that want to observe it.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tgforward/internal/downloader"
	"tgforward/internal/fetcher"
	"tgforward/internal/model"
	"tgforward/internal/reassembler"
	"tgforward/internal/uploader"
)

// Options configures queue depths, worker counts, and the run timeout.
type Options struct {
	Q1Depth       int
	Q2Depth       int
	UploadWorkers int
	Timeout       time.Duration
}

// DefaultOptions matches the spec's stated defaults (1-hour ceiling,
// small upload worker pool).
func DefaultOptions() Options {
	return Options{Q1Depth: 8, Q2Depth: 8, UploadWorkers: 3, Timeout: time.Hour}
}

// workUnit is one bundle crossing Q2: either a completed album or a
// group of standalone singles, downloaded as a unit.
type workUnit struct {
	BatchID   string
	Artifacts []model.LocalArtifact
	IsAlbum   bool
}

// Controller owns the queues and worker pool for one pipeline run.
type Controller struct {
	fetcher    *fetcher.Fetcher
	downloader *downloader.Downloader
	uploader   *uploader.Uploader
	opts       Options
	log        *zap.Logger

	downloadsComplete atomic.Bool

	processedMu sync.Mutex
	processed   map[string]bool
}

// New builds a Controller from its three collaborators.
func New(f *fetcher.Fetcher, d *downloader.Downloader, u *uploader.Uploader, opts Options, log *zap.Logger) *Controller {
	if opts.Q1Depth <= 0 {
		opts.Q1Depth = 8
	}
	if opts.Q2Depth <= 0 {
		opts.Q2Depth = 8
	}
	if opts.UploadWorkers <= 0 {
		opts.UploadWorkers = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Hour
	}
	return &Controller{
		fetcher:    f,
		downloader: d,
		uploader:   u,
		opts:       opts,
		log:        log.Named("Pipeline"),
		processed:  map[string]bool{},
	}
}

// DownloadsComplete reports whether the fetch-and-download side of the
// pipeline has finished emitting work.
func (c *Controller) DownloadsComplete() bool {
	return c.downloadsComplete.Load()
}

// Stats aggregates upload outcomes across the whole run.
type Stats struct {
	Items      []uploader.ItemResult
	TimedOut   bool
	FailedDownloads []*model.MessageDescriptor
}

// Run streams source's [startID,endID] window through
// fetch→download→reassemble→upload, delivering to targets under policy.
// A hard timeout (opts.Timeout) cancels remaining work and the call
// returns with Stats.TimedOut set rather than an error, since partial
// progress is itself a valid, reportable outcome (spec §4.9).
func (c *Controller) Run(ctx context.Context, source model.ChannelKey, startID, endID int, targets []model.ChannelKey, policy uploader.Policy) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	q1 := make(chan fetcher.Batch, c.opts.Q1Depth)
	q2 := make(chan workUnit, c.opts.Q2Depth)

	var stats Stats
	var statsMu sync.Mutex
	var fetchErr error

	var fetchWG sync.WaitGroup
	fetchWG.Add(1)
	go func() {
		defer fetchWG.Done()
		defer close(q1)
		fetchErr = c.fetcher.Stream(ctx, source, startID, endID, func(b fetcher.Batch) bool {
			select {
			case q1 <- b:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	var downloadWG sync.WaitGroup
	downloadWG.Add(1)
	go func() {
		defer downloadWG.Done()
		defer func() {
			c.downloadsComplete.Store(true)
			close(q2)
		}()
		for batch := range q1 {
			var msgs []*model.MessageDescriptor
			isAlbum := batch.Album != nil
			if isAlbum {
				msgs = batch.Album
			} else {
				msgs = batch.Singles
			}

			var mediaMsgs []*model.MessageDescriptor
			for _, m := range msgs {
				if m.Kind.IsMedia() {
					mediaMsgs = append(mediaMsgs, m)
				} else {
					result := c.uploader.UploadText(ctx, m, targets, policy)
					statsMu.Lock()
					stats.Items = append(stats.Items, result)
					statsMu.Unlock()
				}
			}
			if isAlbum && len(mediaMsgs) == 0 {
				continue
			}
			msgs = mediaMsgs

			success, failed, skipped := c.downloader.DownloadBatch(ctx, msgs)
			if len(failed) > 0 {
				statsMu.Lock()
				stats.FailedDownloads = append(stats.FailedDownloads, failed...)
				statsMu.Unlock()
			}
			artifacts := append(success, skipped...)
			if len(artifacts) == 0 {
				continue
			}
			unit := workUnit{BatchID: uuid.NewString(), Artifacts: artifacts, IsAlbum: isAlbum}
			select {
			case q2 <- unit:
			case <-ctx.Done():
				return
			}
		}
	}()

	var uploadWG sync.WaitGroup
	for i := 0; i < c.opts.UploadWorkers; i++ {
		uploadWG.Add(1)
		go func() {
			defer uploadWG.Done()
			for unit := range q2 {
				if c.alreadyProcessed(unit.BatchID) {
					continue
				}
				var results []uploader.ItemResult
				if unit.IsAlbum {
					results = append(results, c.uploader.UploadAlbum(ctx, unit.Artifacts, targets, policy))
				} else {
					grouped := reassembler.Assemble(unit.Artifacts)
					for _, a := range grouped.Singles {
						results = append(results, c.uploader.UploadSingle(ctx, a, targets, policy))
					}
					for _, album := range grouped.Albums {
						results = append(results, c.uploader.UploadAlbum(ctx, album, targets, policy))
					}
				}
				statsMu.Lock()
				stats.Items = append(stats.Items, results...)
				statsMu.Unlock()
			}
		}()
	}

	fetchWG.Wait()
	downloadWG.Wait()
	uploadWG.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		stats.TimedOut = true
		c.log.Warn("pipeline run hit its timeout ceiling, reporting partial success")
	}
	return stats, fetchErr
}

func (c *Controller) alreadyProcessed(batchID string) bool {
	c.processedMu.Lock()
	defer c.processedMu.Unlock()
	if c.processed[batchID] {
		return true
	}
	c.processed[batchID] = true
	return false
}
