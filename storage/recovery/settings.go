/*
	Copyright DriftDB Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package recovery

import (
	"sync/atomic"
	"time"

	"github.com/driftdb/driftdb/common/settings"
	"github.com/driftdb/driftdb/common/sysinfo"
	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/foundation/v2/concurrenz"
	"github.com/openziti/metrics"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	MetricSnapshotDownloadPermitsAvailable = "recovery.snapshot_download.permits_available"
	MetricSnapshotDownloadFallbacks        = "recovery.snapshot_download.fallbacks"
	MetricMaxBytesPerSec                   = "recovery.max_bytes_per_sec"
)

// Settings governs throughput and concurrency for shard recovery on a node.
// Every tunable can change at runtime through the settings registry; the two
// side-effectful ones reconfigure the rate limiter and resize the snapshot
// download permit pool in place. All getters are safe to call from transfer
// workers concurrently with updates.
type Settings struct {
	maxBytesPerSec              *settings.ByteSize
	maxConcurrentFileChunks     *settings.Int
	maxConcurrentOperations     *settings.Int
	retryDelayStateSync         *settings.Duration
	retryDelayNetwork           *settings.Duration
	internalActionTimeout       *settings.Duration
	internalActionRetryTimeout  *settings.Duration
	internalActionLongTimeout   *settings.Duration
	activityTimeout             *settings.Duration
	useSnapshots                *settings.Bool
	maxSnapshotFileDownloads    *settings.Int
	maxSnapshotDownloadsPerNode *settings.Int

	chunkSize atomic.Int64

	limiter         concurrenz.AtomicValue[*rate.Limiter]
	downloadPermits *adjustableSemaphore

	fallbackMeter metrics.Meter
	permitWarn    rate.Sometimes
}

// NewSettings builds the recovery governor, registers its tunables with the
// registry and resolves them from the snapshot. The environment feeds the
// default rate ceiling; an explicit max_bytes_per_sec in the snapshot always
// wins over the recommendation.
func NewSettings(snapshot settings.Snapshot, registry *settings.Registry, env sysinfo.Environment, metricsRegistry metrics.Registry) (*Settings, error) {
	self := &Settings{
		downloadPermits: newAdjustableSemaphore(0),
		permitWarn:      rate.Sometimes{Interval: time.Minute},
	}
	self.chunkSize.Store(DefaultChunkSize)

	self.maxBytesPerSec = settings.NewByteSize(MaxBytesPerSecKey, func() int64 {
		return recommendedMaxBytesPerSec(env)
	})
	self.maxConcurrentFileChunks = settings.NewInt(MaxConcurrentFileChunksKey,
		DefaultMaxConcurrentFileChunks, MinConcurrentFileChunks, MaxConcurrentFileChunks)
	self.maxConcurrentOperations = settings.NewInt(MaxConcurrentOperationsKey,
		DefaultMaxConcurrentOperations, MinConcurrentOperations, MaxConcurrentOperations)
	self.retryDelayStateSync = settings.NewDuration(RetryDelayStateSyncKey,
		func() time.Duration { return DefaultRetryDelayStateSync }, time.Nanosecond)
	self.retryDelayNetwork = settings.NewDuration(RetryDelayNetworkKey,
		func() time.Duration { return DefaultRetryDelayNetwork }, time.Nanosecond)
	self.internalActionTimeout = settings.NewDuration(InternalActionTimeoutKey,
		func() time.Duration { return DefaultInternalActionTimeout }, time.Nanosecond)
	self.internalActionRetryTimeout = settings.NewDuration(InternalActionRetryTimeoutKey,
		func() time.Duration { return DefaultInternalActionRetryTimeout }, time.Nanosecond)

	// derived defaults resolve from whatever their dependency holds at init
	// time; an explicit value freezes the setting and later changes to the
	// dependency don't re-derive it
	self.internalActionLongTimeout = settings.NewDuration(InternalActionLongTimeoutKey,
		func() time.Duration { return 2 * self.internalActionTimeout.Get() }, 0)
	self.activityTimeout = settings.NewDuration(ActivityTimeoutKey,
		func() time.Duration { return self.internalActionLongTimeout.Get() }, 0)

	self.useSnapshots = settings.NewBool(UseSnapshotsKey, DefaultUseSnapshots)
	self.maxSnapshotFileDownloads = settings.NewInt(MaxConcurrentSnapshotFileDownloadsKey,
		DefaultMaxConcurrentSnapshotFileDownloads, MinConcurrentSnapshotFileDownloads, MaxConcurrentSnapshotFileDownloads)
	self.maxSnapshotDownloadsPerNode = settings.NewInt(MaxConcurrentSnapshotFileDownloadsPerNodeKey,
		DefaultMaxConcurrentSnapshotFileDownloadsPerNode, MinConcurrentSnapshotFileDownloadsPerNode, MaxConcurrentSnapshotFileDownloadsPerNode)

	err := registry.Register(
		self.maxConcurrentFileChunks,
		self.maxConcurrentOperations,
		self.retryDelayStateSync,
		self.retryDelayNetwork,
		self.internalActionTimeout,
		self.internalActionRetryTimeout,
		self.internalActionLongTimeout,
		self.activityTimeout,
		self.maxBytesPerSec,
		self.useSnapshots,
		self.maxSnapshotFileDownloads,
		self.maxSnapshotDownloadsPerNode,
	)
	if err != nil {
		return nil, err
	}

	registry.Constrain(settings.AtLeast(self.maxSnapshotDownloadsPerNode, self.maxSnapshotFileDownloads))

	self.maxBytesPerSec.AddListenerF(func(init bool, old, new int64) {
		self.configureRateLimiter(new)
	})
	self.maxSnapshotDownloadsPerNode.AddListenerF(func(init bool, old, new int) {
		self.downloadPermits.setMaxPermits(new)
	})

	if err = registry.Init(snapshot); err != nil {
		return nil, errors.Wrap(err, "unable to initialize recovery settings")
	}

	self.registerMetrics(metricsRegistry)

	pfxlog.Logger().WithField("maxBytesPerSec", self.maxBytesPerSec.Get()).Debug("recovery settings initialized")

	return self, nil
}

func (self *Settings) registerMetrics(registry metrics.Registry) {
	for _, name := range []string{MetricSnapshotDownloadPermitsAvailable, MetricMaxBytesPerSec} {
		if existing := registry.GetGauge(name); existing != nil {
			existing.Dispose()
		}
	}

	registry.FuncGauge(MetricSnapshotDownloadPermitsAvailable, func() int64 {
		return int64(self.downloadPermits.available())
	})
	registry.FuncGauge(MetricMaxBytesPerSec, func() int64 {
		return self.maxBytesPerSec.Get()
	})
	self.fallbackMeter = registry.Meter(MetricSnapshotDownloadFallbacks)
}

// TryAcquireSnapshotDownloadPermits attempts to claim this recovery's batch
// of snapshot download permits. A nil result means the caller must fall back
// to recovering files from the source node; it is a soft degradation, not an
// error. A non-nil Permit must be released exactly once.
func (self *Settings) TryAcquireSnapshotDownloadPermits() *Permit {
	if !self.useSnapshots.Get() {
		return nil
	}

	permits := self.maxSnapshotFileDownloads.Get()
	if !self.downloadPermits.tryAcquire(permits) {
		self.fallbackMeter.Mark(1)
		self.permitWarn.Do(func() {
			pfxlog.Logger().
				WithField("requested", permits).
				WithField("perNodeLimit", self.maxSnapshotDownloadsPerNode.Get()).
				Warnf("unable to acquire permits to use snapshot files during recovery, "+
					"this recovery will recover index files from the source node. "+
					"Ensure snapshot files can be used during recovery by setting [%s] to be no greater than [%d]",
					MaxConcurrentSnapshotFileDownloadsKey, self.maxSnapshotDownloadsPerNode.Get())
		})
		return nil
	}

	return newPermit(self.downloadPermits, permits)
}

func (self *Settings) MaxBytesPerSec() int64 {
	return self.maxBytesPerSec.Get()
}

func (self *Settings) MaxConcurrentFileChunks() int {
	return self.maxConcurrentFileChunks.Get()
}

func (self *Settings) MaxConcurrentOperations() int {
	return self.maxConcurrentOperations.Get()
}

func (self *Settings) RetryDelayStateSync() time.Duration {
	return self.retryDelayStateSync.Get()
}

func (self *Settings) RetryDelayNetwork() time.Duration {
	return self.retryDelayNetwork.Get()
}

func (self *Settings) InternalActionTimeout() time.Duration {
	return self.internalActionTimeout.Get()
}

func (self *Settings) InternalActionRetryTimeout() time.Duration {
	return self.internalActionRetryTimeout.Get()
}

func (self *Settings) InternalActionLongTimeout() time.Duration {
	return self.internalActionLongTimeout.Get()
}

func (self *Settings) ActivityTimeout() time.Duration {
	return self.activityTimeout.Get()
}

func (self *Settings) UseSnapshotsDuringRecovery() bool {
	return self.useSnapshots.Get()
}

func (self *Settings) MaxConcurrentSnapshotFileDownloads() int {
	return self.maxSnapshotFileDownloads.Get()
}

func (self *Settings) ChunkSize() int64 {
	return self.chunkSize.Load()
}

// SetChunkSize overrides the transfer chunk size. Only settable for tests.
func (self *Settings) SetChunkSize(chunkSize int64) error {
	if chunkSize <= 0 {
		return errors.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	self.chunkSize.Store(chunkSize)
	return nil
}
