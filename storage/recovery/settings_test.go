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
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/driftdb/driftdb/common/settings"
	"github.com/driftdb/driftdb/common/sysinfo"
	"github.com/dustin/go-humanize"
	"github.com/openziti/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testEnv() sysinfo.Environment {
	return sysinfo.Environment{
		Roles:                []sysinfo.Role{sysinfo.RoleMaster},
		PhysicalMemory:       8 * humanize.GiByte,
		ContainerAwareMemory: true,
	}
}

func newTestSettings(t *testing.T, snapshot settings.Snapshot) (*Settings, *settings.Registry) {
	registry := settings.NewRegistry()
	recoverySettings, err := NewSettings(snapshot, registry, testEnv(), metrics.NewRegistry("test", nil))
	require.NoError(t, err)
	return recoverySettings, registry
}

func Test_PermitsNotGrantedWhenSnapshotUseDisabled(t *testing.T) {
	recoverySettings, _ := newTestSettings(t, settings.Snapshot{
		MaxConcurrentSnapshotFileDownloadsPerNodeKey: "5",
		UseSnapshotsKey:                              "false",
	})

	require.Nil(t, recoverySettings.TryAcquireSnapshotDownloadPermits())
}

func Test_GrantsPermitsUpToMaxPermits(t *testing.T) {
	req := require.New(t)

	recoverySettings, _ := newTestSettings(t, settings.Snapshot{
		MaxConcurrentSnapshotFileDownloadsPerNodeKey: "5",
	})

	permit := recoverySettings.TryAcquireSnapshotDownloadPermits()
	req.NotNil(permit)

	req.Nil(recoverySettings.TryAcquireSnapshotDownloadPermits())

	permit.Release()
	req.NotNil(recoverySettings.TryAcquireSnapshotDownloadPermits())
}

func Test_PermitPoolDynamicallyResized(t *testing.T) {
	req := require.New(t)

	recoverySettings, registry := newTestSettings(t, settings.Snapshot{
		MaxConcurrentSnapshotFileDownloadsPerNodeKey: "5",
	})

	permit := recoverySettings.TryAcquireSnapshotDownloadPermits()
	req.NotNil(permit)
	req.Nil(recoverySettings.TryAcquireSnapshotDownloadPermits())

	req.NoError(registry.Apply(map[string]string{
		MaxConcurrentSnapshotFileDownloadsPerNodeKey: "10",
	}))

	second := recoverySettings.TryAcquireSnapshotDownloadPermits()
	req.NotNil(second)
	req.Nil(recoverySettings.TryAcquireSnapshotDownloadPermits())

	// shrinking below the outstanding count doesn't revoke anything
	req.NoError(registry.Apply(map[string]string{
		MaxConcurrentSnapshotFileDownloadsPerNodeKey: "5",
	}))
	req.Nil(recoverySettings.TryAcquireSnapshotDownloadPermits())

	permit.Release()
	second.Release()
	req.NotNil(recoverySettings.TryAcquireSnapshotDownloadPermits())
}

func Test_PerNodePermitsValidatedAgainstBatchSize(t *testing.T) {
	req := require.New(t)

	registry := settings.NewRegistry()
	_, err := NewSettings(settings.Snapshot{
		MaxConcurrentSnapshotFileDownloadsKey:        "10",
		MaxConcurrentSnapshotFileDownloadsPerNodeKey: "5",
	}, registry, testEnv(), metrics.NewRegistry("test", nil))

	req.Error(err)
	req.ErrorContains(err, "["+MaxConcurrentSnapshotFileDownloadsPerNodeKey+"]=5 is less than ["+MaxConcurrentSnapshotFileDownloadsKey+"]=10")

	recoverySettings, liveRegistry := newTestSettings(t, settings.Snapshot{
		MaxConcurrentSnapshotFileDownloadsKey:        "5",
		MaxConcurrentSnapshotFileDownloadsPerNodeKey: "10",
	})

	err = liveRegistry.Apply(map[string]string{MaxConcurrentSnapshotFileDownloadsKey: "15"})
	req.Error(err)
	req.Equal(5, recoverySettings.MaxConcurrentSnapshotFileDownloads())

	err = liveRegistry.Apply(map[string]string{MaxConcurrentSnapshotFileDownloadsPerNodeKey: "4"})
	req.Error(err)

	// the prior pool size is still in effect
	permit := recoverySettings.TryAcquireSnapshotDownloadPermits()
	req.NotNil(permit)
	second := recoverySettings.TryAcquireSnapshotDownloadPermits()
	req.NotNil(second)
	permit.Release()
	second.Release()
}

func Test_RateLimiterLifecycle(t *testing.T) {
	req := require.New(t)

	recoverySettings, registry := newTestSettings(t, nil)

	limiter := recoverySettings.RateLimiter()
	req.NotNil(limiter)
	req.Equal(rate.Limit(DefaultMaxBytesPerSec), limiter.Limit())
	req.Equal(DefaultMaxBytesPerSec, recoverySettings.MaxBytesPerSec())

	// zero disables throttling entirely
	req.NoError(registry.Apply(map[string]string{MaxBytesPerSecKey: "0"}))
	req.Nil(recoverySettings.RateLimiter())

	req.NoError(registry.Apply(map[string]string{MaxBytesPerSecKey: "90mib"}))
	limiter = recoverySettings.RateLimiter()
	req.NotNil(limiter)
	req.Equal(rate.Limit(90*humanize.MiByte), limiter.Limit())

	// a rate change while enabled updates the limiter in place
	req.NoError(registry.Apply(map[string]string{MaxBytesPerSecKey: "125mib"}))
	req.Same(limiter, recoverySettings.RateLimiter())
	req.Equal(rate.Limit(125*humanize.MiByte), limiter.Limit())
}

func Test_ExplicitRateOverridesRecommendation(t *testing.T) {
	req := require.New(t)

	registry := settings.NewRegistry()
	env := sysinfo.Environment{
		Roles:                []sysinfo.Role{sysinfo.RoleDataCold},
		PhysicalMemory:       64 * humanize.GiByte,
		ContainerAwareMemory: true,
	}
	recoverySettings, err := NewSettings(nil, registry, env, metrics.NewRegistry("test", nil))
	req.NoError(err)
	req.Equal(int64(250*humanize.MiByte), recoverySettings.MaxBytesPerSec())

	registry = settings.NewRegistry()
	recoverySettings, err = NewSettings(settings.Snapshot{MaxBytesPerSecKey: "10mib"}, registry, env, metrics.NewRegistry("test", nil))
	req.NoError(err)
	req.Equal(int64(10*humanize.MiByte), recoverySettings.MaxBytesPerSec())
}

func Test_TimeoutDefaultDerivation(t *testing.T) {
	req := require.New(t)

	recoverySettings, _ := newTestSettings(t, nil)
	req.Equal(15*time.Minute, recoverySettings.InternalActionTimeout())
	req.Equal(30*time.Minute, recoverySettings.InternalActionLongTimeout())
	req.Equal(30*time.Minute, recoverySettings.ActivityTimeout())

	recoverySettings, _ = newTestSettings(t, settings.Snapshot{
		InternalActionTimeoutKey: "1m",
	})
	req.Equal(2*time.Minute, recoverySettings.InternalActionLongTimeout())
	req.Equal(2*time.Minute, recoverySettings.ActivityTimeout())

	recoverySettings, _ = newTestSettings(t, settings.Snapshot{
		InternalActionLongTimeoutKey: "5m",
	})
	req.Equal(15*time.Minute, recoverySettings.InternalActionTimeout())
	req.Equal(5*time.Minute, recoverySettings.InternalActionLongTimeout())
	req.Equal(5*time.Minute, recoverySettings.ActivityTimeout())
}

func Test_TimeoutsNotRederivedAfterInit(t *testing.T) {
	req := require.New(t)

	recoverySettings, registry := newTestSettings(t, nil)
	req.Equal(30*time.Minute, recoverySettings.InternalActionLongTimeout())

	req.NoError(registry.Apply(map[string]string{InternalActionTimeoutKey: "1m"}))
	req.Equal(time.Minute, recoverySettings.InternalActionTimeout())
	req.Equal(30*time.Minute, recoverySettings.InternalActionLongTimeout())
	req.Equal(30*time.Minute, recoverySettings.ActivityTimeout())
}

func Test_RetryDelaysAndConcurrencyCeilings(t *testing.T) {
	req := require.New(t)

	recoverySettings, registry := newTestSettings(t, nil)
	req.Equal(500*time.Millisecond, recoverySettings.RetryDelayStateSync())
	req.Equal(5*time.Second, recoverySettings.RetryDelayNetwork())
	req.Equal(time.Minute, recoverySettings.InternalActionRetryTimeout())
	req.Equal(2, recoverySettings.MaxConcurrentFileChunks())
	req.Equal(1, recoverySettings.MaxConcurrentOperations())
	req.True(recoverySettings.UseSnapshotsDuringRecovery())

	req.NoError(registry.Apply(map[string]string{
		MaxConcurrentFileChunksKey: "8",
		MaxConcurrentOperationsKey: "4",
		RetryDelayNetworkKey:       "10s",
	}))
	req.Equal(8, recoverySettings.MaxConcurrentFileChunks())
	req.Equal(4, recoverySettings.MaxConcurrentOperations())
	req.Equal(10*time.Second, recoverySettings.RetryDelayNetwork())

	err := registry.Apply(map[string]string{MaxConcurrentFileChunksKey: "9"})
	req.Error(err)
	req.Equal(8, recoverySettings.MaxConcurrentFileChunks())
}

func Test_ChunkSize(t *testing.T) {
	req := require.New(t)

	recoverySettings, _ := newTestSettings(t, nil)
	req.Equal(int64(512*humanize.KiByte), recoverySettings.ChunkSize())

	req.Error(recoverySettings.SetChunkSize(0))
	req.Error(recoverySettings.SetChunkSize(-1))
	req.NoError(recoverySettings.SetChunkSize(humanize.MiByte))
	req.Equal(int64(humanize.MiByte), recoverySettings.ChunkSize())
}

func Test_ConcurrentAcquireReleaseResize(t *testing.T) {
	recoverySettings, registry := newTestSettings(t, settings.Snapshot{
		MaxConcurrentSnapshotFileDownloadsKey:        "1",
		MaxConcurrentSnapshotFileDownloadsPerNodeKey: "10",
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if permit := recoverySettings.TryAcquireSnapshotDownloadPermits(); permit != nil {
					permit.Release()
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			size := 5 + (j % 20)
			err := registry.Apply(map[string]string{
				MaxConcurrentSnapshotFileDownloadsPerNodeKey: strconv.Itoa(size),
			})
			assert.NoError(t, err)
		}
	}()

	wg.Wait()

	// with everything released, the final pool size is fully available
	for i := 0; i < 4; i++ {
		permit := recoverySettings.TryAcquireSnapshotDownloadPermits()
		require.NotNil(t, permit)
		defer permit.Release()
	}
}
