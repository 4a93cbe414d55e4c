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
	"time"

	"github.com/dustin/go-humanize"
)

const (
	MaxBytesPerSecKey                            = "storage.recovery.max_bytes_per_sec"
	MaxConcurrentFileChunksKey                   = "storage.recovery.max_concurrent_file_chunks"
	MaxConcurrentOperationsKey                   = "storage.recovery.max_concurrent_operations"
	RetryDelayStateSyncKey                       = "storage.recovery.retry_delay_state_sync"
	RetryDelayNetworkKey                         = "storage.recovery.retry_delay_network"
	InternalActionTimeoutKey                     = "storage.recovery.internal_action_timeout"
	InternalActionRetryTimeoutKey                = "storage.recovery.internal_action_retry_timeout"
	InternalActionLongTimeoutKey                 = "storage.recovery.internal_action_long_timeout"
	ActivityTimeoutKey                           = "storage.recovery.activity_timeout"
	UseSnapshotsKey                              = "storage.recovery.use_snapshots"
	MaxConcurrentSnapshotFileDownloadsKey        = "storage.recovery.max_concurrent_snapshot_file_downloads"
	MaxConcurrentSnapshotFileDownloadsPerNodeKey = "storage.recovery.max_concurrent_snapshot_file_downloads_per_node"
)

const (
	DefaultMaxConcurrentFileChunks = 2
	MinConcurrentFileChunks        = 1
	MaxConcurrentFileChunks        = 8

	DefaultMaxConcurrentOperations = 1
	MinConcurrentOperations        = 1
	MaxConcurrentOperations        = 4

	DefaultRetryDelayStateSync        = 500 * time.Millisecond
	DefaultRetryDelayNetwork          = 5 * time.Second
	DefaultInternalActionTimeout      = 15 * time.Minute
	DefaultInternalActionRetryTimeout = time.Minute

	DefaultUseSnapshots = true

	DefaultMaxConcurrentSnapshotFileDownloads = 5
	MinConcurrentSnapshotFileDownloads        = 1
	MaxConcurrentSnapshotFileDownloads        = 20

	DefaultMaxConcurrentSnapshotFileDownloadsPerNode = 25
	MinConcurrentSnapshotFileDownloadsPerNode        = 1
	MaxConcurrentSnapshotFileDownloadsPerNode        = 25

	DefaultChunkSize int64 = 512 * humanize.KiByte

	// DefaultMaxBytesPerSec applies to any node that isn't a dedicated
	// cold/frozen data node with a trustworthy memory figure.
	DefaultMaxBytesPerSec int64 = 40 * humanize.MiByte
)

// Dedicated cold/frozen tier nodes are assumed I/O-bound rather than
// CPU-bound, with instance memory as a proxy for available disk and network
// capacity.
const (
	memTier1       = 4 * humanize.GiByte
	memTier2       = 8 * humanize.GiByte
	memTier3       = 16 * humanize.GiByte
	memTier4       = 32 * humanize.GiByte
	memTier1Rate   = 40 * humanize.MiByte
	memTier2Rate   = 60 * humanize.MiByte
	memTier3Rate   = 90 * humanize.MiByte
	memTier4Rate   = 125 * humanize.MiByte
	memTierTopRate = 250 * humanize.MiByte
)
