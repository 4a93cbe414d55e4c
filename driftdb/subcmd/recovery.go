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

package subcmd

import (
	"os"

	"github.com/driftdb/driftdb/common/settings"
	"github.com/driftdb/driftdb/common/sysinfo"
	"github.com/driftdb/driftdb/storage/recovery"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/openziti/metrics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	recoveryDefaultsCmd.Flags().StringSliceVar(&defaultsRoles, "roles", nil, "Node roles to evaluate (e.g. data_cold,data_frozen)")
	recoveryDefaultsCmd.Flags().StringVar(&defaultsMemory, "memory", "", "Physical memory to evaluate (e.g. 16gib). Defaults to this node's probe")
	recoveryDefaultsCmd.Flags().BoolVar(&defaultsLegacyMemory, "legacy-memory", false, "Treat the memory figure as untrusted (pre container-aware runtime)")
	recoveryCmd.AddCommand(recoveryDefaultsCmd)
}

var defaultsRoles []string
var defaultsMemory string
var defaultsLegacyMemory bool

var recoveryDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Show the effective recovery governor defaults for a node",
	Long: "Resolves every recovery tunable the way a node with the given roles and memory would at startup, " +
		"so the throughput policy can be previewed before changing node roles or instance sizes.",
	RunE: renderRecoveryDefaults,
}

func renderRecoveryDefaults(cmd *cobra.Command, args []string) error {
	roles, err := sysinfo.ParseRoles(defaultsRoles)
	if err != nil {
		return err
	}

	env := sysinfo.Probe(roles)
	if defaultsMemory != "" {
		memory, err := humanize.ParseBytes(defaultsMemory)
		if err != nil {
			return errors.Wrapf(err, "invalid memory size [%s]", defaultsMemory)
		}
		env.PhysicalMemory = memory
		env.ContainerAwareMemory = memory > 0
	}
	if defaultsLegacyMemory {
		env.ContainerAwareMemory = false
	}

	registry := settings.NewRegistry()
	recoverySettings, err := recovery.NewSettings(nil, registry, env, metrics.NewRegistry("driftdb-cli", nil))
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Setting", "Effective Value"})
	t.AppendRow(table.Row{recovery.MaxBytesPerSecKey, humanize.IBytes(uint64(recoverySettings.MaxBytesPerSec())) + "/s"})
	t.AppendRow(table.Row{recovery.MaxConcurrentFileChunksKey, recoverySettings.MaxConcurrentFileChunks()})
	t.AppendRow(table.Row{recovery.MaxConcurrentOperationsKey, recoverySettings.MaxConcurrentOperations()})
	t.AppendRow(table.Row{recovery.RetryDelayStateSyncKey, recoverySettings.RetryDelayStateSync()})
	t.AppendRow(table.Row{recovery.RetryDelayNetworkKey, recoverySettings.RetryDelayNetwork()})
	t.AppendRow(table.Row{recovery.InternalActionTimeoutKey, recoverySettings.InternalActionTimeout()})
	t.AppendRow(table.Row{recovery.InternalActionRetryTimeoutKey, recoverySettings.InternalActionRetryTimeout()})
	t.AppendRow(table.Row{recovery.InternalActionLongTimeoutKey, recoverySettings.InternalActionLongTimeout()})
	t.AppendRow(table.Row{recovery.ActivityTimeoutKey, recoverySettings.ActivityTimeout()})
	t.AppendRow(table.Row{recovery.UseSnapshotsKey, recoverySettings.UseSnapshotsDuringRecovery()})
	t.AppendRow(table.Row{recovery.MaxConcurrentSnapshotFileDownloadsKey, recoverySettings.MaxConcurrentSnapshotFileDownloads()})
	t.Render()

	return nil
}
