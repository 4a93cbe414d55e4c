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

package sysinfo

import (
	"github.com/michaelquigley/pfxlog"
	"github.com/shirou/gopsutil/v3/mem"
)

// Environment captures the facts about a node that sizing policies key off
// of. It is established once at startup.
type Environment struct {
	Roles []Role

	// PhysicalMemory is the total physical memory available to the process,
	// in bytes.
	PhysicalMemory uint64

	// ContainerAwareMemory is true when PhysicalMemory comes from a runtime
	// that accounts for container memory limits. When false the figure can't
	// be trusted for sizing decisions.
	ContainerAwareMemory bool
}

// Probe builds the environment for this node. The memory figure is the host
// total; cgroup memory limits are not consulted, so inside a memory-limited
// container it overstates what the process can use. A failed probe leaves
// PhysicalMemory at zero and marks the figure untrusted.
func Probe(roles []Role) Environment {
	env := Environment{
		Roles: roles,
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		pfxlog.Logger().WithError(err).Warn("unable to probe physical memory, memory-based sizing disabled")
		return env
	}

	env.PhysicalMemory = vm.Total
	env.ContainerAwareMemory = vm.Total > 0
	return env
}
