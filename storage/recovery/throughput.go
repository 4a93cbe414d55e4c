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
	"github.com/driftdb/driftdb/common/sysinfo"
)

// recommendedMaxBytesPerSec maps the node environment to a default recovery
// rate ceiling. Only dedicated cold and/or frozen data nodes get a rate
// scaled to the instance size; everything else gets the conservative global
// default so nodes also serving hot traffic aren't over-throttled.
func recommendedMaxBytesPerSec(env sysinfo.Environment) int64 {
	var dataRoles []sysinfo.Role
	for _, role := range env.Roles {
		if role.CanContainData() {
			dataRoles = append(dataRoles, role)
		}
	}

	// non-data nodes don't recover shards, the value doesn't matter
	if len(dataRoles) == 0 {
		return DefaultMaxBytesPerSec
	}

	for _, role := range dataRoles {
		if role != sysinfo.RoleDataCold && role != sysinfo.RoleDataFrozen {
			return DefaultMaxBytesPerSec
		}
	}

	if !env.ContainerAwareMemory {
		return DefaultMaxBytesPerSec
	}

	memory := int64(env.PhysicalMemory)
	switch {
	case memory <= memTier1:
		return memTier1Rate
	case memory <= memTier2:
		return memTier2Rate
	case memory <= memTier3:
		return memTier3Rate
	case memory <= memTier4:
		return memTier4Rate
	default:
		return memTierTopRate
	}
}
