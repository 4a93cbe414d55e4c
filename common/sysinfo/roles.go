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
	"github.com/pkg/errors"
)

// Role is a function a node is assigned within the cluster.
type Role string

const (
	RoleMaster     Role = "master"
	RoleData       Role = "data"
	RoleDataHot    Role = "data_hot"
	RoleDataWarm   Role = "data_warm"
	RoleDataCold   Role = "data_cold"
	RoleDataFrozen Role = "data_frozen"
	RoleIngest     Role = "ingest"
	RoleTransform  Role = "transform"
)

var allRoles = map[Role]struct{}{
	RoleMaster:     {},
	RoleData:       {},
	RoleDataHot:    {},
	RoleDataWarm:   {},
	RoleDataCold:   {},
	RoleDataFrozen: {},
	RoleIngest:     {},
	RoleTransform:  {},
}

// CanContainData reports whether shards can be allocated to a node holding
// this role.
func (self Role) CanContainData() bool {
	switch self {
	case RoleData, RoleDataHot, RoleDataWarm, RoleDataCold, RoleDataFrozen:
		return true
	}
	return false
}

func ParseRoles(names []string) ([]Role, error) {
	var roles []Role
	for _, name := range names {
		role := Role(name)
		if _, found := allRoles[role]; !found {
			return nil, errors.Errorf("unknown node role [%s]", name)
		}
		roles = append(roles, role)
	}
	return roles, nil
}
