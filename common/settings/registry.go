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

package settings

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
)

// Registry owns a set of typed settings and is the single mutation point for
// all of them. Reads go straight to the settings and never contend with
// writers; Init and Apply serialize on the registry lock so that cross-setting
// constraints always see a consistent view and a rejected change mutates
// nothing.
type Registry struct {
	lock        sync.Mutex
	ordered     []Setting
	index       cmap.ConcurrentMap[string, Setting]
	constraints []Constraint
	initialized bool
}

func NewRegistry() *Registry {
	return &Registry{
		index: cmap.New[Setting](),
	}
}

// Register adds a setting. Registration order fixes the order default rules
// are evaluated in, so settings whose defaults derive from other settings must
// be registered after their dependencies.
func (self *Registry) Register(settings ...Setting) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.initialized {
		return errors.New("registry already initialized")
	}
	for _, s := range settings {
		if !self.index.SetIfAbsent(s.Key(), s) {
			return errors.Errorf("duplicate setting [%s]", s.Key())
		}
		self.ordered = append(self.ordered, s)
	}
	return nil
}

// Constrain adds a cross-setting constraint, checked whenever any setting
// changes.
func (self *Registry) Constrain(constraints ...Constraint) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.constraints = append(self.constraints, constraints...)
}

// Init resolves every registered setting exactly once, taking the raw value
// from the snapshot when present and the setting's default rule otherwise.
// Settings are committed in registration order, so a default rule may read
// the value of any earlier-registered setting. Constraint violations fail
// initialization; the registry is not usable afterwards.
func (self *Registry) Init(snapshot Snapshot) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.initialized {
		return errors.New("registry already initialized")
	}

	for key := range snapshot {
		if !self.index.Has(key) {
			return errors.Errorf("unknown setting [%s]", key)
		}
	}

	for _, s := range self.ordered {
		var change *stagedChange
		if raw, found := snapshot[s.Key()]; found {
			var err error
			if change, err = s.stage(raw); err != nil {
				return err
			}
		} else {
			change = s.resolveDefault()
		}
		change.commit(true)
	}

	for _, c := range self.constraints {
		if err := c.Check(func(string) (any, bool) { return nil, false }); err != nil {
			return err
		}
	}

	self.initialized = true
	return nil
}

// Apply stages every changed value, checks constraints against the staged
// view, then commits and notifies listeners. Any parse, bounds or constraint
// failure rejects the whole change set and leaves every prior value in
// effect.
func (self *Registry) Apply(changes map[string]string) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if !self.initialized {
		return errors.New("registry not initialized")
	}

	staged := make(map[string]*stagedChange, len(changes))
	for key, raw := range changes {
		s, found := self.index.Get(key)
		if !found {
			return errors.Errorf("unknown setting [%s]", key)
		}
		change, err := s.stage(raw)
		if err != nil {
			return err
		}
		staged[key] = change
	}

	stagedView := func(key string) (any, bool) {
		if change, found := staged[key]; found {
			return change.value, true
		}
		return nil, false
	}

	for _, c := range self.constraints {
		if err := c.Check(stagedView); err != nil {
			return err
		}
	}

	for _, s := range self.ordered {
		if change, found := staged[s.Key()]; found {
			change.commit(false)
		}
	}
	return nil
}

// A Constraint validates a relationship between settings. Check receives a
// view of values staged for commit; settings not present in the view hold
// their current value.
type Constraint interface {
	Check(staged func(key string) (any, bool)) error
}

// AtLeast requires setting a to be >= setting b whenever either changes.
func AtLeast(a, b *Int) Constraint {
	return atLeastConstraint{a: a, b: b}
}

type atLeastConstraint struct {
	a *Int
	b *Int
}

func (self atLeastConstraint) Check(staged func(key string) (any, bool)) error {
	av := stagedOrCurrent(self.a, staged)
	bv := stagedOrCurrent(self.b, staged)
	if av < bv {
		return errors.Errorf("[%s]=%d is less than [%s]=%d", self.a.Key(), av, self.b.Key(), bv)
	}
	return nil
}

func stagedOrCurrent(s *Int, staged func(key string) (any, bool)) int {
	if v, found := staged(s.Key()); found {
		return v.(int)
	}
	return s.Get()
}
