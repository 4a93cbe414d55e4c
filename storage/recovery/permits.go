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
	"sync"
)

// adjustableSemaphore is a counting permit pool whose capacity can change
// while permits are outstanding. tryAcquire never blocks and never queues;
// shrinking below the outstanding count only reduces what future acquires can
// get, it never revokes anything already granted.
type adjustableSemaphore struct {
	lock        sync.Mutex
	maxPermits  int
	outstanding int
}

func newAdjustableSemaphore(maxPermits int) *adjustableSemaphore {
	return &adjustableSemaphore{maxPermits: maxPermits}
}

func (self *adjustableSemaphore) tryAcquire(permits int) bool {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.outstanding+permits > self.maxPermits {
		return false
	}
	self.outstanding += permits
	return true
}

func (self *adjustableSemaphore) release(permits int) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.outstanding -= permits
}

func (self *adjustableSemaphore) setMaxPermits(maxPermits int) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.maxPermits = maxPermits
}

func (self *adjustableSemaphore) available() int {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.outstanding >= self.maxPermits {
		return 0
	}
	return self.maxPermits - self.outstanding
}

// A Permit holds a batch of snapshot download permits. Release returns the
// batch exactly once; callers must release on every exit path, typically via
// defer.
type Permit struct {
	sem         *adjustableSemaphore
	permits     int
	releaseOnce sync.Once
}

func newPermit(sem *adjustableSemaphore, permits int) *Permit {
	return &Permit{sem: sem, permits: permits}
}

func (self *Permit) Release() {
	self.releaseOnce.Do(func() {
		self.sem.release(self.permits)
	})
}
