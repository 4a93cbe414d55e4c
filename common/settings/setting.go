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
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openziti/foundation/v2/concurrenz"
	"github.com/pkg/errors"
)

// A Snapshot holds the raw values a node was started with. Keys not present
// fall back to each setting's default rule.
type Snapshot map[string]string

type Listener[T any] interface {
	NotifyChanged(init bool, old T, new T)
}

type ListenerFunc[T any] func(init bool, old T, new T)

func (f ListenerFunc[T]) NotifyChanged(init bool, old T, new T) {
	f(init, old, new)
}

// Setting is the registry's view of a typed setting. Implementations are the
// typed descriptors below; external packages interact with those directly.
type Setting interface {
	Key() string

	// stage parses and bounds-checks a raw value without mutating the
	// setting. The returned commit stores the value and notifies listeners.
	stage(raw string) (*stagedChange, error)

	// resolveDefault evaluates the setting's default rule. Called once, at
	// registry init time, when the snapshot carries no explicit value.
	resolveDefault() *stagedChange
}

type stagedChange struct {
	key    string
	value  any
	commit func(init bool)
}

type base[T comparable] struct {
	key         string
	initialized atomic.Bool
	value       concurrenz.AtomicValue[T]
	listeners   concurrenz.CopyOnWriteSlice[Listener[T]]
}

func (self *base[T]) Key() string {
	return self.key
}

// Get returns the current value. Lock-free; concurrent writers never produce
// a torn read.
func (self *base[T]) Get() T {
	return self.value.Load()
}

func (self *base[T]) AddListener(listener Listener[T]) {
	self.listeners.Append(listener)
	if self.initialized.Load() {
		listener.NotifyChanged(true, self.Get(), self.Get())
	}
}

func (self *base[T]) AddListenerF(f func(init bool, old T, new T)) {
	self.AddListener(ListenerFunc[T](f))
}

func (self *base[T]) staged(value T) *stagedChange {
	return &stagedChange{
		key:   self.key,
		value: value,
		commit: func(init bool) {
			self.store(init, value)
		},
	}
}

func (self *base[T]) store(init bool, value T) {
	old := self.value.Swap(value)
	self.initialized.Store(true)
	if init || old != value {
		for _, l := range self.listeners.Value() {
			l.NotifyChanged(init, old, value)
		}
	}
}

// Int is a bounded integer setting.
type Int struct {
	base[int]
	def      func() int
	min, max int
}

func NewInt(key string, def int, min, max int) *Int {
	return NewDerivedInt(key, func() int { return def }, min, max)
}

// NewDerivedInt creates an integer setting whose default is computed when the
// registry initializes, after every earlier-registered setting has a value.
func NewDerivedInt(key string, def func() int, min, max int) *Int {
	result := &Int{def: def, min: min, max: max}
	result.key = key
	return result
}

func (self *Int) stage(raw string) (*stagedChange, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value [%s] for [%s], expected integer", raw, self.key)
	}
	if value < self.min || value > self.max {
		return nil, errors.Errorf("invalid value [%d] for [%s], expected integer between %d and %d", value, self.key, self.min, self.max)
	}
	return self.staged(value), nil
}

func (self *Int) resolveDefault() *stagedChange {
	return self.staged(self.def())
}

// Bool is a boolean setting.
type Bool struct {
	base[bool]
	def bool
}

func NewBool(key string, def bool) *Bool {
	result := &Bool{def: def}
	result.key = key
	return result
}

func (self *Bool) stage(raw string) (*stagedChange, error) {
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value [%s] for [%s], expected boolean", raw, self.key)
	}
	return self.staged(value), nil
}

func (self *Bool) resolveDefault() *stagedChange {
	return self.staged(self.def)
}

// Duration is a duration setting with an inclusive minimum.
type Duration struct {
	base[time.Duration]
	def func() time.Duration
	min time.Duration
}

func NewDuration(key string, def func() time.Duration, min time.Duration) *Duration {
	result := &Duration{def: def, min: min}
	result.key = key
	return result
}

func (self *Duration) stage(raw string) (*stagedChange, error) {
	value, err := time.ParseDuration(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value [%s] for [%s], expected duration", raw, self.key)
	}
	if value < self.min {
		return nil, errors.Errorf("invalid value [%s] for [%s], expected duration of at least %s", value, self.key, self.min)
	}
	return self.staged(value), nil
}

func (self *Duration) resolveDefault() *stagedChange {
	return self.staged(self.def())
}

// ByteSize is a non-negative byte-size setting. Raw values accept the usual
// size suffixes ("40mib", "512kb").
type ByteSize struct {
	base[int64]
	def func() int64
}

func NewByteSize(key string, def func() int64) *ByteSize {
	result := &ByteSize{def: def}
	result.key = key
	return result
}

func (self *ByteSize) stage(raw string) (*stagedChange, error) {
	value, err := humanize.ParseBytes(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value [%s] for [%s], expected byte size", raw, self.key)
	}
	return self.staged(int64(value)), nil
}

func (self *ByteSize) resolveDefault() *stagedChange {
	return self.staged(self.def())
}
