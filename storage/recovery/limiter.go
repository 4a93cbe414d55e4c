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
	"github.com/dustin/go-humanize"
	"github.com/michaelquigley/pfxlog"
	"golang.org/x/time/rate"
)

// configureRateLimiter applies a new rate ceiling. A ceiling of zero or less
// disables throttling by discarding the limiter; a positive ceiling updates
// the existing limiter in place so waiters keep their token state, or
// creates one if throttling was previously disabled.
func (self *Settings) configureRateLimiter(bytesPerSec int64) {
	if bytesPerSec <= 0 {
		self.limiter.Store(nil)
		return
	}

	limit := rate.Limit(bytesPerSec)
	burst := rateLimiterBurst(bytesPerSec)

	if limiter := self.limiter.Load(); limiter != nil {
		limiter.SetLimit(limit)
		limiter.SetBurst(burst)
		return
	}

	self.limiter.Store(rate.NewLimiter(limit, burst))
	pfxlog.Logger().WithField("maxBytesPerSec", humanize.IBytes(uint64(bytesPerSec))).
		Debug("recovery rate limiting enabled")
}

// burst is sized to one second of traffic, capped to keep it in int range
func rateLimiterBurst(bytesPerSec int64) int {
	const maxBurst = 1 << 30
	if bytesPerSec > maxBurst {
		return maxBurst
	}
	return int(bytesPerSec)
}

// RateLimiter returns the current limiter for the transfer engine to gate
// byte acquisition on, or nil when throttling is disabled. The engine calls
// WaitN itself; this core only owns configuration.
func (self *Settings) RateLimiter() *rate.Limiter {
	return self.limiter.Load()
}
