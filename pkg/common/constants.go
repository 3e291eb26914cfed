/*
 * MIT License
 *
 * Copyright (c) 2023 EASL and the vHive community
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package common

import "math"

const (
	NanosecondsPerMillisecond  = 1_000_000.0
	MicrosecondsPerMillisecond = 1_000.0
)

// UndefinedCV marks a coefficient of variation that cannot be computed
// (zero or near-zero mean). Consumers must treat it as "unknown", not as a
// very unstable measurement.
const UndefinedCV = math.MaxFloat64

const (
	// MinSamplesForAnalysis is the smallest sequence any statistical helper
	// produces a non-degenerate answer for.
	MinSamplesForAnalysis = 2

	// StopCheckInterval is how many measurement samples the driver collects
	// between stopping-criteria evaluations. Hard caps (sample count, wall
	// clock) are still enforced on every iteration.
	StopCheckInterval = 5
)

type ExperimentPhase int

const (
	WarmupPhase      ExperimentPhase = 1
	MeasurementPhase ExperimentPhase = 2
)

func (p ExperimentPhase) String() string {
	switch p {
	case WarmupPhase:
		return "warmup"
	case MeasurementPhase:
		return "measurement"
	default:
		return "unknown"
	}
}

const (
	PresetDefault       = "default"
	PresetHighPrecision = "high-precision"
	PresetQuick         = "quick"
)

// Measurement modes accepted by the workload configuration.
const (
	ModeSerialize = "serialize"
	ModeRoundTrip = "roundtrip"
)
