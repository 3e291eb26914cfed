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

package workload

import (
	"errors"
	"fmt"
	"time"

	"github.com/eth-easl/bencher/pkg/common"
)

// SerializeSample returns a measurement function that serializes one
// payload per call, cycling through the generated set, and reports the
// elapsed wall time in milliseconds.
func SerializeSample(codec Codec, payloads []*Payload) func() (float64, error) {
	if len(payloads) == 0 {
		return noPayloads
	}

	index := 0
	return func() (float64, error) {
		p := payloads[index%len(payloads)]
		index++

		start := time.Now()
		if _, err := codec.Marshal(p); err != nil {
			return 0.0, fmt.Errorf("%s marshal: %w", codec.Name(), err)
		}

		return float64(time.Since(start)) / common.NanosecondsPerMillisecond, nil
	}
}

// RoundTripSample returns a measurement function that serializes and then
// deserializes one payload per call, timing the full round trip.
func RoundTripSample(codec Codec, payloads []*Payload) func() (float64, error) {
	if len(payloads) == 0 {
		return noPayloads
	}

	index := 0
	return func() (float64, error) {
		p := payloads[index%len(payloads)]
		index++

		start := time.Now()
		data, err := codec.Marshal(p)
		if err != nil {
			return 0.0, fmt.Errorf("%s marshal: %w", codec.Name(), err)
		}
		var decoded Payload
		if err := codec.Unmarshal(data, &decoded); err != nil {
			return 0.0, fmt.Errorf("%s unmarshal: %w", codec.Name(), err)
		}

		return float64(time.Since(start)) / common.NanosecondsPerMillisecond, nil
	}
}

// BatchSerializeSample returns a batch measurement function that serializes
// every payload once per call and reports one latency per payload. It pairs
// with warmup.Strategy.ExecuteBatch.
func BatchSerializeSample(codec Codec, payloads []*Payload) func() ([]float64, error) {
	return func() ([]float64, error) {
		latencies := make([]float64, 0, len(payloads))
		for _, p := range payloads {
			start := time.Now()
			if _, err := codec.Marshal(p); err != nil {
				return nil, fmt.Errorf("%s marshal: %w", codec.Name(), err)
			}
			latencies = append(latencies, float64(time.Since(start))/common.NanosecondsPerMillisecond)
		}

		return latencies, nil
	}
}

func noPayloads() (float64, error) {
	return 0.0, errors.New("no payloads generated")
}
