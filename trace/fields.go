/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Package trace implements the structured-logging layer (§4.14 access
// log, §6 EventLevel contract): a logrus-backed Logger plus adapters for
// components that expect a different logging facade (hclog, jww).
package trace

import "github.com/sirupsen/logrus"

// Fields is a set of structured key/value pairs attached to a log
// entry (request id, method, path, status, latency, ...).
type Fields map[string]interface{}

// NewFields builds an empty Fields set.
func NewFields() Fields {
	return make(Fields)
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Add returns a copy of f with key set to val.
func (f Fields) Add(key string, val interface{}) Fields {
	out := f.clone()
	out[key] = val
	return out
}

// Merge returns a copy of f with every key of other applied over it;
// when other is empty, f itself is returned.
func (f Fields) Merge(other Fields) Fields {
	if len(other) == 0 {
		return f
	}

	out := f.clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Logrus converts f to logrus.Fields for attaching to a logrus entry.
func (f Fields) Logrus() logrus.Fields {
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// RequestFields builds the access-log field set for one completed
// request, per SPEC_FULL.md §3's Rx/Tx Fields() accessor.
func RequestFields(requestID, method, path string, status int, latencyMS int64) Fields {
	return Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
		"latency_ms": latencyMS,
	}
}
