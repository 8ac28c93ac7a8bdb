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

package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSet exports the same counters the threshold engine tracks
// in-process as Prometheus collectors (SPEC_FULL.md §4.14 EXPANSION):
// a GaugeVec per-address (labeled by address and counter name) and a
// GaugeVec for the global counters, plus a ban-count counter. A nil
// Registerer (passed to New) disables export entirely rather than
// panicking, so this package works standalone in tests.
type metricsSet struct {
	addressGauge *prometheus.GaugeVec
	globalGauge  *prometheus.GaugeVec
	bans         *prometheus.CounterVec
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		addressGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "httpcore",
			Subsystem: "monitor",
			Name:      "address_counter",
			Help:      "Per-address monitor counter value.",
		}, []string{"address", "counter"}),
		globalGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "httpcore",
			Subsystem: "monitor",
			Name:      "global_counter",
			Help:      "Global monitor counter value.",
		}, []string{"counter"}),
		bans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpcore",
			Subsystem: "monitor",
			Name:      "bans_total",
			Help:      "Total number of ban remedies fired, by address.",
		}, []string{"address"}),
	}

	if reg != nil {
		reg.MustRegister(m.addressGauge, m.globalGauge, m.bans)
	}

	return m
}

func (m *metricsSet) observeAddress(addr string, c Counter, value int64) {
	if m == nil {
		return
	}
	m.addressGauge.WithLabelValues(addr, c.String()).Set(float64(value))
}

func (m *metricsSet) observeGlobal(c Counter, value int64) {
	if m == nil {
		return
	}
	m.globalGauge.WithLabelValues(c.String()).Set(float64(value))
}

func (m *metricsSet) observeBan(addr string) {
	if m == nil {
		return
	}
	m.bans.WithLabelValues(addr).Inc()
}

// doRemedyRequest performs the "http" remedy's GET/POST call with a
// bounded client timeout; it never blocks the monitor's evaluation
// loop indefinitely.
func doRemedyRequest(method, url string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
