// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the ingestion subsystem.
type metricsIngestion struct {
	once sync.Once

	// Scan / parse
	filesScanned prometheus.Counter
	rowsInvalid  prometheus.Counter

	// Upload
	uploaded      prometheus.Counter
	uploadBytes   prometheus.Counter
	uploadSkipped prometheus.Counter
	uploadFailed  prometheus.Counter
	uploadRetries prometheus.Counter

	// Documents
	docsWritten   prometheus.Counter
	docsInvalid   prometheus.Counter
	docsConflicts prometheus.Counter

	// Durations
	uploadDuration prometheus.Histogram
	stageDuration  *prometheus.HistogramVec
	totalDuration  prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.filesScanned = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_files_scanned_total", Help: "Files discovered by the scanner"})
		m.rowsInvalid = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_rows_invalid_total", Help: "Metadata rows rejected by validation"})

		m.uploaded = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_uploads_total", Help: "Objects uploaded and confirmed"})
		m.uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_upload_bytes_total", Help: "Bytes uploaded and confirmed"})
		m.uploadSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_uploads_skipped_total", Help: "Files already present remotely"})
		m.uploadFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_uploads_failed_total", Help: "Files that exhausted their upload attempts"})
		m.uploadRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_upload_retries_total", Help: "Upload attempts retried after a failure"})

		m.docsWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_documents_written_total", Help: "Project documents written"})
		m.docsInvalid = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_documents_invalid_total", Help: "Project documents excluded by validation"})
		m.docsConflicts = prometheus.NewCounter(prometheus.CounterOpts{Name: "assetseed_document_conflicts_total", Help: "Version conflicts while writing documents"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
		m.uploadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "assetseed_upload_seconds", Help: "Duration of a successful upload including confirmation", Buckets: buckets})
		m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "assetseed_stage_seconds", Help: "Duration of each pipeline stage", Buckets: buckets}, []string{"stage"})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "assetseed_run_seconds", Help: "Duration of the whole run", Buckets: buckets})

		prometheus.MustRegister(
			m.filesScanned, m.rowsInvalid,
			m.uploaded, m.uploadBytes, m.uploadSkipped, m.uploadFailed, m.uploadRetries,
			m.docsWritten, m.docsInvalid, m.docsConflicts,
			m.uploadDuration, m.stageDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the pipeline stages
func recordFilesScanned(n int) { ingMetrics.init(); ingMetrics.filesScanned.Add(float64(n)) }
func recordRowsInvalid(n int)  { ingMetrics.init(); ingMetrics.rowsInvalid.Add(float64(n)) }
func recordUploadSkipped()     { ingMetrics.init(); ingMetrics.uploadSkipped.Inc() }
func recordUploadFailed()      { ingMetrics.init(); ingMetrics.uploadFailed.Inc() }
func recordUploadRetry()       { ingMetrics.init(); ingMetrics.uploadRetries.Inc() }
func recordDocWritten()        { ingMetrics.init(); ingMetrics.docsWritten.Inc() }
func recordDocInvalid()        { ingMetrics.init(); ingMetrics.docsInvalid.Inc() }
func recordDocConflict()       { ingMetrics.init(); ingMetrics.docsConflicts.Inc() }

func recordUploaded(bytes int64) {
	ingMetrics.init()
	ingMetrics.uploaded.Inc()
	ingMetrics.uploadBytes.Add(float64(bytes))
}

func observeUploadDuration(d time.Duration) {
	ingMetrics.init()
	ingMetrics.uploadDuration.Observe(d.Seconds())
}

func observeStage(step Step, d time.Duration) {
	ingMetrics.init()
	ingMetrics.stageDuration.WithLabelValues(string(step)).Observe(d.Seconds())
}

func observeRun(d time.Duration) {
	ingMetrics.init()
	ingMetrics.totalDuration.Observe(d.Seconds())
}
