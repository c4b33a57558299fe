package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReplicationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gdrive",
		Subsystem: "replication",
		Name:      "jobs_total",
		Help:      "Replication jobs by outcome.",
	}, []string{"outcome"})

	UploadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gdrive",
		Name:      "uploads_total",
		Help:      "Files uploaded to the local tier.",
	})

	UploadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gdrive",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes written to the local tier by uploads.",
	})

	ArchivesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gdrive",
		Subsystem: "archive",
		Name:      "builds_total",
		Help:      "Archive builds by outcome.",
	}, []string{"outcome"})

	PurgedFilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gdrive",
		Subsystem: "trash",
		Name:      "purged_files_total",
		Help:      "Rows permanently removed from the trash.",
	})

	ShareNotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gdrive",
		Subsystem: "share",
		Name:      "notifications_total",
		Help:      "Share notifications by outcome.",
	}, []string{"outcome"})
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeEmpty   = "empty"
)

func init() {
	prometheus.MustRegister(
		ReplicationTotal,
		UploadsTotal,
		UploadedBytes,
		ArchivesTotal,
		PurgedFilesTotal,
		ShareNotificationsTotal,
	)
}
