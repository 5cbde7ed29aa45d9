package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	targetFormats := []string{"webp", "avif", "av1", "webm"}
	servedFormats := append([]string{"original"}, targetFormats...)

	for _, encoder := range []string{"vips", "ffmpeg"} {
		EncoderAvailable.WithLabelValues(encoder)
	}

	for _, kind := range []string{"image", "video"} {
		for _, status := range []string{"success", "skipped", "failed"} {
			ConversionPassesTotal.WithLabelValues(kind, status)
		}
	}

	for _, format := range targetFormats {
		ConversionsTotal.WithLabelValues(format, "success")
		ConversionsTotal.WithLabelValues(format, "error")
		ConversionDuration.WithLabelValues(format)
		ConversionSavedBytes.WithLabelValues(format)
		VariantsDeleted.WithLabelValues(format)
	}

	for _, format := range servedFormats {
		SelectionsTotal.WithLabelValues(format)
	}

	for _, status := range []string{"completed", "failed", "deduplicated"} {
		QueueJobsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"initialize_schema", "get_metadata", "set_metadata",
		"delete_metadata", "get_variants", "set_variant", "prune_sizes",
		"delete_formats", "delete_all", "claim_job", "set_job_state",
		"insert_record", "delete_records", "savings"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
