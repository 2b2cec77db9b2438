// Package logging builds the slog loggers squash writes its log file with.
//
// New selects a console (human-readable, multi-line fields) or JSON handler,
// TeeLogger duplicates records to extra handlers such as stderr in debug mode,
// and the attribute helpers keep field names consistent across packages.
// ContextFields pulls the run ID, stage, and input path stored by
// internal/services into every record.
package logging
