package log

import "time"

// Logger is the structured logger shared by the pipeline, the jobs and
// the adapters. The CLI backs it with zerolog; embedders may pass their own.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	// Warn is used for tolerated failures and retried attempts.
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that adds fields to every message,
	// e.g. the job name for everything a job logs.
	With(fields ...Field) Logger
}

// Keys shared across packages so log lines can be filtered per job or run.
const (
	KeyJob   = "job"
	KeyRun   = "run"
	KeyError = "error"
)

// Field is a key-value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Strings creates a string slice field.
func Strings(key string, value []string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field under KeyError.
func Err(err error) Field {
	return Field{Key: KeyError, Value: err}
}

// Job names the pipeline job a line belongs to.
func Job(name string) Field {
	return Field{Key: KeyJob, Value: name}
}

// Run names the run a line belongs to.
func Run(id string) Field {
	return Field{Key: KeyRun, Value: id}
}

// Any creates a field with any value; zerolog encodes it as JSON.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
