// Copyright 2025 Chimera Labs
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger provides structured logging scoped to one component (an agent,
// the dispatcher, the HTTP server). Entries are written as JSON lines to
// stdout and mirrored to any registered broadcast hooks.
type Logger struct {
	Component  string
	InstanceID string
	Container  string
}

// LogEntry is the wire format for a structured log line. The same shape is
// pushed to dashboard WebSocket subscribers.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Component string                 `json:"component"`
	Instance  string                 `json:"instance_id"`
	Container string                 `json:"container"`
	MissionID string                 `json:"mission_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// BroadcastFunc receives every log entry after it is written. Hooks must not
// block; slow consumers buffer internally.
type BroadcastFunc func(entry LogEntry)

var (
	hookMu sync.RWMutex
	hooks  []BroadcastFunc
)

// RegisterBroadcast adds a hook that observes all structured log entries.
// Used by the server to stream logs over /ws/logs.
func RegisterBroadcast(fn BroadcastFunc) {
	hookMu.Lock()
	defer hookMu.Unlock()
	hooks = append(hooks, fn)
}

// New creates a Logger for the given component.
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
	}
}

// Log creates a structured entry, writes it to stdout, and fans it out to
// broadcast hooks.
func (l *Logger) Log(level LogLevel, missionID, requestID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Component: l.Component,
		Instance:  l.InstanceID,
		Container: l.Container,
		MissionID: missionID,
		RequestID: requestID,
		Message:   message,
		Fields:    fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}
	log.Println(string(jsonBytes))

	hookMu.RLock()
	defer hookMu.RUnlock()
	for _, fn := range hooks {
		fn(entry)
	}
}

// Info logs an informational message
func (l *Logger) Info(missionID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, missionID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(missionID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, missionID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(missionID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, missionID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(missionID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, missionID, requestID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field
func (l *Logger) InfoWithDuration(missionID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(missionID, requestID, message, fields)
}

// ErrorWithCode logs an error with an HTTP status code and wrapped error
func (l *Logger) ErrorWithCode(missionID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(missionID, requestID, message, fields)
}
