// Package audit records who did what to which sequence.
//
// Entries live in the audit_logs table. The API records every
// management and control request and every login attempt; the playback
// runner reports remote MQTT commands through Recorder.RecordCommand.
// Recording is best effort: a failed insert is logged and the action it
// describes still goes ahead.
package audit
