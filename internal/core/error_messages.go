package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// Codes by category:
//
//	SCH001 - Source header lacks required columns (fatal, nothing processed)
//	SRC001 - Source is empty or has no header row
//	SRC002 - Source file could not be opened or read
//	SNK001 - Some sink batches were not written
//	SNK002 - Sink unreachable
//	CFG001 - Configuration invalid
//	UPL001 - File too large for the ingest API
//	UPL002 - Too many ingests in progress
//	UPL003 - No file in request
//	UPL004 - Request cancelled or timed out
//	ERR000 - Anything else; check the logs for the technical error
//
// Typed errors are matched first with errors.Is. Anything else falls back to
// case-insensitive substring matching on the error text; the first pattern wins.

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgSchema = UserMessage{
		Message: "Required column is missing from the CSV header",
		Action:  "Add the missing columns listed in the error and run again",
		Code:    "SCH001",
	}
	msgEmptySource = UserMessage{
		Message: "The source file is empty",
		Action:  "Provide a CSV file with a header row",
		Code:    "SRC001",
	}
	msgPartialWrite = UserMessage{
		Message: "Some batches were not written to the sink",
		Action:  "Check the sink_errors in the summary report and load again",
		Code:    "SNK001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other ingests",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
)

// sentinelMessages are matched with errors.Is before any text pattern.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrSchema, msgSchema},
	{ErrEmptySource, msgEmptySource},
	{ErrPartialWrite, msgPartialWrite},
	{ErrTooManyIngests, msgBusy},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "open source",
		msg: UserMessage{
			Message: "The source file could not be opened",
			Action:  "Check the path and file permissions",
			Code:    "SRC002",
		},
	},
	{
		pattern: "read header",
		msg: UserMessage{
			Message: "The source header could not be read",
			Action:  "Ensure the file is comma-separated UTF-8 text",
			Code:    "SRC002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the sink",
			Action:  "Check MONGO_URI or DATABASE_URL and that the server is running",
			Code:    "SNK002",
		},
	},
	{
		pattern: "server selection",
		msg: UserMessage{
			Message: "Unable to reach the document store",
			Action:  "Check MONGO_URI and network access",
			Code:    "SNK002",
		},
	},
	{
		pattern: "config validation failed",
		msg: UserMessage{
			Message: "Configuration is invalid",
			Action:  "Fix the environment variables named in the error",
			Code:    "CFG001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Use the load command for large files",
			Code:    "UPL001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Send the CSV as the multipart field \"file\"",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or use the load command",
			Code:    "UPL004",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
