package catalog

// error_messages.go maps technical errors to user-friendly messages with a
// code for support reference.
//
// # Catalog Errors
//
//	CAT001  - Unsupported file type: the source type tag is not excel or bibtex
//	COL001  - Missing column: a filter or summary referenced an absent column
//
// # File Errors
//
//	FILE001 - Load failed: the source spreadsheet is missing or unreadable
//	FILE002 - Write failed: an export destination could not be written
//
// # Input Errors
//
//	INP001  - Invalid input: a menu or API argument could not be parsed
//
// # Database Errors (export archive)
//
//	DB001   - Connection refused
//	DB002   - Timeout
//
// # Default Error (ERR000)
//
// Typed errors are matched first with errors.As; anything else falls through
// to case-insensitive pattern matching where the first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgUnsupportedType = UserMessage{
		Message: "Unsupported source file type",
		Action:  "Use 'excel' or 'bibtex'",
		Code:    "CAT001",
	}
	msgLoadFailed = UserMessage{
		Message: "The source spreadsheet could not be loaded",
		Action:  "Check that the file exists and is a valid .xlsx workbook",
		Code:    "FILE001",
	}
	msgWriteFailed = UserMessage{
		Message: "The output file could not be written",
		Action:  "Check the output directory exists and is writable, and that the file is not open elsewhere",
		Code:    "FILE002",
	}
	msgMissingColumn = UserMessage{
		Message: "Required column is missing from the spreadsheet",
		Action:  "Ensure the first sheet has title, author, year and type headers",
		Code:    "COL001",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages
// for errors that carry no catalog type.
var errorPatterns = []errorPattern{
	{
		pattern: "invalid input",
		msg: UserMessage{
			Message: "The value entered is not valid",
			Action:  "Enter a whole number for years, e.g. 2021",
			Code:    "INP001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB002",
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

	var (
		unsupported *UnsupportedFileTypeError
		load        *FileLoadError
		missing     *MissingColumnError
		write       *FileWriteError
	)
	switch {
	case errors.As(err, &unsupported):
		return msgUnsupportedType
	case errors.As(err, &missing):
		return msgMissingColumn
	case errors.As(err, &load):
		return msgLoadFailed
	case errors.As(err, &write):
		return msgWriteFailed
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
