package asset

// error_messages.go maps errors to short user-facing messages with codes.
//
// Codes by category:
//
//	ROW001  - Row too short: a row lacks columns the layout needs
//	LAY001  - Invalid layout: required column missing or bad index
//	FILE001 - Not found: input file or record directory missing
//	FILE002 - Invalid CSV: the file could not be parsed as CSV
//	FILE003 - Unsupported format: input is neither .csv nor .xlsx
//	FILE004 - File too large: input exceeds the configured limit
//	FILE005 - Empty file: input has no header row
//	REC001  - Malformed record: a record file could not be parsed
//	REC002  - Duplicate identity: two rows share hostname.domain
//	REC003  - Record exists: output file present and overwrite disabled
//	REC004  - Invalid identity: hostname/domain unusable as a file name
//	REC005  - Record not found: no record with that identity is loaded
//	DB004   - Connection refused
//	DB006   - Timeout
//	UPL004  - Request cancelled
//	UPL005  - Request timed out
//	RATE001 - Rate limited
//	RLD001  - Reload busy: another reload holds the directory
//	ERR000  - Anything else; check the logs for the technical error
//
// Sentinel errors are matched with errors.Is first; the pattern table is the
// fallback for errors from other packages, matched case-insensitively with
// strings.Contains. The first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// ErrRecordNotFound is returned when a requested identity is not loaded.
var ErrRecordNotFound = errors.New("record not found")

var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrRowTooShort, UserMessage{"A row has fewer columns than expected", "Check the reported row for missing cells", "ROW001"}},
	{ErrInvalidLayout, UserMessage{"The column layout cannot be used", "Check the header row for hostname, domain, and notes columns", "LAY001"}},
	{ErrNotFound, UserMessage{"File or directory not found", "Check the path and try again", "FILE001"}},
	{ErrUnsupportedFormat, UserMessage{"Unsupported input format", "Export the spreadsheet as .csv or .xlsx", "FILE003"}},
	{ErrFileTooLarge, UserMessage{"Input file exceeds the size limit", "Split the file or raise INVENTORY_MAX_FILE_SIZE", "FILE004"}},
	{ErrEmptyTable, UserMessage{"The input file is empty", "Provide a file with a header row and data rows", "FILE005"}},
	{ErrMalformedRecord, UserMessage{"A record file could not be parsed", "Fix or remove the reported file", "REC001"}},
	{ErrDuplicateIdentity, UserMessage{"Two rows describe the same host", "Make hostname and domain unique in the input", "REC002"}},
	{ErrExists, UserMessage{"A record file already exists", "Remove it or rerun with --overwrite", "REC003"}},
	{ErrInvalidIdentity, UserMessage{"A row has an unusable hostname or domain", "Fill in hostname and domain without slashes", "REC004"}},
	{ErrRecordNotFound, UserMessage{"Record not found", "Check the hostname.domain identity", "REC005"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with balanced quotes", "FILE002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try again or raise the timeout", "UPL005"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB006"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
	{"reload already in progress", UserMessage{"A reload is already running", "Wait for it to finish and try again", "RLD001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
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

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
