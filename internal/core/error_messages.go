package core

// error_messages.go defines user-friendly error messages with codes for support
// reference. When users encounter errors, they can quote the error code to
// support staff for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Template Errors (TPL001-TPL099)
//
//	TPL001 - Template not found: The mapping template does not exist
//	         Action: Refresh the template list and pick another template
//	         Matches: mapping.ErrNotFound, "template not found"
//
//	TPL002 - Name required: A template needs a name
//	         Action: Enter a name for the template and save again
//	         Matches: mapping.ErrNameRequired, "template name is required"
//
//	TPL003 - Invalid pattern: A header pattern is not a valid expression
//	         Action: Fix or remove the pattern and save again
//	         Matches: "invalid applicable pattern"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Headers missing: The file has no header row
//	         Action: Add a header row naming each column
//	         Matches: mapping.ErrHeadersMissing, "headers are missing"
//
//	IMP002 - Invalid workbook: The file could not be read as a workbook
//	         Action: Save the file as .xlsx and upload it again
//	         Matches: "invalid workbook"
//
//	IMP003 - No sheets: The workbook contains no sheets
//	         Action: Check that the workbook has at least one worksheet
//	         Matches: sheet.ErrNoSheets, "workbook contains no sheets"
//
//	IMP004 - Invalid CSV: The file could not be read as CSV
//	         Action: Export the sheet as comma-separated values and retry
//	         Matches: "invalid csv"
//
//	IMP005 - Empty file: The file contains no rows
//	         Action: Check that you selected the right file
//	         Matches: sheet.ErrEmptyFile, "empty file"
//
// # Pricing Errors (PRC001-PRC099)
//
//	PRC001 - Missing price: A price cell is blank or unreadable
//	         Action: Fill in every price or choose a policy that tolerates gaps
//	         Matches: pricing.ErrMissingPrice, "missing price"
//
// # Dictionary Errors (DICT001-DICT099)
//
//	DICT001 - Dictionary invalid: The dictionary override file is invalid
//	          Action: Check the YAML syntax and month numbers of the file
//	          Matches: "invalid dictionary file", "read dictionary file"
//
// # Service Errors (SRV001-SRV099)
//
//	SRV001 - Busy: Too many files are being analysed at once
//	         Action: Please try again in a few moments
//	         Matches: ErrBusy, "too many concurrent"
//
//	SRV002 - Store unavailable: Templates could not be reached
//	         Action: Please try again in a few moments
//	         Matches: "connection refused", "connection reset"
//
//	SRV003 - Timeout: The operation timed out
//	         Action: Try a smaller file or try again later
//	         Matches: context.DeadlineExceeded, "timeout"
//
// # Generic Errors (ERR000)
//
//	ERR000 - Unknown: An unexpected error occurred
//	         Action: Please try again or contact support
//	         Used when no pattern matches
//
// # Pattern Matching
//
// Sentinel errors are checked first with errors.Is, so wrapped errors map
// the same as bare ones. Otherwise the error text is matched
// case-insensitively with strings.Contains against the pattern table; the
// first match wins.
//
// # For Support Staff
//
// When a user reports an error code:
//  1. Look up the code in this reference
//  2. Check the associated patterns to understand what triggered it
//  3. Review the suggested action to guide the user
//  4. If ERR000, check application logs for the original technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
	"github.com/JonMunkholm/sheetimport/internal/pricing"
	"github.com/JonMunkholm/sheetimport/internal/sheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgTemplateNotFound = UserMessage{
		Message: "The mapping template does not exist",
		Action:  "Refresh the template list and pick another template",
		Code:    "TPL001",
	}
	msgNameRequired = UserMessage{
		Message: "A template needs a name",
		Action:  "Enter a name for the template and save again",
		Code:    "TPL002",
	}
	msgHeadersMissing = UserMessage{
		Message: "The file has no header row",
		Action:  "Add a header row naming each column",
		Code:    "IMP001",
	}
	msgNoSheets = UserMessage{
		Message: "The workbook contains no sheets",
		Action:  "Check that the workbook has at least one worksheet",
		Code:    "IMP003",
	}
	msgEmptyFile = UserMessage{
		Message: "The file contains no rows",
		Action:  "Check that you selected the right file",
		Code:    "IMP005",
	}
	msgMissingPrice = UserMessage{
		Message: "A price cell is blank or unreadable",
		Action:  "Fill in every price or choose a policy that tolerates gaps",
		Code:    "PRC001",
	}
	msgBusy = UserMessage{
		Message: "Too many files are being analysed at once",
		Action:  "Please try again in a few moments",
		Code:    "SRV001",
	}
	msgTimeout = UserMessage{
		Message: "The operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "SRV003",
	}
)

// sentinelMessages is checked before the text patterns.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{mapping.ErrNotFound, msgTemplateNotFound},
	{mapping.ErrNameRequired, msgNameRequired},
	{mapping.ErrHeadersMissing, msgHeadersMissing},
	{sheet.ErrNoSheets, msgNoSheets},
	{sheet.ErrEmptyFile, msgEmptyFile},
	{pricing.ErrMissingPrice, msgMissingPrice},
	{ErrBusy, msgBusy},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages for errors that crossed a boundary without their sentinel, such
// as an error string returned by a remote store.
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// Template errors
	{pattern: "template not found", msg: msgTemplateNotFound},
	{pattern: "template name is required", msg: msgNameRequired},
	{
		pattern: "invalid applicable pattern",
		msg: UserMessage{
			Message: "A header pattern is not a valid expression",
			Action:  "Fix or remove the pattern and save again",
			Code:    "TPL003",
		},
	},

	// Import errors
	{pattern: "headers are missing", msg: msgHeadersMissing},
	{
		pattern: "invalid workbook",
		msg: UserMessage{
			Message: "The file could not be read as a workbook",
			Action:  "Save the file as .xlsx and upload it again",
			Code:    "IMP002",
		},
	},
	{pattern: "workbook contains no sheets", msg: msgNoSheets},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The file could not be read as CSV",
			Action:  "Export the sheet as comma-separated values and retry",
			Code:    "IMP004",
		},
	},
	{pattern: "empty file", msg: msgEmptyFile},

	// Pricing errors
	{pattern: "missing price", msg: msgMissingPrice},

	// Dictionary errors
	{
		pattern: "dictionary file",
		msg: UserMessage{
			Message: "The dictionary override file is invalid",
			Action:  "Check the YAML syntax and month numbers of the file",
			Code:    "DICT001",
		},
	},

	// Service errors
	{pattern: "too many concurrent", msg: msgBusy},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Templates could not be reached",
			Action:  "Please try again in a few moments",
			Code:    "SRV002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Templates could not be reached",
			Action:  "Please try again in a few moments",
			Code:    "SRV002",
		},
	},
	{pattern: "timeout", msg: msgTimeout},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error and ERR000 when nothing
// matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
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

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message. The
// original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
