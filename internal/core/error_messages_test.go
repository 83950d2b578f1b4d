package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
	"github.com/JonMunkholm/sheetimport/internal/pricing"
	"github.com/JonMunkholm/sheetimport/internal/sheet"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "wrapped not found maps by sentinel",
			err:         fmt.Errorf("use template abc: %w", mapping.ErrNotFound),
			wantCode:    "TPL001",
			wantMessage: "The mapping template does not exist",
		},
		{
			name:        "not found text maps by pattern",
			err:         errors.New("remote: Template Not Found"),
			wantCode:    "TPL001",
			wantMessage: "The mapping template does not exist",
		},
		{
			name:        "name required",
			err:         mapping.ErrNameRequired,
			wantCode:    "TPL002",
			wantMessage: "A template needs a name",
		},
		{
			name:        "invalid pattern",
			err:         errors.New(`invalid applicable pattern "(": missing closing )`),
			wantCode:    "TPL003",
			wantMessage: "A header pattern is not a valid expression",
		},
		{
			name:        "headers missing",
			err:         fmt.Errorf("suggest mappings: %w", mapping.ErrHeadersMissing),
			wantCode:    "IMP001",
			wantMessage: "The file has no header row",
		},
		{
			name:        "invalid workbook",
			err:         errors.New("invalid workbook: zip: not a valid zip file"),
			wantCode:    "IMP002",
			wantMessage: "The file could not be read as a workbook",
		},
		{
			name:        "no sheets",
			err:         sheet.ErrNoSheets,
			wantCode:    "IMP003",
			wantMessage: "The workbook contains no sheets",
		},
		{
			name:        "invalid csv",
			err:         errors.New("invalid csv: record on line 2: wrong number of fields"),
			wantCode:    "IMP004",
			wantMessage: "The file could not be read as CSV",
		},
		{
			name:        "missing price",
			err:         fmt.Errorf("normalize Sheet1: %w", pricing.ErrMissingPrice),
			wantCode:    "PRC001",
			wantMessage: "A price cell is blank or unreadable",
		},
		{
			name:        "dictionary invalid",
			err:         errors.New("invalid dictionary file: month 13 defined"),
			wantCode:    "DICT001",
			wantMessage: "The dictionary override file is invalid",
		},
		{
			name:        "busy",
			err:         ErrBusy,
			wantCode:    "SRV001",
			wantMessage: "Too many files are being analysed at once",
		},
		{
			name:        "store unreachable",
			err:         errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"),
			wantCode:    "SRV002",
			wantMessage: "Templates could not be reached",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("load templates: %w", context.DeadlineExceeded),
			wantCode:    "SRV003",
			wantMessage: "The operation timed out",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(mapping.ErrHeadersMissing)

	expected := "The file has no header row (Code: IMP001). Add a header row naming each column"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  sheet.ErrNoSheets,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("get template x: %w", mapping.ErrNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "The mapping template does not exist" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, mapping.ErrNotFound) {
			t.Error("Unwrap() should return original error")
		}
	})

	t.Run("mapping a user error keeps its message", func(t *testing.T) {
		ue := &UserError{Technical: errors.New("x"), User: UserMessage{Message: "custom", Code: "TPL009"}}
		if got := MapError(fmt.Errorf("wrapped: %w", ue)); got.Code != "TPL009" {
			t.Errorf("MapError() code = %q, want TPL009", got.Code)
		}
	})
}
