package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "profile", ID: "strict"},
			wantMsg:  "profile not found: strict",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "cache entry"},
			wantMsg:  "cache entry not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	// Test with underlying error separately
	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("disk error")
		err := &NotFoundError{Resource: "file", ID: "test.txt", Err: underlyingErr}
		if got := err.Error(); got != "file not found: test.txt" {
			t.Errorf("Error() = %q, want %q", got, "file not found: test.txt")
		}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ValidationError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with field",
			err:      &ValidationError{Field: "profile", Message: "must not be empty"},
			wantMsg:  "validation failed for profile: must not be empty",
			wantBase: ErrInvalidInput,
		},
		{
			name:     "without field",
			err:      &ValidationError{Message: "invalid format"},
			wantMsg:  "validation failed: invalid format",
			wantBase: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	// Test with underlying error separately
	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("yaml parse error")
		err := &ValidationError{Field: "config", Message: "invalid yaml", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestIOError(t *testing.T) {
	baseErr := fmt.Errorf("permission denied")
	tests := []struct {
		name    string
		err     *IOError
		wantMsg string
	}{
		{
			name:    "with path",
			err:     &IOError{Operation: "read", Path: "/test/nb.ipynb", Err: baseErr},
			wantMsg: "failed to read /test/nb.ipynb: permission denied",
		},
		{
			name:    "without path",
			err:     &IOError{Operation: "write", Err: baseErr},
			wantMsg: "failed to write: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, baseErr) {
				t.Errorf("Unwrap() = %v, want %v", got, baseErr)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ParseError
		wantMsg string
	}{
		{
			name:    "with cell",
			err:     &ParseError{Path: "hw1.ipynb", Cell: 3, Message: "source is neither string nor list"},
			wantMsg: "malformed input in hw1.ipynb, cell 3: source is neither string nor list",
		},
		{
			name:    "document level",
			err:     &ParseError{Path: "hw1.ipynb", Cell: -1, Message: "unexpected EOF"},
			wantMsg: "malformed input in hw1.ipynb: unexpected EOF",
		},
		{
			name:    "no path",
			err:     &ParseError{Cell: -1, Message: "unexpected EOF"},
			wantMsg: "malformed input: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrMalformedInput) {
				t.Error("ParseError must match ErrMalformedInput")
			}
		})
	}

	// The sentinel must still match when an underlying error is attached.
	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("json: unexpected token")
		err := &ParseError{Path: "nb.ipynb", Cell: -1, Message: "invalid syntax", Err: underlyingErr}
		if !errors.Is(err, underlyingErr) {
			t.Error("ParseError must unwrap to the underlying error")
		}
		if !errors.Is(err, ErrMalformedInput) {
			t.Error("ParseError with underlying error must still match ErrMalformedInput")
		}
	})
}

func TestUnsupportedError(t *testing.T) {
	tests := []struct {
		name     string
		err      *UnsupportedError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with reason",
			err:      &UnsupportedError{Feature: "notebook format", Reason: "nbformat 3 is too old"},
			wantMsg:  "unsupported notebook format: nbformat 3 is too old",
			wantBase: ErrUnsupported,
		},
		{
			name:     "without reason",
			err:      &UnsupportedError{Feature: "format"},
			wantMsg:  "unsupported format",
			wantBase: ErrUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}
}

func TestHelperFunctions(t *testing.T) {
	t.Run("NewNotFound", func(t *testing.T) {
		err := NewNotFound("profile", "thesis")
		if err.Resource != "profile" || err.ID != "thesis" {
			t.Errorf("NewNotFound() = %+v, want Resource=profile, ID=thesis", err)
		}
	})

	t.Run("NewValidation", func(t *testing.T) {
		err := NewValidation("title", "must not be empty")
		if err.Field != "title" || err.Message != "must not be empty" {
			t.Errorf("NewValidation() = %+v, unexpected values", err)
		}
	})

	t.Run("NewIO", func(t *testing.T) {
		baseErr := fmt.Errorf("disk full")
		err := NewIO("write", "/tmp/out.ipynb", baseErr)
		if err.Operation != "write" || err.Path != "/tmp/out.ipynb" || err.Err != baseErr {
			t.Errorf("NewIO() = %+v, unexpected values", err)
		}
	})

	t.Run("NewParse", func(t *testing.T) {
		err := NewParse("nb.ipynb", "invalid syntax")
		if err.Path != "nb.ipynb" || err.Cell != -1 || err.Message != "invalid syntax" {
			t.Errorf("NewParse() = %+v, unexpected values", err)
		}
	})

	t.Run("NewParseCell", func(t *testing.T) {
		err := NewParseCell("nb.ipynb", 7, "bad source")
		if err.Path != "nb.ipynb" || err.Cell != 7 || err.Message != "bad source" {
			t.Errorf("NewParseCell() = %+v, unexpected values", err)
		}
	})

	t.Run("NewUnsupported", func(t *testing.T) {
		err := NewUnsupported("notebook format", "nbformat 3")
		if err.Feature != "notebook format" || err.Reason != "nbformat 3" {
			t.Errorf("NewUnsupported() = %+v, unexpected values", err)
		}
	})
}

func TestPredicates(t *testing.T) {
	if !IsMalformedInput(NewParse("nb.ipynb", "bad json")) {
		t.Error("IsMalformedInput(ParseError) = false, want true")
	}
	if IsMalformedInput(NewValidation("field", "msg")) {
		t.Error("IsMalformedInput(ValidationError) = true, want false")
	}
	if !IsAnchorNotFound(fmt.Errorf("patching: %w", ErrAnchorNotFound)) {
		t.Error("IsAnchorNotFound(wrapped sentinel) = false, want true")
	}
	if IsAnchorNotFound(ErrNotFound) {
		t.Error("IsAnchorNotFound(ErrNotFound) = true, want false")
	}
}

func TestWrap(t *testing.T) {
	t.Run("wraps error", func(t *testing.T) {
		baseErr := fmt.Errorf("base error")
		wrapped := Wrap(baseErr, "context message")
		if wrapped == nil {
			t.Fatal("Wrap() returned nil")
		}
		if !errors.Is(wrapped, baseErr) {
			t.Errorf("Wrap() error does not unwrap to base error")
		}
		wantMsg := "context message: base error"
		if wrapped.Error() != wantMsg {
			t.Errorf("Wrap() = %q, want %q", wrapped.Error(), wantMsg)
		}
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		if got := Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
	})
}

func TestWrapf(t *testing.T) {
	t.Run("wraps error with formatting", func(t *testing.T) {
		baseErr := fmt.Errorf("base error")
		wrapped := Wrapf(baseErr, "failed to process %s", "nb.ipynb")
		if wrapped == nil {
			t.Fatal("Wrapf() returned nil")
		}
		if !errors.Is(wrapped, baseErr) {
			t.Errorf("Wrapf() error does not unwrap to base error")
		}
		wantMsg := "failed to process nb.ipynb: base error"
		if wrapped.Error() != wantMsg {
			t.Errorf("Wrapf() = %q, want %q", wrapped.Error(), wantMsg)
		}
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		if got := Wrapf(nil, "context %s", "test"); got != nil {
			t.Errorf("Wrapf(nil) = %v, want nil", got)
		}
	})
}

func TestIs(t *testing.T) {
	err := &NotFoundError{Resource: "test"}
	if !Is(err, ErrNotFound) {
		t.Error("Is() failed to match NotFoundError to ErrNotFound")
	}
}

func TestAs(t *testing.T) {
	err := &NotFoundError{Resource: "test", ID: "123"}
	var nfErr *NotFoundError
	if !As(err, &nfErr) {
		t.Error("As() failed to match NotFoundError")
	}
	if nfErr.ID != "123" {
		t.Errorf("As() nfErr.ID = %q, want %q", nfErr.ID, "123")
	}
}
