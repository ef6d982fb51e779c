package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/app"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/config"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/report"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

const (
	ExitCodeSuccess       = 0
	ExitCodeGeneric       = 1
	ExitCodeUsage         = 2
	ExitCodeIO            = 7
	ExitCodeStorage       = 8
	ExitCodeMalformedData = 9
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExitError) ExitCode() int {
	if e == nil {
		return ExitCodeGeneric
	}
	return e.Code
}

func asExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}
	return &ExitError{Code: code, Err: err}
}

func mapCommandError(err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}

	if errors.Is(err, config.ErrInvalidConfig) || errors.Is(err, app.ErrValidation) {
		return asExitError(ExitCodeUsage, err)
	}

	var malformed *report.MalformedDateError
	if errors.As(err, &malformed) {
		return asExitError(ExitCodeMalformedData, err)
	}

	// Checked before path errors: a store that cannot be opened may wrap one.
	var storageErr *storage.StorageError
	if errors.As(err, &storageErr) {
		return asExitError(ExitCodeStorage, err)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, os.ErrNotExist) {
		return asExitError(ExitCodeIO, err)
	}

	return asExitError(ExitCodeGeneric, err)
}

func usageErrorf(format string, args ...any) error {
	return &ExitError{
		Code: ExitCodeUsage,
		Err:  fmt.Errorf(format, args...),
	}
}
