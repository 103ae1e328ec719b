package main

import (
	"errors"
	"os"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/fetch"
)

// ErrUsage marks command-line errors.
var ErrUsage = errors.New("usage error")

// Exit codes follow Unix conventions: 0=success, 1=general, 2=usage, and
// custom codes below 126.
const (
	ExitSuccess = 0 // all requested formats produced
	ExitGeneral = 1 // general/unexpected error
	ExitUsage   = 2 // invalid flags or arguments
	ExitIO      = 3 // file or sink I/O failure
	ExitBrowser = 4 // headless browser failure
	ExitPartial = 5 // some requested formats failed
)

// exitCodeFor maps an error to an exit code. Callers must wrap with
// fmt.Errorf("%w", err) so errors.Is can see through.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, fetch.ErrBrowserConnect) || errors.Is(err, fetch.ErrPageCreate) {
		return ExitBrowser
	}
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, quire.ErrSinkWrite) {
		return ExitIO
	}
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, quire.ErrNoRequestedFormats) ||
		errors.Is(err, quire.ErrInvalidSource) {
		return ExitUsage
	}
	return ExitGeneral
}
