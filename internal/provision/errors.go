// internal/provision/errors.go
package provision

import (
	"errors"
	"strings"

	"github.com/yanizio/launchpad/internal/provider"
)

var (
	ErrNotFailed        = errors.New("draft is not failed")
	ErrRetriesExhausted = errors.New("manual retry limit reached")
	ErrNotOwner         = errors.New("draft belongs to another user")
	ErrDesignLocked     = errors.New("design is being applied or already applied; use design retry")
	ErrSiteNotReady     = errors.New("site is not ready yet")
)

// errorKind is what lands in Draft.LastErrorKind.
func errorKind(err error) string {
	if k, ok := provider.KindOf(err); ok {
		return string(k)
	}
	return "internal"
}

// reason turns a provider failure into text safe to show the user.
// Status codes and transport details stay in the logs.
func reason(stage string, err error) string {
	var pe *provider.Error
	if !errors.As(err, &pe) {
		return "An internal error interrupted " + stage + ".  Please retry."
	}
	switch pe.Kind {
	case provider.KindRejected:
		msg := "The site provider declined " + stage + "."
		if detail := strings.TrimSpace(pe.Message); detail != "" && pe.Status != 0 {
			msg += "  " + detail
		}
		return msg
	case provider.KindTimeout:
		return "The site provider did not respond in time during " + stage + ".  Please retry."
	default:
		return "The site provider is unavailable during " + stage + ".  Please retry shortly."
	}
}
