package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/uwbctl/internal/uwb"
)

// FormatUserError turns an error into a one-line message for the terminal.
// Known ranging failures get a hint on what to do next.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timed out: %v", err)
	}

	kind, ok := uwb.KindOf(err)
	if !ok {
		return err.Error()
	}

	switch kind {
	case uwb.ScopeAcquisitionFailed:
		if errors.Is(err, uwb.ErrPlatformUnavailable) {
			return fmt.Sprintf("UWB is unavailable on this device; enable it and retry (%v)", err)
		}
		return fmt.Sprintf("could not acquire a ranging session: %v", err)
	case uwb.NotReady:
		return "no ranging session; set a role first"
	case uwb.ChannelUnspecified:
		return "controlee needs --channel and --preamble (or controlee.channel/controlee.preamble in the config)"
	case uwb.InvalidRole:
		return fmt.Sprintf("invalid role: %v", err)
	case uwb.RoleScopeMismatch:
		return fmt.Sprintf("radio returned a session for the wrong role (this is a bug): %v", err)
	case uwb.StreamError:
		return fmt.Sprintf("ranging stopped: %v", err)
	default:
		return err.Error()
	}
}
