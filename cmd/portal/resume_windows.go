//go:build windows

package main

import (
	"context"

	"github.com/jrsteele09/campus-portal/auth"
	"github.com/jrsteele09/campus-portal/monitor"
)

// watchResume is a no-op on Windows, which has no SIGCONT. The page focus
// check and the recurring check still cover a resumed host.
func watchResume(context.Context, *monitor.Monitor, *auth.Bootstrapper) {}
