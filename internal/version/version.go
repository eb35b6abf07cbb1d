// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version carries build metadata injected via ldflags.
package version

import "fmt"

// Info describes the running build.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
}

// String formats the build for the -version flag.
func (i Info) String() string {
	v := i.Version
	if v == "" {
		v = "dev"
	}
	commit := i.GitCommit
	if commit == "" {
		commit = "unknown"
	}
	if i.BuildTime == "" {
		return fmt.Sprintf("quill %s (commit: %s)", v, commit)
	}
	return fmt.Sprintf("quill %s (commit: %s, built: %s)", v, commit, i.BuildTime)
}
