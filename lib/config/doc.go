// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the Envhatch
// mount daemon.
//
// Configuration is loaded from a single file specified by either the
// ENVHATCH_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This keeps configuration
// deterministic and auditable with no hidden overrides.
//
// Path fields support a leading ~ and ${VAR} environment expansion
// after loading. No other environment variables override config
// values.
//
// This package depends on no other Envhatch packages except the ~
// expansion helper in lib/declaration.
package config
