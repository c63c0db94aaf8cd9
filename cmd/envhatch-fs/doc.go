// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Envhatch-fs is the mount daemon. It reads a YAML config naming one
// or two declaration files, builds the corresponding providers, and
// serves each as a flat read-only FUSE directory for the guest.
//
// For the secrets directory it drives the placeholder protocol at
// startup: list the declared secrets, obtain session tokens (minted
// locally, or supplied by the orchestrator as a CBOR payload on stdin
// with --placeholders-stdin), and install them before the mount
// becomes visible. The secret name list is then handed to the
// environment provider so colliding names are suppressed there and
// reported in the log.
//
// Both directories re-read their declaration file on every guest
// access; editing a file on the host changes what the guest sees on
// its next call with no restart and no signal.
package main
