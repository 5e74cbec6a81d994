// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated wrapper types for Matrix identifiers.
//
// Raw identifier strings are parsed into these types at the boundary
// (configuration, homeserver responses) so that the rest of the code
// never passes an unvalidated or mixed-up identifier. All wrappers are
// immutable value types whose zero value is "unset"; use IsZero to check.
package ref
