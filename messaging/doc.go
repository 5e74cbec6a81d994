// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging implements the subset of the Matrix client-server
// API the bridge consumes: room membership (join/leave/kick), message
// and state event send/read, member and history listing, and /sync
// long-polling.
//
// Client is the unauthenticated HTTP transport; DirectSession wraps it
// with an access token. Session is the interface through which the rest
// of the bridge talks to the homeserver, so tests can substitute a fake
// transport.
//
// Matrix error responses are surfaced as *MatrixError with the
// server's errcode; use IsMatrixError to branch on specific codes
// (e.g., M_FORBIDDEN on a state write the bridge lacks power level
// for).
package messaging
