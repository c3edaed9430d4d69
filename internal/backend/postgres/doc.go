// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package postgres implements the backend repositories on PostgreSQL.
//
// Identities, auth sessions and profiles live in three tables created by
// the embedded migrations. Only token hashes are stored. The profiles
// table carries a unique constraint on username, which is the real guard
// against two registrations racing for one name.
package postgres
