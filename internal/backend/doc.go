// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package backend defines the contract between the downtown site and its
// hosted identity/data backend.
//
// # Domain Types
//
//   - Identity - the authenticated principal (opaque id + email)
//   - Session - access/refresh token bundle proving a live Identity
//   - Profile - the application record keyed 1:1 by Identity.ID
//
// # Interfaces
//
// Callers depend on two narrow interfaces:
//   - IdentityProvider - password sign-up/sign-in, refresh, sign-out
//   - ProfileTable - point lookup, username filter, insert and update on
//     the profiles table
//
// Provider implements IdentityProvider on top of an AccountRepository and
// a SessionRepository. The memory and postgres subpackages supply those
// repositories and a ProfileTable.
package backend
