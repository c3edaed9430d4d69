// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package session holds the signed-in state shared by every page: the
// current session, its identity and the identity's profile.
//
// A Store is created once by the application and passed to the flows that
// need it. State is published as immutable snapshots through an atomic
// pointer, so readers never see a profile from one identity paired with
// another. Profile loads carry the identity generation they started under
// and are dropped if the identity changed or the store closed meanwhile.
package session
