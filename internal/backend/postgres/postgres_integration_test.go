// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/backend/postgres"
)

var fastParams = backend.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

var _ = Describe("PostgreSQL backend", func() {
	var (
		ctx context.Context
		b   *postgres.Backend
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		b, err = postgres.New(testPool, backend.NewArgon2idHasherWithParams(fastParams))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_, err := testPool.Exec(ctx, `TRUNCATE identities CASCADE`)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	signUp := func(email string) *backend.Identity {
		id, err := b.Provider.SignUp(ctx, email, "password123")
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	Describe("identity provider", func() {
		It("signs up, signs in, refreshes and signs out", func() {
			id := signUp("ada@example.com")

			s, err := b.Provider.SignIn(ctx, "Ada@Example.com", "password123")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Identity.ID).To(Equal(id.ID))

			got, err := b.Provider.GetSession(ctx, s.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Identity.Email).To(Equal("ada@example.com"))

			refreshed, err := b.Provider.Refresh(ctx, s.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			_, err = b.Provider.GetSession(ctx, s.AccessToken)
			Expect(err).To(MatchError(backend.ErrInvalidToken))

			Expect(b.Provider.SignOut(ctx, refreshed.AccessToken)).To(Succeed())
			_, err = b.Provider.GetSession(ctx, refreshed.AccessToken)
			Expect(err).To(MatchError(backend.ErrInvalidToken))
		})

		It("rejects a duplicate email", func() {
			signUp("ada@example.com")
			_, err := b.Provider.SignUp(ctx, "ada@example.com", "password123")
			Expect(err).To(MatchError(backend.ErrEmailTaken))
		})

		It("rejects a wrong password", func() {
			signUp("ada@example.com")
			_, err := b.Provider.SignIn(ctx, "ada@example.com", "nope-nope")
			Expect(err).To(MatchError(backend.ErrInvalidCredentials))
		})
	})

	Describe("profile table", func() {
		It("round-trips a profile and applies updates", func() {
			id := signUp("ada@example.com")
			name := "Ada"

			inserted, err := b.Profiles.Insert(ctx, backend.ProfileInsert{
				ID: id.ID, Email: id.Email, Username: "ada", DisplayName: &name, CreatedAt: id.CreatedAt,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted.Username).To(Equal("ada"))

			bio := "Runs the bakery on Bloomfield Ave"
			Expect(b.Profiles.Update(ctx, id.ID, backend.ProfileUpdate{
				Username: "ada_l", DisplayName: &name, Bio: &bio, UpdatedAt: id.CreatedAt,
			})).To(Succeed())

			got, err := b.Profiles.Get(ctx, id.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("ada_l"))
			Expect(*got.Bio).To(Equal(bio))
			Expect(got.UpdatedAt).NotTo(BeNil())
		})

		It("reports a missing profile as not found", func() {
			_, err := b.Profiles.Get(ctx, uuid.NewString())
			Expect(err).To(MatchError(backend.ErrNotFound))
		})

		It("lets exactly one of two racing inserts claim a username", func() {
			ids := []*backend.Identity{signUp("a@example.com"), signUp("b@example.com")}

			var wins, taken atomic.Int32
			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := b.Profiles.Insert(ctx, backend.ProfileInsert{
						ID: id.ID, Email: id.Email, Username: "contested", CreatedAt: id.CreatedAt,
					})
					switch {
					case err == nil:
						wins.Add(1)
					case errors.Is(err, backend.ErrUsernameTaken):
						taken.Add(1)
					}
				}()
			}
			wg.Wait()
			Expect(wins.Load()).To(Equal(int32(1)))
			Expect(taken.Load()).To(Equal(int32(1)))
		})

		It("finds usernames excluding the caller", func() {
			id := signUp("ada@example.com")
			_, err := b.Profiles.Insert(ctx, backend.ProfileInsert{ID: id.ID, Email: id.Email, Username: "ada", CreatedAt: id.CreatedAt})
			Expect(err).NotTo(HaveOccurred())

			rows, err := b.Profiles.FindByUsername(ctx, "ada", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))

			rows, err = b.Profiles.FindByUsername(ctx, "ada", id.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})
})
