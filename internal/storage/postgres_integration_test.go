// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

//go:build integration

package storage_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/internal/storage"
)

var _ = Describe("PostgresStore", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		store     *storage.PostgresStore
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("npcforge_test"),
			postgres.WithUsername("npcforge"),
			postgres.WithPassword("npcforge"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		store, err = storage.OpenPostgres(ctx, connStr, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if store != nil {
			store.Close()
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	record := func(id entity.ID, name string) storage.Record {
		e, err := entity.New(id, entity.Config{
			Kind:     entity.KindHuman,
			Name:     name,
			World:    "lobby",
			Position: mgl64.Vec3{0, 64, 0},
			Flags:    entity.DefaultFlags(),
		})
		Expect(err).NotTo(HaveOccurred())
		return storage.FromEntity(e)
	}

	It("reports an unmigrated database", func() {
		_, err := store.LoadAll(ctx)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("entities"))

		status, err := store.SchemaStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(BeZero())
		Expect(status.Err()).To(HaveOccurred())
	})

	It("migrates up", func() {
		m, err := storage.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer m.Close()

		Expect(m.Up()).To(Succeed())
		status, err := m.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Pending).To(BeEmpty())

		Expect(m.Steps(-1)).To(Succeed())
		status, err = store.SchemaStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Pending).To(HaveLen(1))

		Expect(m.Steps(1)).To(Succeed())
		status, err = store.SchemaStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Err()).NotTo(HaveOccurred())
	})

	It("saves, replaces and loads records", func() {
		Expect(store.Save(ctx, record(2, "Guide"))).To(Succeed())
		Expect(store.Save(ctx, record(1, "Keeper"))).To(Succeed())
		Expect(store.Save(ctx, record(2, "Guide v2"))).To(Succeed())

		recs, err := store.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(2))
		Expect(recs[0].ID).To(Equal(int64(1)))
		Expect(recs[1].Name).To(Equal("Guide v2"))
	})

	It("deletes records", func() {
		existed, err := store.Delete(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(existed).To(BeTrue())

		existed, err = store.Delete(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(existed).To(BeFalse())
	})

	It("round-trips through the retrying wrapper", func() {
		s := storage.WithRetry(store, storage.DefaultRetryAttempts, storage.DefaultRetryBase)
		Expect(s.Save(ctx, record(9, "Retry"))).To(Succeed())
		recs, err := s.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(ContainElement(HaveField("ID", int64(9))))
	})
})
