// Package fieldbook is the composition root for the fieldbook application.
//
// It connects the domain (scoped repositories over a document store and the
// sync engine) with the infrastructure adapters using the Hexagonal
// Architecture pattern.
//
// Philosophy:
//
// Field workers register records (children, enquiries) with no connectivity.
// Every record is stored locally first and reconciled with the central server
// later. The store backend is pluggable: SQLite by default, a directory of
// JSON/YAML files, or memory for tests.
//
// Features:
//
//   - **Offline First**: records are written locally and flagged unsynced until the server acknowledges them.
//   - **Owner Scoped**: every repository is bound to one user; records of other users are invisible.
//   - **Merge on Write**: creating an existing record merges fields instead of replacing the row.
//   - **Tiered Sync**: verified users push and pull, unverified users only push their own records.
//   - **Single Record Sync**: reconcile one record on demand, from any tier.
//
// Usage:
//
//	store, err := fieldbook.Open(ctx, fieldbook.WithAdapter("sqlite"), fieldbook.WithPath("fieldbook.db"))
//
//	children, err := fieldbook.NewRepository(store, core.KindChild, "worker1")
//	rec, err := children.Create(ctx, core.NewRecord(core.KindChild, core.Fields{"name": "Ama"}))
//
//	engine, err := fieldbook.NewEngine(store, remote, core.StaticUser{Username: "worker1"})
//	res, err := engine.Run(ctx)
package fieldbook
