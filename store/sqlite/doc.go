// Package sqlite provides a SQLite-backed persistence collaborator for the
// memory engine, ideal for single-node deployments that want durability
// without an external database server.
//
// Embeddings and keyword sets are stored as JSON columns; nearest-neighbor
// queries load the owner's entries and rank them client-side. Facts and
// relationships cascade on entry deletion through foreign keys.
//
//	st, err := sqlite.NewSqliteStore(sqlite.SqliteOptions{Path: "./memories.db"})
//	if err != nil {
//		return err
//	}
//	defer st.Close()
package sqlite
