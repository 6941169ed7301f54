// Package nsm stores trees in PostgreSQL tables with the nested set model.
//
// Every row carries an interval (lft, rgt). A node B is a descendant of A
// when A.lft < B.lft < A.rgt, so subtree, ancestor and path lookups are
// single set-based queries with no recursion.
//
// # Queries
//
// The *SQL functions build the statements and take table expressions, which
// are plain table names or parenthesized subqueries. The child side is always
// aliased "children". Accessor runs them with pgx named arguments and expands
// the "table::" placeholder to the configured prefix:
//
//	acc := nsm.New(nsm.WithPrefix("app_"))
//	users, err := nsm.Collect[User](acc.Descendants(ctx, pool, nsm.Select{
//		Columns:  "children.id, children.uname",
//		Parent:   "(SELECT * FROM table::users WHERE id = @id)",
//		Children: "(SELECT * FROM table::users)",
//		Args:     pgx.NamedArgs{"id": id},
//	}))
//
// # Maintenance
//
// BeforeInsertChild, Cleanup, InsertChild and Remove take a pgx.Tx and do not
// run without one. Shift and insert, or delete and cleanup, then commit or
// roll back together:
//
//	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//		_, err := acc.Remove(ctx, tx, "users", id, nsm.Filter{Cond: "lft IS NOT NULL"})
//		return err
//	})
//
// Nothing in this package retries.
//
// # Model
//
// Node, Shift, Renumber, Validate, Dense and Build apply the same rules to
// an in-memory slice. They are used to check a loaded table and in tests.
package nsm
