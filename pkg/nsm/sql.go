package nsm

import "strings"

// ChildAlias is the alias every builder gives the child side of a join.
// Column lists and filters refer to child rows through it.
const ChildAlias = "children"

// TablePrefix is replaced by the accessor's configured prefix in table
// expressions, e.g. "(SELECT * FROM table::users WHERE id = @id)".
const TablePrefix = "table::"

// Table expressions passed to the builders are either plain table names or
// parenthesized subqueries. An empty children (or middle) expression
// defaults to the parent expression.

// DescendantsSQL selects every node strictly inside the parent interval.
// extensions is appended verbatim (ORDER BY, LIMIT, extra AND terms).
func DescendantsSQL(columns, parent, children, extensions string) string {
	children = or(children, parent)
	return "SELECT " + columns +
		" FROM " + parent + " parent" +
		" LEFT OUTER JOIN " + children + " " + ChildAlias +
		" ON " + ChildAlias + ".lft > parent.lft" +
		" AND " + ChildAlias + ".lft < parent.rgt" +
		" WHERE " + ChildAlias + ".id IS NOT NULL" + extensions
}

// ChildrenSQL selects direct children: descendants with no other node of
// the tree sitting between them and the parent.
func ChildrenSQL(columns, parent, midparent, children, filters string) string {
	midparent = or(midparent, parent)
	children = or(children, parent)
	return "SELECT " + columns +
		" FROM " + parent + " parent" +
		" LEFT OUTER JOIN " + children + " " + ChildAlias +
		" ON " + ChildAlias + ".lft > parent.lft" +
		" AND " + ChildAlias + ".lft < parent.rgt" +
		" WHERE NOT EXISTS (" +
		"SELECT * FROM " + midparent + " midparent" +
		" WHERE midparent.lft BETWEEN parent.lft AND parent.rgt" +
		" AND " + ChildAlias + ".lft BETWEEN midparent.lft AND midparent.rgt" +
		" AND midparent.id NOT IN (" + ChildAlias + ".id, parent.id)" +
		")" + pad(filters)
}

// RootSQL selects nodes that no parent-side node contains.
func RootSQL(columns, parent, children string) string {
	children = or(children, parent)
	return "SELECT " + columns +
		" FROM " + children + " " + ChildAlias +
		" WHERE NOT EXISTS (" +
		"SELECT * FROM " + parent + " parent" +
		" WHERE " + ChildAlias + ".lft > parent.lft" +
		" AND " + ChildAlias + ".lft < parent.rgt" +
		")"
}

// ParentSQL selects the id of the immediate parent of each child row: the
// enclosing node with the greatest lft. Roots yield a NULL id.
func ParentSQL(parent, children string) string {
	children = or(children, parent)
	return "SELECT parent.id" +
		" FROM " + children + " " + ChildAlias +
		" LEFT OUTER JOIN " + parent + " parent" +
		" ON parent.lft < " + ChildAlias + ".lft" +
		" AND parent.lft = (SELECT MAX(lft) FROM " + parent + " child" +
		" WHERE " + ChildAlias + ".lft > child.lft" +
		" AND " + ChildAlias + ".lft < child.rgt)"
}

// ParentsSQL selects the ancestor chain of @child_id, root first. With
// bounded set, only ancestors with lft >= @lower_bound are returned.
func ParentsSQL(columns, parent, children string, bounded bool) string {
	children = or(children, parent)
	var filters string
	if bounded {
		filters = " AND parent.lft >= @lower_bound"
	}
	return "SELECT " + columns +
		" FROM " + children + " " + ChildAlias +
		" JOIN " + parent + " parent" +
		" ON " + ChildAlias + ".lft > parent.lft" +
		" AND " + ChildAlias + ".lft < parent.rgt" +
		" WHERE " + ChildAlias + ".id = @child_id" + filters +
		" ORDER BY parent.lft"
}

// PositionSQL selects the insertion boundary of each parent row: the rgt of
// its last direct child, or its own lft when it has none, plus its rgt.
func PositionSQL(parent, children string) string {
	children = or(children, parent)
	return "SELECT COALESCE(MAX(child.rgt), parent.lft) AS lft, parent.rgt AS rgt" +
		" FROM " + parent + " parent" +
		" LEFT OUTER JOIN " + children + " child" +
		" ON parent.lft = (SELECT MAX(lft) FROM " + children + " " + ChildAlias +
		" WHERE child.lft > " + ChildAlias + ".lft" +
		" AND child.lft < " + ChildAlias + ".rgt)" +
		" GROUP BY parent.id, parent.lft, parent.rgt"
}

// CountSQL counts direct children per parent row.
func CountSQL(parent, children string) string {
	children = or(children, parent)
	return "SELECT parent.id, COUNT(" + ChildAlias + ".id) AS cnt" +
		" FROM " + parent + " parent" +
		" LEFT OUTER JOIN " + children + " " + ChildAlias +
		" ON parent.lft = (SELECT MAX(lft) FROM " + children + " child" +
		" WHERE " + ChildAlias + ".lft > child.lft" +
		" AND " + ChildAlias + ".lft < child.rgt)" +
		" GROUP BY parent.id"
}

// PathSQL selects the nodes from @top_id down to @bottom_id, both included,
// in root-to-leaf order.
func PathSQL(columns, top, middle, bottom string) string {
	middle = or(middle, top)
	bottom = or(bottom, top)
	return "SELECT " + columns +
		" FROM " + top + " top, " + middle + " middle, " + bottom + " bottom" +
		" WHERE top.id = @top_id" +
		" AND bottom.id = @bottom_id" +
		" AND middle.lft BETWEEN top.lft AND top.rgt" +
		" AND bottom.lft BETWEEN middle.lft AND middle.rgt" +
		" ORDER BY middle.lft"
}

// BeforeInsertChildSQL makes room for a subtree of width @offset at
// @parent_rgt. option is appended to the WHERE clause, e.g. " AND rgt IS NOT NULL".
func BeforeInsertChildSQL(table, option string) string {
	return "UPDATE " + table +
		" SET lft = CASE WHEN lft > @parent_rgt THEN lft + @offset ELSE lft END," +
		" rgt = CASE WHEN rgt >= @parent_rgt THEN rgt + @offset ELSE rgt END" +
		" WHERE rgt >= @parent_rgt" + option
}

// RemoveSQL deletes the subtree between @lft and @rgt. option narrows it to
// one tree of a shared table.
func RemoveSQL(table, option string) string {
	return "DELETE FROM " + table + " WHERE lft BETWEEN @lft AND @rgt" + option
}

// CleanupSQL renumbers every boundary to its rank among all boundaries of
// the rows selected by where. where must be empty or start with WHERE.
func CleanupSQL(table, where string) string {
	where = pad(where)
	seq := "SELECT lft AS seq FROM " + table + where +
		" UNION ALL SELECT rgt AS seq FROM " + table + where
	return "UPDATE " + table +
		" SET lft = (SELECT COUNT(*) FROM (" + seq + ") boundaries WHERE seq <= lft)," +
		" rgt = (SELECT COUNT(*) FROM (" + seq + ") boundaries WHERE seq <= rgt)" +
		where
}

// whereClause turns a bare condition into a WHERE clause.
func whereClause(cond string) string {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return ""
	}
	if len(cond) > 6 && strings.EqualFold(cond[:6], "where ") {
		return cond
	}
	return "WHERE " + cond
}

// andClause turns a bare condition into an AND term.
func andClause(cond string) string {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return ""
	}
	if len(cond) > 4 && strings.EqualFold(cond[:4], "and ") {
		return " " + cond
	}
	return " AND " + cond
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func pad(s string) string {
	if s == "" || strings.HasPrefix(s, " ") {
		return s
	}
	return " " + s
}
