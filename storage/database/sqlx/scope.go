package sqlxrepos

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Role predicates with no bound value.
const (
	allowAll = "1=1"
	denyAll  = "1=2" // blocks a whole role
)

// scopedQuery accumulates a role-scoped query with `?` placeholders.
// Build expands slice args (IN clauses) and rebinds to $n for postgres.
// The visibility predicate always lands in the WHERE clause before any
// caller-supplied filter.
type scopedQuery struct {
	sb      strings.Builder
	args    []interface{}
	clauses int
}

func newQuery(base string) *scopedQuery {
	q := &scopedQuery{}
	q.sb.WriteString(base)
	return q
}

// Push appends raw SQL (joins, GROUP BY).
func (q *scopedQuery) Push(sql string) *scopedQuery {
	q.sb.WriteString(sql)
	return q
}

// Where appends a condition, opening the WHERE clause on first use and
// ANDing afterwards. A slice arg expands to an IN list on Build.
func (q *scopedQuery) Where(cond string, args ...interface{}) *scopedQuery {
	if q.clauses == 0 {
		q.sb.WriteString(" WHERE ")
	} else {
		q.sb.WriteString(" AND ")
	}
	q.clauses++
	q.sb.WriteString(cond)
	q.args = append(q.args, args...)
	return q
}

func (q *scopedQuery) Build() (string, []interface{}, error) {
	query, args, err := sqlx.In(q.sb.String(), q.args...)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}

// contains builds a substring pattern for ILIKE matching.
func contains(s string) string {
	return "%" + s + "%"
}

// patch builds an UPDATE statement from only the columns actually set,
// so unset fields never touch the row.
type patch struct {
	cols []string
	args []interface{}
}

func newPatch() *patch {
	return &patch{}
}

func (p *patch) Set(col string, val interface{}) *patch {
	p.args = append(p.args, val)
	p.cols = append(p.cols, fmt.Sprintf("%s = $%d", col, len(p.args)))
	return p
}

func (p *patch) Empty() bool {
	return len(p.cols) == 0
}

// Query renders "UPDATE table SET ... WHERE keyCol = $n" with the key as
// the final bound arg.
func (p *patch) Query(table, keyCol string, key interface{}) (string, []interface{}) {
	args := append(p.args, key)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		table, strings.Join(p.cols, ", "), keyCol, len(args))
	return query, args
}
