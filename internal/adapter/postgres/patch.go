package postgres

import (
	"fmt"
	"strings"
)

// patchBuilder accumulates SET clauses for a partial UPDATE statement.
type patchBuilder struct {
	clauses []string
	args    []any
}

func newPatchBuilder() *patchBuilder {
	return &patchBuilder{}
}

// set adds a parameterized SET clause.
func (b *patchBuilder) set(column string, value any) {
	b.args = append(b.args, value)
	b.clauses = append(b.clauses, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

// setRaw adds a SET clause with a literal SQL expression (e.g. now()).
func (b *patchBuilder) setRaw(column, expr string) {
	b.clauses = append(b.clauses, fmt.Sprintf("%s = %s", column, expr))
}

// empty reports whether no parameterized clauses were added.
func (b *patchBuilder) empty() bool {
	return len(b.args) == 0
}

// update renders an UPDATE statement keyed on id, returning query and args.
func (b *patchBuilder) update(table, id string) (string, []any) {
	b.args = append(b.args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		table, strings.Join(b.clauses, ", "), len(b.args))
	return query, b.args
}
