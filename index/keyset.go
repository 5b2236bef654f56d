package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/uptrace/bun"

	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/trace"
)

var ErrCursorValues = errors.New("unable to decode cursor values")

// Cursor marks a position in a keyset-ordered result set. Next and Previous
// hold the serialized key values of the rows bounding a page.
type Cursor struct {
	Next     string
	Previous string
}

func (c Cursor) IsReverse() bool {
	return c.Previous != ""
}

func (c Cursor) Exists() bool {
	return c.Next != "" || c.Previous != ""
}

type SortOrder string

const (
	SortAscending  SortOrder = "ASC"
	SortDescending SortOrder = "DESC"
)

func (so SortOrder) Opposite() SortOrder {
	if so == SortAscending {
		return SortDescending
	}
	return SortAscending
}

type comparator string

const (
	comparatorGreater comparator = ">"
	comparatorLess    comparator = "<"
	comparatorEqual   comparator = "="
)

func (c comparator) opposite() comparator {
	switch c {
	case comparatorGreater:
		return comparatorLess
	case comparatorLess:
		return comparatorGreater
	default:
		return comparatorEqual
	}
}

// KeySort is one column of the keyset with its direction. Expr marks keys
// that are SQL expressions rather than plain column names.
type KeySort struct {
	Key  string
	Sort SortOrder
	Expr bool
}

func (k KeySort) String() string {
	return fmt.Sprintf("%s %s", k.Key, k.Sort)
}

func (k KeySort) Opposite() string {
	return fmt.Sprintf("%s %s", k.Key, k.Sort.Opposite())
}

// QueryOpts supplies the page size and position for a paginated query.
type QueryOpts interface {
	GetLimit() int
	GetCursor() Cursor
}

// Pageable describes how rows of type V are windowed by a keyset cursor.
// CursorValues and DecodeCursorValues must agree on order and encoding with
// KeySort.
type Pageable[V any] interface {
	KeySort() []KeySort
	CursorValues() []string
	DecodeCursorValues(values []string) ([]any, error)
	Unwrap() V
}

// Paginate runs query with keyset ordering and cursor windowing applied and
// returns one page of rows plus the cursors bounding it. A limit of zero
// returns everything in a single page.
func Paginate[V any, T Pageable[V]](ctx context.Context, query *bun.SelectQuery, opts QueryOpts) ([]*V, Cursor, error) {
	var data []T
	var cursor Cursor

	cur := opts.GetCursor()
	limit := opts.GetLimit()

	if cur.Exists() {
		var err error
		query, err = cursorWhere[V, T](query, cur)
		if err != nil {
			return nil, cursor, err
		}
	} else {
		query = keysetSort[V, T](query)
	}

	if limit > 0 {
		// fetch one row beyond the limit to learn whether another page exists
		query = query.Limit(limit + 1)
	}

	err := query.Scan(ctx, &data)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, cursor, errclass.Mark(trace.WrapError(err), errclass.Transient)
	}
	if len(data) == 0 {
		return nil, cursor, nil
	}

	if limit == 0 {
		if cur.IsReverse() {
			slices.Reverse(data)
		}
		return unwrapAll(data), cursor, nil
	}

	// The extra row is the last one in query order regardless of direction.
	more := len(data) > limit
	if more {
		data = data[:len(data)-1]
	}

	// A reverse query walks backward, so restore display order.
	if cur.IsReverse() {
		slices.Reverse(data)
	}

	first := strings.Join(data[0].CursorValues(), ",")
	last := strings.Join(data[len(data)-1].CursorValues(), ",")

	// Cursors stay empty in a direction with no further data.
	switch {
	case cur.IsReverse():
		cursor.Next = last
		if more {
			cursor.Previous = first
		}
	case cur.Exists():
		cursor.Previous = first
		if more {
			cursor.Next = last
		}
	default:
		// the first page has nothing before it
		if more {
			cursor.Next = last
		}
	}

	return unwrapAll(data), cursor, nil
}

func keysetSort[V any, T Pageable[V]](q *bun.SelectQuery) *bun.SelectQuery {
	var data T
	for _, ks := range data.KeySort() {
		if ks.Expr {
			q.OrderExpr(ks.String())
			continue
		}

		q.Order(ks.String())
	}
	return q
}

func keysetReverseSort[V any, T Pageable[V]](q *bun.SelectQuery) *bun.SelectQuery {
	var data T
	for _, ks := range data.KeySort() {
		if ks.Expr {
			q.OrderExpr(ks.Opposite())
			continue
		}
		q.Order(ks.Opposite())
	}
	return q
}

type clause struct {
	key        string
	comparator comparator
	value      any
}

func (cl clause) String() string {
	return fmt.Sprintf("%s %s ?", cl.key, cl.comparator)
}

func (cl clause) equalityString() string {
	return fmt.Sprintf("%s %s ?", cl.key, comparatorEqual)
}

func cursorWhere[V any, T Pageable[V]](q *bun.SelectQuery, cur Cursor) (*bun.SelectQuery, error) {
	var data T

	cursorValue := cur.Next
	if cur.IsReverse() {
		cursorValue = cur.Previous
	}
	values, err := data.DecodeCursorValues(strings.Split(cursorValue, ","))
	if err != nil {
		return nil, trace.WrapError(err)
	}

	keySort := data.KeySort()
	if len(values) != len(keySort) {
		return nil, errclass.Mark(trace.WrapError(ErrCursorValues), errclass.Persistent)
	}

	clauses := make([]clause, 0, len(keySort))
	for i, ks := range keySort {
		cl := clause{
			key:   ks.Key,
			value: values[i],
		}

		if ks.Sort == SortAscending {
			cl.comparator = comparatorGreater
		} else {
			cl.comparator = comparatorLess
		}

		// Walking backward flips every comparison; the results get reversed
		// again before being returned.
		if cur.IsReverse() {
			cl.comparator = cl.comparator.opposite()
		}
		clauses = append(clauses, cl)
	}

	// Each clause considers equality of the ones before it, then all are
	// OR'd together. With two keys the where clause reads:
	// `WHERE (key1 > ?) OR (key1 = ? AND key2 > ?)`
	fullClauses := make([]string, 0, len(clauses))
	numValues := (len(clauses) * (len(clauses) + 1)) / 2 // sum of 1 to n
	valueSet := make([]any, 0, numValues)

	for i, cl := range clauses {
		subClauses := make([]string, 0, i+1)
		for _, previous := range clauses[:i] {
			subClauses = append(subClauses, previous.equalityString())
			valueSet = append(valueSet, previous.value)
		}
		subClauses = append(subClauses, cl.String())
		valueSet = append(valueSet, cl.value)
		fullClauses = append(fullClauses, fmt.Sprintf("(%s)", strings.Join(subClauses, " AND ")))
	}

	q = q.Where(strings.Join(fullClauses, " OR "), valueSet...)

	// Sort in walk direction; reverse pages get flipped back afterward.
	if cur.IsReverse() {
		return keysetReverseSort[V, T](q), nil
	}
	return keysetSort[V, T](q), nil
}

func unwrapAll[V any, T Pageable[V]](rows []T) []*V {
	out := make([]*V, 0, len(rows))
	for _, row := range rows {
		value := row.Unwrap()
		out = append(out, &value)
	}
	return out
}
