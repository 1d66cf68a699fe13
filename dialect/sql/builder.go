package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/syssam/sqlmapper/dialect"
)

// ErrNoValue is recorded when NoValue is bound where a real value is required.
var ErrNoValue = errors.New("dialect/sql: NoValue used as a value")

type noValue struct{}

func (noValue) String() string { return "<no value>" }

// NoValue marks an absent value. It is distinct from nil, which binds as SQL NULL.
var NoValue any = noValue{}

// IsNoValue reports whether v is the NoValue sentinel.
func IsNoValue(v any) bool {
	_, ok := v.(noValue)
	return ok
}

// Builder is a SQL statement builder that tracks bound arguments and
// renders placeholders and identifiers in the syntax of one dialect.
//
//	b := sql.Dialect(dialect.Postgres)
//	b.WriteString("SELECT * FROM ").Ident("book").WriteString(" WHERE ").Ident("id").WriteString(" = ").Arg(1)
//	query, args := b.Query() // SELECT * FROM "book" WHERE "id" = $1, [1]
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	errs    []error
}

// Dialect creates a new Builder for the given dialect.
func Dialect(name string) *Builder {
	return &Builder{dialect: name}
}

// Dialect returns the dialect of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// Quote quotes a single identifier in the dialect's quoting style.
func (b *Builder) Quote(ident string) string {
	return Quote(b.dialect, ident)
}

// Quote quotes a single identifier for the given dialect.
func Quote(name, ident string) string {
	if name == dialect.Postgres {
		return pq.QuoteIdentifier(ident)
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// Ident writes a quoted identifier. Qualified names ("table.column") have each
// part quoted, and "*" or a trailing ".*" is written as is.
func (b *Builder) Ident(s string) *Builder {
	name, star := strings.CutSuffix(s, ".*")
	switch {
	case s == "*":
		b.sb.WriteString(s)
	case !IsValidIdentifier(name):
		b.AddError(fmt.Errorf("dialect/sql: invalid identifier %q", s))
	default:
		for i, part := range strings.Split(name, ".") {
			if i > 0 {
				b.sb.WriteByte('.')
			}
			b.sb.WriteString(b.Quote(part))
		}
		if star {
			b.sb.WriteString(".*")
		}
	}
	return b
}

// IdentComma writes a comma-separated list of quoted identifiers.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// WriteString writes a raw SQL fragment.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte writes a single raw byte.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad writes a space.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// placeholder writes the next placeholder.
func (b *Builder) placeholder() {
	if b.dialect == dialect.Postgres {
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(len(b.args)))
		return
	}
	b.sb.WriteByte('?')
}

// Arg binds a value and writes its placeholder.
func (b *Builder) Arg(v any) *Builder {
	if IsNoValue(v) {
		b.AddError(ErrNoValue)
		return b
	}
	b.args = append(b.args, v)
	b.placeholder()
	return b
}

// Args binds values and writes their placeholders separated by commas.
func (b *Builder) Args(vs ...any) *Builder {
	for i := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(vs[i])
	}
	return b
}

// Raw writes a caller-supplied SQL fragment, binding args to its "?"
// placeholders in order. Placeholders are rewritten to the dialect's syntax;
// question marks inside single-quoted literals are left untouched.
func (b *Builder) Raw(fragment string, args ...any) *Builder {
	var (
		n       int
		quoted  bool
		segment strings.Builder
	)
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		switch {
		case c == '\'':
			quoted = !quoted
			segment.WriteByte(c)
		case c == '?' && !quoted:
			b.sb.WriteString(segment.String())
			segment.Reset()
			if n >= len(args) {
				b.AddError(fmt.Errorf("dialect/sql: missing argument for placeholder %d in %q", n+1, fragment))
				return b
			}
			b.Arg(args[n])
			n++
		default:
			segment.WriteByte(c)
		}
	}
	b.sb.WriteString(segment.String())
	if n != len(args) {
		b.AddError(fmt.Errorf("dialect/sql: %d arguments for %d placeholders in %q", len(args), n, fragment))
	}
	return b
}

// Literal writes v as an inline SQL literal. It is used where the backend
// does not accept bound parameters, such as DEFAULT clauses in DDL.
func (b *Builder) Literal(v any) *Builder {
	lit, err := Literal(b.dialect, v)
	if err != nil {
		b.AddError(err)
		return b
	}
	b.sb.WriteString(lit)
	return b
}

// Literal renders v as a SQL literal of the given dialect.
func Literal(name string, v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case noValue:
		return "", ErrNoValue
	case string:
		return quoteString(name, v), nil
	case []byte:
		return quoteString(name, string(v)), nil
	case bool:
		if name == dialect.Postgres {
			return strings.ToUpper(strconv.FormatBool(v)), nil
		}
		if v {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return quoteString(name, v.UTC().Format("2006-01-02 15:04:05.999999")), nil
	case fmt.Stringer:
		return quoteString(name, v.String()), nil
	default:
		return "", fmt.Errorf("dialect/sql: unsupported literal type %T", v)
	}
}

func quoteString(name, s string) string {
	switch name {
	case dialect.Postgres:
		return pq.QuoteLiteral(s)
	case dialect.MySQL:
		return "'" + escapeStringValue(s) + "'"
	default:
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}

// AddError records an error to be reported by Err and Query.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns the errors recorded while building, joined.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Query returns the statement text and its bound arguments.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// String returns the statement text.
func (b *Builder) String() string {
	return b.sb.String()
}
