package auth

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect fixes the SQL driver and placeholder style for a backend. It is
// selected once at construction and never inferred from query text.
type Dialect struct {
	Name   string
	Driver string
	rebind func(string) string
}

var (
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite",
		rebind: func(q string) string { return q },
	}
	Postgres = Dialect{
		Name:   "postgres",
		Driver: "postgres",
		rebind: rebindDollar,
	}
)

func DialectByName(name string) (Dialect, error) {
	switch name {
	case "sqlite", "":
		return SQLite, nil
	case "postgres":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unknown database dialect %q", name)
}

// rebindDollar rewrites ? placeholders to the $1..$n form lib/pq expects.
func rebindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
