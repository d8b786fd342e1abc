package ids

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Generator produces a fresh value on every call. Implementations must never
// repeat a value within one registry lifetime.
type Generator interface {
	Next() string
}

type uniqueInteger struct {
	next int64
}

func (g *uniqueInteger) Next() string {
	g.next++
	return strconv.FormatInt(g.next, 10)
}

type uniqueString struct {
	prefix string
	next   int64
}

func (g *uniqueString) Next() string {
	g.next++
	return g.prefix + strconv.FormatInt(g.next, 10)
}

type uuidGenerator struct{}

func (uuidGenerator) Next() string {
	return uuid.NewString()
}

func newGenerator(kind, prefix string) (Generator, error) {
	switch kind {
	case "unique_integer":
		return &uniqueInteger{}, nil
	case "unique_string":
		return &uniqueString{prefix: prefix}, nil
	case "uuid":
		return uuidGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown generator kind: %q", kind)
	}
}
