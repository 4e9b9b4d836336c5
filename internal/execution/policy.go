// Package execution names the two scheduling policies shared by the index
// and the query engine.
package execution

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
)

// Policy selects how a single call distributes its work. Both policies
// produce the same logical result.
type Policy int

const (
	// Sequential runs everything on the calling goroutine.
	Sequential Policy = iota
	// Parallel fans work out across a bounded set of goroutines and joins
	// before returning.
	Parallel
)

func (p Policy) String() string {
	switch p {
	case Sequential:
		return "seq"
	case Parallel:
		return "par"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Parse maps "seq"/"sequential" and "par"/"parallel" to a Policy. The empty
// string yields def.
func Parse(s string, def Policy) (Policy, error) {
	switch s {
	case "":
		return def, nil
	case "seq", "sequential":
		return Sequential, nil
	case "par", "parallel":
		return Parallel, nil
	default:
		return def, apperrors.InvalidArgument("unknown execution policy %q", s)
	}
}
