package dropmon

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/structs"

	"github.com/scitags/dropwatch-go/types"
)

// Resolver turns kernel addresses into something humans can read.
type Resolver interface {
	Resolve(pc uint64) (string, bool)
}

// Reporter prints drop points as they come in.
type Reporter interface {
	Report(p types.DropPoint) error
}

type Format int

const (
	Text Format = iota
	JSON
)

var formatMap = map[string]Format{
	"text": Text,
	"json": JSON,
}

func ParseFormat(s string) (Format, bool) {
	f, ok := formatMap[strings.ToLower(s)]
	return f, ok
}

// NewReporter builds a reporter writing to w. The resolver can be nil.
func NewReporter(f Format, w io.Writer, r Resolver) Reporter {
	if f == JSON {
		return &JSONReporter{enc: json.NewEncoder(w), resolver: r}
	}
	return &TextReporter{w: w, resolver: r}
}

func resolve(r Resolver, p types.DropPoint) types.DropPoint {
	if r == nil {
		return p
	}
	if sym, ok := r.Resolve(p.PC); ok {
		p.Symbol = sym
	}
	return p
}

// TextReporter writes a line per drop point.
type TextReporter struct {
	w        io.Writer
	resolver Resolver
}

func (r *TextReporter) Report(p types.DropPoint) error {
	if _, err := fmt.Fprintln(r.w, resolve(r.resolver, p)); err != nil {
		return fmt.Errorf("error reporting drop point: %w", err)
	}
	return nil
}

// JSONReporter writes a JSON object per drop point. The object's keys are
// driven by the `structs` tags on types.DropPoint.
type JSONReporter struct {
	enc      *json.Encoder
	resolver Resolver
}

func (r *JSONReporter) Report(p types.DropPoint) error {
	m := structs.Map(resolve(r.resolver, p))
	m["location"] = p.Location()

	if err := r.enc.Encode(m); err != nil {
		return fmt.Errorf("error encoding drop point: %w", err)
	}
	return nil
}
