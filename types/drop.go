package types

import "fmt"

// DropPoint is a single entry of a drop monitor alert: a kernel location
// and the number of packets dropped there since the previous alert. The
// struct tags control how drops are rendered when reporting JSON.
type DropPoint struct {
	PC     uint64 `structs:"pc"`
	Count  uint32 `structs:"count"`
	Symbol string `structs:"symbol,omitempty"`
}

func (p DropPoint) Location() string {
	return fmt.Sprintf("%#x", p.PC)
}

func (p DropPoint) String() string {
	if p.Symbol != "" {
		return fmt.Sprintf("%d drops at %s (%s)", p.Count, p.Symbol, p.Location())
	}
	return fmt.Sprintf("%d drops at location %s", p.Count, p.Location())
}
