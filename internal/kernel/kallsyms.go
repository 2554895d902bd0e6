package kernel

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const KALLSYMS_PATH = "/proc/kallsyms"

type symbol struct {
	addr uint64
	name string
}

// Kallsyms resolves kernel addresses into symbol+offset strings. Bear in
// mind addresses will all read as 0 unless we're privileged enough (see
// kptr_restrict in proc(5)), in which case resolution is simply disabled.
type Kallsyms struct {
	syms []symbol
}

func LoadKallsyms(path string) (*Kallsyms, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %q: %w", path, err)
	}
	defer f.Close()

	return ParseKallsyms(f)
}

// ParseKallsyms reads lines such as
//
//	ffffffff81c6b2a0 T kfree_skb_reason
//	ffffffffc0a01000 t nf_hook_slow	[nf_tables]
//
// keeping text symbols only, as those are the only ones drops can be
// attributed to.
func ParseKallsyms(r io.Reader) (*Kallsyms, error) {
	k := Kallsyms{}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}

		if t := strings.ToLower(fields[1]); t != "t" && t != "w" {
			continue
		}

		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil || addr == 0 {
			continue
		}

		k.syms = append(k.syms, symbol{addr: addr, name: fields[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading kallsyms: %w", err)
	}

	sort.Slice(k.syms, func(i, j int) bool { return k.syms[i].addr < k.syms[j].addr })

	return &k, nil
}

func (k *Kallsyms) Len() int {
	return len(k.syms)
}

// Resolve finds the closest symbol at or below pc.
func (k *Kallsyms) Resolve(pc uint64) (string, bool) {
	i := sort.Search(len(k.syms), func(i int) bool { return k.syms[i].addr > pc })
	if i == 0 {
		return "", false
	}

	s := k.syms[i-1]
	return fmt.Sprintf("%s+%#x", s.name, pc-s.addr), true
}
