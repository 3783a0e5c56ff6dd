package anticheat

import (
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	"github.com/felixgeelhaar/drillpad/internal/domain"
)

// Policy decides which flag kinds void an otherwise passing result. The
// remaining kinds are advisory.
type Policy struct {
	blocking mapset.Set[domain.FlagKind]
}

// DefaultPolicy blocks literal hardcoding and trivial echoes.
func DefaultPolicy() Policy {
	return NewPolicy(domain.FlagLiteralHardcode, domain.FlagTrivialEcho)
}

// NewPolicy creates a policy that blocks the given kinds.
func NewPolicy(blocking ...domain.FlagKind) Policy {
	return Policy{blocking: mapset.NewThreadUnsafeSet(blocking...)}
}

var knownKinds = []domain.FlagKind{
	domain.FlagLiteralHardcode,
	domain.FlagTrivialEcho,
	domain.FlagPatternBypass,
	domain.FlagSuspicious,
}

// ParsePolicy builds a policy from flag kind names such as
// "literal_hardcode".
func ParsePolicy(names []string) (Policy, error) {
	kinds := make([]domain.FlagKind, 0, len(names))
	for _, name := range names {
		kind := domain.FlagKind(name)
		if !lo.Contains(knownKinds, kind) {
			return Policy{}, fmt.Errorf("%w: unknown anti-cheat flag %q", domain.ErrInvalidInput, name)
		}
		kinds = append(kinds, kind)
	}
	return NewPolicy(kinds...), nil
}

// Blocks reports whether a flag of this kind voids a pass.
func (p Policy) Blocks(kind domain.FlagKind) bool {
	return p.blocking != nil && p.blocking.Contains(kind)
}

// Blocking returns the flags this policy treats as blocking.
func (p Policy) Blocking(flags []domain.AntiCheatFlag) []domain.AntiCheatFlag {
	return lo.Filter(flags, func(f domain.AntiCheatFlag, _ int) bool {
		return p.Blocks(f.Kind)
	})
}

// Kinds lists the blocking kinds in sorted order.
func (p Policy) Kinds() []domain.FlagKind {
	if p.blocking == nil {
		return nil
	}
	kinds := p.blocking.ToSlice()
	slices.Sort(kinds)
	return kinds
}
