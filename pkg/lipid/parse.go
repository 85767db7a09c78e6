package lipid

import (
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Chain is the composition of one fatty acyl chain.
type Chain struct {
	NC int
	NU int
}

// ParsedName holds the parts of a lipid short name. Class is not checked
// against the class table, so names of classes the generator does not model
// still parse.
type ParsedName struct {
	Class  string
	NC     int
	NU     int
	Mod    string
	Chains []Chain // set only when per-chain notation was used
}

// String renders the sum composition name.
func (p ParsedName) String() string {
	return FormatName(p.Class, p.NC, p.NU, p.Mod)
}

// Species builds the species for a parsed name.
func (p ParsedName) Species() (*Species, error) {
	return New(p.Class, p.NC, p.NU, p.Mod)
}

var namePattern = regexp.MustCompile(
	`^([A-Za-z][A-Za-z0-9]*)\(([pdoe]?)([0-9]+):([0-9]+)(?:[/_]([0-9]+):([0-9]+))?(?:[/_]([0-9]+):([0-9]+))?\)`)

// Parse parses names of the form Class([mod]nc:nu) or
// Class([mod]nc:nu/nc:nu[/nc:nu]), summing per-chain compositions.
func Parse(name string) (ParsedName, error) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, errors.WithHint(
			errors.Newf("cannot parse lipid name %q", name),
			"expected Class([mod]nc:nu) or Class([mod]nc:nu/nc:nu)")
	}

	p := ParsedName{Class: m[1], Mod: m[2]}
	var chains []Chain
	for i := 3; i+1 < len(m); i += 2 {
		if m[i] == "" {
			continue
		}
		nc, err := strconv.Atoi(m[i])
		if err != nil {
			return ParsedName{}, errors.Wrapf(err, "lipid name %q", name)
		}
		nu, err := strconv.Atoi(m[i+1])
		if err != nil {
			return ParsedName{}, errors.Wrapf(err, "lipid name %q", name)
		}
		chains = append(chains, Chain{NC: nc, NU: nu})
		p.NC += nc
		p.NU += nu
	}
	if len(chains) > 1 {
		p.Chains = chains
	}
	return p, nil
}
