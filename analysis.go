package nutmeg

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Matches the analysis kind quoted as `tran' inside a plot name.
var analysisPattern = regexp.MustCompile("`([^`']+)'")

// AnalysisName extracts the analysis label from a plot name, e.g. "tran" from
// "Transient Analysis `tran'". Names without such a label get a placeholder
// "dummy_" followed by five letters drawn from rnd, so the result differs
// from run to run unless rnd is seeded.
func AnalysisName(name string, rnd *rand.Rand) string {
	if label, ok := analysisLabel(name); ok {
		return label
	}
	return randomName(rnd)
}

func analysisLabel(name string) (string, bool) {
	match := analysisPattern.FindStringSubmatch(name)
	if match == nil {
		return "", false
	}

	label := strings.TrimSpace(match[1])
	return label, label != ""
}

func randomName(rnd *rand.Rand) string {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	letters := make([]byte, 5)
	for i := range letters {
		letters[i] = byte('a' + rnd.Intn(26))
	}
	return "dummy_" + string(letters)
}

// NamePolicy decides the key of plots whose name carries no analysis label.
type NamePolicy string

const (
	// NamePolicyRandom uses AnalysisName's "dummy_xxxxx" placeholders.
	NamePolicyRandom NamePolicy = "random"

	// NamePolicyIndex uses "plot<N>" with N the 0-based position in the file.
	NamePolicyIndex NamePolicy = "index"
)

func ParseNamePolicy(s string) (NamePolicy, error) {
	switch NamePolicy(s) {
	case NamePolicyRandom, NamePolicyIndex:
		return NamePolicy(s), nil
	case "":
		return NamePolicyRandom, nil
	default:
		return "", fmt.Errorf("unknown name policy %q, want %q or %q", s, NamePolicyRandom, NamePolicyIndex)
	}
}

// Keys derives one analysis name per plot. Collisions are kept as they are.
func (np NamePolicy) Keys(plots []*Plot, rnd *rand.Rand) []string {
	keys := make([]string, len(plots))
	for i, plot := range plots {
		if label, ok := analysisLabel(plot.Name); ok {
			keys[i] = label
			continue
		}

		if np == NamePolicyIndex {
			keys[i] = "plot" + strconv.Itoa(i)
		} else {
			keys[i] = AnalysisName(plot.Name, rnd)
		}
	}
	return keys
}
