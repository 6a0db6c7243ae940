package analysis

import (
	"context"
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/KaramelBytes/microlens-cli/internal/exposure"
	"github.com/KaramelBytes/microlens-cli/internal/table"
)

const (
	MinSupport    = 0.2
	MinConfidence = 0.6

	// maxMiningColumns bounds the itemset lattice (2^16 candidates at most).
	maxMiningColumns = 16
	// eps absorbs rounding in support/confidence threshold comparisons.
	eps = 1e-12
)

// Rule is an association rule between disjoint sets of "high" food sources.
type Rule struct {
	Antecedent []string // column identifiers, table order
	Consequent []string
	Support    float64
	Confidence float64
	Lift       float64
}

// Implication renders the rule as a sentence using registry display names.
func (r Rule) Implication() string {
	return fmt.Sprintf("Countries with high %s consumption often also have high %s exposure",
		displayNames(r.Antecedent), displayNames(r.Consequent))
}

func displayNames(ids []string) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = exposure.DisplayName(id)
	}
	return strings.Join(names, ", ")
}

// Mining is the Pattern Miner result. Rules is never nil.
type Mining struct {
	Rules   []Rule
	Outcome Outcome
}

// MineRules binarizes every column (value above the column median is "high")
// and runs Apriori over the result. Tables where no itemset reaches MinSupport,
// cancellation and internal faults all produce an empty rule list.
func MineRules(ctx context.Context, t *table.Table) (res Mining) {
	res = Mining{Rules: []Rule{}}
	defer func() {
		if r := recover(); r != nil {
			res = Mining{Rules: []Rule{}, Outcome: failed("mining fault: %v", r)}
		}
	}()
	n := t.Len()
	if n == 0 {
		res.Outcome = degenerate("no rows to mine")
		return res
	}

	high := binarize(t)
	cols := selectColumns(high, len(t.Columns))
	rowMasks := make([]uint32, n)
	for i := range high {
		for b, j := range cols {
			if high[i][j] {
				rowMasks[i] |= 1 << uint(b)
			}
		}
	}

	support, err := apriori(ctx, rowMasks, len(cols))
	if err != nil {
		res.Outcome = failed("pattern mining cancelled: %v", err)
		return res
	}
	dropped := droppedColumns(t.Columns, cols)
	if len(support) == 0 {
		res.Outcome = degenerate("no itemset reaches %.0f%% support%s", MinSupport*100, notMined(dropped))
		return res
	}

	names := func(mask uint32) []string {
		var out []string
		for b, j := range cols {
			if mask&(1<<uint(b)) != 0 {
				out = append(out, t.Columns[j])
			}
		}
		return out
	}
	for set, sup := range support {
		if bits.OnesCount32(set) < 2 {
			continue
		}
		for ante := (set - 1) & set; ante > 0; ante = (ante - 1) & set {
			cons := set ^ ante
			conf := sup / support[ante]
			if conf+eps < MinConfidence {
				continue
			}
			res.Rules = append(res.Rules, Rule{
				Antecedent: names(ante),
				Consequent: names(cons),
				Support:    sup,
				Confidence: conf,
				Lift:       conf / support[cons],
			})
		}
	}
	sortRules(res.Rules)
	if len(dropped) > 0 {
		res.Outcome = degenerate("mined the %d most variable of %d columns%s",
			len(cols), len(t.Columns), notMined(dropped))
	} else {
		res.Outcome = okOutcome()
	}
	return res
}

// binarize marks cells strictly above their column median.
func binarize(t *table.Table) [][]bool {
	out := make([][]bool, t.Len())
	for i := range out {
		out[i] = make([]bool, len(t.Columns))
	}
	for j := range t.Columns {
		col := t.Column(j)
		med := median(col)
		for i, v := range col {
			out[i][j] = v > med
		}
	}
	return out
}

// selectColumns returns every column index when at most maxMiningColumns exist,
// otherwise the most variable binarized columns (ties to the lower index) in
// table order.
func selectColumns(high [][]bool, ncol int) []int {
	idx := make([]int, ncol)
	for j := range idx {
		idx[j] = j
	}
	if ncol <= maxMiningColumns {
		return idx
	}
	n := float64(len(high))
	variance := make([]float64, ncol)
	for j := 0; j < ncol; j++ {
		var cnt float64
		for i := range high {
			if high[i][j] {
				cnt++
			}
		}
		p := cnt / n
		variance[j] = p * (1 - p)
	}
	sort.SliceStable(idx, func(a, b int) bool { return variance[idx[a]] > variance[idx[b]] })
	idx = idx[:maxMiningColumns]
	sort.Ints(idx)
	return idx
}

// droppedColumns lists, in table order, the columns absent from kept.
func droppedColumns(all []string, kept []int) []string {
	in := make(map[int]bool, len(kept))
	for _, j := range kept {
		in[j] = true
	}
	var out []string
	for j, c := range all {
		if !in[j] {
			out = append(out, c)
		}
	}
	return out
}

func notMined(dropped []string) string {
	if len(dropped) == 0 {
		return ""
	}
	return "; not mined: " + strings.Join(dropped, ", ")
}

// apriori returns the support of every frequent itemset, keyed by item bitmask.
func apriori(ctx context.Context, rows []uint32, nitems int) (map[uint32]float64, error) {
	n := float64(len(rows))
	supportOf := func(set uint32) float64 {
		var cnt int
		for _, r := range rows {
			if r&set == set {
				cnt++
			}
		}
		return float64(cnt) / n
	}
	frequent := map[uint32]float64{}
	var level []uint32
	for b := 0; b < nitems; b++ {
		set := uint32(1) << uint(b)
		if s := supportOf(set); s+eps >= MinSupport {
			frequent[set] = s
			level = append(level, set)
		}
	}
	for size := 2; len(level) > 0 && size <= nitems; size++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen := map[uint32]bool{}
		var next []uint32
		for a := 0; a < len(level); a++ {
			for b := a + 1; b < len(level); b++ {
				cand := level[a] | level[b]
				if bits.OnesCount32(cand) != size || seen[cand] {
					continue
				}
				seen[cand] = true
				if !allSubsetsFrequent(cand, frequent) {
					continue
				}
				if s := supportOf(cand); s+eps >= MinSupport {
					frequent[cand] = s
					next = append(next, cand)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		level = next
	}
	return frequent, nil
}

func allSubsetsFrequent(set uint32, frequent map[uint32]float64) bool {
	for rest := set; rest != 0; rest &= rest - 1 {
		bit := rest & -rest
		if _, ok := frequent[set^bit]; !ok {
			return false
		}
	}
	return true
}

func sortRules(rules []Rule) {
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		if x, y := strings.Join(a.Antecedent, ","), strings.Join(b.Antecedent, ","); x != y {
			return x < y
		}
		return strings.Join(a.Consequent, ",") < strings.Join(b.Consequent, ",")
	})
}
