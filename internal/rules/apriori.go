package rules

import (
	"math/bits"
	"strconv"
	"strings"
)

// bitset marks which transactions contain an item or itemset.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

func (b bitset) and(other bitset) bitset {
	out := make(bitset, len(b))
	for i := range b {
		out[i] = b[i] & other[i]
	}
	return out
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

type itemset struct {
	items []int
	rows  bitset
}

type encoding struct {
	total   int
	items   []bitset
	support map[string]float64
}

func encode(transactions [][]string, vocab []string) *encoding {
	index := make(map[string]int, len(vocab))
	for idx, skill := range vocab {
		index[skill] = idx
	}

	enc := &encoding{
		total:   len(transactions),
		items:   make([]bitset, len(vocab)),
		support: make(map[string]float64),
	}
	for idx := range enc.items {
		enc.items[idx] = newBitset(len(transactions))
	}
	for row, list := range transactions {
		for _, skill := range list {
			enc.items[index[skill]].set(row)
		}
	}
	return enc
}

func key(items []int) string {
	var sb strings.Builder
	for idx, item := range items {
		if idx > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(item))
	}
	return sb.String()
}

// frequentItemsets runs level-wise apriori and returns the frequent itemsets
// grouped by size. Every level is in lexicographic order of item indices.
func (e *encoding) frequentItemsets(minSupport float64, maxLen int) [][]itemset {
	total := float64(e.total)

	var level []itemset
	for idx, rows := range e.items {
		supp := float64(rows.count()) / total
		if supp >= minSupport {
			level = append(level, itemset{items: []int{idx}, rows: rows})
			e.support[key([]int{idx})] = supp
		}
	}

	var levels [][]itemset
	for size := 1; len(level) > 0; size++ {
		levels = append(levels, level)
		if maxLen > 0 && size >= maxLen {
			break
		}
		level = e.nextLevel(level, minSupport)
	}
	return levels
}

func (e *encoding) nextLevel(level []itemset, minSupport float64) []itemset {
	total := float64(e.total)
	var next []itemset

	for i := 0; i < len(level); i++ {
		for j := i + 1; j < len(level); j++ {
			a, b := level[i].items, level[j].items
			if !samePrefix(a, b) {
				break
			}

			last := b[len(b)-1]
			candidate := append(append(make([]int, 0, len(a)+1), a...), last)
			if !e.allSubsetsFrequent(candidate) {
				continue
			}

			rows := level[i].rows.and(e.items[last])
			supp := float64(rows.count()) / total
			if supp < minSupport {
				continue
			}
			e.support[key(candidate)] = supp
			next = append(next, itemset{items: candidate, rows: rows})
		}
	}
	return next
}

func samePrefix(a, b []int) bool {
	for idx := 0; idx < len(a)-1; idx++ {
		if a[idx] != b[idx] {
			return false
		}
	}
	return true
}

func (e *encoding) allSubsetsFrequent(candidate []int) bool {
	if len(candidate) <= 2 {
		return true
	}
	subset := make([]int, 0, len(candidate)-1)
	for skip := range candidate {
		subset = subset[:0]
		for idx, item := range candidate {
			if idx != skip {
				subset = append(subset, item)
			}
		}
		if _, ok := e.support[key(subset)]; !ok {
			return false
		}
	}
	return true
}

// deriveRules splits every frequent itemset into antecedent and consequent
// in every possible way and keeps the rules with enough lift.
func deriveRules(levels [][]itemset, support map[string]float64, vocab []string, minLift float64) []Rule {
	rules := []Rule{}
	for _, level := range levels {
		for _, set := range level {
			k := len(set.items)
			if k < 2 {
				continue
			}
			suppAll := support[key(set.items)]

			for mask := 1; mask < (1<<k)-1; mask++ {
				var ante, cons []int
				for idx, item := range set.items {
					if mask&(1<<idx) != 0 {
						ante = append(ante, item)
					} else {
						cons = append(cons, item)
					}
				}

				suppAnte := support[key(ante)]
				suppCons := support[key(cons)]
				if suppAnte == 0 || suppCons == 0 {
					continue
				}

				lift := (suppAll / suppAnte) / suppCons
				if lift < minLift {
					continue
				}

				rules = append(rules, Rule{
					Antecedent: names(ante, vocab),
					Consequent: names(cons, vocab),
					Lift:       lift,
				})
			}
		}
	}
	return rules
}

func names(items []int, vocab []string) []string {
	out := make([]string, len(items))
	for idx, item := range items {
		out[idx] = vocab[item]
	}
	return out
}
