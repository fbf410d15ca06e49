package xsd

import (
	"encoding/xml"
	"sort"
)

const (
	// occurrence bounds above this value are treated as unbounded.
	MAX_EXPANDED_OCCURS  = 64
	MAX_AUTOMATON_STATES = 20_000
)

// automaton is a non-deterministic finite automaton recognizing the sequences of child elements
// permitted by a content model. xs:all groups are not expressed as an automaton.
type automaton struct {
	states []nfaState
	start  int
	final  int

	all *Particle
}

type nfaState struct {
	epsilons []int
	edges    []edge
}

type edge struct {
	term *Particle
	to   int
}

func newAutomaton(content *Particle) *automaton {
	if content == nil {
		return nil
	}
	a := &automaton{}
	if content.Kind == AllParticle {
		a.all = content
		return a
	}
	a.start, a.final = a.build(content)
	return a
}

func (a *automaton) newState() int {
	a.states = append(a.states, nfaState{})
	return len(a.states) - 1
}

func (a *automaton) epsilon(from, to int) {
	a.states[from].epsilons = append(a.states[from].epsilons, to)
}

// build adds the states recognizing the particle and its occurrences.
func (a *automaton) build(p *Particle) (start, end int) {
	min, max := p.Min, p.Max
	if min > MAX_EXPANDED_OCCURS {
		min = MAX_EXPANDED_OCCURS
	}
	if max > MAX_EXPANDED_OCCURS || len(a.states) > MAX_AUTOMATON_STATES {
		max = UNBOUNDED
	}
	if len(a.states) > MAX_AUTOMATON_STATES && min > 1 {
		min = 1
	}

	start = a.newState()
	end = start

	for i := 0; i < min; i++ {
		s, e := a.buildTerm(p)
		a.epsilon(end, s)
		end = e
	}

	if max == UNBOUNDED {
		loopStart := a.newState()
		loopEnd := a.newState()
		s, e := a.buildTerm(p)
		a.epsilon(loopStart, s)
		a.epsilon(e, loopStart)
		a.epsilon(loopStart, loopEnd)
		a.epsilon(end, loopStart)
		return start, loopEnd
	}

	optionalEnd := a.newState()
	for i := min; i < max; i++ {
		s, e := a.buildTerm(p)
		a.epsilon(end, s)
		a.epsilon(end, optionalEnd)
		end = e
	}
	a.epsilon(end, optionalEnd)
	return start, optionalEnd
}

// buildTerm adds the states recognizing a single occurrence of the particle.
func (a *automaton) buildTerm(p *Particle) (start, end int) {
	start = a.newState()
	end = a.newState()

	switch p.Kind {
	case ElementParticle, AnyParticle:
		a.states[start].edges = append(a.states[start].edges, edge{term: p, to: end})
	case SequenceParticle:
		current := start
		for _, child := range p.Children {
			s, e := a.build(child)
			a.epsilon(current, s)
			current = e
		}
		a.epsilon(current, end)
	case ChoiceParticle:
		for _, child := range p.Children {
			s, e := a.build(child)
			a.epsilon(start, s)
			a.epsilon(e, end)
		}
	case AllParticle:
		//nested xs:all groups are approximated by a repeated choice.
		loop := a.newState()
		a.epsilon(start, loop)
		for _, child := range p.Children {
			s, e := a.build(child)
			a.epsilon(loop, s)
			a.epsilon(e, loop)
		}
		a.epsilon(loop, end)
	}
	return start, end
}

func (a *automaton) closure(states []int) []int {
	seen := make(map[int]bool, len(states))
	stack := append([]int(nil), states...)
	var result []int

	for len(stack) > 0 {
		state := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[state] {
			continue
		}
		seen[state] = true
		result = append(result, state)
		stack = append(stack, a.states[state].epsilons...)
	}
	sort.Ints(result)
	return result
}

// contentMatcher tracks the position of the child elements of an element in its content model.
type contentMatcher struct {
	automaton *automaton
	defaultNS string

	current []int

	//xs:all
	counts map[*Particle]int
	seen   int
}

func newContentMatcher(a *automaton, defaultNS string) *contentMatcher {
	m := &contentMatcher{automaton: a, defaultNS: defaultNS}
	if a.all != nil {
		m.counts = map[*Particle]int{}
	} else {
		m.current = a.closure([]int{a.start})
	}
	return m
}

// next feeds a child element to the matcher and returns the particle it matched, it returns nil if
// the element is not expected. The returned declaration is the declaration of the element, it is nil for wildcards.
func (m *contentMatcher) next(name xml.Name) (term *Particle, decl *ElementDecl) {
	if m.automaton.all != nil {
		return m.nextAll(name)
	}

	var targets []int
	for _, state := range m.current {
		for _, e := range m.automaton.states[state].edges {
			matchedDecl, ok := m.matchTerm(e.term, name)
			if !ok {
				continue
			}
			if term == nil {
				term = e.term
				decl = matchedDecl
			}
			if e.term == term {
				targets = append(targets, e.to)
			}
		}
	}

	if term == nil {
		return nil, nil
	}
	m.current = m.automaton.closure(targets)
	return term, decl
}

func (m *contentMatcher) nextAll(name xml.Name) (*Particle, *ElementDecl) {
	for _, child := range m.automaton.all.Children {
		decl, ok := m.matchTerm(child, name)
		if !ok {
			continue
		}
		if child.Max != UNBOUNDED && m.counts[child] >= child.Max {
			return nil, nil
		}
		m.counts[child]++
		m.seen++
		return child, decl
	}
	return nil, nil
}

func (m *contentMatcher) matchTerm(term *Particle, name xml.Name) (*ElementDecl, bool) {
	switch term.Kind {
	case ElementParticle:
		return term.Element.matches(name, m.defaultNS)
	case AnyParticle:
		namespace := name.Space
		if namespace == "" && m.defaultNS != "" {
			namespace = m.defaultNS
		}
		return nil, term.Wildcard.allows(name.Space) || term.Wildcard.allows(namespace)
	}
	return nil, false
}

// accepting reports whether the child elements fed so far form a complete content.
func (m *contentMatcher) accepting() bool {
	if m.automaton.all != nil {
		if m.seen == 0 && m.automaton.all.Min == 0 {
			return true
		}
		for _, child := range m.automaton.all.Children {
			if m.counts[child] < child.Min {
				return false
			}
		}
		return true
	}

	for _, state := range m.current {
		if state == m.automaton.final {
			return true
		}
	}
	return false
}

// expected returns the names of the elements that can follow, in a stable order.
func (m *contentMatcher) expected() []string {
	var names []string
	seen := map[string]bool{}

	add := func(term *Particle) {
		var termNames []string
		switch term.Kind {
		case ElementParticle:
			if !term.Element.Abstract {
				termNames = append(termNames, formatName(term.Element.Name))
			}
			for _, member := range term.Element.substitutes {
				if !member.Abstract {
					termNames = append(termNames, formatName(member.Name))
				}
			}
		case AnyParticle:
			termNames = append(termNames, "*")
		}
		for _, name := range termNames {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	if m.automaton.all != nil {
		for _, child := range m.automaton.all.Children {
			if child.Max == UNBOUNDED || m.counts[child] < child.Max {
				add(child)
			}
		}
		return names
	}

	for _, state := range m.current {
		for _, e := range m.automaton.states[state].edges {
			add(e.term)
		}
	}
	return names
}

// missing returns the names of the required elements that are expected, it is used when the content is not complete.
func (m *contentMatcher) missing() []string {
	if m.automaton.all == nil {
		return m.expected()
	}

	var names []string
	for _, child := range m.automaton.all.Children {
		if m.counts[child] < child.Min && child.Kind == ElementParticle {
			names = append(names, formatName(child.Element.Name))
		}
	}
	return names
}
