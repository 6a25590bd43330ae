package expectations

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// Rule is one line of an expectations file:
//
//	crbug.com/1234 [ win nvidia ] conformance/textures/* [ Failure RetryOnFailure ]
type Rule struct {
	Bugs           []string
	Tags           mapset.Set[string]
	Pattern        string
	Results        types.ExpectationSet
	RetryOnFailure bool
	Line           int
}

// IsGlob reports whether the rule applies to every test with the pattern's prefix.
func (r *Rule) IsGlob() bool {
	return strings.HasSuffix(r.Pattern, "*")
}

func (r *Rule) prefix() string {
	return strings.TrimSuffix(r.Pattern, "*")
}

// Applies reports whether every tag of the rule is present in the run's tags.
func (r *Rule) Applies(tags mapset.Set[string]) bool {
	if r.Tags.IsEmpty() {
		return true
	}
	if tags == nil {
		return false
	}
	return r.Tags.IsSubset(tags)
}

// Expectation is the combined effect of the rules selected for one test.
type Expectation struct {
	Results        types.ExpectationSet
	RetryOnFailure bool
	Rules          []*Rule
}

// Expectations is a parsed expectations file.
type Expectations struct {
	TagSets [][]string
	Rules   []*Rule

	exact map[string][]*Rule
	globs []*Rule // sorted by descending prefix length
}

// Load reads and parses an expectations file.
func Load(path string) (*Expectations, error) {
	log.Debug("Reading expectations file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading expectations file: %w", err)
	}
	exp, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing expectations file %s: %w", path, err)
	}
	return exp, nil
}

// Parse parses expectations in the typ format. Tag headers declare the known
// tags; a rule using an undeclared tag is an error when any header exists.
func Parse(content string) (*Expectations, error) {
	e := &Expectations{exact: make(map[string][]*Rule)}
	known := mapset.NewThreadUnsafeSet[string]()

	var header *strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Continuation of a multi-line "# tags: [" header
		if header != nil {
			if !strings.HasPrefix(line, "#") {
				return nil, fmt.Errorf("line %d: unterminated tags header", lineNo)
			}
			header.WriteString(" ")
			header.WriteString(strings.TrimPrefix(line, "#"))
			if strings.Contains(line, "]") {
				tagSet, err := parseBracketList(header.String())
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				e.addTagSet(tagSet, known)
				header = nil
			}
			continue
		}

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if rest, ok := strings.CutPrefix(body, "tags:"); ok {
				if !strings.Contains(rest, "]") {
					header = &strings.Builder{}
					header.WriteString(rest)
					continue
				}
				tagSet, err := parseBracketList(rest)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				e.addTagSet(tagSet, known)
			}
			continue
		}

		rule, err := parseRule(line, lineNo)
		if err != nil {
			return nil, err
		}
		if len(e.TagSets) > 0 {
			for _, tag := range rule.Tags.ToSlice() {
				if !known.Contains(tag) {
					return nil, fmt.Errorf("line %d: tag %q is not declared in a tags header", lineNo, tag)
				}
			}
		}
		e.Rules = append(e.Rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if header != nil {
		return nil, fmt.Errorf("unterminated tags header at end of file")
	}

	for _, rule := range e.Rules {
		if rule.IsGlob() {
			e.globs = append(e.globs, rule)
		} else {
			e.exact[rule.Pattern] = append(e.exact[rule.Pattern], rule)
		}
	}
	sort.SliceStable(e.globs, func(i, j int) bool {
		return len(e.globs[i].prefix()) > len(e.globs[j].prefix())
	})
	return e, nil
}

func (e *Expectations) addTagSet(tagSet []string, known mapset.Set[string]) {
	for i, tag := range tagSet {
		tagSet[i] = strings.ToLower(tag)
		known.Add(tagSet[i])
	}
	e.TagSets = append(e.TagSets, tagSet)
}

// Lookup selects the expectation for a test. Exact rules win over globs and
// the longest matching glob wins over shorter ones; the results of every
// applicable rule with the winning pattern are combined. The second return
// is false when no rule applies. Rule tags are lower-case, so tags must be
// too (see tags.Lower).
func (e *Expectations) Lookup(name string, tags mapset.Set[string]) (Expectation, bool) {
	if e == nil {
		return Expectation{}, false
	}
	if exp, ok := combine(e.exact[name], tags); ok {
		return exp, true
	}
	for i := 0; i < len(e.globs); {
		// Globs of equal prefix length, grouped by pattern.
		prefixLen := len(e.globs[i].prefix())
		j := i
		byPattern := make(map[string][]*Rule)
		var order []string
		for ; j < len(e.globs) && len(e.globs[j].prefix()) == prefixLen; j++ {
			r := e.globs[j]
			if !strings.HasPrefix(name, r.prefix()) {
				continue
			}
			if _, seen := byPattern[r.Pattern]; !seen {
				order = append(order, r.Pattern)
			}
			byPattern[r.Pattern] = append(byPattern[r.Pattern], r)
		}
		for _, pattern := range order {
			if exp, ok := combine(byPattern[pattern], tags); ok {
				return exp, true
			}
		}
		i = j
	}
	return Expectation{}, false
}

func combine(rules []*Rule, tags mapset.Set[string]) (Expectation, bool) {
	var exp Expectation
	for _, r := range rules {
		if !r.Applies(tags) {
			continue
		}
		exp.Rules = append(exp.Rules, r)
		exp.Results = exp.Results.Union(r.Results)
		exp.RetryOnFailure = exp.RetryOnFailure || r.RetryOnFailure
	}
	if len(exp.Rules) == 0 {
		return Expectation{}, false
	}
	if exp.Results.IsEmpty() {
		exp.Results = types.ExpectPass
	}
	return exp, true
}

func parseRule(line string, lineNo int) (*Rule, error) {
	if idx := strings.Index(line, " #"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	rule := &Rule{Tags: mapset.NewThreadUnsafeSet[string](), Line: lineNo}

	rest := line
	for rest != "" && !strings.HasPrefix(rest, "[") && isBug(firstField(rest)) {
		bug := firstField(rest)
		rule.Bugs = append(rule.Bugs, bug)
		rest = strings.TrimSpace(strings.TrimPrefix(rest, bug))
	}

	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return nil, fmt.Errorf("line %d: unterminated tag list", lineNo)
		}
		tagList, err := parseBracketList(rest[:end+1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		for _, tag := range tagList {
			rule.Tags.Add(strings.ToLower(tag))
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	resultsStart := strings.LastIndex(rest, "[")
	if resultsStart <= 0 || !strings.HasSuffix(rest, "]") {
		return nil, fmt.Errorf("line %d: expected 'name [ results ]'", lineNo)
	}
	rule.Pattern = strings.TrimSpace(rest[:resultsStart])
	if rule.Pattern == "" || strings.ContainsAny(rule.Pattern, " \t") {
		return nil, fmt.Errorf("line %d: invalid test name %q", lineNo, rule.Pattern)
	}
	if idx := strings.Index(rule.Pattern, "*"); idx >= 0 && idx != len(rule.Pattern)-1 {
		return nil, fmt.Errorf("line %d: glob is only allowed at the end of a name", lineNo)
	}

	results, err := parseBracketList(rest[resultsStart:])
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNo, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("line %d: empty results list", lineNo)
	}
	for _, result := range results {
		switch result {
		case "Pass":
			rule.Results = rule.Results.With(types.OutcomePass)
		case "Failure":
			rule.Results = rule.Results.With(types.OutcomeFail)
		case "Skip":
			rule.Results = rule.Results.With(types.OutcomeSkip)
		case "Timeout":
			rule.Results = rule.Results.With(types.OutcomeTimeout)
		case "Crash":
			rule.Results = rule.Results.With(types.OutcomeCrash)
		case "RetryOnFailure":
			rule.RetryOnFailure = true
		case "Slow":
		default:
			return nil, fmt.Errorf("line %d: unknown result %q", lineNo, result)
		}
	}
	return rule, nil
}

func parseBracketList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("expected bracketed list, got %q", s)
	}
	return strings.Fields(s[1 : len(s)-1]), nil
}

func firstField(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func isBug(token string) bool {
	for _, prefix := range []string{"crbug.com/", "skbug.com/", "webkit.org/", "github.com/", "Bug("} {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}
