package parser

import (
	"fmt"
	"strings"

	"K8sHelper/internal/job"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

const labelPrefix = "label."

var (
	filterLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[a-zA-Z0-9_][a-zA-Z0-9_./-]*`},
		{Name: "Operator", Pattern: `!=|=`},
		{Name: "Comma", Pattern: `,`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	filterParser = participle.MustBuild[Filter](
		participle.Lexer(filterLexer),
		participle.Unquote("String"),
		participle.Union[Value](StringVal{}, IdentVal{}),
		participle.Elide("Whitespace"),
	)
)

// Filter is a list of conditions that must all hold, e.g.
//
//	phase=Failed,Suspended namespace!=kube-system label.team=data
type Filter struct {
	Conditions []*Condition `parser:"@@+"`
}

// Condition matches when the field equals one of the values, or none of
// them for "!=".
type Condition struct {
	Key      string  `parser:"@Ident"`
	Operator string  `parser:"@Operator"`
	Values   []Value `parser:"@@ ( Comma @@ )*"`
}

type Value interface{ v() string }

type StringVal struct {
	Value string `parser:"@String"`
}

func (val StringVal) v() string {
	return val.Value
}

type IdentVal struct {
	Value string `parser:"@Ident"`
} // If no quotes, it is an IdentVal

func (val IdentVal) v() string {
	return val.Value
}

func ParseFilter(s string) (*Filter, error) {
	f, err := filterParser.ParseString("", s)
	if err != nil {
		return nil, err
	}
	for _, c := range f.Conditions {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (c *Condition) validate() error {
	switch {
	case c.Key == "phase":
		for _, v := range c.Values {
			if _, err := job.ParsePhase(v.v()); err != nil {
				return err
			}
		}
	case c.Key == "name", c.Key == "namespace", c.Key == "reason":
	case strings.HasPrefix(c.Key, labelPrefix) && len(c.Key) > len(labelPrefix):
	default:
		return fmt.Errorf("unknown filter key '%s', use phase, name, namespace, reason or label.<key>", c.Key)
	}
	return nil
}

func (c *Condition) field(s *job.Status) (string, bool) {
	switch c.Key {
	case "phase":
		return string(s.Phase), true
	case "name":
		return s.Ref.Name, true
	case "namespace":
		return s.Ref.Namespace, true
	case "reason":
		return s.Reason, true
	}
	val, ok := s.Labels[strings.TrimPrefix(c.Key, labelPrefix)]
	return val, ok
}

func (c *Condition) Match(s *job.Status) bool {
	got, present := c.field(s)
	found := false
	for _, v := range c.Values {
		want := v.v()
		if (c.Key == "phase" && strings.EqualFold(got, want)) || (present && got == want) {
			found = true
			break
		}
	}
	if c.Operator == "!=" {
		return !found
	}
	return found
}

// Match is true when every condition holds. A nil filter matches everything.
func (f *Filter) Match(s *job.Status) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Conditions {
		if !c.Match(s) {
			return false
		}
	}
	return true
}
