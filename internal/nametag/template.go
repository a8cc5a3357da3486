// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package nametag

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"
)

// CodeTemplateInvalid marks a template that failed to parse.
const CodeTemplateInvalid = "TEMPLATE_INVALID"

// templateLexer splits text into {placeholders}, literal runs and stray
// braces. Order matters: Var must win over Brace.
var templateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Var", Pattern: `\{[A-Za-z_][A-Za-z0-9_]*\}`},
	{Name: "Text", Pattern: `[^{]+`},
	{Name: "Brace", Pattern: `\{`},
})

type templateAST struct {
	Parts []*templatePart `parser:"@@*"`
}

type templatePart struct {
	Var  *string `parser:"  @Var"`
	Text *string `parser:"| @(Text | Brace)"`
}

var templateParser *participle.Parser[templateAST]

func init() {
	var err error
	templateParser, err = participle.Build[templateAST](participle.Lexer(templateLexer))
	if err != nil {
		panic(fmt.Sprintf("failed to build nametag template parser: %v", err))
	}
}

// segment is a literal run or, when isVar is set, a placeholder name.
type segment struct {
	text  string
	isVar bool
}

// Template is a parsed nametag template.
type Template struct {
	source   string
	segments []segment
}

// ParseTemplate parses text containing {name} placeholders.
func ParseTemplate(text string) (*Template, error) {
	if text == "" {
		return &Template{}, nil
	}
	ast, err := templateParser.ParseString("", text)
	if err != nil {
		return nil, oops.Code(CodeTemplateInvalid).With("template", text).Wrapf(err, "parsing nametag template")
	}
	t := &Template{source: text}
	for _, p := range ast.Parts {
		switch {
		case p.Var != nil:
			name := strings.TrimSuffix(strings.TrimPrefix(*p.Var, "{"), "}")
			t.segments = append(t.segments, segment{text: name, isVar: true})
		case p.Text != nil:
			t.segments = append(t.segments, segment{text: *p.Text})
		}
	}
	return t, nil
}

// MustParseTemplate is ParseTemplate for templates known at compile time.
func MustParseTemplate(text string) *Template {
	t, err := ParseTemplate(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Source returns the unparsed template text.
func (t *Template) Source() string { return t.source }

// Variables lists the placeholder names in order of appearance.
func (t *Template) Variables() []string {
	var out []string
	for _, s := range t.segments {
		if s.isVar {
			out = append(out, s.text)
		}
	}
	return out
}

// Render substitutes placeholders using resolve. Placeholders resolve
// cannot answer are left as written.
func (t *Template) Render(resolve func(name string) (string, bool)) string {
	var b strings.Builder
	for _, s := range t.segments {
		if !s.isVar {
			b.WriteString(s.text)
			continue
		}
		if v, ok := resolve(s.text); ok {
			b.WriteString(v)
			continue
		}
		b.WriteString("{" + s.text + "}")
	}
	return b.String()
}
