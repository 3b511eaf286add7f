// Package strategy maps a persona and page analysis to an action vocabulary and a
// weighted action distribution.
package strategy

import "strings"

// Kind is one action an agent can perform.
type Kind string

const (
	Scroll        Kind = "scroll"
	Click         Kind = "click"
	ClickProducts Kind = "click_products"
	ClickCTA      Kind = "click_cta"
	ClickArticles Kind = "click_articles"
	Read          Kind = "read"
	ReadContent   Kind = "read_content"
	ReadHeadlines Kind = "read_headlines"
	Wait          Kind = "wait"
	Search        Kind = "search"
	FillForm      Kind = "fill_form"
	FillFields    Kind = "fill_fields"
)

// Category groups kinds the executor handles the same way.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryScroll
	CategoryClick
	CategoryRead
	CategoryWait
	CategorySearch
	CategoryFill
)

func (c Category) String() string {
	switch c {
	case CategoryScroll:
		return "scroll"
	case CategoryClick:
		return "click"
	case CategoryRead:
		return "read"
	case CategoryWait:
		return "wait"
	case CategorySearch:
		return "search"
	case CategoryFill:
		return "fill"
	default:
		return "unknown"
	}
}

// Category returns the family k belongs to. Kinds outside the vocabulary are
// CategoryUnknown and execute as no-ops.
func (k Kind) Category() Category {
	switch k {
	case Scroll:
		return CategoryScroll
	case Click, ClickProducts, ClickCTA, ClickArticles:
		return CategoryClick
	case Read, ReadContent, ReadHeadlines:
		return CategoryRead
	case Wait:
		return CategoryWait
	case Search:
		return CategorySearch
	case FillForm, FillFields:
		return CategoryFill
	default:
		return CategoryUnknown
	}
}

// Known reports whether k is part of the action vocabulary.
func (k Kind) Known() bool {
	return k.Category() != CategoryUnknown
}

// ParseKind normalizes free text ("Click Products", "fill-form") into a Kind. The result
// may be unknown; check Known before relying on it.
func ParseKind(s string) Kind {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return Kind(s)
}

// basicKinds is the order used when mapping a random integer 1..4 to an action.
var basicKinds = [4]Kind{Scroll, Click, Read, Wait}

// Basic maps n in 1..4 to scroll, click, read or wait. Other values yield "".
func Basic(n int) Kind {
	if n < 1 || n > len(basicKinds) {
		return ""
	}
	return basicKinds[n-1]
}
