// Package inclusions finds "what's included" blocks in a worksheet and turns
// their free text into clean, categorised line items.
package inclusions

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/confidence"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
)

// Issue codes attached to invalid items.
const (
	IssueEmpty       = "empty"
	IssueTooShort    = "too-short"
	IssueTooLong     = "too-long"
	IssuePlaceholder = "placeholder"
	IssueDigitsOnly  = "digits-only"
)

// Emphasis markers recognised around an item.
const (
	EmphasisBold   = "bold"
	EmphasisItalic = "italic"
)

// Options bounds item text. Zero fields fall back to DefaultOptions.
type Options struct {
	MinLength   int // shortest valid cleaned text, in characters
	MaxLength   int // cleaned text this long reads as a description
	TargetWords int // word count at which the length score peaks
}

// DefaultOptions returns the standard bounds.
func DefaultOptions() Options {
	return Options{MinLength: 3, MaxLength: 300, TargetWords: 5}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinLength <= 0 {
		o.MinLength = d.MinLength
	}
	if o.MaxLength <= 0 {
		o.MaxLength = d.MaxLength
	}
	if o.TargetWords <= 0 {
		o.TargetWords = d.TargetWords
	}
	return o
}

// Item is one processed inclusion.
type Item struct {
	RawText     string   `json:"rawText"`
	CleanedText string   `json:"cleanedText"`
	IsValid     bool     `json:"isValid"`
	Issues      []string `json:"issues"`
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	Emphasis    string   `json:"emphasis,omitempty"`
}

// Batch is the result of ProcessInclusions.
type Batch struct {
	Items          []Item         `json:"items"`
	Valid          []Item         `json:"valid"`
	Invalid        []Item         `json:"invalid"`
	Categories     map[string]int `json:"categories"`
	OverallQuality float64        `json:"overallQuality"`
	Suggestions    []string       `json:"suggestions"`
}

type keywordSet struct {
	name string
	res  []*regexp.Regexp
}

// Processor cleans and scores inclusion text. It is safe for concurrent use.
type Processor struct {
	tables     dictionary.Tables
	opts       Options
	categories []keywordSet
	boost      []*regexp.Regexp
	vague      []*regexp.Regexp
}

// NewProcessor builds a Processor over the inclusion vocabularies in t.
func NewProcessor(t dictionary.Tables, opts Options) *Processor {
	p := &Processor{
		tables: t,
		opts:   opts.withDefaults(),
		boost:  wordPatterns(t.InclusionBoostTerms),
		vague:  wordPatterns(t.VagueTerms),
	}
	for _, c := range t.InclusionCategories {
		p.categories = append(p.categories, keywordSet{name: c.Name, res: wordPatterns(c.Keywords)})
	}
	return p
}

// Options returns the effective options.
func (p *Processor) Options() Options {
	return p.opts
}

var (
	spaceRegex  = regexp.MustCompile(`\s+`)
	boldRegex   = regexp.MustCompile(`^(?:\*\*(.+)\*\*|__(.+)__)$`)
	italicRegex = regexp.MustCompile(`^(?:\*([^*].*)\*|_([^_].*)_)$`)
	digitsRegex = regexp.MustCompile(`^[\d\s.,:/\-+%]+$`)
	ordinalTail = regexp.MustCompile(`[\s#\d]+$`)
)

// ProcessInclusionItem cleans, validates, categorises and scores one line.
// Processing already-clean text returns it unchanged.
func (p *Processor) ProcessInclusionItem(raw string) Item {
	cleaned, emphasis := p.clean(raw)
	item := Item{
		RawText:     raw,
		CleanedText: cleaned,
		Issues:      p.issues(cleaned),
		Category:    p.category(cleaned),
		Emphasis:    emphasis,
	}
	item.IsValid = len(item.Issues) == 0

	conf := confidence.Combine(0.5,
		p.lengthFactor(cleaned),
		p.keywordFactor(cleaned, item.Category),
		p.vagueFactor(cleaned),
	)
	if !item.IsValid {
		conf = min(conf, 0.2)
	}
	item.Confidence = confidence.Round2(conf)
	return item
}

// clean strips list markers and emphasis, collapses whitespace, capitalises
// the first letter and drops trailing periods that are not an ellipsis.
func (p *Processor) clean(raw string) (string, string) {
	s := strings.TrimSpace(spaceRegex.ReplaceAllString(raw, " "))

	var emphasis string
	for {
		if m := boldRegex.FindStringSubmatch(s); m != nil {
			s, emphasis = strings.TrimSpace(m[1]+m[2]), EmphasisBold
			continue
		}
		if m := italicRegex.FindStringSubmatch(s); m != nil {
			s = strings.TrimSpace(m[1] + m[2])
			if emphasis == "" {
				emphasis = EmphasisItalic
			}
			continue
		}
		marker, rest := classify.DetectMarker(s)
		if marker == classify.MarkerNone || rest == "" {
			break
		}
		s = rest
	}

	// "Breakfast." and "Breakfast. ." lose their periods; an ellipsis is kept.
	for strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "..") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "."))
	}
	if r, size := utf8.DecodeRuneInString(s); size > 0 && unicode.IsLower(r) {
		s = string(unicode.ToUpper(r)) + s[size:]
	}
	return s, emphasis
}

func (p *Processor) issues(cleaned string) []string {
	out := []string{}
	n := utf8.RuneCountInString(cleaned)
	switch {
	case n == 0:
		return append(out, IssueEmpty)
	case n < p.opts.MinLength:
		out = append(out, IssueTooShort)
	case n >= p.opts.MaxLength:
		out = append(out, IssueTooLong)
	}
	if p.isPlaceholder(cleaned) {
		out = append(out, IssuePlaceholder)
	}
	if digitsRegex.MatchString(cleaned) && strings.ContainsAny(cleaned, "0123456789") {
		out = append(out, IssueDigitsOnly)
	}
	return out
}

// isPlaceholder matches the placeholder table, ignoring a trailing ordinal
// so that "Item 1" and "Item 2" both count.
func (p *Processor) isPlaceholder(cleaned string) bool {
	t := dictionary.Canonical(cleaned)
	if dictionary.Contains(p.tables.Placeholders, t) {
		return true
	}
	if stem := strings.TrimSpace(ordinalTail.ReplaceAllString(t, "")); stem != t && stem != "" &&
		dictionary.Contains(p.tables.Placeholders, stem) {
		return true
	}
	for _, prefix := range p.tables.PlaceholderPrefixes {
		if strings.HasPrefix(t, dictionary.Canonical(prefix)) {
			return true
		}
	}
	return false
}

// category returns the first category with a keyword in text.
func (p *Processor) category(text string) string {
	for _, c := range p.categories {
		if anyMatch(c.res, text) {
			return c.name
		}
	}
	return dictionary.OtherCategory
}

// lengthFactor peaks at TargetWords and falls off linearly either side.
func (p *Processor) lengthFactor(text string) confidence.Factor {
	words := len(strings.Fields(text))
	if words == 0 {
		return confidence.Factor{Name: "length", Delta: -0.5}
	}
	target := float64(p.opts.TargetWords)
	dist := float64(words) - target
	if dist < 0 {
		dist = -dist
	}
	return confidence.Factor{Name: "length", Delta: confidence.Bound(0.3*(1-dist/target), 0.3)}
}

// keywordFactor rewards boost terms such as "complimentary" and any
// category keyword.
func (p *Processor) keywordFactor(text, category string) confidence.Factor {
	f := confidence.Factor{Name: "keywords"}
	if anyMatch(p.boost, text) {
		f.Delta += 0.1
	}
	if category != dictionary.OtherCategory {
		f.Delta += 0.1
	}
	return f
}

// vagueFactor penalises filler such as "various" or "some".
func (p *Processor) vagueFactor(text string) confidence.Factor {
	if anyMatch(p.vague, text) {
		return confidence.Factor{Name: "vague", Delta: -0.2}
	}
	return confidence.Factor{Name: "vague"}
}

// ProcessInclusions processes every line and summarises the batch.
func (p *Processor) ProcessInclusions(raws []string) Batch {
	b := Batch{
		Items:       make([]Item, 0, len(raws)),
		Valid:       []Item{},
		Invalid:     []Item{},
		Categories:  map[string]int{},
		Suggestions: []string{},
	}

	var sum float64
	for _, raw := range raws {
		item := p.ProcessInclusionItem(raw)
		b.Items = append(b.Items, item)
		if !item.IsValid {
			b.Invalid = append(b.Invalid, item)
			continue
		}
		b.Valid = append(b.Valid, item)
		b.Categories[item.Category]++
		sum += item.Confidence
	}

	if len(b.Valid) > 0 {
		mean := sum / float64(len(b.Valid))
		b.OverallQuality = confidence.Round2(mean * confidence.Ratio(len(b.Valid), len(b.Items)))
	}
	b.Suggestions = batchSuggestions(b)
	return b
}

func batchSuggestions(b Batch) []string {
	out := []string{}
	if len(b.Items) == 0 {
		return append(out, "Add the inclusions for this package, one per line")
	}
	if n := len(b.Invalid); n > 0 {
		out = append(out, fmt.Sprintf("%d inclusion(s) need attention: placeholders, numbers or text of the wrong length", n))
	}
	if len(b.Valid) == 0 {
		return out
	}

	words, lowConf := 0, 0
	for _, it := range b.Valid {
		words += len(strings.Fields(it.CleanedText))
		if it.Confidence < 0.5 {
			lowConf++
		}
	}
	if float64(words)/float64(len(b.Valid)) < 2 {
		out = append(out, "Inclusions are very brief; describe each one, for example \"Daily breakfast buffet\"")
	}
	if len(b.Valid) >= 3 && len(b.Categories) == 1 {
		for name := range b.Categories {
			out = append(out, fmt.Sprintf("All inclusions are %s; list other amenities such as internet or transport if they are provided", name))
		}
	}
	if len(b.Valid) < 3 {
		out = append(out, "List at least 3 inclusions so guests can compare packages")
	}
	if lowConf > 0 {
		out = append(out, fmt.Sprintf("%d inclusion(s) are vague; make them more specific", lowConf))
	}
	return out
}

// Style selects a display format.
type Style string

const (
	StyleBullet   Style = "bullet"
	StyleNumbered Style = "numbered"
	StylePlain    Style = "plain"
)

// FormatForDisplay renders the valid items one per line in style, wrapping
// emphasised items in their markers.
func FormatForDisplay(items []Item, style Style) string {
	var b strings.Builder
	n := 0
	for _, it := range items {
		if !it.IsValid {
			continue
		}
		text := it.CleanedText
		switch it.Emphasis {
		case EmphasisBold:
			text = "**" + text + "**"
		case EmphasisItalic:
			text = "_" + text + "_"
		}
		if n > 0 {
			b.WriteByte('\n')
		}
		n++
		switch style {
		case StyleNumbered:
			fmt.Fprintf(&b, "%d. %s", n, text)
		case StylePlain:
			b.WriteString(text)
		default:
			b.WriteString("• " + text)
		}
	}
	return b.String()
}

// MergeThreshold is the token overlap at which two items are duplicates.
const MergeThreshold = 0.6

// MergeSimilarInclusions clusters items whose token overlap reaches
// MergeThreshold and keeps the most confident member of each cluster,
// preferring the longer text on ties. Clusters keep first-seen order.
func MergeSimilarInclusions(items []Item) []Item {
	type cluster struct {
		best   Item
		tokens []map[string]bool
	}
	var clusters []*cluster

	for _, it := range items {
		toks := tokens(it.CleanedText)
		var home *cluster
		for _, c := range clusters {
			for _, other := range c.tokens {
				if overlap(toks, other) >= MergeThreshold {
					home = c
					break
				}
			}
			if home != nil {
				break
			}
		}
		if home == nil {
			clusters = append(clusters, &cluster{best: it, tokens: []map[string]bool{toks}})
			continue
		}
		home.tokens = append(home.tokens, toks)
		if better(it, home.best) {
			home.best = it
		}
	}

	out := make([]Item, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, c.best)
	}
	return out
}

func better(a, b Item) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return len(a.CleanedText) > len(b.CleanedText)
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[w] = true
	}
	return out
}

// overlap is the Jaccard index of two token sets.
func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func wordPatterns(terms []string) []*regexp.Regexp {
	sorted := append([]string(nil), terms...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	out := make([]*regexp.Regexp, 0, len(sorted))
	for _, t := range sorted {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, regexp.MustCompile(`(?i)(^|[^\pL\pN])`+regexp.QuoteMeta(t)+`($|[^\pL\pN])`))
		}
	}
	return out
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
