package mapping

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TemplateMatchThreshold is the minimum share of a template's patterns that
// must match a header set for the template to be offered.
const TemplateMatchThreshold = 0.7

var (
	// ErrNotFound is returned by stores for unknown template ids.
	ErrNotFound = errors.New("template not found")
	// ErrNameRequired is returned when a template has no name.
	ErrNameRequired = errors.New("template name is required")
)

// Template is a saved set of mappings with the header patterns it applies to.
type Template struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Mappings           []Mapping  `json:"mappings"`
	ApplicablePatterns []string   `json:"applicablePatterns"`
	UseCount           int        `json:"useCount"`
	LastUsed           *time.Time `json:"lastUsed,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Patch holds the fields of an update. Nil fields are left unchanged.
type Patch struct {
	Name               *string    `json:"name,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Mappings           *[]Mapping `json:"mappings,omitempty"`
	ApplicablePatterns *[]string  `json:"applicablePatterns,omitempty"`
}

// Store persists templates. Implementations live in templatestore.
// Update, Delete and IncrementUsage return ErrNotFound for unknown ids.
type Store interface {
	Save(ctx context.Context, t Template) (Template, error)
	Load(ctx context.Context) ([]Template, error)
	Update(ctx context.Context, id string, p Patch) (Template, error)
	Delete(ctx context.Context, id string) error
	IncrementUsage(ctx context.Context, id string, at time.Time) (Template, error)
}

// NewRecord prepares t for first save: a fresh id, creation time and zero
// usage. Stores call it from Save.
func NewRecord(t Template, now time.Time) Template {
	t.ID = uuid.NewString()
	t.CreatedAt = now.UTC()
	t.UpdatedAt = t.CreatedAt
	t.UseCount = 0
	t.LastUsed = nil
	if t.Mappings == nil {
		t.Mappings = []Mapping{}
	}
	if t.ApplicablePatterns == nil {
		t.ApplicablePatterns = []string{}
	}
	return t
}

// Apply returns t with p applied.
func (p Patch) Apply(t Template, now time.Time) Template {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Mappings != nil {
		t.Mappings = *p.Mappings
	}
	if p.ApplicablePatterns != nil {
		t.ApplicablePatterns = *p.ApplicablePatterns
	}
	t.UpdatedAt = now.UTC()
	return t
}

// RecordUse returns t with one more use at time at.
func RecordUse(t Template, at time.Time) Template {
	at = at.UTC()
	t.UseCount++
	t.LastUsed = &at
	return t
}

// TemplateMatch is a template scored against a header set.
type TemplateMatch struct {
	Template Template `json:"template"`
	Score    float64  `json:"score"`
}

// TemplateManager validates templates and answers usage queries over a Store.
type TemplateManager struct {
	store Store
	now   func() time.Time
}

// NewTemplateManager returns a manager over store.
func NewTemplateManager(store Store) *TemplateManager {
	return &TemplateManager{store: store, now: time.Now}
}

// Create validates and saves a new template.
func (m *TemplateManager) Create(ctx context.Context, t Template) (Template, error) {
	if strings.TrimSpace(t.Name) == "" {
		return Template{}, ErrNameRequired
	}
	if err := validatePatterns(t.ApplicablePatterns); err != nil {
		return Template{}, err
	}
	saved, err := m.store.Save(ctx, t)
	if err != nil {
		return Template{}, fmt.Errorf("save template: %w", err)
	}
	return saved, nil
}

// Get returns one template.
func (m *TemplateManager) Get(ctx context.Context, id string) (Template, error) {
	all, err := m.List(ctx)
	if err != nil {
		return Template{}, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("get template %s: %w", id, ErrNotFound)
}

// List returns all templates sorted by name.
func (m *TemplateManager) List(ctx context.Context) ([]Template, error) {
	all, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool { return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name) })
	return all, nil
}

// Update applies p to template id.
func (m *TemplateManager) Update(ctx context.Context, id string, p Patch) (Template, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return Template{}, ErrNameRequired
	}
	if p.ApplicablePatterns != nil {
		if err := validatePatterns(*p.ApplicablePatterns); err != nil {
			return Template{}, err
		}
	}
	t, err := m.store.Update(ctx, id, p)
	if err != nil {
		return Template{}, fmt.Errorf("update template %s: %w", id, err)
	}
	return t, nil
}

// Delete removes template id.
func (m *TemplateManager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	return nil
}

// Use records one use of template id and returns it.
func (m *TemplateManager) Use(ctx context.Context, id string) (Template, error) {
	t, err := m.store.IncrementUsage(ctx, id, m.now())
	if err != nil {
		return Template{}, fmt.Errorf("use template %s: %w", id, err)
	}
	return t, nil
}

// FindMatching scores each template by the share of its applicable
// patterns that match at least one header, case-insensitively, and returns
// those at or above TemplateMatchThreshold, best first.
func (m *TemplateManager) FindMatching(ctx context.Context, headers []string) ([]TemplateMatch, error) {
	all, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	matches := []TemplateMatch{}
	for _, t := range all {
		score := MatchScore(t.ApplicablePatterns, headers)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{Template: t, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Template.UseCount > matches[j].Template.UseCount
	})
	return matches, nil
}

// MatchScore is the share of patterns matching at least one header. Invalid
// patterns count as misses.
func MatchScore(patterns, headers []string) float64 {
	if len(patterns) == 0 {
		return 0
	}
	matched := 0
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			continue
		}
		for _, h := range headers {
			if re.MatchString(strings.TrimSpace(h)) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(patterns))
}

// Popular returns up to n templates by use count.
func (m *TemplateManager) Popular(ctx context.Context, n int) ([]Template, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].UseCount > all[j].UseCount })
	return head(all, n), nil
}

// Recent returns up to n used templates, most recently used first.
func (m *TemplateManager) Recent(ctx context.Context, n int) ([]Template, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	used := make([]Template, 0, len(all))
	for _, t := range all {
		if t.LastUsed != nil {
			used = append(used, t)
		}
	}
	sort.SliceStable(used, func(i, j int) bool { return used[i].LastUsed.After(*used[j].LastUsed) })
	return head(used, n), nil
}

// Usage thresholds for UsageSuggestions.
const (
	unusedGrace      = 30 * 24 * time.Hour
	staleAfter       = 90 * 24 * time.Hour
	consolidateAbove = 10
)

// UsageSuggestions reviews the template library as of now.
func (m *TemplateManager) UsageSuggestions(ctx context.Context, now time.Time) ([]string, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	out := []string{}
	var unused []string
	for _, t := range all {
		switch {
		case t.UseCount == 0 && now.Sub(t.CreatedAt) >= unusedGrace:
			unused = append(unused, t.Name)
		case t.LastUsed != nil && now.Sub(*t.LastUsed) >= staleAfter:
			out = append(out, fmt.Sprintf("Template '%s' has not been used for %d days", t.Name, int(now.Sub(*t.LastUsed).Hours()/24)))
		}
	}
	if len(unused) > 0 {
		out = append([]string{fmt.Sprintf("Review unused templates: %s", strings.Join(unused, ", "))}, out...)
	}
	if len(all) > consolidateAbove {
		out = append(out, fmt.Sprintf("You have %d templates; consider consolidating similar ones", len(all)))
	}
	return out, nil
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid applicable pattern %q: %w", p, err)
		}
	}
	return nil
}

func head(ts []Template, n int) []Template {
	if n > 0 && len(ts) > n {
		return ts[:n]
	}
	return ts
}
