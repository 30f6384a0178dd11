package taxonomy

import (
	_ "embed"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed tags.yaml
var defaultTagsYAML []byte

// Tag is one controlled-vocabulary document tag.
type Tag struct {
	Name        string `yaml:"name"`
	Group       string `yaml:"group"`
	Description string `yaml:"description"`
}

// KeywordRule adds Tags to document types whose name contains any keyword.
type KeywordRule struct {
	Keywords []string `yaml:"keywords"`
	Tags     []string `yaml:"tags"`
}

// Vocabulary is the tag set plus the rules that assign tags to document types.
type Vocabulary struct {
	Tags         []Tag               `yaml:"tags"`
	CategoryTags map[string][]string `yaml:"category_tags"`
	KeywordRules []KeywordRule       `yaml:"keyword_rules"`
}

// ParseVocabulary decodes a YAML vocabulary and checks that every rule
// names a defined tag.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse vocabulary")
	}

	known := make(map[string]bool, len(v.Tags))
	for _, t := range v.Tags {
		if t.Name == "" {
			return nil, eris.New("taxonomy: tag with empty name")
		}
		if known[t.Name] {
			return nil, eris.Errorf("taxonomy: duplicate tag %q", t.Name)
		}
		known[t.Name] = true
	}
	check := func(names []string) error {
		for _, n := range names {
			if !known[n] {
				return eris.Errorf("taxonomy: rule references unknown tag %q", n)
			}
		}
		return nil
	}
	for _, tags := range v.CategoryTags {
		if err := check(tags); err != nil {
			return nil, err
		}
	}
	for _, r := range v.KeywordRules {
		if err := check(r.Tags); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultTagsYAML)
	if err != nil {
		panic(err)
	}
	return v
}

// TagsFor returns the sorted, de-duplicated tags for a document type.
func (v *Vocabulary) TagsFor(docName, category string) []string {
	set := map[string]bool{}
	for _, t := range v.CategoryTags[category] {
		set[t] = true
	}
	for _, r := range v.KeywordRules {
		for _, kw := range r.Keywords {
			if strings.Contains(docName, kw) {
				for _, t := range r.Tags {
					set[t] = true
				}
				break
			}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
