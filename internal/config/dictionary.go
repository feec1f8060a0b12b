package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/stratix-platform/initiative-import/internal/model"
)

// Dictionary extends the built-in vocabularies of the pipeline. Every field
// is additive: entries here are merged over the defaults.
type Dictionary struct {
	// Statuses maps a raw token to a canonical status ("en curso": in_progress).
	Statuses map[string]model.Status `yaml:"statuses"`
	// Priorities maps a raw token to a canonical priority.
	Priorities map[string]model.Priority `yaml:"priorities"`
	// AreaSynonyms lists groups of equivalent area names.
	AreaSynonyms [][]string `yaml:"area_synonyms"`
	// Templates adds or replaces fingerprints by name.
	Templates []model.TemplateFingerprint `yaml:"templates"`
}

// LoadDictionary reads a YAML dictionary file. An empty path returns an empty
// dictionary.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return &Dictionary{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read dictionary %s", path)
	}

	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrapf(err, "config: parse dictionary %s", path)
	}
	for tok, s := range d.Statuses {
		switch s {
		case model.StatusPlanning, model.StatusInProgress, model.StatusCompleted, model.StatusOnHold, model.StatusCancelled:
		default:
			return nil, eris.Errorf("config: dictionary status %q maps to unknown %q", tok, s)
		}
	}
	for tok, p := range d.Priorities {
		switch p {
		case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityCritical:
		default:
			return nil, eris.Errorf("config: dictionary priority %q maps to unknown %q", tok, p)
		}
	}
	for _, tpl := range d.Templates {
		if tpl.Name == "" || len(tpl.Required) == 0 {
			return nil, eris.New("config: dictionary template needs a name and required keywords")
		}
	}
	return &d, nil
}
