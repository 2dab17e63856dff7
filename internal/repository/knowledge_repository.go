package repository

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"kasbot/internal/entities"
)

// KnowledgeRepository reads the static knowledge file. The file is YAML (JSON
// also parses). Branches, departments, products and manuals may each be given
// as a sequence or as a mapping keyed by name/id; mapping order is kept.
type KnowledgeRepository struct {
	path string
}

func NewKnowledgeRepository(path string) *KnowledgeRepository {
	return &KnowledgeRepository{path: path}
}

func (r *KnowledgeRepository) Path() string { return r.path }

// Load reads and validates the knowledge file.
func (r *KnowledgeRepository) Load() (*entities.Knowledge, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	k, err := ParseKnowledge(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge file %s: %w", r.path, err)
	}
	return k, nil
}

type contactDTO struct {
	Phones   []string `yaml:"phones"`
	WhatsApp []string `yaml:"whatsapp"`
	Hours    string   `yaml:"hours"`
	Notes    string   `yaml:"notes"`
}

func (c contactDTO) entity() entities.ContactInfo {
	return entities.ContactInfo{Phones: c.Phones, WhatsApp: c.WhatsApp, Hours: c.Hours, Notes: c.Notes}
}

type branchDTO struct {
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	contactDTO `yaml:",inline"`
}

type departmentDTO struct {
	Name       string `yaml:"name"`
	contactDTO `yaml:",inline"`
}

type productDTO struct {
	ID      string    `yaml:"id"`
	Name    string    `yaml:"name"`
	URL     string    `yaml:"url"`
	Type    string    `yaml:"type"`
	Aliases []string  `yaml:"aliases"`
	Specs   []string  `yaml:"specs"`
	Manuals yaml.Node `yaml:"manuals"`
	Price   string    `yaml:"price"`
}

type manualDTO struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

type linkDTO struct {
	URL string `yaml:"url"`
}

type knowledgeFile struct {
	Greetings struct {
		Triggers []string `yaml:"triggers"`
		Reply    string   `yaml:"reply"`
	} `yaml:"greetings"`
	Branches             yaml.Node `yaml:"branches"`
	Departments          yaml.Node `yaml:"departments"`
	Products             yaml.Node `yaml:"products"`
	Hotline              string    `yaml:"hotline"`
	StoreURL             string    `yaml:"storeUrl"`
	AutoDoorSupportGroup linkDTO   `yaml:"autoDoorSupportGroup"`
	Malfunctions         linkDTO   `yaml:"malfunctions"`
}

// ParseKnowledge decodes a knowledge document and checks ids are unique.
func ParseKnowledge(data []byte) (*entities.Knowledge, error) {
	var f knowledgeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse knowledge: %w", err)
	}

	k := &entities.Knowledge{
		Greetings: entities.Greetings{
			Triggers: f.Greetings.Triggers,
			Reply:    f.Greetings.Reply,
		},
		Hotline:              strings.TrimSpace(f.Hotline),
		StoreURL:             strings.TrimSpace(f.StoreURL),
		AutoDoorSupportGroup: entities.Link{URL: strings.TrimSpace(f.AutoDoorSupportGroup.URL)},
		Malfunctions:         entities.Link{URL: strings.TrimSpace(f.Malfunctions.URL)},
	}

	err := eachEntry(&f.Branches, func(key string, n *yaml.Node) error {
		var dto branchDTO
		if err := n.Decode(&dto); err != nil {
			return err
		}
		k.Branches = append(k.Branches, entities.Branch{
			Name:        firstNonEmpty(dto.Name, key),
			Address:     strings.TrimSpace(dto.Address),
			ContactInfo: dto.entity(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("branches: %w", err)
	}

	err = eachEntry(&f.Departments, func(key string, n *yaml.Node) error {
		var dto departmentDTO
		if err := n.Decode(&dto); err != nil {
			return err
		}
		k.Departments = append(k.Departments, entities.Department{
			Name:        firstNonEmpty(dto.Name, key),
			ContactInfo: dto.entity(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("departments: %w", err)
	}

	err = eachEntry(&f.Products, func(key string, n *yaml.Node) error {
		var dto productDTO
		if err := n.Decode(&dto); err != nil {
			return err
		}
		p := entities.Product{
			ID:      firstNonEmpty(dto.ID, key),
			Name:    strings.TrimSpace(dto.Name),
			URL:     strings.TrimSpace(dto.URL),
			Type:    dto.Type,
			Aliases: dto.Aliases,
			Specs:   dto.Specs,
			Price:   dto.Price,
		}
		manuals, err := decodeManuals(&dto.Manuals)
		if err != nil {
			return fmt.Errorf("product %s manuals: %w", p.ID, err)
		}
		p.Manuals = manuals
		k.Products = append(k.Products, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}

	if err := validateKnowledge(k); err != nil {
		return nil, err
	}
	return k, nil
}

// decodeManuals accepts a label -> URL mapping or a sequence of {title, url}.
func decodeManuals(n *yaml.Node) ([]entities.Manual, error) {
	var out []entities.Manual
	err := eachEntry(n, func(key string, v *yaml.Node) error {
		if key != "" && v.Kind == yaml.ScalarNode {
			out = append(out, entities.Manual{Title: key, URL: strings.TrimSpace(v.Value)})
			return nil
		}
		var dto manualDTO
		if err := v.Decode(&dto); err != nil {
			return err
		}
		out = append(out, entities.Manual{Title: firstNonEmpty(dto.Title, key), URL: strings.TrimSpace(dto.URL)})
		return nil
	})
	return out, err
}

// eachEntry walks a sequence (key "") or a mapping (key = mapping key) in
// document order. An absent or null node has no entries.
func eachEntry(n *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	switch n.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return fmt.Errorf("line %d: expected a list or a mapping", n.Line)
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if err := fn("", item); err != nil {
				return fmt.Errorf("line %d: %w", item.Line, err)
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
				return fmt.Errorf("line %d: %w", n.Content[i].Line, err)
			}
		}
	default:
		return fmt.Errorf("line %d: expected a list or a mapping", n.Line)
	}
	return nil
}

func validateKnowledge(k *entities.Knowledge) error {
	seen := make(map[string]bool)
	for _, b := range k.Branches {
		if b.Name == "" {
			return fmt.Errorf("branch without a name")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate branch %q", b.Name)
		}
		seen[b.Name] = true
	}

	seen = make(map[string]bool)
	for _, d := range k.Departments {
		if d.Name == "" {
			return fmt.Errorf("department without a name")
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate department %q", d.Name)
		}
		seen[d.Name] = true
	}

	seen = make(map[string]bool)
	for _, p := range k.Products {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("product needs both id and name (id=%q name=%q)", p.ID, p.Name)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
