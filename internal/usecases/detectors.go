package usecases

import "kasbot/internal/entities"

// Short colloquial branch names. Checked before the catalog so that a partial
// name shared by several official branch names still resolves.
var branchAliases = []SynonymRule{
	Alias("حلمية الزيتون", "الحلميه", "حلميه", "الحلمية", "حلمية"),
	Alias("فيصل", "الاداره", "الادارة", "اداره", "ادارة", "الإدارة", "فيصل"),
	Alias("الإسكندرية", "اسكندريه", "اسكندرية", "الاسكندرية"),
	Alias("القاهرة", "القاهره"),
}

// Fallback keywords when no declared department name is in the message.
var departmentKeywords = []SynonymRule{
	Alias("الدعم الفني", "دعم"),
	Alias("خدمة العملاء", "خدمه", "خدمة"),
	Alias("المبيعات", "مبيعات"),
	Alias("التسويق", "تسويق"),
	Alias("المشتريات", "مشتريات"),
}

// Per-product synonyms beyond the product name and configured aliases.
// Each inner slice is one alternative whose terms must all be present.
var productSynonyms = map[string][][]string{
	"folding_door":   {{"فولدينج"}, {"باب", "طي"}},
	"automatic_door": {{"باب", "اوتوماتيك"}},
	"gold_2030":      {{"جولد", "2030"}},
	"kas_2025":       {{"2025"}},
	"kas_2021":       {{"2021"}},
	"mini_8":         {{"ميني"}, {"mini 8"}, {"8 وقفه"}},
}

// Detectors resolves free text to catalog entities for one knowledge snapshot.
type Detectors struct {
	knowledge   *entities.Knowledge
	greetings   []string // normalized triggers
	branches    *SynonymResolver
	departments *SynonymResolver
	products    *SynonymResolver
}

func NewDetectors(k *entities.Knowledge) *Detectors {
	branchRules := append([]SynonymRule{}, branchAliases...)
	for _, b := range k.Branches {
		branchRules = append(branchRules, Alias(b.Name, b.Name))
	}

	deptRules := make([]SynonymRule, 0, len(k.Departments)+len(departmentKeywords))
	for _, d := range k.Departments {
		deptRules = append(deptRules, Alias(d.Name, d.Name))
	}
	deptRules = append(deptRules, departmentKeywords...)

	productRules := make([]SynonymRule, 0, len(k.Products))
	for _, p := range k.Products {
		rule := Alias(p.ID, append([]string{p.Name}, p.Aliases...)...)
		for _, alt := range productSynonyms[p.ID] {
			rule = rule.With(alt...)
		}
		productRules = append(productRules, rule)
	}

	greetings := make([]string, 0, len(k.Greetings.Triggers))
	for _, t := range k.Greetings.Triggers {
		if t = Normalize(t); t != "" {
			greetings = append(greetings, t)
		}
	}

	return &Detectors{
		knowledge:   k,
		greetings:   greetings,
		branches:    NewSynonymResolver(branchRules...),
		departments: NewSynonymResolver(deptRules...),
		products:    NewSynonymResolver(productRules...),
	}
}

// IsGreeting reports whether normalized m contains a greeting trigger.
func (d *Detectors) IsGreeting(m string) bool {
	return m != "" && containsAny(m, d.greetings...)
}

// DetectBranch returns the canonical branch name mentioned in m (normalized).
func (d *Detectors) DetectBranch(m string) (string, bool) {
	return d.branches.Resolve(m)
}

// DetectDepartment returns the department name mentioned in m (normalized).
func (d *Detectors) DetectDepartment(m string) (string, bool) {
	return d.departments.Resolve(m)
}

// DetectProduct returns the id of the first catalog product mentioned in m (normalized).
func (d *Detectors) DetectProduct(m string) (string, bool) {
	return d.products.Resolve(m)
}

// FindBranch looks a canonical name up in the catalog, ignoring spelling variants.
func (d *Detectors) FindBranch(name string) (entities.Branch, bool) {
	n := Normalize(name)
	for _, b := range d.knowledge.Branches {
		if Normalize(b.Name) == n {
			return b, true
		}
	}
	return entities.Branch{}, false
}

func (d *Detectors) FindDepartment(name string) (entities.Department, bool) {
	n := Normalize(name)
	for _, dep := range d.knowledge.Departments {
		if Normalize(dep.Name) == n {
			return dep, true
		}
	}
	return entities.Department{}, false
}
