package exposure

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var registryYAML []byte

// FoodSourceSpec describes a recognized food-source column.
type FoodSourceSpec struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	Description    string `yaml:"description" json:"description"`
	MainRisk       string `yaml:"main_risk" json:"main_risk"`
	GlobalSolution string `yaml:"global_solution" json:"global_solution"`
	CountryAction  string `yaml:"country_action" json:"country_action"`
}

// Recommendations is the mitigation bundle attached to an entity's band.
type Recommendations struct {
	Policy       string `yaml:"policy" json:"policy"`
	PublicHealth string `yaml:"public_health" json:"public_health"`
	Individual   string `yaml:"individual" json:"individual"`
}

// HealthTips is the educational content served alongside reports.
type HealthTips struct {
	GeneralTips      []Tip            `yaml:"general_tips" json:"general_tips"`
	FoodAlternatives FoodAlternatives `yaml:"food_alternatives" json:"food_alternatives"`
	HealthMonitoring []string         `yaml:"health_monitoring" json:"health_monitoring"`
}

type Tip struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
}

type FoodAlternatives struct {
	HighRiskFoods []Alternative `yaml:"high_risk_foods" json:"high_risk_foods"`
}

type Alternative struct {
	Food         string   `yaml:"food" json:"food"`
	Alternatives []string `yaml:"alternatives" json:"alternatives"`
}

type registryFile struct {
	FoodSources     []FoodSourceSpec           `yaml:"food_sources"`
	Recommendations map[Bucket]Recommendations `yaml:"recommendations"`
	HealthTips      HealthTips                 `yaml:"health_tips"`
}

// Registry is read-only after package initialization.
var (
	sources     []FoodSourceSpec
	sourceIndex map[string]int
	bundles     map[Bucket]Recommendations
	tips        HealthTips
)

func init() {
	reg, err := parseRegistry(registryYAML)
	if err != nil {
		panic(err)
	}
	sources = reg.FoodSources
	bundles = reg.Recommendations
	tips = reg.HealthTips
	sourceIndex = make(map[string]int, len(sources))
	for i, s := range sources {
		sourceIndex[s.ID] = i
	}
}

func parseRegistry(data []byte) (*registryFile, error) {
	var reg registryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse food-source registry: %w", err)
	}
	if len(reg.FoodSources) == 0 {
		return nil, fmt.Errorf("parse food-source registry: no food sources")
	}
	for _, b := range []Bucket{BucketHigh, BucketModerate, BucketLow} {
		if _, ok := reg.Recommendations[b]; !ok {
			return nil, fmt.Errorf("parse food-source registry: missing %q recommendations", b)
		}
	}
	return &reg, nil
}

// Lookup returns the spec for a column identifier. Unknown identifiers get a
// spec whose display name is the identifier itself.
func Lookup(id string) (FoodSourceSpec, bool) {
	if i, ok := sourceIndex[id]; ok {
		return sources[i], true
	}
	return FoodSourceSpec{ID: id, Name: id}, false
}

// DisplayName is Lookup(id).Name.
func DisplayName(id string) string {
	s, _ := Lookup(id)
	return s.Name
}

// FoodSources returns a copy of the registry in declaration order.
func FoodSources() []FoodSourceSpec {
	out := make([]FoodSourceSpec, len(sources))
	copy(out, sources)
	return out
}

// DefaultColumns lists the registry identifiers in declaration order.
func DefaultColumns() []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.ID
	}
	return out
}

// RecommendationsFor returns the bundle for the band's bucket.
func RecommendationsFor(b RiskBand) Recommendations {
	return bundles[b.Bucket()]
}

// Tips returns the educational content loaded with the registry.
func Tips() HealthTips { return tips }
