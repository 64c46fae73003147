package core

// Skill categories in radar axis order.
const (
	SkillFrontend    = "Frontend"
	SkillProgramming = "Programming"
	SkillBackend     = "Backend"
	SkillGo          = "Go"
	SkillJavaScript  = "JavaScript"
	SkillGit         = "Git"
	SkillDocker      = "Docker"
	SkillAlgorithm   = "Algorithm"
)

// SkillAxisCount is the fixed number of radar axes.
const SkillAxisCount = 8

// SkillCategories lists the radar categories in their stable display order.
var SkillCategories = [SkillAxisCount]string{
	SkillFrontend,
	SkillProgramming,
	SkillBackend,
	SkillGo,
	SkillJavaScript,
	SkillGit,
	SkillDocker,
	SkillAlgorithm,
}

// skillTransactionTypes maps upstream skill transaction types to categories.
var skillTransactionTypes = map[string]string{
	"skill_front-end": SkillFrontend,
	"skill_prog":      SkillProgramming,
	"skill_back-end":  SkillBackend,
	"skill_go":        SkillGo,
	"skill_js":        SkillJavaScript,
	"skill_git":       SkillGit,
	"skill_docker":    SkillDocker,
	"skill_algo":      SkillAlgorithm,
}

// SkillCategoryFor returns the category an upstream transaction type feeds.
func SkillCategoryFor(transactionType string) (string, bool) {
	name, ok := skillTransactionTypes[transactionType]
	return name, ok
}

// ZeroSkills returns the eight categories with a zero score.
func ZeroSkills() []SkillScore {
	out := make([]SkillScore, 0, SkillAxisCount)
	for _, name := range SkillCategories {
		out = append(out, SkillScore{Name: name})
	}
	return out
}

// ClampPercent bounds v to the fixed 0..100 skill scale.
func ClampPercent(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
