package skill

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/domain/types"
	"github.com/pelletier/go-toml/v2"
)

//go:embed skills.toml
var defaultSkillsTOML []byte

// Registry is the read-only mapping from skill identifier to system
// instruction, loaded once at startup. Aliases normalize user-supplied
// skill names to canonical identifiers.
type Registry struct {
	defaultSkill types.Skill
	prompts      map[types.Skill]string
	aliases      map[string]types.Skill
}

type registryFile struct {
	Default string            `toml:"default"`
	Skills  []skillEntry      `toml:"skill"`
	Aliases map[string]string `toml:"alias"`
}

type skillEntry struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Instruction string `toml:"instruction"`
}

// New builds the registry from the embedded defaults
func New() (*Registry, error) {
	return parse(defaultSkillsTOML)
}

// Load builds the registry from a TOML file, replacing the embedded
// defaults entirely.
func Load(path string) (*Registry, error) {
	// #nosec G304 - path comes from a CLI flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read skill registry file", goerr.V("path", path))
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse skill registry TOML")
	}

	r := &Registry{
		defaultSkill: types.DefaultSkill,
		prompts:      make(map[types.Skill]string, len(file.Skills)),
		aliases:      make(map[string]types.Skill, len(file.Aliases)),
	}
	if file.Default != "" {
		r.defaultSkill = types.Skill(file.Default)
	}

	for _, entry := range file.Skills {
		id := types.Skill(entry.ID)
		if err := id.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid skill entry", goerr.V("id", entry.ID))
		}
		if _, exists := r.prompts[id]; exists {
			return nil, goerr.New("duplicate skill ID", goerr.V("id", entry.ID))
		}
		if strings.TrimSpace(entry.Instruction) == "" {
			return nil, goerr.New("skill instruction is required", goerr.V("id", entry.ID))
		}
		r.prompts[id] = strings.TrimSpace(entry.Instruction)
	}

	for name, target := range file.Aliases {
		id := types.Skill(target)
		if _, exists := r.prompts[id]; !exists {
			return nil, goerr.New("alias points to unknown skill",
				goerr.V("alias", name), goerr.V("target", target))
		}
		r.aliases[strings.ToLower(strings.TrimSpace(name))] = id
	}

	if _, exists := r.prompts[r.defaultSkill]; !exists {
		return nil, goerr.New("default skill is not registered", goerr.V("default", r.defaultSkill))
	}

	return r, nil
}

// Normalize maps a user-supplied skill name to its canonical identifier.
// Unknown names pass through lowercased and trimmed; empty input maps to
// the default skill.
func (x *Registry) Normalize(name string) types.Skill {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return x.defaultSkill
	}
	if canonical, ok := x.aliases[n]; ok {
		return canonical
	}
	return types.Skill(n)
}

// Instruction returns the system instruction for a skill, if registered
func (x *Registry) Instruction(s types.Skill) (string, bool) {
	text, ok := x.prompts[s]
	return text, ok
}

// Instructions returns a copy of the full skill-to-instruction mapping,
// used to seed the event store.
func (x *Registry) Instructions() map[types.Skill]string {
	result := make(map[types.Skill]string, len(x.prompts))
	for s, text := range x.prompts {
		result[s] = text
	}
	return result
}

// Skills returns all registered skill identifiers in stable order
func (x *Registry) Skills() []types.Skill {
	result := make([]types.Skill, 0, len(x.prompts))
	for s := range x.prompts {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Default returns the default skill identifier
func (x *Registry) Default() types.Skill {
	return x.defaultSkill
}
