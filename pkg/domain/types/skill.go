package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// Skill is a canonical identifier of an assistant mode (e.g. "dsa",
// "system-design"). It selects a system instruction and scopes context.
type Skill string

// DefaultSkill is used when a collaborator does not specify a skill
const DefaultSkill Skill = "general"

var skillIDPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Validate checks if the Skill is a well-formed identifier
func (x Skill) Validate() error {
	if x == "" {
		return goerr.New("skill cannot be empty")
	}
	if !skillIDPattern.MatchString(string(x)) {
		return goerr.New("skill must be lowercase alphanumeric with hyphens", goerr.V("skill", x))
	}
	return nil
}

// String returns the string representation of Skill
func (x Skill) String() string {
	return string(x)
}
