package core

import (
	"fmt"
	"strings"

	"github.com/scholamates/neuralearn-server/internal/store"
)

const baseInstruction = "You are a helpful AI assistant. Use LaTeX for mathematical expressions. " +
	"Wrap inline math in single dollar signs ($) and block math in double dollar signs ($$)."

// BuildSystemInstruction assembles the provider-level system instruction
// from the base instruction plus personalization fragments, in a stable
// order: nickname, occupation, major, about-me, tutor mode, response
// length, academic level. A lookup id with no matching preset is silently
// omitted. tutorModeOverride, when set, takes precedence over the stored
// preference for this call only.
func BuildSystemInstruction(profile *store.Profile, tutorModeOverride string) string {
	if profile == nil {
		return baseInstruction
	}

	var parts []string
	if profile.Nickname != "" {
		parts = append(parts, fmt.Sprintf("The user's nickname is %s.", profile.Nickname))
	}
	if profile.Occupation != "" {
		parts = append(parts, fmt.Sprintf("The user is a %s.", profile.Occupation))
	}
	if profile.Major != "" {
		parts = append(parts, fmt.Sprintf("The user's major/field of study is %s. Use relevant analogies.", profile.Major))
	}
	if profile.AboutMe != "" {
		parts = append(parts, fmt.Sprintf("User info: %s", profile.AboutMe))
	}

	tutorMode := profile.TutorMode
	if tutorModeOverride != "" {
		tutorMode = tutorModeOverride
	}
	if mode, ok := findPreset(TutorModes, tutorMode); ok {
		parts = append(parts, mode.Prompt)
	}
	if length, ok := findPreset(ResponseLengths, profile.ResponseLength); ok {
		parts = append(parts, length.Prompt)
	}
	if level, ok := findPreset(AcademicLevels, profile.AcademicLevel); ok {
		parts = append(parts, level.Prompt)
	}

	if len(parts) == 0 {
		return baseInstruction
	}
	return baseInstruction + " " + strings.Join(parts, " ")
}
