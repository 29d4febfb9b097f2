package datastructure

import (
	"fmt"
	"strings"
)

// Theme is one of the closed set of interest categories a profile may
// weight. The set only ever grows; renaming or removing a theme would break
// persisted profiles.
type Theme string

const (
	ThemeHistory       Theme = "history"
	ThemeArt           Theme = "art"
	ThemeNature        Theme = "nature"
	ThemeFood          Theme = "food"
	ThemeArchitecture  Theme = "architecture"
	ThemeShopping      Theme = "shopping"
	ThemeEntertainment Theme = "entertainment"
	ThemeCulture       Theme = "culture"
)

// Themes lists every known theme.
func Themes() []Theme {
	return []Theme{
		ThemeHistory,
		ThemeArt,
		ThemeNature,
		ThemeFood,
		ThemeArchitecture,
		ThemeShopping,
		ThemeEntertainment,
		ThemeCulture,
	}
}

func (t Theme) Valid() bool {
	switch t {
	case ThemeHistory, ThemeArt, ThemeNature, ThemeFood,
		ThemeArchitecture, ThemeShopping, ThemeEntertainment, ThemeCulture:
		return true
	}
	return false
}

func (t Theme) String() string {
	return string(t)
}

type UnknownThemeError struct {
	Value string
}

func (e *UnknownThemeError) Error() string {
	return fmt.Sprintf("unknown theme %q", e.Value)
}

// ParseTheme is case-insensitive and trims surrounding whitespace.
func ParseTheme(s string) (Theme, error) {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &UnknownThemeError{Value: s}
	}
	return t, nil
}
