package models

import "strings"

// DefaultDisplayColor is used for boards whose colour tag is not in the palette.
const DefaultDisplayColor = "#f1f5f9"

var palette = map[string]string{
	"red":    "#fee2e2",
	"blue":   "#dbeafe",
	"green":  "#dcfce7",
	"yellow": "#fef3c7",
	"purple": "#f3e8ff",
	"pink":   "#fbcfe8",
}

// DisplayColor maps a board colour tag to its background colour.
func DisplayColor(tag *string) string {
	if tag == nil {
		return DefaultDisplayColor
	}
	if c, ok := palette[strings.ToLower(strings.TrimSpace(*tag))]; ok {
		return c
	}
	return DefaultDisplayColor
}
