package core

// DefaultCategoryColor is used for categories without an assigned color.
const DefaultCategoryColor = "#6C5CE7"

var categoryColors = map[string]string{
	"Entertainment": "#FF6B6B",
	"Fitness":       "#4ECDC4",
}

// CategoryColor returns the hex color for a category.
func CategoryColor(name string) string {
	if c, ok := categoryColors[name]; ok {
		return c
	}
	return DefaultCategoryColor
}

// Palette holds the color tokens that depend on the theme flag.
type Palette struct {
	Text   string
	Grid   string
	Accent string
}

var (
	lightPalette = Palette{Text: "#2D3748", Grid: "rgba(0,0,0,0.1)", Accent: "#7C3AED"}
	darkPalette  = Palette{Text: "#E2E8F0", Grid: "rgba(255,255,255,0.1)", Accent: "#A78BFA"}
)

// PaletteFor returns the light or dark palette.
func PaletteFor(dark bool) Palette {
	if dark {
		return darkPalette
	}
	return lightPalette
}
