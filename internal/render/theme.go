package render

import "stackmaps/stackmap"

// Theme holds colors for the HTML report.
type Theme struct {
	Background string
	TextColor  string
	Accent     string // links and bars
	Muted      string

	// Location kind colors.
	KindRegister      string
	KindDirect        string
	KindIndirect      string
	KindConstant      string
	KindConstantIndex string
}

// KindColor returns the color for a location kind.
func (t Theme) KindColor(k stackmap.Kind) string {
	switch k {
	case stackmap.Register:
		return t.KindRegister
	case stackmap.Direct:
		return t.KindDirect
	case stackmap.Indirect:
		return t.KindIndirect
	case stackmap.Constant:
		return t.KindConstant
	case stackmap.ConstantIndex:
		return t.KindConstantIndex
	}
	return t.Muted
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	TextColor:  "#1A1A1A",
	Accent:     "#0B3D91",
	Muted:      "#9E9E9E",

	KindRegister:      "#0B3D91", // NASA blue
	KindDirect:        "#00695C", // teal
	KindIndirect:      "#E65100", // deep orange
	KindConstant:      "#424242", // dark gray
	KindConstantIndex: "#FC3D21", // NASA red
}
