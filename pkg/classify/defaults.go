package classify

import "image/color"

// DefaultKeys is the built-in classification priority.
var DefaultKeys = []string{
	"bridge",
	"building",
	"water",
	"landuse",
	"natural",
	"leisure",
	"highway",
	"barrier",
}

// DefaultColors is the built-in category palette (RGB).
var DefaultColors = map[string]color.RGBA{
	"yes":             {R: 255, G: 0, B: 0, A: 255},
	"retail":          {R: 255, G: 0, B: 0, A: 255},
	"apartments":      {R: 255, G: 0, B: 0, A: 255},
	"cathedral":       {R: 128, G: 0, B: 0, A: 255},
	"school":          {R: 128, G: 0, B: 0, A: 255},
	"dormitory":       {R: 128, G: 0, B: 0, A: 255},
	"hospital":        {R: 128, G: 0, B: 0, A: 255},
	"water":           {R: 0, G: 0, B: 255, A: 255},
	"wood":            {R: 0, G: 255, B: 0, A: 255},
	"wetland":         {R: 0, G: 255, B: 64, A: 255},
	"grass":           {R: 0, G: 128, B: 0, A: 255},
	"park":            {R: 0, G: 64, B: 0, A: 255},
	"sand":            {R: 0, G: 128, B: 128, A: 255},
	"pitch":           {R: 128, G: 64, B: 0, A: 255},
	"fitness_station": {R: 128, G: 64, B: 0, A: 255},
	"playground":      {R: 128, G: 64, B: 0, A: 255},
	"cemetery":        {R: 255, G: 64, B: 0, A: 255},
	"primary":         {R: 128, G: 128, B: 0, A: 255},
	"secondary":       {R: 128, G: 128, B: 0, A: 255},
	"tertiary":        {R: 128, G: 128, B: 0, A: 255},
	"residential":     {R: 128, G: 128, B: 0, A: 255},
	"service":         {R: 128, G: 128, B: 0, A: 255},
	"construction":    {R: 64, G: 64, B: 64, A: 255},
	"wall":            {R: 128, G: 0, B: 255, A: 255},
}

// Default returns the built-in table.
func Default() *Table {
	t, err := NewTable(DefaultKeys, DefaultColors)
	if err != nil {
		panic(err)
	}
	return t
}
