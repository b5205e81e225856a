package export

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/pmaojo/hexanorm/internal/hexanorm/checker"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

// ExcalidrawBinding represents the connection of an arrow to an element.
type ExcalidrawBinding struct {
	ElementID string  `json:"elementId"`
	Focus     float64 `json:"focus"`
	Gap       float64 `json:"gap"`
}

// ExcalidrawElement represents a single element in the Excalidraw scene.
type ExcalidrawElement struct {
	Type            string             `json:"type"`
	Version         int                `json:"version"`
	VersionNonce    int                `json:"versionNonce"`
	IsDeleted       bool               `json:"isDeleted"`
	ID              string             `json:"id"`
	FillStyle       string             `json:"fillStyle"`
	StrokeWidth     int                `json:"strokeWidth"`
	StrokeStyle     string             `json:"strokeStyle"`
	Roughness       int                `json:"roughness"`
	Opacity         int                `json:"opacity"`
	Angle           int                `json:"angle"`
	X               float64            `json:"x"`
	Y               float64            `json:"y"`
	StrokeColor     string             `json:"strokeColor"`
	BackgroundColor string             `json:"backgroundColor"`
	Width           float64            `json:"width"`
	Height          float64            `json:"height"`
	Seed            int                `json:"seed"`
	GroupIds        []string           `json:"groupIds"`
	Roundness       any                `json:"roundness"`
	BoundElements   []any              `json:"boundElements"`
	Updated         int64              `json:"updated"`
	Link            any                `json:"link"`
	Locked          bool               `json:"locked"`
	Text            string             `json:"text,omitempty"`
	FontSize        int                `json:"fontSize,omitempty"`
	FontFamily      int                `json:"fontFamily,omitempty"`
	TextAlign       string             `json:"textAlign,omitempty"`
	VerticalAlign   string             `json:"verticalAlign,omitempty"`
	StartBinding    *ExcalidrawBinding `json:"startBinding,omitempty"`
	EndBinding      *ExcalidrawBinding `json:"endBinding,omitempty"`
	Points          [][]float64        `json:"points,omitempty"`
	StartArrowhead  string             `json:"startArrowhead,omitempty"`
	EndArrowhead    string             `json:"endArrowhead,omitempty"`
}

// ExcalidrawScene represents the full file format.
type ExcalidrawScene struct {
	Type     string              `json:"type"`
	Version  int                 `json:"version"`
	Source   string              `json:"source"`
	Elements []ExcalidrawElement `json:"elements"`
	AppState map[string]any      `json:"appState"`
	Files    map[string]any      `json:"files"`
}

// Arrow colours.
const (
	ColorAllowed   = "#2f9e44"
	ColorViolating = "#e03131"
	ColorUnchecked = "#868e96"
)

// LayerLink is the aggregate of all unit edges between two distinct layers.
type LayerLink struct {
	From       string
	To         string
	Edges      int
	Violations int
}

// Links aggregates the edges of a run by layer pair. Edges to EXTERNAL count against the
// EXTERNAL box; same-layer edges are dropped. Violations are taken from the report so the
// colouring always agrees with the check result.
func Links(res *checker.Result) []LayerLink {
	type pair struct{ from, to string }
	links := make(map[pair]*LayerLink)
	violating := make(map[string]int)
	for _, v := range res.Report.Violations {
		if v.Edge != nil {
			violating[v.Edge.Identity()]++
		}
	}

	for _, e := range res.Edges.All() {
		from := res.Layers.LayerOf(e.From)
		to := domain.External
		if !e.IsExternal() {
			to = res.Layers.LayerOf(e.To)
		}
		if from == to {
			continue
		}
		k := pair{from, to}
		l, ok := links[k]
		if !ok {
			l = &LayerLink{From: from, To: to}
			links[k] = l
		}
		l.Edges++
		if n := violating[e.Identity()]; n > 0 {
			l.Violations++
			violating[e.Identity()] = n - 1
		}
	}

	out := make([]LayerLink, 0, len(links))
	for _, l := range links {
		out = append(out, *l)
	}
	slices.SortFunc(out, func(a, b LayerLink) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return out
}

func (l LayerLink) color() string {
	switch {
	case l.Violations > 0:
		return ColorViolating
	case l.From == domain.Unassigned || l.To == domain.Unassigned || l.To == domain.External:
		return ColorUnchecked
	default:
		return ColorAllowed
	}
}

// boxes returns the layers to draw: registered layers in declaration order, then the
// pseudo-layers that actually occur.
func boxes(res *checker.Result, links []LayerLink) []string {
	names := res.Layers.Registry().Names()
	if len(res.Layers.Members(domain.Unassigned)) > 0 {
		names = append(names, domain.Unassigned)
	}
	for _, l := range links {
		if l.To == domain.External {
			names = append(names, domain.External)
			break
		}
	}
	return names
}

func layerColors(name string) (bg, stroke string) {
	switch name {
	case domain.Unassigned:
		return "#f1f3f5", "#868e96"
	case domain.External:
		return "#fff9db", "#f08c00"
	default:
		return "#e7f5ff", "#1971c2"
	}
}

// BuildScene lays out one box per layer, labelled with its unit count, and one arrow per
// observed layer-to-layer dependency.
func BuildScene(res *checker.Result) ExcalidrawScene {
	const (
		boxWidth  = 240.0
		boxHeight = 120.0
		gapX      = 160.0
		rowWidth  = 4
		gapY      = 200.0
	)

	links := Links(res)
	elements := []ExcalidrawElement{}
	rects := make(map[string]ExcalidrawElement)

	for i, name := range boxes(res, links) {
		x := float64(i%rowWidth) * (boxWidth + gapX)
		y := float64(i/rowWidth) * (boxHeight + gapY)
		bg, stroke := layerColors(name)
		id := "layer-" + name

		rect := baseElement("rectangle", id, x, y, boxWidth, boxHeight)
		rect.StrokeColor = stroke
		rect.BackgroundColor = bg
		rect.Roundness = map[string]int{"type": 3}
		elements = append(elements, rect)
		rects[name] = rect

		label := fmt.Sprintf("%s\n%d units", name, len(res.Layers.Members(name)))
		if name == domain.External {
			label = domain.External
		}
		text := baseElement("text", id+"-text", x+10, y+10, boxWidth-20, boxHeight-20)
		text.Text = label
		text.FontSize = 20
		text.FontFamily = 1
		text.TextAlign = "left"
		text.VerticalAlign = "top"
		elements = append(elements, text)
	}

	for _, l := range links {
		src, ok1 := rects[l.From]
		dst, ok2 := rects[l.To]
		if !ok1 || !ok2 {
			continue
		}
		startX, startY := src.X+boxWidth/2, src.Y+boxHeight
		endX, endY := dst.X+boxWidth/2, dst.Y
		if dst.Y <= src.Y {
			startY, endY = src.Y, dst.Y+boxHeight
		}

		arrow := baseElement("arrow", fmt.Sprintf("%s-%s", src.ID, dst.ID), startX, startY, endX-startX, endY-startY)
		arrow.StrokeColor = l.color()
		arrow.StrokeWidth = 2
		arrow.Points = [][]float64{{0, 0}, {endX - startX, endY - startY}}
		arrow.StartBinding = &ExcalidrawBinding{ElementID: src.ID, Focus: 0.1, Gap: 1}
		arrow.EndBinding = &ExcalidrawBinding{ElementID: dst.ID, Focus: 0.1, Gap: 1}
		arrow.EndArrowhead = "arrow"
		if l.Violations > 0 {
			arrow.StrokeStyle = "dashed"
		}
		elements = append(elements, arrow)

		caption := baseElement("text", arrow.ID+"-text", startX+(endX-startX)/2, startY+(endY-startY)/2, 120, 24)
		caption.Text = fmt.Sprintf("%d edges", l.Edges)
		if l.Violations > 0 {
			caption.Text = fmt.Sprintf("%d edges, %d violating", l.Edges, l.Violations)
		}
		caption.StrokeColor = l.color()
		caption.FontSize = 14
		caption.FontFamily = 1
		caption.TextAlign = "center"
		caption.VerticalAlign = "middle"
		elements = append(elements, caption)
	}

	return ExcalidrawScene{
		Type:     "excalidraw",
		Version:  2,
		Source:   "hexanorm",
		Elements: elements,
		AppState: map[string]any{"viewBackgroundColor": "#ffffff"},
		Files:    map[string]any{},
	}
}

func baseElement(typ, id string, x, y, w, h float64) ExcalidrawElement {
	return ExcalidrawElement{
		Type:            typ,
		Version:         1,
		ID:              id,
		FillStyle:       "solid",
		StrokeWidth:     1,
		StrokeStyle:     "solid",
		Roughness:       1,
		Opacity:         100,
		X:               x,
		Y:               y,
		StrokeColor:     "#000000",
		BackgroundColor: "transparent",
		Width:           w,
		Height:          h,
		Seed:            1,
		GroupIds:        []string{},
	}
}

// ExportExcalidraw writes the layer diagram of a run to outputPath.
func ExportExcalidraw(res *checker.Result, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(BuildScene(res)); err != nil {
		return err
	}
	return file.Close()
}
