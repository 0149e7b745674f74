package service

import (
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-story/internal/compose"
)

// MapMessage is a map command as the page receives it. Messages are
// built when the command is issued, so later label binding never changes
// a message that is still queued.
type MapMessage struct {
	Op           compose.Op                 `json:"op"`
	Layer        int                        `json:"layer"` // overlay position, -1 for clear and fly
	Dataset      string                     `json:"dataset,omitempty"`
	Data         *geojson.FeatureCollection `json:"data,omitempty"`   // add
	Bounds       []float64                  `json:"bounds,omitempty"` // fly: west, south, east, north
	PaddingRight float64                    `json:"paddingRight,omitempty"`
	Flight       int                        `json:"flight,omitempty"` // fly: echoed back by the page on moveend
	Labels       []Label                    `json:"labels,omitempty"`
}

// Label is a permanent tooltip for one feature of a layer.
type Label struct {
	Feature int    `json:"feature"`
	Text    string `json:"text"`
}

// Feature properties the page reads when drawing an added layer.
const (
	PropMarker  = "marker"
	PropStyle   = "style"
	PropTooltip = "tooltip"
)

func addMessage(index int, l *compose.Layer) MapMessage {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Features {
		out := geojson.NewFeature(f.Source.Geometry)
		out.ID = f.Index
		out.Properties[PropMarker] = f.Marker
		if f.Style != nil {
			out.Properties[PropStyle] = *f.Style
		}
		if f.Tooltip != nil {
			out.Properties[PropTooltip] = *f.Tooltip
		}
		fc.Append(out)
	}
	return MapMessage{Op: compose.OpAdd, Layer: index, Dataset: l.Dataset, Data: fc}
}

func labelsMessage(index int, l *compose.Layer) MapMessage {
	msg := MapMessage{Op: compose.OpLabels, Layer: index, Dataset: l.Dataset}
	for i, f := range l.Features {
		if f.Tooltip == nil || !f.Tooltip.Permanent {
			continue
		}
		msg.Labels = append(msg.Labels, Label{Feature: i, Text: f.Tooltip.Text})
	}
	return msg
}
