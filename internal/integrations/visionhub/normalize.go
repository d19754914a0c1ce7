package visionhub

import "encoding/json"

// Result status tags used by the current wire shape.
const (
	statusKnown = "KNOWN"
	statusTemp  = "TEMP"
)

// Box is a bounding box as [x1, y1, x2, y2].
type Box [4]float64

// Entity is one recognized identity from a single response.
type Entity struct {
	SubjectRef  string   `json:"subject_ref"`
	DisplayName string   `json:"display_name"`
	Category    string   `json:"category"` // "member" or "visitor"
	Confidence  *float64 `json:"confidence,omitempty"`
	Box         Box      `json:"box"`
	Confirmed   bool     `json:"confirmed"` // backend-granted attendance confirmation
}

// Recognition is the canonical outcome of one recognize call. Entities and
// Regions are always non-nil; NoFace means the backend explicitly reported
// an empty frame.
type Recognition struct {
	NoFace   bool
	Entities []Entity
	Regions  []Box
}

// wireResponse covers both response generations of the recognize endpoint:
// the current single-result shape and the legacy per-face list. Exactly one
// of Result/Faces is populated; Code carries the explicit no-face signal.
type wireResponse struct {
	Code   string      `json:"code,omitempty"`
	Result *wireResult `json:"result,omitempty"`

	// Legacy shape
	Faces []wireFace `json:"faces,omitempty"`
}

// wireResult is the current single-result shape.
type wireResult struct {
	Status           string    `json:"status"` // KNOWN or TEMP
	SubjectRef       string    `json:"subject_ref,omitempty"`
	DisplayName      string    `json:"display_name,omitempty"`
	Category         string    `json:"category,omitempty"`
	Confidence       *float64  `json:"confidence,omitempty"`
	Box              []float64 `json:"box,omitempty"`
	AttendanceMarked bool      `json:"attendance_marked,omitempty"`
}

// wireFace is one entry of the legacy multi-result shape.
type wireFace struct {
	Recognized  bool      `json:"recognized"`
	SubjectRef  string    `json:"subject_ref,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Category    string    `json:"category,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Box         []float64 `json:"box,omitempty"`
	Confirmed   bool      `json:"attendance_marked,omitempty"`
}

// ParseResponse decodes a raw recognize payload and normalizes it.
func ParseResponse(payload []byte) (*Recognition, error) {
	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, err
	}
	return Normalize(&wire), nil
}

// Normalize collapses either wire shape into the canonical Recognition.
// Candidate boxes need at least four numeric coordinates; malformed entries
// are dropped silently rather than propagated.
func Normalize(wire *wireResponse) *Recognition {
	outcome := &Recognition{
		Entities: []Entity{},
		Regions:  []Box{},
	}
	if wire == nil {
		return outcome
	}

	if wire.Code == CodeNoFace {
		outcome.NoFace = true
		return outcome
	}

	// Current shape: a single result tagged KNOWN or TEMP.
	if wire.Result != nil {
		box, ok := toBox(wire.Result.Box)
		if !ok {
			return outcome
		}
		switch wire.Result.Status {
		case statusKnown:
			outcome.Entities = append(outcome.Entities, Entity{
				SubjectRef:  wire.Result.SubjectRef,
				DisplayName: wire.Result.DisplayName,
				Category:    category(wire.Result.Category),
				Confidence:  wire.Result.Confidence,
				Box:         box,
				Confirmed:   wire.Result.AttendanceMarked,
			})
		case statusTemp:
			// Detected but unidentified, overlay only.
			outcome.Regions = append(outcome.Regions, box)
		}
		return outcome
	}

	// Legacy shape: one entry per detected face.
	for _, face := range wire.Faces {
		box, ok := toBox(face.Box)
		if !ok {
			continue
		}
		if face.Recognized && face.SubjectRef != "" {
			outcome.Entities = append(outcome.Entities, Entity{
				SubjectRef:  face.SubjectRef,
				DisplayName: face.DisplayName,
				Category:    category(face.Category),
				Confidence:  face.Confidence,
				Box:         box,
				Confirmed:   face.Confirmed,
			})
		} else {
			outcome.Regions = append(outcome.Regions, box)
		}
	}
	return outcome
}

// toBox validates a candidate bounding box. Extra coordinates beyond the
// first four are ignored.
func toBox(coords []float64) (Box, bool) {
	if len(coords) < 4 {
		return Box{}, false
	}
	return Box{coords[0], coords[1], coords[2], coords[3]}, true
}

func category(raw string) string {
	if raw == "visitor" {
		return "visitor"
	}
	return "member"
}
