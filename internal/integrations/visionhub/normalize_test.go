package visionhub

import "testing"

func TestParseResponseCurrentShape(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantNoFace   bool
		wantEntities int
		wantRegions  int
	}{
		{
			name:         "known subject",
			payload:      `{"result":{"status":"KNOWN","subject_ref":"s-1","display_name":"Ada","category":"member","confidence":0.97,"box":[10,20,110,140],"attendance_marked":true}}`,
			wantEntities: 1,
		},
		{
			name:        "temp detection",
			payload:     `{"result":{"status":"TEMP","box":[5,5,50,60]}}`,
			wantRegions: 1,
		},
		{
			name:       "explicit no face",
			payload:    `{"code":"NO_FACE"}`,
			wantNoFace: true,
		},
		{
			name:    "known with short box dropped",
			payload: `{"result":{"status":"KNOWN","subject_ref":"s-1","box":[10,20,110]}}`,
		},
		{
			name:    "unknown status ignored",
			payload: `{"result":{"status":"PENDING","box":[1,2,3,4]}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := ParseResponse([]byte(tc.payload))
			if err != nil {
				t.Fatalf("ParseResponse: %v", err)
			}
			if outcome.NoFace != tc.wantNoFace {
				t.Errorf("NoFace = %v, want %v", outcome.NoFace, tc.wantNoFace)
			}
			if len(outcome.Entities) != tc.wantEntities {
				t.Errorf("len(Entities) = %d, want %d", len(outcome.Entities), tc.wantEntities)
			}
			if len(outcome.Regions) != tc.wantRegions {
				t.Errorf("len(Regions) = %d, want %d", len(outcome.Regions), tc.wantRegions)
			}
			if outcome.Entities == nil || outcome.Regions == nil {
				t.Errorf("Entities/Regions must never be nil")
			}
		})
	}
}

func TestParseResponseKnownFields(t *testing.T) {
	payload := `{"result":{"status":"KNOWN","subject_ref":"s-7","display_name":"Grace","category":"visitor","confidence":0.91,"box":[10,20,110,140,999],"attendance_marked":true}}`

	outcome, err := ParseResponse([]byte(payload))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(outcome.Entities) != 1 {
		t.Fatalf("len(Entities) = %d, want 1", len(outcome.Entities))
	}
	entity := outcome.Entities[0]
	if entity.SubjectRef != "s-7" || entity.DisplayName != "Grace" {
		t.Errorf("identity fields = %q/%q", entity.SubjectRef, entity.DisplayName)
	}
	if entity.Category != "visitor" {
		t.Errorf("Category = %q, want visitor", entity.Category)
	}
	if entity.Confidence == nil || *entity.Confidence != 0.91 {
		t.Errorf("Confidence = %v, want 0.91", entity.Confidence)
	}
	// Extra coordinates beyond the first four are ignored.
	if entity.Box != (Box{10, 20, 110, 140}) {
		t.Errorf("Box = %v", entity.Box)
	}
	if !entity.Confirmed {
		t.Errorf("Confirmed = false, want true")
	}
}

func TestParseResponseLegacyShape(t *testing.T) {
	payload := `{"faces":[
		{"recognized":true,"subject_ref":"s-1","display_name":"Ada","confidence":0.88,"box":[1,2,3,4]},
		{"recognized":false,"box":[5,6,7,8]},
		{"recognized":true,"subject_ref":"","box":[9,10,11,12]},
		{"recognized":true,"subject_ref":"s-2","box":[13,14]}
	]}`

	outcome, err := ParseResponse([]byte(payload))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(outcome.Entities) != 1 {
		t.Fatalf("len(Entities) = %d, want 1", len(outcome.Entities))
	}
	if outcome.Entities[0].SubjectRef != "s-1" {
		t.Errorf("SubjectRef = %q", outcome.Entities[0].SubjectRef)
	}
	if outcome.Entities[0].Category != "member" {
		t.Errorf("Category = %q, want member default", outcome.Entities[0].Category)
	}
	// Unrecognized face and recognized-but-unreferenced face both become regions;
	// the short box entry is dropped entirely.
	if len(outcome.Regions) != 2 {
		t.Errorf("len(Regions) = %d, want 2", len(outcome.Regions))
	}
}

func TestNormalizeNilAndEmpty(t *testing.T) {
	for _, wire := range []*wireResponse{nil, {}} {
		outcome := Normalize(wire)
		if outcome.NoFace {
			t.Errorf("NoFace = true for empty input")
		}
		if outcome.Entities == nil || len(outcome.Entities) != 0 {
			t.Errorf("Entities = %v, want empty non-nil", outcome.Entities)
		}
		if outcome.Regions == nil || len(outcome.Regions) != 0 {
			t.Errorf("Regions = %v, want empty non-nil", outcome.Regions)
		}
	}
}

func TestParseResponseRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseResponse([]byte(`{"result":`)); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
