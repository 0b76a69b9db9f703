package contract

import (
	"encoding/json"
	"testing"
)

// TestContractValidate_Valid tests that a complete contract passes validation
func TestContractValidate_Valid(t *testing.T) {
	c := &Contract{
		Name:       "GameState",
		Definition: "interface GameState { score: number }",
		OwnedBy:    "state",
	}
	if err := c.Validate(); err != nil {
		t.Errorf("valid contract failed validation: %v", err)
	}
}

// TestContractValidate_MissingFields tests that empty identity fields fail
func TestContractValidate_MissingFields(t *testing.T) {
	if err := (&Contract{Definition: "x"}).Validate(); err == nil {
		t.Error("expected validation to fail for empty name, but it passed")
	}
	if err := (&Contract{Name: "X"}).Validate(); err == nil {
		t.Error("expected validation to fail for empty definition, but it passed")
	}
}

func TestDependencyRefNormalize(t *testing.T) {
	tests := []struct {
		name       string
		ref        DependencyRef
		declaring  string
		wantSource string
		wantTarget string
		wantRel    string
		wantOK     bool
	}{
		{
			name:       "string with unicode arrow",
			ref:        DependencyRef{Raw: "physics → state"},
			declaring:  "physics",
			wantSource: "physics",
			wantTarget: "state",
			wantRel:    "depends_on",
			wantOK:     true,
		},
		{
			name:       "string with ascii arrow is normalized",
			ref:        DependencyRef{Raw: "frontend -> state"},
			declaring:  "frontend",
			wantSource: "frontend",
			wantTarget: "state",
			wantRel:    "depends_on",
			wantOK:     true,
		},
		{
			name:       "bare target uses declaring agent as source",
			ref:        DependencyRef{Raw: "state"},
			declaring:  "frontend",
			wantSource: "frontend",
			wantTarget: "state",
			wantRel:    "depends_on",
			wantOK:     true,
		},
		{
			name:       "structured record",
			ref:        DependencyRef{From: "testing", To: "frontend", Relation: "tests"},
			declaring:  "testing",
			wantSource: "testing",
			wantTarget: "frontend",
			wantRel:    "tests",
			wantOK:     true,
		},
		{
			name:       "structured record without from or relation",
			ref:        DependencyRef{To: "state"},
			declaring:  "physics",
			wantSource: "physics",
			wantTarget: "state",
			wantRel:    "depends_on",
			wantOK:     true,
		},
		{
			name:      "empty target is rejected",
			ref:       DependencyRef{From: "physics"},
			declaring: "physics",
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, target, relation, ok := tt.ref.Normalize(tt.declaring)
			if ok != tt.wantOK {
				t.Fatalf("Normalize() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if source != tt.wantSource || target != tt.wantTarget || relation != tt.wantRel {
				t.Errorf("Normalize() = (%q, %q, %q), want (%q, %q, %q)",
					source, target, relation, tt.wantSource, tt.wantTarget, tt.wantRel)
			}
		})
	}
}

func TestDependencyRefJSON(t *testing.T) {
	t.Run("unmarshals string form", func(t *testing.T) {
		var ref DependencyRef
		if err := json.Unmarshal([]byte(`"physics → state"`), &ref); err != nil {
			t.Fatalf("unmarshal string form: %v", err)
		}
		if ref.Raw != "physics → state" {
			t.Errorf("Raw = %q, want %q", ref.Raw, "physics → state")
		}
	})

	t.Run("unmarshals record form", func(t *testing.T) {
		var ref DependencyRef
		if err := json.Unmarshal([]byte(`{"from":"a","to":"b","type":"reads"}`), &ref); err != nil {
			t.Fatalf("unmarshal record form: %v", err)
		}
		if ref.From != "a" || ref.To != "b" || ref.Relation != "reads" {
			t.Errorf("unexpected record: %+v", ref)
		}
	})

	t.Run("string form round-trips", func(t *testing.T) {
		ref := DependencyRef{Raw: "frontend → state"}
		data, err := json.Marshal(ref)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `"frontend → state"` {
			t.Errorf("marshal = %s, want string form", data)
		}
	})
}

func TestEdgeKey(t *testing.T) {
	key := EdgeKey("physics", "state")
	if key != "physics → state" {
		t.Errorf("EdgeKey() = %q, want %q", key, "physics → state")
	}

	source, target, ok := ParseEdgeKey(key)
	if !ok || source != "physics" || target != "state" {
		t.Errorf("ParseEdgeKey(%q) = (%q, %q, %v)", key, source, target, ok)
	}

	if _, _, ok := ParseEdgeKey("no-arrow-here"); ok {
		t.Error("expected ParseEdgeKey to reject a key without an arrow")
	}

	// Direction matters: reversed endpoints are a different edge.
	if EdgeKey("state", "physics") == key {
		t.Error("reversed edge key should differ")
	}
}

func TestDependencyEdgeHasRelation(t *testing.T) {
	edge := &DependencyEdge{Source: "a", Target: "b", RelationTypes: []string{"depends_on"}}
	if !edge.HasRelation("depends_on") {
		t.Error("expected HasRelation to find existing relation")
	}
	if edge.HasRelation("reads") {
		t.Error("expected HasRelation to miss absent relation")
	}
}

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("Rank(%s) should exceed Rank(%s)", order[i], order[i-1])
		}
	}
}

func TestConflictValidate(t *testing.T) {
	c := NewConflict(ConflictInterfaceMismatch, SeverityCritical, "boom")
	if err := c.Validate(); err != nil {
		t.Errorf("valid conflict failed validation: %v", err)
	}

	bad := c
	bad.ID = "not-a-uuid"
	if err := bad.Validate(); err == nil {
		t.Error("expected validation to fail for invalid ID, but it passed")
	}

	noMsg := NewConflict(ConflictMissingTest, SeverityMedium, "")
	if err := noMsg.Validate(); err == nil {
		t.Error("expected validation to fail for empty message, but it passed")
	}
}

func TestAgentOutputValidate(t *testing.T) {
	tests := []struct {
		name    string
		output  AgentOutput
		wantErr bool
	}{
		{
			name:   "success output",
			output: AgentOutput{AgentType: "frontend", Status: StatusSuccess},
		},
		{
			name:    "error status without errors field",
			output:  AgentOutput{AgentType: "frontend", Status: StatusError},
			wantErr: true,
		},
		{
			name:   "error status with errors field",
			output: AgentOutput{AgentType: "frontend", Status: StatusError, Errors: []string{"compile failed"}},
		},
		{
			name:    "blocked status without blockers field",
			output:  AgentOutput{AgentType: "physics", Status: StatusBlocked},
			wantErr: true,
		},
		{
			name:   "blocked status with blockers field",
			output: AgentOutput{AgentType: "physics", Status: StatusBlocked, Blockers: []string{"needs GameState contract"}},
		},
		{
			name:    "missing agent type",
			output:  AgentOutput{Status: StatusSuccess},
			wantErr: true,
		},
		{
			name:    "unknown status",
			output:  AgentOutput{AgentType: "frontend", Status: "done"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.output.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChangedFiles(t *testing.T) {
	output := AgentOutput{
		FilesModified: []string{"src/a.ts", "src/b.ts"},
		FilesCreated:  []string{"src/c.ts"},
	}
	files := output.ChangedFiles()
	want := []string{"src/a.ts", "src/b.ts", "src/c.ts"}
	if len(files) != len(want) {
		t.Fatalf("ChangedFiles() returned %d paths, want %d", len(files), len(want))
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("ChangedFiles()[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}
