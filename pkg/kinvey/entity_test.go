package kinvey

import "testing"

func TestEntity_IDRoundTrip(t *testing.T) {
	e := Entity{}
	if e.HasID() {
		t.Error("HasID() = true on an empty entity, want false")
	}
	e.SetID("abc123")
	if !e.HasID() || e.ID() != "abc123" {
		t.Errorf("ID() = %q, HasID() = %v, want abc123/true", e.ID(), e.HasID())
	}
}

func TestEntity_MarkLocalThenClear(t *testing.T) {
	e := Entity{"title": "a"}
	e.SetID("local-id")
	e.MarkLocal()

	if !e.IsLocal() {
		t.Fatal("IsLocal() = false after MarkLocal, want true")
	}

	e.ClearLocalMarkers()
	if e.HasID() {
		t.Error("HasID() = true after ClearLocalMarkers, want false")
	}
	if e.IsLocal() {
		t.Error("IsLocal() = true after ClearLocalMarkers, want false")
	}
	if _, ok := e["_kmd"]; ok {
		t.Error("_kmd still present after ClearLocalMarkers emptied it, want removed")
	}
	if e["title"] != "a" {
		t.Errorf("title = %v, want unaffected field to survive", e["title"])
	}
}

func TestEntity_ClearLocalMarkersPreservesOtherKMDFields(t *testing.T) {
	e := Entity{"_kmd": map[string]any{"local": true, "lmt": "2026-01-01T00:00:00.000Z"}}
	e.ClearLocalMarkers()

	kmd, ok := e["_kmd"].(map[string]any)
	if !ok {
		t.Fatal("_kmd removed entirely, want it to survive since lmt remains")
	}
	if _, ok := kmd["local"]; ok {
		t.Error("_kmd.local still present, want removed")
	}
	if kmd["lmt"] != "2026-01-01T00:00:00.000Z" {
		t.Errorf("_kmd.lmt = %v, want preserved", kmd["lmt"])
	}
}

func TestEntity_Clone(t *testing.T) {
	e := Entity{"title": "a"}
	e.SetID("1")
	clone := e.Clone()

	clone.SetID("2")
	clone["title"] = "b"

	if e.ID() != "1" || e["title"] != "a" {
		t.Errorf("original entity mutated by clone edits: %+v", e)
	}
}

func TestEntity_IsLocalFalseWithoutKMD(t *testing.T) {
	e := Entity{"title": "a"}
	if e.IsLocal() {
		t.Error("IsLocal() = true with no _kmd field, want false")
	}
}

func TestNewLocalID_ValidShape(t *testing.T) {
	id := NewLocalID()
	if !ValidEntityID(id) {
		t.Errorf("NewLocalID() = %q, want a valid 24-char hex id", id)
	}
}

func TestNewLocalID_Uniqueness(t *testing.T) {
	a := NewLocalID()
	b := NewLocalID()
	if a == b {
		t.Errorf("NewLocalID() produced the same id twice: %q", a)
	}
}

func TestValidEntityID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"short", false},
		{"zzzzzzzzzzzzzzzzzzzzzzzz", false}, // not hex
		{"abcdef0123456789abcdef01", true},
	}
	for _, c := range cases {
		if got := ValidEntityID(c.id); got != c.want {
			t.Errorf("ValidEntityID(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}
