package kinvey

import "testing"

func TestQuery_IsBounded(t *testing.T) {
	if NewQuery().IsBounded() {
		t.Error("IsBounded() = true for an empty query, want false")
	}
	if !NewQuery().WithSkip(1).IsBounded() {
		t.Error("IsBounded() = false with Skip set, want true")
	}
	if !NewQuery().WithLimit(1).IsBounded() {
		t.Error("IsBounded() = false with Limit set, want true")
	}
	var nilQuery *Query
	if nilQuery.IsBounded() {
		t.Error("IsBounded() on a nil *Query = true, want false")
	}
}

func TestQuery_CanonicalIsStableAcrossEquivalentConstruction(t *testing.T) {
	a := NewQuery().WithFilter(Eq("done", true)).Select("title", "done")
	b := NewQuery().WithFilter(Eq("done", true)).Select("done", "title")

	if a.Canonical() != b.Canonical() {
		t.Errorf("Canonical() differs for field-order-only variation:\na=%s\nb=%s", a.Canonical(), b.Canonical())
	}
}

func TestQuery_CanonicalDistinguishesDifferentFilters(t *testing.T) {
	a := NewQuery().WithFilter(Eq("done", true))
	b := NewQuery().WithFilter(Eq("done", false))

	if a.Canonical() == b.Canonical() {
		t.Error("Canonical() identical for different filter values, want distinct")
	}
}

func TestQuery_CanonicalNilQuery(t *testing.T) {
	var q *Query
	if q.Canonical() != NewQuery().Canonical() {
		t.Error("Canonical() on nil *Query should match an empty Query")
	}
}

func TestFilterConstructors(t *testing.T) {
	f := And(Eq("a", 1), Or(GT("b", 2), LT("c", 3)), Not(NE("d", 4)))
	if f.Op != OpAnd || len(f.Children) != 3 {
		t.Fatalf("And() = %+v, want 3 children", f)
	}
	if f.Children[0].Op != OpEquals {
		t.Errorf("Children[0].Op = %s, want %s", f.Children[0].Op, OpEquals)
	}
	if f.Children[1].Op != OpOr {
		t.Errorf("Children[1].Op = %s, want %s", f.Children[1].Op, OpOr)
	}
	if f.Children[2].Op != OpNot {
		t.Errorf("Children[2].Op = %s, want %s", f.Children[2].Op, OpNot)
	}
}
