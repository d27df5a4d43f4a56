package cortex

import "testing"

// TestAddOrUpdateClampsScoresIntoUnitInterval is invariant 1: every stored
// engram's bounded scores land in their valid ranges regardless of what the
// caller set before persisting.
func TestAddOrUpdateClampsScoresIntoUnitInterval(t *testing.T) {
	s := testStore(t)
	e := NewEngram("x", Metadata{})
	e.QualityScore = 5.0
	e.DecayScore = -5.0
	e.Salience = 100.0

	if err := s.AddOrUpdate(e); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.Get(e.ID)
	if err != nil || !found {
		t.Fatalf("expected to find the stored engram, found=%v err=%v", found, err)
	}
	if got.QualityScore < 0 || got.QualityScore > 1 {
		t.Fatalf("quality score left [0,1]: %v", got.QualityScore)
	}
	if got.DecayScore < 0 || got.DecayScore > 1 {
		t.Fatalf("decay score left [0,1]: %v", got.DecayScore)
	}
	if got.Salience < minSalience || got.Salience > maxSalience {
		t.Fatalf("salience left its clamp band: %v", got.Salience)
	}
}

// TestAddOrUpdateIdenticalContentReturnsExistingID is invariant 3 and the
// round-trip law: re-adding identical content returns the existing engram
// rather than creating a duplicate row.
func TestAddOrUpdateIdenticalContentReturnsExistingID(t *testing.T) {
	s := testStore(t)
	first := NewEngram("the same content", Metadata{})
	if err := s.AddOrUpdate(first); err != nil {
		t.Fatal(err)
	}

	duplicate := NewEngram("the same content", Metadata{})
	if err := s.AddOrUpdate(duplicate); err != nil {
		t.Fatal(err)
	}

	if duplicate.ID != first.ID {
		t.Fatalf("expected duplicate content to resolve to the existing id %d, got %d", first.ID, duplicate.ID)
	}
}

// TestUpdatePreservesVersionRoundTrip is invariant 2 and the round-trip
// law: get(add_or_update(e)).version == e.version for a version the caller
// explicitly bumped.
func TestUpdatePreservesVersionRoundTrip(t *testing.T) {
	s := testStore(t)
	e := NewEngram("content v1", Metadata{})
	if err := s.AddOrUpdate(e); err != nil {
		t.Fatal(err)
	}

	e.Content = "content v2"
	e.Hash = contentHash(e.Content)
	e.Version++
	if err := s.AddOrUpdate(e); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.Get(e.ID)
	if err != nil || !found {
		t.Fatalf("expected to find the updated engram, found=%v err=%v", found, err)
	}
	if got.Version != e.Version {
		t.Fatalf("expected version to round-trip as %d, got %d", e.Version, got.Version)
	}
	if got.Content != "content v2" {
		t.Fatalf("expected updated content to persist, got %q", got.Content)
	}
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	s := testStore(t)
	_, found, err := s.Get(999999)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatalf("expected an unknown id to report not found")
	}
}

func TestAddLinkAndLinksRoundTrip(t *testing.T) {
	s := testStore(t)
	a := NewEngram("a", Metadata{})
	b := NewEngram("b", Metadata{})
	if err := s.AddOrUpdate(a); err != nil {
		t.Fatal(err)
	}
	if err := s.AddOrUpdate(b); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLink(a.ID, b.ID, "related", 0.7); err != nil {
		t.Fatal(err)
	}

	links, err := s.Links(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].TargetID != b.ID {
		t.Fatalf("expected one link to b, got %+v", links)
	}
}
