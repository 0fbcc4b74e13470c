package catalog_test

import (
	"errors"
	"testing"

	"iaptool/internal/catalog"
)

func image(name, version, family, chip, path string) catalog.FirmwareImage {
	return catalog.FirmwareImage{Name: name, Version: version, ChipFamily: family, ChipType: chip, FWPath: path}
}

func TestUpsertCreatesPath(t *testing.T) {
	cat := catalog.New()
	img := image("F1", "1.0.0", "STM32F1 Series", "STM32F103C8", "a.elf")

	cat.Upsert("S", "P", img)

	if len(cat.Series) != 1 || cat.Series[0].Name != "S" {
		t.Fatalf("expected exactly one series S, got %+v", cat.Series)
	}
	if len(cat.Series[0].Products) != 1 || cat.Series[0].Products[0].Name != "P" {
		t.Fatalf("expected exactly one product P, got %+v", cat.Series[0].Products)
	}
	fw := cat.Series[0].Products[0].Firmware
	if len(fw) != 1 || fw[0] != img {
		t.Fatalf("expected exactly the upserted image, got %+v", fw)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	cat := catalog.New()
	other := image("Other", "2.0", "nRF52 Series", "nRF52832_xxAA", "other.hex")
	img := image("F1", "1.0", "STM32F1 Series", "STM32F103C8", "a.elf")

	cat.Upsert("S", "P", other)
	cat.Upsert("S", "P", img)
	cat.Upsert("S", "P", img)

	fw := cat.Series[0].Products[0].Firmware
	if len(fw) != 2 {
		t.Fatalf("expected two images, got %d", len(fw))
	}
	if fw[0] != other {
		t.Fatalf("expected unrelated entry untouched, got %+v", fw[0])
	}
	if fw[1] != img {
		t.Fatalf("expected single copy of upserted image, got %+v", fw[1])
	}
}

func TestUpsertUpdatesInPlace(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S", "P", image("n", "v", "cf", "ct", "a.elf"))
	cat.Upsert("S", "P", image("tail", "v", "cf", "ct", "tail.elf"))
	cat.Upsert("S", "P", image("n", "v", "cf", "ct", "b.elf"))

	fw := cat.Series[0].Products[0].Firmware
	if len(fw) != 2 {
		t.Fatalf("expected update in place, got %d images", len(fw))
	}
	if fw[0].Name != "n" || fw[0].FWPath != "b.elf" {
		t.Fatalf("expected first position to hold b.elf, got %+v", fw[0])
	}
}

func TestUpsertDistinctTupleAppends(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S", "P", image("n", "1.0", "cf", "ct", "a.elf"))
	cat.Upsert("S", "P", image("n", "1.1", "cf", "ct", "a.elf"))
	cat.Upsert("S", "P", image("n", "1.0", "cf", "ct2", "a.elf"))

	if got := len(cat.Series[0].Products[0].Firmware); got != 3 {
		t.Fatalf("expected three variants, got %d", got)
	}
}

func TestUpsertMatchesNormalizedNames(t *testing.T) {
	cat := catalog.New()
	// Precomposed e-acute against e plus a combining accent.
	cat.Upsert("Caf\u00e9", "P", image("n", "v", "cf", "ct", "a.elf"))
	cat.Upsert(" Cafe\u0301 ", "P", image("n", "v", "cf", "ct", "b.elf"))

	if len(cat.Series) != 1 {
		t.Fatalf("expected normalized series names to match, got %d series", len(cat.Series))
	}
	if cat.Series[0].Name != "Caf\u00e9" {
		t.Fatalf("expected stored name to be preserved, got %q", cat.Series[0].Name)
	}
	if fw := cat.Series[0].Products[0].Firmware; len(fw) != 1 || fw[0].FWPath != "b.elf" {
		t.Fatalf("expected in-place update, got %+v", fw)
	}
}

func TestDeleteLastRemovesAncestors(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S", "P", image("F1", "1", "cf", "ct", "a.elf"))

	removed := cat.Delete("S", "P", catalog.ImageKey{Name: "F1"})

	if removed != 1 {
		t.Fatalf("expected one image removed, got %d", removed)
	}
	if len(cat.Series) != 0 {
		t.Fatalf("expected empty catalog, got %+v", cat.Series)
	}
}

func TestDeleteByNameRemovesEveryVariant(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S", "P", image("F1", "1", "cf", "ct", "a.elf"))
	cat.Upsert("S", "P", image("F1", "2", "cf", "ct", "b.elf"))
	cat.Upsert("S", "P", image("F2", "1", "cf", "ct", "c.elf"))

	removed := cat.Delete("S", "P", catalog.ImageKey{Name: "F1"})

	if removed != 2 {
		t.Fatalf("expected both F1 variants removed, got %d", removed)
	}
	fw := cat.Series[0].Products[0].Firmware
	if len(fw) != 1 || fw[0].Name != "F2" {
		t.Fatalf("expected F2 to remain, got %+v", fw)
	}
}

func TestDeleteFullKeyRemovesExactVariant(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S", "P", image("F1", "1", "cf", "ct", "a.elf"))
	cat.Upsert("S", "P", image("F1", "2", "cf", "ct", "b.elf"))

	removed := cat.Delete("S", "P", catalog.ImageKey{Name: "F1", Version: "2", ChipFamily: "cf", ChipType: "ct"})

	if removed != 1 {
		t.Fatalf("expected one image removed, got %d", removed)
	}
	fw := cat.Series[0].Products[0].Firmware
	if len(fw) != 1 || fw[0].Version != "1" {
		t.Fatalf("expected version 1 to remain, got %+v", fw)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S", "P", image("F1", "1", "cf", "ct", "a.elf"))

	cases := []struct {
		series, product string
		key             catalog.ImageKey
	}{
		{"missing", "P", catalog.ImageKey{Name: "F1"}},
		{"S", "missing", catalog.ImageKey{Name: "F1"}},
		{"S", "P", catalog.ImageKey{Name: "missing"}},
		{"S", "P", catalog.ImageKey{}},
	}
	for _, tc := range cases {
		if removed := cat.Delete(tc.series, tc.product, tc.key); removed != 0 {
			t.Fatalf("expected no-op for %+v, removed %d", tc, removed)
		}
	}
	if cat.ImageCount() != 1 {
		t.Fatalf("expected catalog untouched, got %d images", cat.ImageCount())
	}
}

func TestDeleteUnnamedImage(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S", "P", image("", "1", "cf", "ct", "a.elf"))
	cat.Upsert("S", "P", image("F1", "1", "cf", "ct", "b.elf"))

	if removed := cat.Delete("S", "P", catalog.ImageKey{Name: ""}); removed != 1 {
		t.Fatalf("expected the unnamed image removed, removed %d", removed)
	}
	images := cat.FindProduct("S", "P").Firmware
	if len(images) != 1 || images[0].Name != "F1" {
		t.Fatalf("expected only F1 left, got %+v", images)
	}

	if removed := cat.Delete("S", "P", catalog.ImageKey{Name: "F1"}); removed != 1 {
		t.Fatalf("expected F1 removed, removed %d", removed)
	}
	if len(cat.Series) != 0 {
		t.Fatalf("expected empty catalog, got %+v", cat.Series)
	}
}

func TestDeletePrunesCatalogWide(t *testing.T) {
	cat := &catalog.Catalog{Series: []catalog.Series{
		{Name: "Empty", Products: []catalog.Product{{Name: "Hollow"}}},
		{Name: "S", Products: []catalog.Product{
			{Name: "P", Firmware: []catalog.FirmwareImage{image("F1", "1", "cf", "ct", "a.elf")}},
			{Name: "Q"},
		}},
		{Name: "Bare"},
	}}

	cat.Delete("S", "P", catalog.ImageKey{Name: "nothing"})

	if len(cat.Series) != 1 || cat.Series[0].Name != "S" {
		t.Fatalf("expected only series S to survive, got %+v", cat.Series)
	}
	if len(cat.Series[0].Products) != 1 || cat.Series[0].Products[0].Name != "P" {
		t.Fatalf("expected only product P to survive, got %+v", cat.Series[0].Products)
	}
	assertPruned(t, cat)
}

func TestPruneInvariantAfterSequences(t *testing.T) {
	cat := catalog.New()
	names := []string{"A", "B", "C"}
	for i, s := range names {
		for j, p := range names {
			for k, f := range names {
				cat.Upsert(s, p, image(f, string(rune('0'+i+j+k)), "cf", "ct", f+".elf"))
			}
		}
	}

	deletions := []struct{ series, product, name string }{
		{"A", "A", "A"}, {"A", "A", "B"}, {"A", "A", "C"},
		{"B", "C", "A"}, {"C", "A", "B"}, {"C", "B", "C"},
		{"A", "B", "A"}, {"A", "B", "B"}, {"A", "B", "C"},
		{"A", "C", "A"}, {"A", "C", "B"}, {"A", "C", "C"},
	}
	for _, d := range deletions {
		cat.Delete(d.series, d.product, catalog.ImageKey{Name: d.name})
		assertPruned(t, cat)
	}
	if cat.FindSeries("A") != nil {
		t.Fatal("expected series A to be pruned once all of its products emptied")
	}
}

func assertPruned(t *testing.T, cat *catalog.Catalog) {
	t.Helper()
	for _, s := range cat.Series {
		if len(s.Products) == 0 {
			t.Fatalf("series %q has no products", s.Name)
		}
		for _, p := range s.Products {
			if len(p.Firmware) == 0 {
				t.Fatalf("product %q/%q has no firmware", s.Name, p.Name)
			}
		}
	}
}

func TestLookup(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S", "P", image("F1", "1", "cf", "ct", "a.elf"))
	cat.Upsert("S", "P", image("F1", "2", "cf", "ct", "b.elf"))
	cat.Upsert("S", "P", image("F2", "1", "cf", "ct", "c.elf"))

	got, err := cat.Lookup("S", "P", catalog.ImageKey{Name: "F2"})
	if err != nil {
		t.Fatalf("Lookup F2: %v", err)
	}
	if got.FWPath != "c.elf" {
		t.Fatalf("unexpected image: %+v", got)
	}

	if _, err := cat.Lookup("S", "P", catalog.ImageKey{Name: "F1"}); !errors.Is(err, catalog.ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}

	got, err = cat.Lookup("S", "P", catalog.ImageKey{Name: "F1", Version: "2"})
	if err != nil || got.FWPath != "b.elf" {
		t.Fatalf("expected version filter to resolve b.elf, got %+v, %v", got, err)
	}

	if _, err := cat.Lookup("S", "X", catalog.ImageKey{Name: "F1"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEntriesFollowDisplayOrder(t *testing.T) {
	cat := catalog.New()
	cat.Upsert("S2", "P", image("x", "1", "cf", "ct", "x.elf"))
	cat.Upsert("S1", "P", image("y", "1", "cf", "ct", "y.elf"))
	cat.Upsert("S2", "Q", image("z", "1", "cf", "ct", "z.elf"))

	entries := cat.Entries()
	want := []string{"S2/P/x", "S2/Q/z", "S1/P/y"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if got := e.Series + "/" + e.Product + "/" + e.Image.Name; got != want[i] {
			t.Fatalf("entry %d = %s, want %s", i, got, want[i])
		}
	}
}
