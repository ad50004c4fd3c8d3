package service_test

import (
	"testing"

	"github.com/shibakov/calroies-info-ms/internal/model"
	"github.com/shibakov/calroies-info-ms/internal/service"
)

func rec(src model.Source, id, product, brand string) model.FoodRecord {
	return model.FoodRecord{Source: src, ID: id, Product: product, Brand: brand}
}

func TestMergeRecordsDedupesOnNameBrandAndSource(t *testing.T) {
	t.Parallel()

	local := []model.FoodRecord{rec(model.SourceLocal, "1", "Banana", "")}
	external := []model.FoodRecord{
		rec(model.SourceExternalDB, "usda_1", " banana ", ""),
		rec(model.SourceExternalDB, "usda_2", "BANANA", ""),
		rec(model.SourceExternalDB, "usda_3", "Banana", "Chiquita"),
	}

	got := service.MergeRecords("banana", [][]model.FoodRecord{local, external}, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 records after dedupe, got %d: %+v", len(got), got)
	}
	if got[0].ID != "1" {
		t.Fatalf("expected local record first, got %+v", got[0])
	}
	if got[1].ID != "usda_1" {
		t.Fatalf("expected first external occurrence to win, got %+v", got[1])
	}
	if got[2].Brand != "Chiquita" {
		t.Fatalf("expected branded record kept, got %+v", got[2])
	}
}

func TestMergeRecordsRanksBySourceThenMatchThenName(t *testing.T) {
	t.Parallel()

	lists := [][]model.FoodRecord{
		{
			rec(model.SourceAI, "ai_apple", "apple", ""),
			rec(model.SourceExternalDB, "e1", "Pie, apple", ""),
			rec(model.SourceExternalDB, "e2", "Apple juice", ""),
			rec(model.SourceExternalDB, "e3", "Apple, raw", ""),
			rec(model.SourceExternalDB, "e4", "Pear", ""),
			rec(model.SourceLocal, "7", "Green apple", ""),
		},
	}
	got := service.MergeRecords("Apple", lists, 0)
	want := []string{"7", "e2", "e3", "e1", "e4", "ai_apple"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s (%+v)", i, id, got[i].ID, got)
		}
	}
}

func TestMergeRecordsTruncatesToLimit(t *testing.T) {
	t.Parallel()

	list := []model.FoodRecord{
		rec(model.SourceExternalDB, "a", "Rice", ""),
		rec(model.SourceExternalDB, "b", "Rice, brown", ""),
		rec(model.SourceExternalDB, "c", "Rice, white", ""),
	}
	got := service.MergeRecords("rice", [][]model.FoodRecord{list}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got := service.MergeRecords("rice", nil, 5); len(got) != 0 {
		t.Fatalf("expected empty merge, got %+v", got)
	}
}

func TestMergeRecordsKeepsSeparatorLookalikes(t *testing.T) {
	t.Parallel()

	external := []model.FoodRecord{
		rec(model.SourceExternalDB, "usda_1", "a|b", ""),
		rec(model.SourceExternalDB, "usda_2", "a", "b|"),
	}
	got := service.MergeRecords("a", [][]model.FoodRecord{external}, 0)
	if len(got) != 2 {
		t.Fatalf("expected both records kept, got %d: %+v", len(got), got)
	}
}
