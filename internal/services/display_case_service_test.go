package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/codyseavey/card-vault/internal/models"
)

func newTestDisplayCaseService(store *memoryStore) *DisplayCaseService {
	return NewDisplayCaseService(store, store, NewTextSanitizer(), time.Hour, "https://vault.example.com/")
}

func seededStore(cards ...models.Card) *memoryStore {
	store := newMemoryStore()
	store.cards["u1"] = cards
	return store
}

func snapshotIDs(cards []map[string]interface{}) []string {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c["id"].(string))
	}
	return ids
}

func TestDisplayCaseCreate(t *testing.T) {
	ctx := context.Background()
	store := seededStore(
		card("1", "A", 10, "a"),
		card("2", "B", 20, "b"),
		card("3", "C", 30, "a", "b"),
	)
	svc := newTestDisplayCaseService(store)

	dc, err := svc.Create(ctx, "u1", "Both", "cards with a and b", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := snapshotIDs(dc.Cards); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("Create() cards = %v, want [3]", got)
	}
	if dc.TotalValue != 30 {
		t.Errorf("TotalValue = %v, want 30", dc.TotalValue)
	}
	if _, err := svc.Get(ctx, "u1", "Both"); err != nil {
		t.Errorf("Get() after Create error = %v", err)
	}
}

func TestDisplayCaseCreateFailures(t *testing.T) {
	tests := []struct {
		name    string
		caseNm  string
		filter  interface{}
		wantErr error
	}{
		{"no matching cards", "Empty", []string{"nonexistent-tag"}, ErrNoMatchingCards},
		{"empty name", "  ", []string{"a"}, ErrInvalidDisplayCase},
		{"no tags", "Name", []string{}, ErrInvalidDisplayCase},
		{"markup only name", "<b></b>", []string{"a"}, ErrInvalidDisplayCase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore(card("1", "A", 10, "a"))
			svc := newTestDisplayCaseService(store)

			dc, err := svc.Create(context.Background(), "u1", tt.caseNm, "desc", tt.filter)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if dc != nil {
				t.Errorf("Create() = %+v, want nil", dc)
			}
			if store.saveCalls != 0 || len(store.cases["u1"]) != 0 {
				t.Errorf("store was mutated: %d saves, %d cases", store.saveCalls, len(store.cases["u1"]))
			}
		})
	}
}

func TestDisplayCaseCreatePersistenceFailure(t *testing.T) {
	store := seededStore(card("1", "A", 10, "a"))
	store.failSave = true
	svc := newTestDisplayCaseService(store)

	if _, err := svc.Create(context.Background(), "u1", "A", "", "a"); err == nil {
		t.Error("Create() with failing store should return an error")
	}
}

func TestDisplayCaseCreateOverwritesSameName(t *testing.T) {
	ctx := context.Background()
	store := seededStore(card("1", "A", 10, "a"), card("2", "B", 20, "b"))
	svc := newTestDisplayCaseService(store)

	if _, err := svc.Create(ctx, "u1", "Case", "", "a"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, "u1", "Case", "", "b"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	dc, _ := svc.Get(ctx, "u1", "Case")
	if got := snapshotIDs(dc.Cards); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("overwritten case cards = %v, want [2]", got)
	}
}

func TestDisplayCaseCreateDeterministic(t *testing.T) {
	ctx := context.Background()
	store := seededStore(
		card("1", "A", 1, "team:bills", "rookie"),
		card("2", "B", 2, "team:chiefs", "rookie"),
		card("3", "C", 3, "team:bills"),
		card("4", "D", 4, "team:bills", "rookie"),
	)
	svc := newTestDisplayCaseService(store)

	var first []string
	for i := 0; i < 5; i++ {
		dc, err := svc.Create(ctx, "u1", "Bills rookies", "", "team:bills, rookie")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got := snapshotIDs(dc.Cards)
		if first == nil {
			first = got
		} else if !reflect.DeepEqual(got, first) {
			t.Errorf("run %d cards = %v, want %v", i, got, first)
		}
	}
	if !reflect.DeepEqual(first, []string{"1", "4"}) {
		t.Errorf("cards = %v, want [1 4]", first)
	}
}

func TestDisplayCaseCreateFromSingleTag(t *testing.T) {
	ctx := context.Background()

	t.Run("literal match", func(t *testing.T) {
		store := seededStore(card("1", "A", 10, "!odd"), card("2", "B", 20, "odd"))
		svc := newTestDisplayCaseService(store)

		dc, err := svc.CreateFromSingleTag(ctx, "u1", "Odd", "!odd")
		if err != nil {
			t.Fatalf("CreateFromSingleTag() error = %v", err)
		}
		if !dc.Simple {
			t.Error("Simple = false, want true")
		}
		if got := snapshotIDs(dc.Cards); !reflect.DeepEqual(got, []string{"1"}) {
			t.Errorf("cards = %v, want [1]", got)
		}
	})

	t.Run("empty collection", func(t *testing.T) {
		svc := newTestDisplayCaseService(newMemoryStore())
		if _, err := svc.CreateFromSingleTag(ctx, "u1", "Odd", "odd"); !errors.Is(err, ErrEmptyCollection) {
			t.Errorf("CreateFromSingleTag() error = %v, want %v", err, ErrEmptyCollection)
		}
	})

	t.Run("no match", func(t *testing.T) {
		svc := newTestDisplayCaseService(seededStore(card("1", "A", 10, "a")))
		if _, err := svc.CreateFromSingleTag(ctx, "u1", "Odd", "odd"); !errors.Is(err, ErrNoMatchingCards) {
			t.Errorf("CreateFromSingleTag() error = %v, want %v", err, ErrNoMatchingCards)
		}
	})
}

func TestDisplayCaseRefresh(t *testing.T) {
	ctx := context.Background()
	store := seededStore(card("1", "A", 10, "a"))
	svc := newTestDisplayCaseService(store)

	if _, err := svc.Create(ctx, "u1", "A cards", "", "a"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	store.cards["u1"] = append(store.cards["u1"], card("2", "B", 5, "a"))

	dc, err := svc.Refresh(ctx, "u1", "A cards")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(dc.Cards) != 2 || dc.TotalValue != 15 {
		t.Errorf("Refresh() = %d cards $%v, want 2 cards $15", len(dc.Cards), dc.TotalValue)
	}

	if _, err := svc.Refresh(ctx, "u1", "missing"); !errors.Is(err, ErrDisplayCaseNotFound) {
		t.Errorf("Refresh(missing) error = %v, want %v", err, ErrDisplayCaseNotFound)
	}
}

func TestDisplayCaseStaleness(t *testing.T) {
	ctx := context.Background()
	store := seededStore(card("1", "A", 10, "a"))
	svc := newTestDisplayCaseService(store)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.Create(ctx, "u1", "A", "", "a"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if dc, _ := svc.Get(ctx, "u1", "A"); dc.Stale {
		t.Error("fresh case reported stale")
	}

	now = now.Add(2 * time.Hour)
	if dc, _ := svc.Get(ctx, "u1", "A"); !dc.Stale {
		t.Error("case older than the TTL should be stale")
	}

	n, err := svc.RefreshAll(ctx, "u1", true)
	if err != nil || n != 1 {
		t.Fatalf("RefreshAll(staleOnly) = %d, %v, want 1, nil", n, err)
	}
	if dc, _ := svc.Get(ctx, "u1", "A"); dc.Stale {
		t.Error("refreshed case still stale")
	}
	if n, _ := svc.RefreshAll(ctx, "u1", true); n != 0 {
		t.Errorf("RefreshAll(staleOnly) on fresh cases = %d, want 0", n)
	}
}

func TestDisplayCaseUpdate(t *testing.T) {
	ctx := context.Background()
	store := seededStore(card("1", "A", 10, "a"))
	svc := newTestDisplayCaseService(store)

	created, err := svc.Create(ctx, "u1", "Old", "", "a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.Update(ctx, "u1", "Old", models.DisplayCase{
		Name:  "New",
		Tags:  models.StringList{"A", " grade:1-2 "},
		Cards: created.Cards,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	wantTags := models.StringList{"a", "grade:1", "grade:2"}
	if !reflect.DeepEqual(updated.Tags, wantTags) {
		t.Errorf("Update() tags = %v, want %v", updated.Tags, wantTags)
	}
	if updated.TotalValue != 10 {
		t.Errorf("Update() TotalValue = %v, want 10", updated.TotalValue)
	}
	if _, err := svc.Get(ctx, "u1", "Old"); !errors.Is(err, ErrDisplayCaseNotFound) {
		t.Errorf("Get(old name) error = %v, want %v", err, ErrDisplayCaseNotFound)
	}
	if _, err := svc.Get(ctx, "u1", "New"); err != nil {
		t.Errorf("Get(new name) error = %v", err)
	}
	if _, err := svc.Update(ctx, "u1", "missing", models.DisplayCase{Tags: models.StringList{"a"}}); !errors.Is(err, ErrDisplayCaseNotFound) {
		t.Errorf("Update(missing) error = %v, want %v", err, ErrDisplayCaseNotFound)
	}
}

func TestDisplayCaseRenameKeepsOtherCases(t *testing.T) {
	ctx := context.Background()
	store := seededStore(card("1", "A", 10, "a"), card("2", "B", 20, "b"))
	svc := newTestDisplayCaseService(store)

	if _, err := svc.Create(ctx, "u1", "First", "", "a"); err != nil {
		t.Fatalf("Create(First) error = %v", err)
	}
	if _, err := svc.Create(ctx, "u1", "Second", "", "b"); err != nil {
		t.Fatalf("Create(Second) error = %v", err)
	}

	_, err := svc.Update(ctx, "u1", "First", models.DisplayCase{Name: "Second", Tags: models.StringList{"a"}})
	if !errors.Is(err, ErrDisplayCaseExists) {
		t.Fatalf("Update(rename onto Second) error = %v, want %v", err, ErrDisplayCaseExists)
	}

	tests := []struct {
		name     string
		wantTags models.StringList
	}{
		{"First", models.StringList{"a"}},
		{"Second", models.StringList{"b"}},
	}
	for _, tt := range tests {
		dc, err := svc.Get(ctx, "u1", tt.name)
		if err != nil {
			t.Errorf("Get(%q) error = %v", tt.name, err)
			continue
		}
		if !reflect.DeepEqual(dc.Tags, tt.wantTags) {
			t.Errorf("Get(%q) tags = %v, want %v", tt.name, dc.Tags, tt.wantTags)
		}
	}

	// keeping the same name is not a collision
	if _, err := svc.Update(ctx, "u1", "First", models.DisplayCase{Name: "First", Tags: models.StringList{"a"}}); err != nil {
		t.Errorf("Update(same name) error = %v", err)
	}
}

func TestDisplayCaseDelete(t *testing.T) {
	ctx := context.Background()
	store := seededStore(card("1", "A", 10, "a"))
	svc := newTestDisplayCaseService(store)

	if _, err := svc.Create(ctx, "u1", "A", "", "a"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, "u1", "A"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, "u1", "A"); !errors.Is(err, ErrDisplayCaseNotFound) {
		t.Errorf("Get() after Delete error = %v, want %v", err, ErrDisplayCaseNotFound)
	}
	if err := svc.Delete(ctx, "u1", "A"); !errors.Is(err, ErrDisplayCaseNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, ErrDisplayCaseNotFound)
	}
}

func TestDisplayCaseTags(t *testing.T) {
	ctx := context.Background()
	store := seededStore(
		card("1", "A", 1, "Rookie", "team:bills"),
		card("2", "B", 1, "rookie", "auto"),
		models.Card{ID: "3", UserID: "u1", PlayerName: "C"},
	)
	svc := newTestDisplayCaseService(store)

	all, err := svc.ListAllTags(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAllTags() error = %v", err)
	}
	if want := []string{"auto", "rookie", "team:bills"}; !reflect.DeepEqual(all, want) {
		t.Errorf("ListAllTags() = %v, want %v", all, want)
	}

	suggested, err := svc.SuggestTags(ctx, "u1", "rk", 5)
	if err != nil {
		t.Fatalf("SuggestTags() error = %v", err)
	}
	if len(suggested) == 0 || suggested[0] != "rookie" {
		t.Errorf("SuggestTags(rk) = %v, want rookie first", suggested)
	}
}

func TestDisplayCaseShare(t *testing.T) {
	ctx := context.Background()
	store := seededStore(card("1", "A", 1, "a"))
	svc := newTestDisplayCaseService(store)

	if _, err := svc.Create(ctx, "u1", "A", "", "a"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	url, err := svc.ShareURL(ctx, "u1", "A")
	if err != nil {
		t.Fatalf("ShareURL() error = %v", err)
	}
	if !strings.HasPrefix(url, "https://vault.example.com/share/") {
		t.Errorf("ShareURL() = %q, want share link under the base url", url)
	}
	again, _ := svc.ShareURL(ctx, "u1", "A")
	if again != url {
		t.Errorf("ShareURL() changed from %q to %q", url, again)
	}

	token := url[strings.LastIndex(url, "/")+1:]
	dc, err := svc.GetShared(ctx, token)
	if err != nil || dc.Name != "A" {
		t.Errorf("GetShared() = %v, %v, want case A", dc, err)
	}
	if _, err := svc.GetShared(ctx, "unknown"); !errors.Is(err, ErrDisplayCaseNotFound) {
		t.Errorf("GetShared(unknown) error = %v, want %v", err, ErrDisplayCaseNotFound)
	}
}

func TestDisplayCasePreviewDoesNotPersist(t *testing.T) {
	store := seededStore(card("1", "A", 1, "a"), card("2", "B", 1, "b"))
	svc := newTestDisplayCaseService(store)

	cards, err := svc.Preview(context.Background(), "u1", "!b")
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if got := snapshotIDs(cards); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("Preview(!b) = %v, want [1]", got)
	}
	if store.saveCalls != 0 {
		t.Errorf("Preview() saved %d times, want 0", store.saveCalls)
	}
}
