package model

import (
	"errors"
	"testing"

	"mindvault/types"
)

func TestExtractObject_DirectParse(t *testing.T) {
	obj, err := ExtractObject(`{"flashcards":[{"front":"Q","back":"A"}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cards := PickList(obj, "flashcards", "cards", "items")
	if len(cards) != 1 || cards[0]["front"] != "Q" || cards[0]["back"] != "A" {
		t.Errorf("unexpected parse result: %v", obj)
	}
}

func TestExtractObject_CodeFence(t *testing.T) {
	obj, err := ExtractObject("```json\n{\"flashcards\":[]}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := obj["flashcards"]; !ok {
		t.Errorf("fence-stripped object missing flashcards key: %v", obj)
	}
}

func TestExtractObject_UntaggedFence(t *testing.T) {
	obj, err := ExtractObject("```\n{\"questions\":[]}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := obj["questions"]; !ok {
		t.Errorf("missing questions key: %v", obj)
	}
}

func TestExtractObject_TrailingCommaAndProse(t *testing.T) {
	raw := `Here is your result: {"questions": [{"question":"q","options":["a","b","c","d"],"correctIndex":1}],}`
	obj, err := ExtractObject(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	qs := PickList(obj, "questions", "quiz", "items")
	if len(qs) != 1 || qs[0]["question"] != "q" {
		t.Errorf("unexpected result: %v", obj)
	}
}

func TestExtractObject_SingleQuotes(t *testing.T) {
	obj, err := ExtractObject(`{'front': 'What is Go?', 'back': 'A language'}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["front"] != "What is Go?" {
		t.Errorf("single-quote repair failed: %v", obj)
	}
}

func TestExtractObject_NoJSON(t *testing.T) {
	_, err := ExtractObject("no json here")
	if err == nil {
		t.Fatal("expected an error for plain prose")
	}
	var parseErr *types.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *types.ParseError, got %T", err)
	}
}

func TestExtractObject_TruncatesDetail(t *testing.T) {
	long := "x"
	for len(long) < 1000 {
		long += long
	}
	_, err := ExtractObject(long)
	var parseErr *types.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *types.ParseError, got %T", err)
	}
	if len(parseErr.Detail) > 200 {
		t.Errorf("detail not truncated: %d bytes", len(parseErr.Detail))
	}
}

func TestPickList_Priority(t *testing.T) {
	obj := map[string]any{
		"cards":      []any{map[string]any{"front": "c"}},
		"flashcards": []any{map[string]any{"front": "f"}},
	}
	got := PickList(obj, "flashcards", "cards", "items")
	if len(got) != 1 || got[0]["front"] != "f" {
		t.Errorf("priority order not honored: %v", got)
	}
}

func TestPickList_SkipsWrongTypes(t *testing.T) {
	obj := map[string]any{
		"flashcards": "not a list",
		"items":      []any{map[string]any{"front": "i"}, "junk element"},
	}
	got := PickList(obj, "flashcards", "cards", "items")
	if len(got) != 1 || got[0]["front"] != "i" {
		t.Errorf("expected fallthrough to items with junk skipped: %v", got)
	}
}

func TestPickList_NoMatch(t *testing.T) {
	if got := PickList(map[string]any{"other": 1}, "flashcards"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
