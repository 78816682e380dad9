package expiry

import (
	"testing"
	"time"
)

type countingRecorder struct {
	failures int
}

func (r *countingRecorder) RecordDateParseFailure() {
	r.failures++
}

// TestParser_CachesResults は同じ文字列の解析結果がキャッシュされることを検証する。
func TestParser_CachesResults(t *testing.T) {
	p, err := NewParser(8, nil)
	if err != nil {
		t.Fatalf("NewParser returned error: %v", err)
	}

	first := p.Parse("10/12/2025")
	second := p.Parse("10/12/2025")
	if !first.Equal(second) {
		t.Errorf("cached result = %v, want %v", second, first)
	}
	if p.Len() != 1 {
		t.Errorf("Len = %d, want 1", p.Len())
	}
}

// TestParser_EvictsOldestEntries はキャッシュ上限を超えると古いエントリが追い出されることを検証する。
func TestParser_EvictsOldestEntries(t *testing.T) {
	p, err := NewParser(2, nil)
	if err != nil {
		t.Fatalf("NewParser returned error: %v", err)
	}

	p.Parse("01/01/2025")
	p.Parse("02/01/2025")
	p.Parse("03/01/2025")

	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
}

// TestParser_RecordsFailuresOnMissOnly は解析失敗がキャッシュミス時のみ記録されることを検証する。
func TestParser_RecordsFailuresOnMissOnly(t *testing.T) {
	rec := &countingRecorder{}
	p, err := NewParser(8, rec)
	if err != nil {
		t.Fatalf("NewParser returned error: %v", err)
	}

	if got := p.Parse("not-a-date"); !IsMaxDate(got) {
		t.Errorf("Parse = %v, want MaxDate", got)
	}
	p.Parse("not-a-date")
	p.Parse("01/01/2025")

	if rec.failures != 1 {
		t.Errorf("failures = %d, want 1", rec.failures)
	}
}

// TestParser_ZeroSizeDisablesCache はサイズ0でキャッシュなしの解析になることを検証する。
func TestParser_ZeroSizeDisablesCache(t *testing.T) {
	rec := &countingRecorder{}
	p, err := NewParser(0, rec)
	if err != nil {
		t.Fatalf("NewParser returned error: %v", err)
	}

	want := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := p.Parse("01/01/2025"); !got.Equal(want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}
	p.Parse("bad")
	p.Parse("bad")

	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
	if rec.failures != 2 {
		t.Errorf("failures = %d, want 2", rec.failures)
	}
}
