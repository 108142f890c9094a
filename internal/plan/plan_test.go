package plan

import (
	"strings"
	"testing"
	"time"
)

func testPlan() *Plan {
	return New(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestPlanCoversWholeBible(t *testing.T) {
	p := testPlan()

	if got := len(p.Entries()); got != 365 {
		t.Fatalf("expected 365 entries, got %d", got)
	}

	sum := 0
	for _, b := range books {
		sum += b.chapters
	}
	if sum != totalChapters {
		t.Fatalf("expected %d chapters across all books, got %d", totalChapters, sum)
	}

	first, ok := p.ByDay(1)
	if !ok {
		t.Fatal("expected entry for day 1")
	}
	if first.Book != "창세기" {
		t.Errorf("day 1 should start in 창세기, got %s", first.Book)
	}

	last, ok := p.ByDay(365)
	if !ok {
		t.Fatal("expected entry for day 365")
	}
	if !strings.Contains(last.Reading, "요한계시록") || !strings.HasSuffix(last.Reading, "22장") {
		t.Errorf("day 365 should end at 요한계시록 22장, got %q", last.Reading)
	}
}

func TestPlanDayBounds(t *testing.T) {
	p := testPlan()
	if _, ok := p.ByDay(0); ok {
		t.Error("day 0 should not exist")
	}
	if _, ok := p.ByDay(366); ok {
		t.Error("day 366 should not exist")
	}
}

func TestCurrentDayClamped(t *testing.T) {
	p := testPlan()

	cases := []struct {
		name  string
		today time.Time
		want  int
	}{
		{"start date", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), 1},
		{"second day", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 2},
		{"before start", time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC), 1},
		{"after end", time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), 365},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.CurrentDay(tc.today); got != tc.want {
				t.Errorf("CurrentDay(%s) = %d, want %d", tc.today.Format("2006-01-02"), got, tc.want)
			}
		})
	}
}

func TestDisplayDateFollowsStart(t *testing.T) {
	p := testPlan()

	entry, _ := p.ByDay(1)
	if entry.DisplayDate != "1월 1일" {
		t.Errorf("day 1 display date = %q, want 1월 1일", entry.DisplayDate)
	}
	entry, _ = p.ByDay(32)
	if entry.DisplayDate != "2월 1일" {
		t.Errorf("day 32 display date = %q, want 2월 1일", entry.DisplayDate)
	}
}

func TestByDateMatchesCurrentDay(t *testing.T) {
	p := testPlan()
	date := time.Date(2026, 2, 10, 12, 30, 0, 0, time.UTC)
	entry, ok := p.ByDate(date)
	if !ok {
		t.Fatal("expected entry for in-range date")
	}
	if entry.Day != p.CurrentDay(date) {
		t.Errorf("ByDate day %d does not match CurrentDay %d", entry.Day, p.CurrentDay(date))
	}
}

func TestRangesAreContiguous(t *testing.T) {
	p := testPlan()

	// Every chapter is read exactly once: day ranges cover 1..1189 in order.
	position := 1
	for day := 1; day <= 365; day++ {
		count := 3
		if day <= totalChapters-3*365 {
			count = 4
		}
		entry, _ := p.ByDay(day)
		if entry.Book != bookAt(position).name {
			t.Fatalf("day %d starts in %s, expected %s", day, entry.Book, bookAt(position).name)
		}
		position += count
	}
	if position != totalChapters+1 {
		t.Fatalf("plan covers %d chapters, want %d", position-1, totalChapters)
	}
}
