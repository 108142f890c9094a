// Package plan holds the shared 365-day reading schedule. The plan is
// immutable reference data: 1,189 chapters split across 365 days in
// canonical order, with display dates derived from a schedule start date.
package plan

import (
	"fmt"
	"time"
)

type Entry struct {
	Day         int    `json:"day"`
	Book        string `json:"book"`
	Range       string `json:"range"`
	Reading     string `json:"reading"`
	DisplayDate string `json:"displayDate"`
	MemoryVerse string `json:"memoryVerse,omitempty"`
}

type book struct {
	name     string
	chapters int
}

var books = []book{
	{"창세기", 50}, {"출애굽기", 40}, {"레위기", 27}, {"민수기", 36}, {"신명기", 34},
	{"여호수아", 24}, {"사사기", 21}, {"룻기", 4}, {"사무엘상", 31}, {"사무엘하", 24},
	{"열왕기상", 22}, {"열왕기하", 25}, {"역대상", 29}, {"역대하", 36}, {"에스라", 10},
	{"느헤미야", 13}, {"에스더", 10}, {"욥기", 42}, {"시편", 150}, {"잠언", 31},
	{"전도서", 12}, {"아가", 8}, {"이사야", 66}, {"예레미야", 52}, {"예레미야애가", 5},
	{"에스겔", 48}, {"다니엘", 12}, {"호세아", 14}, {"요엘", 3}, {"아모스", 9},
	{"오바댜", 1}, {"요나", 4}, {"미가", 7}, {"나훔", 3}, {"하박국", 3},
	{"스바냐", 3}, {"학개", 2}, {"스가랴", 14}, {"말라기", 4},
	{"마태복음", 28}, {"마가복음", 16}, {"누가복음", 24}, {"요한복음", 21}, {"사도행전", 28},
	{"로마서", 16}, {"고린도전서", 16}, {"고린도후서", 13}, {"갈라디아서", 6}, {"에베소서", 6},
	{"빌립보서", 4}, {"골로새서", 4}, {"데살로니가전서", 5}, {"데살로니가후서", 3},
	{"디모데전서", 6}, {"디모데후서", 4}, {"디도서", 3}, {"빌레몬서", 1}, {"히브리서", 13},
	{"야고보서", 5}, {"베드로전서", 5}, {"베드로후서", 3}, {"요한일서", 5}, {"요한이서", 1},
	{"요한삼서", 1}, {"유다서", 1}, {"요한계시록", 22},
}

const (
	totalDays     = 365
	totalChapters = 1189
)

var memoryVerses = map[int]string{
	1:   "태초에 하나님이 천지를 창조하시니라 (창 1:1)",
	100: "여호와는 나의 목자시니 내게 부족함이 없으리로다 (시 23:1)",
	200: "태초에 말씀이 계시니라 (요 1:1)",
	300: "모든 것이 합력하여 선을 이루느니라 (롬 8:28)",
	365: "내가 진실로 속히 오리라 (계 22:20)",
}

type Plan struct {
	start   time.Time
	entries []Entry
}

// New builds the default one-year plan from a schedule start date.
func New(start time.Time) *Plan {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	p := &Plan{start: start}
	p.entries = buildEntries(start)
	return p
}

func buildEntries(start time.Time) []Entry {
	// 1,189 chapters over 365 days: 94 four-chapter days up front, then
	// three chapters a day.
	entries := make([]Entry, 0, totalDays)
	position := 1
	for day := 1; day <= totalDays; day++ {
		count := 3
		if day <= totalChapters-3*totalDays {
			count = 4
		}
		first := position
		last := position + count - 1
		position = last + 1

		date := start.AddDate(0, 0, day-1)
		entries = append(entries, Entry{
			Day:         day,
			Book:        bookAt(first).name,
			Range:       rangeLabel(first, last),
			Reading:     rangeLabel(first, last),
			DisplayDate: fmt.Sprintf("%d월 %d일", int(date.Month()), date.Day()),
			MemoryVerse: memoryVerses[day],
		})
	}
	return entries
}

// bookAt maps a global chapter position (1..1189) to its book.
func bookAt(position int) book {
	for _, b := range books {
		if position <= b.chapters {
			return b
		}
		position -= b.chapters
	}
	return books[len(books)-1]
}

// chapterAt maps a global chapter position to the chapter number within its book.
func chapterAt(position int) int {
	for _, b := range books {
		if position <= b.chapters {
			return position
		}
		position -= b.chapters
	}
	return books[len(books)-1].chapters
}

func rangeLabel(first, last int) string {
	startBook := bookAt(first)
	endBook := bookAt(last)
	startCh := chapterAt(first)
	endCh := chapterAt(last)

	if startBook.name == endBook.name {
		if startCh == endCh {
			return fmt.Sprintf("%s %d장", startBook.name, startCh)
		}
		return fmt.Sprintf("%s %d-%d장", startBook.name, startCh, endCh)
	}
	return fmt.Sprintf("%s %d장 - %s %d장", startBook.name, startCh, endBook.name, endCh)
}

func (p *Plan) TotalDays() int {
	return totalDays
}

func (p *Plan) Start() time.Time {
	return p.start
}

func (p *Plan) Entries() []Entry {
	return p.entries
}

func (p *Plan) ByDay(day int) (Entry, bool) {
	if day < 1 || day > totalDays {
		return Entry{}, false
	}
	return p.entries[day-1], true
}

func (p *Plan) ByDate(t time.Time) (Entry, bool) {
	return p.ByDay(p.dayOf(t))
}

// CurrentDay derives the plan day for a calendar date, clamped to
// [1, totalDays].
func (p *Plan) CurrentDay(today time.Time) int {
	day := p.dayOf(today)
	if day < 1 {
		return 1
	}
	if day > totalDays {
		return totalDays
	}
	return day
}

func (p *Plan) dayOf(t time.Time) int {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.start.Location())
	return int(t.Sub(p.start).Hours()/24) + 1
}
