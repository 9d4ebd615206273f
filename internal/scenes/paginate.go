package scenes

import "github.com/TobiSchelling/drivereport/internal/catalog"

// Page is one printed page of a detail section.
type Page struct {
	Groups []YearGroup `json:"groups"`
	Rows   int         `json:"rows"`
	Limit  int         `json:"limit"`
}

// Count returns the number of scenes on the page.
func (p Page) Count() int {
	n := 0
	for _, g := range p.Groups {
		for _, d := range g.Dates {
			n += len(d.Scenes)
		}
	}
	return n
}

// chunk is all scenes sharing one year and date label.
type chunk struct {
	year   int
	label  string
	scenes []Scene
}

// pager is the pagination fold state: the pages closed so far and the page
// being accumulated.
type pager struct {
	limits catalog.PageLimits
	pages  []Page
	cur    Page
}

// Paginate lays date chunks out on pages. The first page holds up to
// limits.First rows, later pages limits.Other. In chunk mode a date chunk is
// never split and moves whole to a new page when it does not fit. In split
// mode a chunk that cannot fit a fresh page either is sliced across pages.
// Pages are never empty and scene order is preserved.
func Paginate(groups []YearGroup, limits catalog.PageLimits) []Page {
	limits = normalizeLimits(limits)
	p := &pager{limits: limits, cur: Page{Limit: limits.First}}

	for _, c := range chunks(groups) {
		if limits.Mode == catalog.PageModeChunk {
			p.addWhole(c)
		} else {
			p.addSplit(c)
		}
	}
	p.close()
	return p.pages
}

func (p *pager) addWhole(c chunk) {
	if p.cur.Rows+len(c.scenes) > p.cur.Limit && p.cur.Rows > 0 {
		p.close()
	}
	p.add(c.year, c.label, c.scenes)
}

func (p *pager) addSplit(c chunk) {
	need := len(c.scenes)
	if p.cur.Rows+need <= p.cur.Limit {
		p.add(c.year, c.label, c.scenes)
		return
	}
	if p.cur.Rows > 0 && need <= p.limits.Other {
		p.close()
		p.add(c.year, c.label, c.scenes)
		return
	}

	rest := c.scenes
	for len(rest) > 0 {
		room := p.cur.Limit - p.cur.Rows
		if room <= 0 {
			p.close()
			continue
		}
		n := min(room, len(rest))
		p.add(c.year, c.label, rest[:n])
		rest = rest[n:]
		if len(rest) > 0 {
			p.close()
		}
	}
}

// add appends scenes to the current page, merging into the last year group
// when the year matches.
func (p *pager) add(year int, label string, scenes []Scene) {
	if len(scenes) == 0 {
		return
	}
	date := DateGroup{DateLabel: label, Scenes: append([]Scene(nil), scenes...)}
	if n := len(p.cur.Groups); n > 0 && p.cur.Groups[n-1].Year == year {
		p.cur.Groups[n-1].Dates = append(p.cur.Groups[n-1].Dates, date)
	} else {
		p.cur.Groups = append(p.cur.Groups, YearGroup{Year: year, Dates: []DateGroup{date}})
	}
	p.cur.Rows += len(scenes)
}

// close pushes the current page when it has rows and opens the next one.
func (p *pager) close() {
	if p.cur.Rows == 0 {
		return
	}
	p.pages = append(p.pages, p.cur)
	p.cur = Page{Limit: p.limits.Other}
}

func chunks(groups []YearGroup) []chunk {
	var out []chunk
	for _, g := range groups {
		for _, d := range g.Dates {
			out = append(out, chunk{year: g.Year, label: d.DateLabel, scenes: d.Scenes})
		}
	}
	return out
}

func normalizeLimits(l catalog.PageLimits) catalog.PageLimits {
	if l.First <= 0 {
		l.First = catalog.DefaultFirstPageLimit
	}
	if l.Other <= 0 {
		l.Other = catalog.DefaultOtherPageLimit
	}
	if l.Mode != catalog.PageModeChunk {
		l.Mode = catalog.PageModeSplit
	}
	return l
}
