// Package spatiotemporal indexes episode ids by when they happened, as
// a Year -> Month -> Day -> Hour tree of plain Go maps, bucketing
// timestamps into small integer keys rather than storing and
// re-scanning raw times.
package spatiotemporal

import (
	"sort"
	"sync"
	"time"
)

type hourNode struct {
	ids []string
}

type dayNode struct {
	count int
	hours map[int]*hourNode
}

type monthNode struct {
	count int
	days  map[int]*dayNode
}

type yearNode struct {
	count  int
	months map[int]*monthNode
}

// Index is a concurrency-safe Year/Month/Day/Hour tree over episode
// ids, supporting O(log n + k) range queries by walking only the
// buckets a query's time range touches instead of scanning every id.
type Index struct {
	mu    sync.RWMutex
	years map[int]*yearNode
	// loc tracks which bucket each id currently lives in, so Remove
	// doesn't need its caller to remember the original timestamp.
	loc map[string]time.Time
}

// New returns an empty Index.
func New() *Index {
	return &Index{years: make(map[int]*yearNode), loc: make(map[string]time.Time)}
}

func bucketPath(t time.Time) (year, month, day, hour int) {
	u := t.UTC()
	return u.Year(), int(u.Month()), u.Day(), u.Hour()
}

// Insert adds id under the bucket for t. Inserting the same id twice
// moves it (the prior location is removed first).
func (idx *Index) Insert(id string, t time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if prev, ok := idx.loc[id]; ok {
		idx.removeLocked(id, prev)
	}

	year, month, day, hour := bucketPath(t)
	y, ok := idx.years[year]
	if !ok {
		y = &yearNode{months: make(map[int]*monthNode)}
		idx.years[year] = y
	}
	m, ok := y.months[month]
	if !ok {
		m = &monthNode{days: make(map[int]*dayNode)}
		y.months[month] = m
	}
	d, ok := m.days[day]
	if !ok {
		d = &dayNode{hours: make(map[int]*hourNode)}
		m.days[day] = d
	}
	h, ok := d.hours[hour]
	if !ok {
		h = &hourNode{}
		d.hours[hour] = h
	}

	h.ids = append(h.ids, id)
	d.count++
	m.count++
	y.count++
	idx.loc[id] = t.UTC()
}

// Remove deletes id from the index. It is a no-op if id was never
// inserted.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	t, ok := idx.loc[id]
	if !ok {
		return
	}
	idx.removeLocked(id, t)
	delete(idx.loc, id)
}

func (idx *Index) removeLocked(id string, t time.Time) {
	year, month, day, hour := bucketPath(t)
	y, ok := idx.years[year]
	if !ok {
		return
	}
	m, ok := y.months[month]
	if !ok {
		return
	}
	d, ok := m.days[day]
	if !ok {
		return
	}
	h, ok := d.hours[hour]
	if !ok {
		return
	}
	for i, existing := range h.ids {
		if existing == id {
			h.ids = append(h.ids[:i], h.ids[i+1:]...)
			d.count--
			m.count--
			y.count--
			break
		}
	}
	if len(h.ids) == 0 {
		delete(d.hours, hour)
	}
	if len(d.hours) == 0 {
		delete(m.days, day)
	}
	if len(m.days) == 0 {
		delete(y.months, month)
	}
	if len(y.months) == 0 {
		delete(idx.years, year)
	}
}

// QueryBucket returns the ids filed under exactly the given hour
// bucket (UTC).
func (idx *Index) QueryBucket(year, month, day, hour int) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	y, ok := idx.years[year]
	if !ok {
		return nil
	}
	m, ok := y.months[month]
	if !ok {
		return nil
	}
	d, ok := m.days[day]
	if !ok {
		return nil
	}
	h, ok := d.hours[hour]
	if !ok {
		return nil
	}
	return append([]string(nil), h.ids...)
}

// QueryRange returns every id whose hour bucket overlaps [from, to]
// (inclusive at both ends), walking only the year/month/day/hour
// buckets the range touches rather than scanning every stored id.
func (idx *Index) QueryRange(from, to time.Time) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return nil
	}

	var out []string
	years := make([]int, 0, len(idx.years))
	for y := range idx.years {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, year := range years {
		if year < from.Year() || year > to.Year() {
			continue
		}
		yn := idx.years[year]
		months := make([]int, 0, len(yn.months))
		for m := range yn.months {
			months = append(months, m)
		}
		sort.Ints(months)
		for _, month := range months {
			if (year == from.Year() && month < int(from.Month())) || (year == to.Year() && month > int(to.Month())) {
				continue
			}
			mn := yn.months[month]
			days := make([]int, 0, len(mn.days))
			for d := range mn.days {
				days = append(days, d)
			}
			sort.Ints(days)
			for _, day := range days {
				if (year == from.Year() && month == int(from.Month()) && day < from.Day()) ||
					(year == to.Year() && month == int(to.Month()) && day > to.Day()) {
					continue
				}
				dn := mn.days[day]
				hours := make([]int, 0, len(dn.hours))
				for h := range dn.hours {
					hours = append(hours, h)
				}
				sort.Ints(hours)
				for _, hour := range hours {
					bucketStart := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
					bucketEnd := bucketStart.Add(time.Hour)
					if bucketEnd.Before(from) || bucketStart.After(to) {
						continue
					}
					out = append(out, dn.hours[hour].ids...)
				}
			}
		}
	}
	return out
}

// MemoryUsageEstimate returns a rough byte estimate of the index's
// footprint: one pointer-ish overhead per tree node plus one string
// header per stored id, enough to let callers budget cache size
// without walking every id with unsafe.Sizeof tricks.
func (idx *Index) MemoryUsageEstimate() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	const nodeOverhead = 64
	const idOverhead = 48 // string header + average short-id backing array

	var total int64
	for _, y := range idx.years {
		total += nodeOverhead
		for _, m := range y.months {
			total += nodeOverhead
			for _, d := range m.days {
				total += nodeOverhead
				for _, h := range d.hours {
					total += nodeOverhead
					total += int64(len(h.ids)) * idOverhead
				}
			}
		}
	}
	return total
}

// Len returns the total number of ids currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.loc)
}
