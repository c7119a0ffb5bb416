package dashboard

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core/attendance"
)

// Bucket is one labeled count of a Distribution.
type Bucket struct {
	Label string
	Count int
}

// Distribution is an ordered list of labeled counts, ready to feed a chart.
type Distribution []Bucket

type chartData struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

func (d Distribution) Total() int {
	total := 0
	for _, b := range d {
		total += b.Count
	}
	return total
}

func (d Distribution) Map() map[string]int {
	m := make(map[string]int, len(d))
	for _, b := range d {
		m[b.Label] = b.Count
	}
	return m
}

// Labels returns the labels, in order.
func (d Distribution) Labels() []string {
	labels := make([]string, len(d))
	for i, b := range d {
		labels[i] = b.Label
	}
	return labels
}

// MarshalJSON encodes d as {"labels": [...], "values": [...]}.
func (d Distribution) MarshalJSON() ([]byte, error) {
	data := chartData{Labels: make([]string, len(d)), Values: make([]int, len(d))}
	for i, b := range d {
		data.Labels[i], data.Values[i] = b.Label, b.Count
	}
	return json.Marshal(data)
}

func (d *Distribution) UnmarshalJSON(b []byte) error {
	var data chartData
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	if len(data.Labels) != len(data.Values) {
		return errors.Errorf("%d labels for %d values", len(data.Labels), len(data.Values))
	}
	dist := make(Distribution, len(data.Labels))
	for i := range data.Labels {
		dist[i] = Bucket{Label: data.Labels[i], Count: data.Values[i]}
	}
	*d = dist
	return nil
}

// countBy groups students by the exact value of key, labels sorted in byte order.
func countBy(students []attendance.Student, key func(attendance.Student) string) Distribution {
	counts := make(map[string]int)
	for _, st := range students {
		counts[key(st)]++
	}

	dist := make(Distribution, 0, len(counts))
	for label, n := range counts {
		dist = append(dist, Bucket{Label: label, Count: n})
	}
	sort.Slice(dist, func(i, j int) bool { return dist[i].Label < dist[j].Label })
	return dist
}

func GenderDistribution(students []attendance.Student) Distribution {
	return countBy(students, func(st attendance.Student) string { return st.Gender })
}

func GradeDistribution(students []attendance.Student) Distribution {
	return countBy(students, func(st attendance.Student) string { return st.Grade })
}

// AgeBucket is an inclusive range of calendar ages.
type AgeBucket struct {
	Label    string
	Min, Max int
}

// AgeBuckets are always all reported, even when empty. Ages outside of them are not counted.
var AgeBuckets = []AgeBucket{
	{Label: "0-8", Min: 0, Max: 8},
	{Label: "9-11", Min: 9, Max: 11},
	{Label: "12-14", Min: 12, Max: 14},
	{Label: "15-18", Min: 15, Max: 18},
}

// Age returns the number of whole years between birth and today.
func Age(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

func AgeDistribution(students []attendance.Student, today time.Time) Distribution {
	dist := make(Distribution, len(AgeBuckets))
	for i, ab := range AgeBuckets {
		dist[i].Label = ab.Label
	}
	for _, st := range students {
		age := Age(st.BirthDate, today)
		for i, ab := range AgeBuckets {
			if age >= ab.Min && age <= ab.Max {
				dist[i].Count++
				break
			}
		}
	}
	return dist
}

// MonthlyAbsenceTrend counts the absences of today's year per month, labeled "1" to "12".
func MonthlyAbsenceTrend(records []attendance.Record, today time.Time) Distribution {
	dist := make(Distribution, 12)
	for i := range dist {
		dist[i].Label = strconv.Itoa(i + 1)
	}
	for _, rec := range records {
		if rec.Present || rec.Date.Year() != today.Year() {
			continue
		}
		dist[rec.Date.Month()-1].Count++
	}
	return dist
}
