package parking

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

type Person struct {
	ID    int64  `json:"id"`
	DNI   string `json:"dni"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserDirectory resolves the people who bring vehicles into the lot.
type UserDirectory interface {
	FindByID(ctx context.Context, id int64) (Person, error)
	FindByDNI(ctx context.Context, dni string) (Person, error)
}

var dniPattern = regexp.MustCompile(`^\d{8}$`)

// ValidDNI reports whether dni is exactly eight digits.
func ValidDNI(dni string) bool {
	return dniPattern.MatchString(dni)
}

// Directory is a read-only in-memory UserDirectory.
type Directory struct {
	byID  map[int64]Person
	byDNI map[string]int64
}

func NewDirectory(people []Person) (*Directory, error) {
	d := &Directory{
		byID:  make(map[int64]Person, len(people)),
		byDNI: make(map[string]int64, len(people)),
	}
	for _, p := range people {
		if !ValidDNI(p.DNI) {
			return nil, fmt.Errorf("person %d: dni must have 8 digits", p.ID)
		}
		if _, ok := d.byID[p.ID]; ok {
			return nil, fmt.Errorf("person %d: duplicate id", p.ID)
		}
		if _, ok := d.byDNI[p.DNI]; ok {
			return nil, fmt.Errorf("person %d: duplicate dni %s", p.ID, p.DNI)
		}
		d.byID[p.ID] = p
		d.byDNI[p.DNI] = p.ID
	}
	return d, nil
}

func (d *Directory) FindByID(_ context.Context, id int64) (Person, error) {
	p, ok := d.byID[id]
	if !ok {
		return Person{}, ErrPersonNotFound
	}
	return p, nil
}

func (d *Directory) FindByDNI(_ context.Context, dni string) (Person, error) {
	id, ok := d.byDNI[dni]
	if !ok {
		return Person{}, ErrPersonNotFound
	}
	return d.byID[id], nil
}

// People returns everyone ordered by id.
func (d *Directory) People() []Person {
	people := make([]Person, 0, len(d.byID))
	for _, p := range d.byID {
		people = append(people, p)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
	return people
}
