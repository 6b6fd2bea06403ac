package crud_test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/burugo/crud"
)

// --- Test Models ---

type Person struct {
	ID   int64
	Name string
}

func (p Person) GetID() int64 { return p.ID }

type Dog struct {
	ID       int64
	PersonID int64
	Name     string
}

func (d Dog) GetID() int64 { return d.ID }

type Bed struct {
	ID    int64
	DogID int64
}

func (b Bed) GetID() int64 { return b.ID }

type Toy struct {
	ID   int64
	Name string
}

func (t Toy) GetID() int64 { return t.ID }

// MappedDog is a view over Dog that carries a display label.
type MappedDog struct {
	Dog   Dog
	Label string
}

func (m MappedDog) GetID() int64  { return m.Dog.ID }
func (m MappedDog) Original() Dog { return m.Dog }

type dogToy struct {
	DogID int64
	ToyID int64
}

// --- In-memory store ---

// memStore is a tiny thread-safe store that counts every primitive call so
// tests can assert how many round trips an operation costs.
type memStore struct {
	mu      sync.Mutex
	people  map[int64]Person
	dogs    map[int64]Dog
	beds    map[int64]Bed
	toys    map[int64]Toy
	dogToys []dogToy
	calls   map[string]int
	fail    error
}

func newMemStore() *memStore {
	return &memStore{
		people: map[int64]Person{},
		dogs:   map[int64]Dog{},
		beds:   map[int64]Bed{},
		toys:   map[int64]Toy{},
		calls:  map[string]int{},
	}
}

// hit records a call and returns the injected failure, if any.
func (s *memStore) hit(name string) error {
	s.calls[name]++
	return s.fail
}

func (s *memStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *memStore) resetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
}

// seedStore loads the people, dogs and bed used throughout the tests:
// Person 1 owns dogs 10 and 11, Person 2 owns dog 12, Person 3 owns nothing,
// and dog 10 sleeps in bed 100.
func seedStore(t *testing.T) *memStore {
	t.Helper()
	s := newMemStore()
	for _, p := range []Person{{ID: 1, Name: "Ann"}, {ID: 2, Name: "Bob"}, {ID: 3, Name: "Cy"}} {
		s.people[p.ID] = p
	}
	for _, d := range []Dog{{ID: 10, PersonID: 1, Name: "Rex"}, {ID: 11, PersonID: 1, Name: "Fido"}, {ID: 12, PersonID: 2, Name: "Spot"}} {
		s.dogs[d.ID] = d
	}
	s.beds[100] = Bed{ID: 100, DogID: 10}
	return s
}

// memTable implements crud.Reader and crud.Deleter over one map of memStore.
type memTable[T crud.Record[int64]] struct {
	name string
	rows func(s *memStore) map[int64]T
}

func (t memTable[T]) Read(_ context.Context, id int64, s *memStore) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if err := s.hit(t.name + ".Read"); err != nil {
		return zero, err
	}
	v, ok := t.rows(s)[id]
	if !ok {
		return zero, fmt.Errorf("%s %d: %w", t.name, id, crud.ErrNotFound)
	}
	return v, nil
}

func (t memTable[T]) ReadMany(_ context.Context, ids []int64, s *memStore) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(t.name + ".ReadMany"); err != nil {
		return nil, err
	}
	rows := t.rows(s)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := rows[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (t memTable[T]) ReadAll(_ context.Context, s *memStore) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(t.name + ".ReadAll"); err != nil {
		return nil, err
	}
	rows := t.rows(s)
	out := make([]T, 0, len(rows))
	for _, id := range slices.Sorted(maps.Keys(rows)) {
		out = append(out, rows[id])
	}
	return out, nil
}

func (t memTable[T]) DeleteByID(_ context.Context, id int64, s *memStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(t.name + ".DeleteByID"); err != nil {
		return err
	}
	delete(t.rows(s), id)
	return nil
}

func (t memTable[T]) DeleteAll(_ context.Context, s *memStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(t.name + ".DeleteAll"); err != nil {
		return err
	}
	clear(t.rows(s))
	return nil
}

var (
	people = memTable[Person]{name: "people", rows: func(s *memStore) map[int64]Person { return s.people }}
	dogs   = memTable[Dog]{name: "dogs", rows: func(s *memStore) map[int64]Dog { return s.dogs }}
	beds   = memTable[Bed]{name: "beds", rows: func(s *memStore) map[int64]Bed { return s.beds }}
	toys   = memTable[Toy]{name: "toys", rows: func(s *memStore) map[int64]Toy { return s.toys }}
)

// foreignKey implements crud.ParentLoader by scanning a map in id order.
type foreignKey[C crud.Record[int64]] struct {
	name     string
	rows     func(s *memStore) map[int64]C
	parentID func(C) int64
}

func (f foreignKey[C]) ParentID(child C) int64 { return f.parentID(child) }

func (f foreignKey[C]) ForParentIDs(_ context.Context, ids []int64, s *memStore) (map[int64][]C, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(f.name + ".ForParentIDs"); err != nil {
		return nil, err
	}
	rows := f.rows(s)
	var matched []C
	for _, id := range slices.Sorted(maps.Keys(rows)) {
		if slices.Contains(ids, f.parentID(rows[id])) {
			matched = append(matched, rows[id])
		}
	}
	return crud.GroupBy(matched, f.parentID), nil
}

var (
	dogOwner = foreignKey[Dog]{name: "dogs.person_id", rows: func(s *memStore) map[int64]Dog { return s.dogs }, parentID: func(d Dog) int64 { return d.PersonID }}
	bedOwner = foreignKey[Bed]{name: "beds.dog_id", rows: func(s *memStore) map[int64]Bed { return s.beds }, parentID: func(b Bed) int64 { return b.DogID }}
)

// dogToyJoin links dogs and toys. It serves as the ThroughLoader for
// Dog -> Toy and as the JoinLoader for Toy -> Dog.
type dogToyJoin struct{}

func (dogToyJoin) RelationIDs(_ context.Context, d Dog, s *memStore) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("dog_toys.RelationIDs"); err != nil {
		return nil, err
	}
	var out []int64
	for _, row := range s.dogToys {
		if row.DogID == d.ID {
			out = append(out, row.ToyID)
		}
	}
	return out, nil
}

func (dogToyJoin) RelationIDsForMany(_ context.Context, ids []int64, s *memStore) (map[int64][]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("dog_toys.RelationIDsForMany"); err != nil {
		return nil, err
	}
	out := map[int64][]int64{}
	for _, row := range s.dogToys {
		if slices.Contains(ids, row.DogID) {
			out[row.DogID] = append(out[row.DogID], row.ToyID)
		}
	}
	return out, nil
}

func (dogToyJoin) IDsForRelationIDs(_ context.Context, ids []int64, s *memStore) (map[int64][]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("dog_toys.IDsForRelationIDs"); err != nil {
		return nil, err
	}
	out := map[int64][]int64{}
	for _, row := range s.dogToys {
		if slices.Contains(ids, row.ToyID) {
			out[row.ToyID] = append(out[row.ToyID], row.DogID)
		}
	}
	return out, nil
}

func (dogToyJoin) SetRelations(_ context.Context, id int64, toyIDs []int64, s *memStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("dog_toys.SetRelations"); err != nil {
		return err
	}
	kept := s.dogToys[:0]
	for _, row := range s.dogToys {
		if row.DogID != id {
			kept = append(kept, row)
		}
	}
	for _, tid := range toyIDs {
		kept = append(kept, dogToy{DogID: id, ToyID: tid})
	}
	s.dogToys = kept
	return nil
}

// toyOwners adapts dogToyJoin to the Toy side: a toy's parents are dogs.
type toyOwners struct{ join dogToyJoin }

func (j toyOwners) ParentIDs(ctx context.Context, t Toy, s *memStore) ([]int64, error) {
	byToy, err := j.join.IDsForRelationIDs(ctx, []int64{t.ID}, s)
	if err != nil {
		return nil, err
	}
	return byToy[t.ID], nil
}

func (j toyOwners) IDsForParentIDs(ctx context.Context, ids []int64, s *memStore) (map[int64][]int64, error) {
	return j.join.RelationIDsForMany(ctx, ids, s)
}

// labelMapper builds MappedDog values and counts batch calls.
type labelMapper struct {
	mu     sync.Mutex
	single int
	batch  int
	fail   error
}

func (m *labelMapper) FromModel(_ context.Context, d Dog, _ *memStore) (MappedDog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.single++
	if m.fail != nil {
		return MappedDog{}, m.fail
	}
	return MappedDog{Dog: d, Label: "dog:" + d.Name}, nil
}

func (m *labelMapper) FromModels(_ context.Context, ds []Dog, _ *memStore) ([]MappedDog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batch++
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]MappedDog, len(ds))
	for i, d := range ds {
		out[i] = MappedDog{Dog: d, Label: "dog:" + d.Name}
	}
	return out, nil
}

// --- Relations under test ---

type (
	dogPerson   = crud.BelongsTo[Dog, int64, Person, int64, *memStore]
	bedDog      = crud.BelongsTo[Bed, int64, Dog, int64, *memStore]
	dogToys     = crud.HasManyThrough[Dog, int64, Toy, int64, *memStore]
	toyDogs     = crud.HasManyAndBelongsTo[Toy, int64, Dog, int64, *memStore]
	mappedDogs  = crud.Mapped[MappedDog, Dog, int64, *memStore]
	mappedOwner = crud.MappedParentLoader[MappedDog, Dog, int64, int64, *memStore]
)

func dogBelongsToPerson() dogPerson {
	return dogPerson{Loader: dogOwner, ParentReader: people}
}

func bedBelongsToDog() bedDog {
	return bedDog{Loader: bedOwner, ParentReader: dogs}
}

func idsOf[T crud.Record[int64]](values []T) []int64 {
	return crud.IDs[T, int64](values)
}
