package demo

import (
	"context"
	"fmt"

	"github.com/roach88/rfsync/internal/processor"
	"github.com/roach88/rfsync/internal/service"
	"github.com/roach88/rfsync/internal/store"
)

// New wires the address book over s: table, batched loading, validation
// and a processor configured with opts.
func New(s *store.Store, opts ...processor.Option) (*processor.Processor, error) {
	loc := store.NewLocator(s)
	table, err := NewTable(loc)
	if err != nil {
		return nil, err
	}
	v, err := NewValidator(table)
	if err != nil {
		return nil, fmt.Errorf("address book constraints: %w", err)
	}
	api := service.New(table,
		service.WithDecorators(loc.BatchLoader()),
		service.WithValidator(v),
	)
	return processor.New(api, opts...), nil
}

// SamplePeople returns fresh copies of the entries Seed stores.
func SamplePeople() []*Person {
	return []*Person{
		{
			Name:    "Ada Lovelace",
			Email:   "ada@example.org",
			Phones:  []string{"+44 20 7946 0000"},
			Address: &Address{Street: "12 St James's Square", City: "London", Zip: "10001"},
		},
		{
			Name:    "Grace Hopper",
			Email:   "grace@example.org",
			Address: &Address{Street: "1 Navy Yard", City: "Arlington", Zip: "22202"},
		},
		{
			Name:    "Alan Turing",
			Email:   "alan@example.org",
			Address: &Address{Street: "2 Adlington Road", City: "London", Zip: "09625"},
		},
	}
}

// Seed stores SamplePeople in an empty store. A store that already holds
// people is left alone.
func Seed(ctx context.Context, s *store.Store) error {
	existing, err := s.List(ctx, PersonKind)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, p := range SamplePeople() {
		if err := s.Save(ctx, p); err != nil {
			return fmt.Errorf("seed %s: %w", p.Name, err)
		}
	}
	return nil
}
