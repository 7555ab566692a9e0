package migrations

import "context"

// Migrator applies one backend's migrations.
type Migrator interface {
	Migrate(ctx context.Context) (int, error)
}

// Chain runs migrators in order and sums their counts.
type Chain []Migrator

// Migrate implements Migrator. It stops at the first failure.
func (c Chain) Migrate(ctx context.Context) (int, error) {
	total := 0
	for _, m := range c {
		n, err := m.Migrate(ctx)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
