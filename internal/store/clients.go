package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

const clientColumns = "id, name, address, birthdate, latitude, longitude"

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Birthdate, &c.Location.Latitude, &c.Location.Longitude)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c *domain.Client) error {
	err := s.q(ctx).QueryRow(ctx,
		"INSERT INTO clients (name, address, birthdate, latitude, longitude) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		c.Name, c.Address, c.Birthdate, c.Location.Latitude, c.Location.Longitude,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert client: %w", mapError(err))
	}
	return nil
}

func (s *Store) UpdateClient(ctx context.Context, c *domain.Client) error {
	tag, err := s.q(ctx).Exec(ctx,
		"UPDATE clients SET name = $2, address = $3, birthdate = $4, latitude = $5, longitude = $6 WHERE id = $1",
		c.ID, c.Name, c.Address, c.Birthdate, c.Location.Latitude, c.Location.Longitude,
	)
	if err != nil {
		return fmt.Errorf("update client: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := scanClient(s.q(ctx).QueryRow(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.q(ctx).Query(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []domain.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}
