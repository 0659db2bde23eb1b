package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

// BirthdateLayout is the DD-MM-YYYY format clients submit.
const BirthdateLayout = "02-01-2006"

const (
	maxClientNameLen    = 20
	maxClientAddressLen = 50
)

// Geocoder resolves a postal address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}

type ClientRepository interface {
	CreateClient(ctx context.Context, c *domain.Client) error
	UpdateClient(ctx context.Context, c *domain.Client) error
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
}

// ClientInput carries client profile fields. Location skips geocoding when set.
type ClientInput struct {
	Name      string
	Address   string
	Birthdate string
	Location  *domain.Coordinates
}

type ClientService struct {
	clients  ClientRepository
	geocoder Geocoder
	log      *slog.Logger
}

func NewClientService(clients ClientRepository, geocoder Geocoder, logger *slog.Logger) *ClientService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientService{clients: clients, geocoder: geocoder, log: logger}
}

func (s *ClientService) Create(ctx context.Context, in ClientInput) (*domain.Client, error) {
	const op = "create client"
	c := &domain.Client{}
	if err := s.fill(ctx, op, c, in); err != nil {
		return nil, err
	}
	if err := s.clients.CreateClient(ctx, c); err != nil {
		return nil, domain.ErrPersistence.With(op, err)
	}
	s.log.InfoContext(ctx, "client created", slog.Int64("client_id", c.ID))
	return c, nil
}

func (s *ClientService) Update(ctx context.Context, id int64, in ClientInput) (*domain.Client, error) {
	const op = "update client"
	c, err := s.clients.GetClient(ctx, id)
	if err != nil {
		return nil, lookupError(op, domain.ErrClientNotFound, err)
	}
	if err := s.fill(ctx, op, c, in); err != nil {
		return nil, err
	}
	if err := s.clients.UpdateClient(ctx, c); err != nil {
		return nil, lookupError(op, domain.ErrClientNotFound, err)
	}
	s.log.InfoContext(ctx, "client updated", slog.Int64("client_id", c.ID))
	return c, nil
}

func (s *ClientService) List(ctx context.Context) ([]domain.Client, error) {
	clients, err := s.clients.ListClients(ctx)
	if err != nil {
		return nil, domain.ErrPersistence.With("list clients", err)
	}
	return clients, nil
}

// fill validates in and copies it onto c, geocoding the address if needed.
func (s *ClientService) fill(ctx context.Context, op string, c *domain.Client, in ClientInput) error {
	name := strings.TrimSpace(in.Name)
	address := strings.TrimSpace(in.Address)
	switch {
	case name == "":
		return domain.ErrInvalidInput.With(op, errors.New("'name' is required"))
	case utf8.RuneCountInString(name) > maxClientNameLen:
		return domain.ErrInvalidInput.With(op, fmt.Errorf("'name' exceeds %d characters", maxClientNameLen))
	case address == "":
		return domain.ErrInvalidInput.With(op, errors.New("'address' is required"))
	case utf8.RuneCountInString(address) > maxClientAddressLen:
		return domain.ErrInvalidInput.With(op, fmt.Errorf("'address' exceeds %d characters", maxClientAddressLen))
	}

	birthdate, err := time.Parse(BirthdateLayout, strings.TrimSpace(in.Birthdate))
	if err != nil {
		return domain.ErrInvalidInput.With(op, errors.New("birthdate must be DD-MM-YYYY"))
	}

	var loc domain.Coordinates
	if in.Location != nil {
		loc = *in.Location
	} else {
		if s.geocoder == nil {
			return domain.ErrGeocodeFailed.With(op, errors.New("no geocoder configured"))
		}
		loc, err = s.geocoder.Geocode(ctx, address)
		if err != nil {
			return domain.ErrGeocodeFailed.With(op, err)
		}
	}

	c.Name = name
	c.Address = address
	c.Birthdate = birthdate
	c.Location = loc
	return nil
}
