package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrNameRequired   = errors.New("name is required")
)

type Service struct {
	doctors DoctorRepository
	log     zerolog.Logger
}

func NewService(doctors DoctorRepository, logger zerolog.Logger) *Service {
	return &Service{doctors: doctors, log: logger.With().Str("component", "directory").Logger()}
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return ErrNameRequired
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}
	s.log.Info().Str("doctor_id", d.ID.String()).Msg("doctor registered")
	return nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.doctors.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.log.Info().Str("doctor_id", id.String()).Bool("active", active).Msg("doctor availability changed")
	return nil
}

func (s *Service) ListDoctors(ctx context.Context, activeOnly bool, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, activeOnly, limit, offset)
}

// EnsureBookable returns ErrDoctorNotFound unless the doctor exists and is
// active.
func (s *Service) EnsureBookable(ctx context.Context, id uuid.UUID) error {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !d.Active {
		return fmt.Errorf("%w: %s is not accepting bookings", ErrDoctorNotFound, id)
	}
	return nil
}
