package clinic

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const (
	defaultTimezone = "UTC"
	defaultPlan     = "free"
	slugAttempts    = 5
)

type Service struct {
	tx              repository.TxManager
	repo            repository.ClinicRepository
	memberRepo      repository.MemberRepository
	permissions     *permission.Service
	auditor         *audit.Service
	defaultCurrency string
	now             func() time.Time
}

func NewService(tx repository.TxManager, repo repository.ClinicRepository, memberRepo repository.MemberRepository,
	permissions *permission.Service, auditor *audit.Service, defaultCurrency string) *Service {
	return &Service{
		tx:              tx,
		repo:            repo,
		memberRepo:      memberRepo,
		permissions:     permissions,
		auditor:         auditor,
		defaultCurrency: strings.ToLower(defaultCurrency),
		now:             time.Now,
	}
}

// CreateClinic creates the clinic and makes ownerID its owner with the
// owner's default permissions, in one transaction.
func (s *Service) CreateClinic(ctx context.Context, ownerID uuid.UUID, req *model.CreateClinicRequest) (*model.Clinic, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("clinic name is required")
	}

	clinic := &model.Clinic{
		Base:     model.NewBase(),
		Name:     name,
		Document: req.Document,
		Phone:    req.Phone,
		Email:    req.Email,
		Timezone: req.Timezone,
		Currency: strings.ToLower(req.Currency),
		Status:   model.ClinicStatusActive,
		Plan:     defaultPlan,
	}
	if clinic.Timezone == "" {
		clinic.Timezone = defaultTimezone
	}
	if clinic.Currency == "" {
		clinic.Currency = s.defaultCurrency
	}
	if err := validateSettings(clinic); err != nil {
		return nil, err
	}

	owner := &model.ClinicUser{
		Base:     model.NewBase(),
		ClinicID: clinic.ID,
		UserID:   ownerID,
		Role:     model.RoleOwner,
		Status:   model.MemberStatusActive,
		JoinedAt: s.now().UTC(),
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		slug, err := s.uniqueSlug(ctx, name)
		if err != nil {
			return err
		}
		clinic.Slug = slug

		if err := s.repo.Create(ctx, clinic); err != nil {
			return fmt.Errorf("failed to create clinic: %w", err)
		}
		if err := s.memberRepo.Create(ctx, owner); err != nil {
			return fmt.Errorf("failed to add clinic owner: %w", err)
		}
		if err := s.permissions.ApplyRoleDefaults(ctx, owner.ID, owner.Role); err != nil {
			return err
		}
		return s.auditor.Log(ctx, clinic.ID, model.AuditActionCreate, model.AuditEntityClinic, clinic.ID, &audit.LogOptions{
			Changes: clinic,
		})
	})
	if err != nil {
		return nil, err
	}
	return clinic, nil
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListClinicsForUser(ctx context.Context, userID uuid.UUID) ([]*model.ClinicMembership, error) {
	clinics, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	return clinics, nil
}

func (s *Service) UpdateClinic(ctx context.Context, id uuid.UUID, req *model.UpdateClinicRequest) (*model.Clinic, error) {
	clinic, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *clinic

	if req.Name != nil {
		clinic.Name = strings.TrimSpace(*req.Name)
		if clinic.Name == "" {
			return nil, apperrors.Validation("clinic name is required")
		}
	}
	if req.Document != nil {
		clinic.Document = req.Document
	}
	if req.Phone != nil {
		clinic.Phone = req.Phone
	}
	if req.Email != nil {
		clinic.Email = req.Email
	}
	if req.Timezone != nil {
		clinic.Timezone = *req.Timezone
	}
	if req.Currency != nil {
		clinic.Currency = strings.ToLower(*req.Currency)
	}
	if err := validateSettings(clinic); err != nil {
		return nil, err
	}
	clinic.UpdatedAt = s.now().UTC()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, clinic); err != nil {
			return fmt.Errorf("failed to update clinic: %w", err)
		}
		return s.auditor.Log(ctx, clinic.ID, model.AuditActionUpdate, model.AuditEntityClinic, clinic.ID, &audit.LogOptions{
			Changes: audit.Diff(before, clinic),
		})
	})
	if err != nil {
		return nil, err
	}
	return clinic, nil
}

// SuspendClinic blocks all tenant requests for the clinic. Only owners may do it.
func (s *Service) SuspendClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	return s.setStatus(ctx, id, model.ClinicStatusSuspended)
}

func (s *Service) ReactivateClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	return s.setStatus(ctx, id, model.ClinicStatusActive)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status string) (*model.Clinic, error) {
	member, err := s.memberRepo.GetByUser(ctx, id, audit.ActorID(ctx))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Forbidden("only clinic owners can change the clinic status")
		}
		return nil, err
	}
	if member.Role != model.RoleOwner || member.Status != model.MemberStatusActive {
		return nil, apperrors.Forbidden("only clinic owners can change the clinic status")
	}

	clinic, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if clinic.Status == status {
		return clinic, nil
	}
	previous := clinic.Status

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
			return fmt.Errorf("failed to update clinic status: %w", err)
		}
		return s.auditor.Log(ctx, id, model.AuditActionUpdate, model.AuditEntityClinic, id, &audit.LogOptions{
			Changes: audit.Diff(map[string]string{"status": previous}, map[string]string{"status": status}),
		})
	})
	if err != nil {
		return nil, err
	}
	clinic.Status = status
	return clinic, nil
}

func (s *Service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "clinic"
	}
	candidate := base
	for i := 0; i < slugAttempts; i++ {
		exists, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	return "", apperrors.Conflict("could not generate a unique clinic slug", nil)
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Slugify lowercases name, strips accents and joins words with dashes.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func validateSettings(c *model.Clinic) error {
	if len(c.Currency) != 3 {
		return apperrors.Validation("currency must be a 3-letter ISO code")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return apperrors.Validation(fmt.Sprintf("unknown timezone %q", c.Timezone))
	}
	return nil
}
