package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"templeseva_backend/internals/features/donations/donors/model"
	"templeseva_backend/internals/features/donations/donors/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PayerInput is what a donation form submits about the payer.
type PayerInput struct {
	Name       string
	Email      string
	Phone      string
	PAN        string
	Address    string
	City       string
	State      string
	PostalCode string
	Country    string
}

var ErrNoIdentity = errors.New("payer needs an email, phone or PAN")

type Service struct {
	repo repository.Repository
	log  *zap.Logger
}

func NewService(repo repository.Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log.Named("donors")}
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*model.Donor, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*model.Donor, error) {
	norm := NormalizeEmail(email)
	if norm == "" {
		return nil, repository.ErrNotFound
	}
	return s.repo.FindByEmailNorm(ctx, norm)
}

func (s *Service) MarkClaimed(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkClaimed(ctx, id)
}

// ResolveOrCreate finds the payer by normalized email, then phone, then PAN,
// and merges the submission into it. A new donor is created when none match.
func (s *Service) ResolveOrCreate(ctx context.Context, in PayerInput) (*model.Donor, error) {
	in = normalizeInput(in)
	if in.Email == "" && in.Phone == "" && in.PAN == "" {
		return nil, ErrNoIdentity
	}

	var out *model.Donor
	var err error
	// A concurrent insert of the same email loses the unique index race once; the retry finds the row.
	for attempt := 0; attempt < 2; attempt++ {
		out, err = s.resolveOnce(ctx, in)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve donor: %w", err)
	}
	return out, nil
}

func (s *Service) resolveOnce(ctx context.Context, in PayerInput) (*model.Donor, error) {
	var out *model.Donor
	err := s.repo.Transaction(ctx, func(tx repository.Tx) error {
		existing, err := lookup(ctx, tx, in)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if existing == nil {
			d := &model.Donor{DonorID: uuid.New()}
			Merge(d, in)
			if err := tx.Create(ctx, d); err != nil {
				return err
			}
			s.log.Info("donor created", zap.String("donor_id", d.DonorID.String()))
			out = d
			return nil
		}

		if Merge(existing, in) {
			if err := tx.Save(ctx, existing); err != nil {
				return err
			}
		}
		out = existing
		return nil
	})
	return out, err
}

func lookup(ctx context.Context, tx repository.Tx, in PayerInput) (*model.Donor, error) {
	if in.Email != "" {
		d, err := tx.FindByEmailNorm(ctx, in.Email)
		if !errors.Is(err, repository.ErrNotFound) {
			return d, err
		}
	}
	if in.Phone != "" {
		d, err := tx.FindByPhone(ctx, in.Phone)
		if !errors.Is(err, repository.ErrNotFound) {
			return d, err
		}
	}
	if in.PAN != "" {
		d, err := tx.FindByPAN(ctx, in.PAN)
		if !errors.Is(err, repository.ErrNotFound) {
			return d, err
		}
	}
	return nil, repository.ErrNotFound
}

// Merge backfills empty donor fields from in. The name is replaced only by a
// strictly longer one. Returns true when anything changed. in must be normalized.
func Merge(d *model.Donor, in PayerInput) bool {
	changed := false

	if in.Email != "" && lo.FromPtrOr(d.DonorEmailNorm, "") == "" {
		d.DonorEmail = lo.ToPtr(in.Email)
		d.DonorEmailNorm = lo.ToPtr(in.Email)
		changed = true
	}
	if in.Phone != "" && lo.FromPtrOr(d.DonorPhone, "") == "" {
		d.DonorPhone = lo.ToPtr(in.Phone)
		changed = true
	}
	if in.PAN != "" && lo.FromPtrOr(d.DonorPAN, "") == "" {
		d.DonorPAN = lo.ToPtr(in.PAN)
		changed = true
	}
	if utf8.RuneCountInString(in.Name) > utf8.RuneCountInString(d.DonorName) {
		d.DonorName = in.Name
		changed = true
	}

	backfill := func(dst *string, v string) {
		if v != "" && *dst == "" {
			*dst = v
			changed = true
		}
	}
	backfill(&d.DonorAddress, in.Address)
	backfill(&d.DonorCity, in.City)
	backfill(&d.DonorState, in.State)
	backfill(&d.DonorPostalCode, in.PostalCode)
	backfill(&d.DonorCountry, in.Country)

	return changed
}

func normalizeInput(in PayerInput) PayerInput {
	return PayerInput{
		Name:       strings.Join(strings.Fields(in.Name), " "),
		Email:      NormalizeEmail(in.Email),
		Phone:      NormalizePhone(in.Phone),
		PAN:        NormalizePAN(in.PAN),
		Address:    strings.TrimSpace(in.Address),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone returns an E.164-style number. Bare 10 digit numbers are
// taken as Indian mobiles. Anything with fewer than 8 digits is dropped.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	plus := strings.HasPrefix(phone, "+")
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	digits = strings.TrimLeft(digits, "0")
	if len(digits) < 8 {
		return ""
	}
	if !plus && len(digits) == 10 {
		return "+91" + digits
	}
	return "+" + digits
}

func NormalizePAN(pan string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pan), " ", ""))
}
