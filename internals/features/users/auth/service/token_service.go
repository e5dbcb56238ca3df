package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	donorModel "templeseva_backend/internals/features/donations/donors/model"
	donorRepo "templeseva_backend/internals/features/donations/donors/repository"
	"templeseva_backend/internals/features/notifications/mailer"
	"templeseva_backend/internals/features/users/auth/model"
	"templeseva_backend/internals/features/users/auth/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidLink      = errors.New("link is invalid or has expired")
	ErrInvalidCode      = errors.New("code is invalid or has expired")
	ErrTooManyAttempts  = errors.New("too many attempts, request a new code")
	ErrInvalidJWT       = errors.New("invalid or expired session")
	errMissingJWTSecret = errors.New("jwt secret not configured")
)

const (
	otpDigits  = 6
	tokenBytes = 32
	RoleDonor  = "donor"
)

type DonorStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*donorModel.Donor, error)
	FindByEmail(ctx context.Context, email string) (*donorModel.Donor, error)
	MarkClaimed(ctx context.Context, id uuid.UUID) error
}

type CodeSender interface {
	SendOtp(ctx context.Context, to, code string, ttl time.Duration) mailer.Result
}

type Config struct {
	SiteBaseURL    string
	MagicLinkTTL   time.Duration
	OTPTTL         time.Duration
	OTPMaxAttempts int
	JWTSecret      string
	JWTTTL         time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// DonorClaims is the payload of a donor session JWT. Subject is the donor id.
type DonorClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Session is what a successful claim or OTP verification returns.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Donor     *donorModel.Donor
}

// TokenService issues and redeems the donor's passwordless credentials.
type TokenService struct {
	repo   repository.Repository
	donors DonorStore
	sender CodeSender
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

func NewTokenService(repo repository.Repository, donors DonorStore, sender CodeSender, cfg Config, log *zap.Logger) *TokenService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = 5
	}
	return &TokenService{repo: repo, donors: donors, sender: sender, cfg: cfg, log: log.Named("auth"), now: time.Now}
}

/* ====================== MAGIC LINK ====================== */

// IssueMagicLink returns a single-use claim URL for the donor. Only the
// SHA-256 of the token is stored.
func (s *TokenService) IssueMagicLink(ctx context.Context, donorID uuid.UUID) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	now := s.now()
	t := &model.MagicLinkToken{
		ID:        uuid.New(),
		DonorID:   donorID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(s.cfg.MagicLinkTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateMagicLink(ctx, t); err != nil {
		return "", fmt.Errorf("store magic link: %w", err)
	}
	return s.cfg.SiteBaseURL + "/claim?token=" + url.QueryEscape(token), nil
}

// ClaimMagicLink redeems the token once, marks the donor claimed and opens a session.
func (s *TokenService) ClaimMagicLink(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidLink
	}
	t, err := s.repo.FindMagicLinkByHash(ctx, hashToken(token))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidLink
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !t.Usable(now) {
		return nil, ErrInvalidLink
	}
	ok, err := s.repo.ConsumeMagicLink(ctx, t.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidLink
	}

	return s.openSession(ctx, t.DonorID)
}

/* ====================== OTP ====================== */

// RequestOtp emails a fresh code. Unknown addresses get no code and no error
// so the endpoint does not reveal who has donated.
func (s *TokenService) RequestOtp(ctx context.Context, email string) error {
	donor, err := s.donors.FindByEmail(ctx, email)
	if errors.Is(err, donorRepo.ErrNotFound) {
		s.log.Debug("otp requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	code, err := randomCode(otpDigits)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	now := s.now()
	o := &model.OtpCode{
		ID:        uuid.New(),
		DonorID:   donor.DonorID,
		Channel:   model.OtpChannelEmail,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateOtp(ctx, o, now); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if r := s.sender.SendOtp(ctx, lo.FromPtr(donor.DonorEmail), code, s.cfg.OTPTTL); !r.Sent() {
		s.log.Warn("otp not delivered", zap.String("donor_id", donor.DonorID.String()), zap.String("reason", r.Reason))
	}
	return nil
}

// VerifyOtp checks the latest code of the donor. Every guess, right or wrong,
// is counted before the hash is compared; after OTPMaxAttempts the code stops
// working even for guesses that arrive concurrently.
func (s *TokenService) VerifyOtp(ctx context.Context, email, code string) (*Session, error) {
	donor, err := s.donors.FindByEmail(ctx, email)
	if errors.Is(err, donorRepo.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}

	o, err := s.repo.LatestOtp(ctx, donor.DonorID, model.OtpChannelEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	reserved, err := s.repo.ReserveOtpAttempt(ctx, o.ID, s.cfg.OTPMaxAttempts, now)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, s.otpRejection(ctx, o, now)
	}

	if bcrypt.CompareHashAndPassword(o.CodeHash, []byte(code)) != nil {
		return nil, ErrInvalidCode
	}

	ok, err := s.repo.ConsumeOtp(ctx, o.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}
	return s.openSession(ctx, donor.DonorID)
}

// otpRejection tells an exhausted code apart from a used or expired one.
func (s *TokenService) otpRejection(ctx context.Context, o *model.OtpCode, now time.Time) error {
	if cur, err := s.repo.LatestOtp(ctx, o.DonorID, o.Channel); err == nil && cur.ID == o.ID {
		o = cur
	}
	if o.ConsumedAt == nil && now.Before(o.ExpiresAt) && o.Attempts >= s.cfg.OTPMaxAttempts {
		return ErrTooManyAttempts
	}
	return ErrInvalidCode
}

/* ====================== JWT ====================== */

func (s *TokenService) IssueJWT(d *donorModel.Donor) (string, time.Time, error) {
	if s.cfg.JWTSecret == "" {
		return "", time.Time{}, errMissingJWTSecret
	}
	now := s.now()
	exp := now.Add(s.cfg.JWTTTL)
	claims := DonorClaims{
		Email: lo.FromPtr(d.DonorEmail),
		Role:  RoleDonor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   d.DonorID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	return signed, exp, err
}

// ParseJWT validates signature and expiry and returns the donor id.
func (s *TokenService) ParseJWT(token string) (uuid.UUID, *DonorClaims, error) {
	claims := &DonorClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !tok.Valid || claims.Role != RoleDonor {
		return uuid.Nil, nil, ErrInvalidJWT
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, ErrInvalidJWT
	}
	return id, claims, nil
}

// ParseDonorID serves the donor auth middleware.
func (s *TokenService) ParseDonorID(token string) (uuid.UUID, error) {
	id, _, err := s.ParseJWT(token)
	return id, err
}

func (s *TokenService) openSession(ctx context.Context, donorID uuid.UUID) (*Session, error) {
	donor, err := s.donors.FindByID(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if !donor.DonorIsClaimed {
		if err := s.donors.MarkClaimed(ctx, donorID); err != nil {
			return nil, err
		}
		donor.DonorIsClaimed = true
	}
	token, exp, err := s.IssueJWT(donor)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, Donor: donor}, nil
}

/* ====================== HOUSEKEEPING ====================== */

// PurgeStale deletes credentials that expired or were used before cutoff.
func (s *TokenService) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteStale(ctx, cutoff)
}

func hashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func randomCode(n int) (string, error) {
	max := big.NewInt(10)
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + v.Int64())
	}
	return string(out), nil
}
