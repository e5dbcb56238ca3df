package controller

import (
	"errors"
	"strings"
	"time"

	"templeseva_backend/internals/features/users/auth/dto"
	"templeseva_backend/internals/features/users/auth/service"
	helper "templeseva_backend/internals/helpers"
	authMw "templeseva_backend/internals/middlewares/auth"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SessionCookie mirrors the bearer token for browser clients.
const SessionCookie = "donor_token"

type AuthController struct {
	tokens       *service.TokenService
	donors       service.DonorStore
	validate     *validator.Validate
	secureCookie bool
	log          *zap.Logger
}

func NewAuthController(tokens *service.TokenService, donors service.DonorStore, v *validator.Validate, secureCookie bool, log *zap.Logger) *AuthController {
	return &AuthController{tokens: tokens, donors: donors, validate: v, secureCookie: secureCookie, log: log.Named("auth")}
}

// POST /api/public/auth/otp/request
// Always 202 so the endpoint does not reveal which emails belong to donors.
func (ac *AuthController) RequestOtp(c *fiber.Ctx) error {
	var req dto.OtpRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}
	if err := ac.tokens.RequestOtp(c.UserContext(), req.Email); err != nil {
		ac.log.Error("otp request failed", zap.Error(err))
		return helper.JsonError(c, fiber.StatusInternalServerError, "Could not send a code right now")
	}
	return helper.JsonAccepted(c, "if the email is registered, a code has been sent", nil)
}

// POST /api/public/auth/otp/verify
func (ac *AuthController) VerifyOtp(c *fiber.Ctx) error {
	var req dto.OtpVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	sess, err := ac.tokens.VerifyOtp(c.UserContext(), req.Email, req.Code)
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrTooManyAttempts):
		return helper.JsonError(c, fiber.StatusTooManyRequests, err.Error())
	case err != nil:
		ac.log.Error("otp verify failed", zap.Error(err))
		return helper.JsonError(c, fiber.StatusInternalServerError, "Login failed")
	}
	return ac.respondSession(c, sess)
}

// GET|POST /api/public/auth/claim
func (ac *AuthController) Claim(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" && c.Method() == fiber.MethodPost {
		var req dto.ClaimRequest
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
		}
		token = strings.TrimSpace(req.Token)
	}
	if token == "" {
		return helper.JsonError(c, fiber.StatusBadRequest, "token is required")
	}

	sess, err := ac.tokens.ClaimMagicLink(c.UserContext(), token)
	if errors.Is(err, service.ErrInvalidLink) {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	if err != nil {
		ac.log.Error("claim failed", zap.Error(err))
		return helper.JsonError(c, fiber.StatusInternalServerError, "Claim failed")
	}
	return ac.respondSession(c, sess)
}

// POST /api/u/auth/logout
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		HTTPOnly: true,
		Secure:   ac.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Unix(0, 0),
	})
	return helper.JsonOK(c, "logged out", nil)
}

// GET /api/u/me
func (ac *AuthController) Me(c *fiber.Ctx) error {
	id, ok := authMw.DonorID(c)
	if !ok {
		return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	d, err := ac.donors.FindByID(c.UserContext(), id)
	if err != nil {
		return helper.JsonError(c, fiber.StatusNotFound, "Donor not found")
	}
	return helper.JsonOK(c, "ok", dto.NewDonorResponse(d))
}

func (ac *AuthController) respondSession(c *fiber.Ctx, sess *service.Session) error {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		HTTPOnly: true,
		Secure:   ac.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  sess.ExpiresAt,
	})
	return helper.JsonOK(c, "signed in", dto.SessionResponse{
		AccessToken: sess.Token,
		ExpiresAt:   sess.ExpiresAt,
		Donor:       dto.NewDonorResponse(sess.Donor),
	})
}
