// Package handler exposes the authentication flows over HTTP.
package handler

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"authcore/internal/apperr"
	"authcore/internal/auth/service"
	"authcore/internal/identifier"
	"authcore/internal/server/middleware"
)

// CookieConfig describes how the refresh token cookie is written. The
// refresh token never appears in a response body.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	svc    *service.AuthService
	cookie CookieConfig
}

func NewAuthHandler(svc *service.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie}
}

// Lookup handles GET /auth/lookup?value=&type=&region=.
// Always answers 200; malformed input reads as unavailable.
func (h *AuthHandler) Lookup(c *fiber.Ctx) error {
	kind := parseKind(c.Query("type"))
	available, err := h.svc.Lookup(c.UserContext(), kind, c.Query("value"), c.Query("region"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"available": available})
}

type sendOTPRequest struct {
	Value  string `json:"value"`
	Region string `json:"region"`
}

// SendOTP handles POST /auth/otp-code/send/:channel. The response carries
// an empty code for an invalid target; rate limiting is a 429 instead.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	kind := parseKind(c.Params("channel"))
	var req sendOTPRequest
	_ = c.BodyParser(&req) // empty body degrades to an invalid target below
	code, err := h.svc.SendOTP(c.UserContext(), kind, req.Value, req.Region, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"code": code})
}

type deviceRequest struct {
	UniqueDeviceID     string `json:"uniqueDeviceId"`
	BiometricPublicKey string `json:"biometricPublicKey"`
	PushToken          string `json:"fcmToken"`
}

type createAccountRequest struct {
	Type     string         `json:"type"`
	Value    string         `json:"value"`
	Region   string         `json:"region"`
	Code     string         `json:"code"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	Device   *deviceRequest `json:"device"`
}

// CreateAccount handles POST /auth/account.
func (h *AuthHandler) CreateAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidArg("Bad data sent.")
	}
	in := service.CreateAccountInput{
		Kind:     parseKind(req.Type),
		Value:    req.Value,
		Region:   req.Region,
		OTPCode:  req.Code,
		Username: req.Username,
		Password: req.Password,
		IP:       c.IP(),
	}
	if req.Device != nil {
		in.Device = &service.DeviceInput{
			UniqueDeviceID:     req.Device.UniqueDeviceID,
			BiometricPublicKey: req.Device.BiometricPublicKey,
			PushToken:          req.Device.PushToken,
		}
	}
	res, err := h.svc.CreateAccount(c.UserContext(), in)
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, res.RefreshToken, res.RefreshExpiresAt)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"accessToken": res.AccessToken,
		"profile":     service.MarshalProfile(res.User),
	})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
	Region     string `json:"region"`
	Password   string `json:"password"`
	Code       string `json:"code"`
	DeviceID   string `json:"uniqueDeviceId"`
	Signature  string `json:"signature"` // base64
}

// Login handles POST /auth/login for all three modes. The wire payload is
// one loose object; it is resolved to a credential variant exactly once
// here, and the service dispatches on the variant from then on.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidArg("Could not log you in. Please check your credentials and try again.")
	}
	var creds service.Credentials
	switch {
	case req.DeviceID != "" || req.Signature != "":
		sig, err := base64.StdEncoding.DecodeString(req.Signature)
		if err != nil {
			return apperr.InvalidArg("insufficient data for biometric login")
		}
		creds = service.BiometricCredentials{
			UniqueDeviceID: req.DeviceID,
			Signature:      sig,
		}
	case req.Code != "":
		creds = service.OTPCredentials{
			Identifier: req.Identifier,
			Kind:       parseKind(req.Type),
			Region:     req.Region,
			Code:       req.Code,
		}
	default:
		creds = service.PasswordCredentials{
			Identifier: req.Identifier,
			Region:     req.Region,
			Password:   req.Password,
		}
	}
	res, err := h.svc.Login(c.UserContext(), service.LoginInput{
		Credentials: creds,
		IP:          c.IP(),
	})
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, res.RefreshToken, res.RefreshExpiresAt)
	return c.JSON(fiber.Map{
		"accessToken": res.AccessToken,
		"profile":     service.MarshalProfile(res.User),
	})
}

// Refresh handles GET /auth/refresh-token. The refresh token arrives only
// via the HTTP-only cookie and leaves the same way, rotated.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(h.cookie.Name)
	if token == "" {
		return apperr.Unauthorized("invalid token")
	}
	res, err := h.svc.Refresh(c.UserContext(), token)
	if err != nil {
		h.clearRefreshCookie(c)
		return err
	}
	h.setRefreshCookie(c, res.RefreshToken, res.RefreshExpiresAt)
	return c.JSON(fiber.Map{"accessToken": res.AccessToken})
}

// Logout handles POST /auth/logout. Always succeeds; the cookie is cleared
// whether or not it named a live session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sessionID := ""
	if id := middleware.IdentityFrom(c); id != nil {
		sessionID = id.SessionID
	}
	if err := h.svc.Logout(c.UserContext(), c.Cookies(h.cookie.Name), sessionID); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"loggedOut": true})
}

// Me handles GET /auth/me behind bearer auth.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return apperr.Unauthorized("invalid token")
	}
	user, err := h.svc.Me(c.UserContext(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"profile": service.MarshalProfile(user)})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Expires:  expires,
		Path:     "/auth",
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/auth",
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func parseKind(raw string) identifier.Kind {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "EMAIL":
		return identifier.KindEmail
	case "PHONE":
		return identifier.KindPhone
	default:
		return identifier.Kind(strings.ToUpper(strings.TrimSpace(raw)))
	}
}
