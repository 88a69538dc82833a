// Package service orchestrates login, account provisioning, token refresh,
// and logout across the identifier validator, OTP store, credential
// verifiers, token provider, and rate guard.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"authcore/internal/apperr"
	"authcore/internal/audit"
	devicedomain "authcore/internal/device/domain"
	"authcore/internal/identifier"
	"authcore/internal/ratelimit"
	"authcore/internal/security"
	sessiondomain "authcore/internal/session/domain"
	"authcore/internal/telemetry"
	userdomain "authcore/internal/user/domain"
)

// genericLoginMessage is the single client-visible message for every
// credential failure on the password and OTP paths. All failure branches
// must funnel through failLogin so the response body is byte-identical
// regardless of which check rejected the attempt.
const genericLoginMessage = "Could not log you in. Please check your credentials and try again."

// badDataMessage is the client-visible message for malformed creation payloads.
const badDataMessage = "Bad data sent."

const throttledMessage = "Too many attempts. Please try again later."

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByIdentifier(ctx context.Context, value string) (*userdomain.User, error)
	VerifiedContactExists(ctx context.Context, kind identifier.Kind, value string) (bool, error)
	CreateAccount(ctx context.Context, u *userdomain.User, c *userdomain.Contact, d *devicedomain.Device) error
}

// DeviceRepo is the minimal device repository needed by the auth service.
type DeviceRepo interface {
	GetByUniqueDeviceID(ctx context.Context, uniqueDeviceID string) (*devicedomain.Device, error)
	GetByUser(ctx context.Context, userID string) (*devicedomain.Device, error)
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	RotateRefresh(ctx context.Context, sessionID, oldJti, newJti, newHash string) (bool, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// ChallengeStore issues and atomically consumes OTP challenges.
type ChallengeStore interface {
	Issue(ctx context.Context, channel identifier.Kind, value string) (string, error)
	Consume(ctx context.Context, channel identifier.Kind, value, code string) (bool, error)
}

// AdmissionGuard throttles by identifier and IP failure counters.
type AdmissionGuard interface {
	CheckAdmission(ctx context.Context, identifier, ip string) error
	RecordFailure(ctx context.Context, identifier, ip string) error
	Reset(ctx context.Context, identifier, ip string) error
}

// Sender delivers an OTP code to its target.
type Sender interface {
	Send(ctx context.Context, target, code string) error
}

// AuthResult holds the outcome of CreateAccount, Login, or Refresh.
// RefreshToken travels to the client only as an HTTP-only cookie; the
// handler must never place it in a response body.
type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             *userdomain.User
}

// LoginMode discriminates the credential variant of a login attempt.
type LoginMode string

const (
	LoginModePassword  LoginMode = "password"
	LoginModeOTP       LoginMode = "otp"
	LoginModeBiometric LoginMode = "biometric"
)

// Credentials is the login credential union. Exactly three variants exist;
// Login dispatches on the variant, never on which fields happen to be set.
type Credentials interface {
	Mode() LoginMode
}

// PasswordCredentials authenticates an identifier against its stored hash.
type PasswordCredentials struct {
	Identifier string // username, email, or E.164 phone
	Region     string
	Password   string
}

func (PasswordCredentials) Mode() LoginMode { return LoginModePassword }

// OTPCredentials redeems a live challenge issued for the identifier.
type OTPCredentials struct {
	Identifier string
	Kind       identifier.Kind
	Region     string
	Code       string
}

func (OTPCredentials) Mode() LoginMode { return LoginModeOTP }

// BiometricCredentials carry a device assertion: a signature over
// security.AssertionChallenge by the device's enrolled key.
type BiometricCredentials struct {
	UniqueDeviceID string
	Signature      []byte
}

func (BiometricCredentials) Mode() LoginMode { return LoginModeBiometric }

// LoginInput pairs one credential variant with request metadata.
type LoginInput struct {
	Credentials Credentials
	IP          string
}

// DeviceInput is the optional device payload supplied at account creation.
type DeviceInput struct {
	UniqueDeviceID     string
	BiometricPublicKey string
	PushToken          string
}

// CreateAccountInput carries the account provisioning payload. The
// identifier must have a live OTP challenge; Username and Password are
// optional.
type CreateAccountInput struct {
	Kind     identifier.Kind
	Value    string
	Region   string
	OTPCode  string
	Username string
	Password string
	Device   *DeviceInput
	IP       string
}

// AuthService orchestrates the authentication flows.
type AuthService struct {
	userRepo    UserRepo
	deviceRepo  DeviceRepo
	sessionRepo SessionRepo
	challenges  ChallengeStore
	guard       AdmissionGuard
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	audit       audit.AuditLogger
	emitter     telemetry.EventEmitter
	senders     map[identifier.Kind]Sender

	// returnCodeToClient echoes issued OTP codes in the send response.
	// Development only; config refuses it in production.
	returnCodeToClient bool
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger, emitter, and senders may be nil.
func NewAuthService(
	userRepo UserRepo,
	deviceRepo DeviceRepo,
	sessionRepo SessionRepo,
	challenges ChallengeStore,
	guard AdmissionGuard,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auditLogger audit.AuditLogger,
	emitter telemetry.EventEmitter,
	senders map[identifier.Kind]Sender,
	returnCodeToClient bool,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &AuthService{
		userRepo:           userRepo,
		deviceRepo:         deviceRepo,
		sessionRepo:        sessionRepo,
		challenges:         challenges,
		guard:              guard,
		hasher:             hasher,
		tokens:             tokens,
		audit:              auditLogger,
		emitter:            emitter,
		senders:            senders,
		returnCodeToClient: returnCodeToClient,
	}
}

// Lookup reports whether the identifier is available for registration.
// Malformed input degrades to available=false with a server-side error log
// instead of a client-visible validation failure.
func (s *AuthService) Lookup(ctx context.Context, kind identifier.Kind, value, region string) (bool, error) {
	var res identifier.Result
	switch kind {
	case identifier.KindEmail, identifier.KindPhone:
		res = identifier.Validate(kind, value, region)
	default:
		res = identifier.ValidateUsername(value)
	}
	if !res.Valid {
		log.Printf("auth: lookup rejected %s value %q: %s", kind, value, res.Reason)
		return false, nil
	}
	if kind == identifier.KindEmail || kind == identifier.KindPhone {
		exists, err := s.userRepo.VerifiedContactExists(ctx, kind, res.Normalized)
		if err != nil {
			return false, apperr.Unavailable("lookup unavailable", err)
		}
		return !exists, nil
	}
	u, err := s.userRepo.GetByIdentifier(ctx, res.Normalized)
	if err != nil {
		return false, apperr.Unavailable("lookup unavailable", err)
	}
	return u == nil, nil
}

// SendOTP issues a challenge for the target and hands the code to the
// channel's sender. An invalid or missing target yields an empty code and
// no error, so callers can tell "invalid input" apart from "throttled".
func (s *AuthService) SendOTP(ctx context.Context, kind identifier.Kind, value, region, ip string) (string, error) {
	if err := s.checkAdmission(ctx, value, ip); err != nil {
		return "", err
	}
	res := identifier.Validate(kind, value, region)
	if !res.Valid {
		log.Printf("auth: otp send rejected %s target %q: %s", kind, value, res.Reason)
		return "", nil
	}
	code, err := s.challenges.Issue(ctx, kind, res.Normalized)
	if err != nil {
		return "", apperr.Unavailable("could not issue code", err)
	}
	s.deliver(ctx, kind, res.Normalized, code)
	s.audit.LogEvent(ctx, "", "otp_issued", "challenge", string(kind)+":"+res.Normalized)
	if s.returnCodeToClient {
		return code, nil
	}
	return "", nil
}

// deliver hands the code to the channel's sender in the background. Failures
// are logged; the challenge stays live so the client can request a resend.
func (s *AuthService) deliver(ctx context.Context, kind identifier.Kind, target, code string) {
	sender := s.senders[kind]
	if sender == nil {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sender.Send(sendCtx, target, code); err != nil {
			log.Printf("auth: otp delivery to %s failed: %v", target, err)
		}
	}()
}

// CreateAccount provisions a user from a verified OTP challenge, opening a
// session in the same call. The storage uniqueness constraint is the final
// arbiter for concurrent signups on the same identifier.
func (s *AuthService) CreateAccount(ctx context.Context, in CreateAccountInput) (*AuthResult, error) {
	if strings.TrimSpace(in.Value) == "" || in.OTPCode == "" {
		return nil, apperr.InvalidArg(badDataMessage)
	}
	if err := s.checkAdmission(ctx, in.Value, in.IP); err != nil {
		return nil, err
	}
	res := identifier.Validate(in.Kind, in.Value, in.Region)
	if !res.Valid {
		return nil, apperr.InvalidArg(badDataMessage)
	}
	username := strings.TrimSpace(in.Username)
	if username != "" {
		if ures := identifier.ValidateUsername(username); !ures.Valid {
			return nil, apperr.InvalidArg(badDataMessage)
		}
	}

	ok, err := s.challenges.Consume(ctx, in.Kind, res.Normalized, in.OTPCode)
	if err != nil {
		return nil, apperr.Unavailable("could not verify code", err)
	}
	if !ok {
		_ = s.guard.RecordFailure(ctx, res.Normalized, in.IP)
		return nil, apperr.InvalidArg(badDataMessage)
	}

	now := time.Now().UTC()
	user := &userdomain.User{
		ID:        uuid.New().String(),
		Username:  username,
		Role:      userdomain.RoleUser,
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Password != "" {
		hashed, err := s.hasher.Hash([]byte(in.Password))
		if err != nil {
			return nil, apperr.Internal("could not create account", err)
		}
		user.PasswordHash = hashed
	}
	if err := user.Validate(); err != nil {
		return nil, apperr.InvalidArg(badDataMessage)
	}
	contact := &userdomain.Contact{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Kind:      in.Kind,
		Value:     res.Normalized,
		Verified:  true, // the consumed challenge proves ownership
		Default:   true,
		CreatedAt: now,
	}
	var dev *devicedomain.Device
	if in.Device != nil && strings.TrimSpace(in.Device.UniqueDeviceID) != "" {
		dev = &devicedomain.Device{
			ID:                 uuid.New().String(),
			UserID:             user.ID,
			UniqueDeviceID:     strings.TrimSpace(in.Device.UniqueDeviceID),
			BiometricPublicKey: in.Device.BiometricPublicKey,
			PushToken:          in.Device.PushToken,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
	}
	if err := s.userRepo.CreateAccount(ctx, user, contact, dev); err != nil {
		return nil, err
	}
	user.Contacts = []userdomain.Contact{*contact}

	_ = s.guard.Reset(ctx, res.Normalized, in.IP)
	s.audit.LogEvent(ctx, user.ID, "account_created", "user", string(in.Kind)+":"+res.Normalized)
	s.emit(ctx, user.ID, "", "", "account_created", nil)

	return s.openSession(ctx, user, dev, in.IP)
}

// Login authenticates via one of the three modes and opens a session.
// Password and OTP failures are indistinguishable to the client; the
// biometric path keeps its historical diagnostic errors.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if in.Credentials == nil {
		return nil, failLogin()
	}
	key := guardKey(in.Credentials)
	if err := s.checkAdmission(ctx, key, in.IP); err != nil {
		return nil, err
	}

	var (
		user *userdomain.User
		dev  *devicedomain.Device
		err  error
	)
	mode := string(in.Credentials.Mode())
	switch creds := in.Credentials.(type) {
	case PasswordCredentials:
		user, err = s.loginPassword(ctx, creds)
	case OTPCredentials:
		user, err = s.loginOTP(ctx, creds)
	case BiometricCredentials:
		user, dev, err = s.loginBiometric(ctx, creds)
	default:
		err = failLogin()
	}
	if err != nil {
		_ = s.guard.RecordFailure(ctx, key, in.IP)
		s.audit.LogEvent(ctx, "", "login_failure", "session", "mode="+mode)
		return nil, err
	}

	if dev == nil {
		// Best effort: attach the user's registered device to the session
		// so access tokens carry device-trust claims.
		dev, _ = s.deviceRepo.GetByUser(ctx, user.ID)
	}

	_ = s.guard.Reset(ctx, key, in.IP)
	s.audit.LogEvent(ctx, user.ID, "login", "session", "mode="+mode)
	s.emit(ctx, user.ID, deviceID(dev), "", "login", []byte(fmt.Sprintf(`{"mode":%q}`, mode)))

	return s.openSession(ctx, user, dev, in.IP)
}

func (s *AuthService) loginPassword(ctx context.Context, creds PasswordCredentials) (*userdomain.User, error) {
	value := strings.TrimSpace(creds.Identifier)
	if value == "" || creds.Password == "" {
		return nil, failLogin()
	}
	user, err := s.userRepo.GetByIdentifier(ctx, normalizeLoginIdentifier(value, creds.Region))
	if err != nil {
		return nil, apperr.Unavailable("login unavailable", err)
	}
	if !user.Active() || user.PasswordHash == "" {
		return nil, failLogin()
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(creds.Password)); err != nil {
		return nil, failLogin()
	}
	return user, nil
}

func (s *AuthService) loginOTP(ctx context.Context, creds OTPCredentials) (*userdomain.User, error) {
	res := identifier.Validate(creds.Kind, creds.Identifier, creds.Region)
	if !res.Valid {
		return nil, failLogin()
	}
	ok, err := s.challenges.Consume(ctx, creds.Kind, res.Normalized, creds.Code)
	if err != nil {
		return nil, apperr.Unavailable("login unavailable", err)
	}
	if !ok {
		return nil, failLogin()
	}
	user, err := s.userRepo.GetByIdentifier(ctx, res.Normalized)
	if err != nil {
		return nil, apperr.Unavailable("login unavailable", err)
	}
	if !user.Active() {
		return nil, failLogin()
	}
	return user, nil
}

// loginBiometric verifies a signature over the assertion challenge with the
// device's enrolled public key. Unlike the other modes its failures are
// deliberately diagnostic: the caller already proved possession of a device
// id, and the client needs to distinguish "re-enroll" from "retry".
func (s *AuthService) loginBiometric(ctx context.Context, creds BiometricCredentials) (*userdomain.User, *devicedomain.Device, error) {
	deviceID := strings.TrimSpace(creds.UniqueDeviceID)
	if deviceID == "" || len(creds.Signature) == 0 {
		return nil, nil, apperr.InvalidArg("insufficient data for biometric login")
	}
	dev, err := s.deviceRepo.GetByUniqueDeviceID(ctx, deviceID)
	if err != nil {
		return nil, nil, apperr.Unavailable("login unavailable", err)
	}
	if dev == nil {
		return nil, nil, apperr.InvalidArg("no device found with the given id")
	}
	if !dev.BiometricCapable() {
		return nil, nil, apperr.InvalidArg(fmt.Sprintf("no biometric public key stored for user %s", dev.UserID))
	}
	if !security.VerifyAssertion(dev.BiometricPublicKey, creds.Signature) {
		return nil, nil, apperr.InvalidArg(fmt.Sprintf(
			"biometric verification failed for user %s with stored public key %s", dev.UserID, dev.BiometricPublicKey))
	}
	user, err := s.userRepo.GetByID(ctx, dev.UserID)
	if err != nil {
		return nil, nil, apperr.Unavailable("login unavailable", err)
	}
	if !user.Active() {
		return nil, nil, apperr.InvalidArg(fmt.Sprintf("account %s is not active", dev.UserID))
	}
	return user, dev, nil
}

// Refresh redeems the refresh token, rotating it. Exactly one of two
// concurrent redemptions of the same token wins the storage compare-and-swap;
// the loser is treated as replay and the whole session family is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, apperr.Unauthorized("invalid token")
	}
	sessionID, jti, userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, apperr.Unauthorized("expired token")
		}
		return nil, apperr.Unauthorized("invalid token")
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperr.Unavailable("refresh unavailable", err)
	}
	now := time.Now().UTC()
	if !sess.Live(now) {
		return nil, apperr.Unauthorized("invalid token")
	}
	if sess.RefreshJti != jti {
		// A rotated-out token came back: compromise signal.
		return nil, s.handleReuse(ctx, userID, sessionID)
	}
	if sess.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, apperr.Unauthorized("invalid token")
	}

	newRefresh, newJti, refreshExp, err := s.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, apperr.Internal("could not refresh", err)
	}
	won, err := s.sessionRepo.RotateRefresh(ctx, sessionID, jti, newJti, security.HashRefreshToken(newRefresh))
	if err != nil {
		return nil, apperr.Unavailable("refresh unavailable", err)
	}
	if !won {
		// Lost the swap to a concurrent redemption of the same token.
		return nil, s.handleReuse(ctx, userID, sessionID)
	}
	_ = s.sessionRepo.UpdateLastSeen(ctx, sessionID, now)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Unavailable("refresh unavailable", err)
	}
	if !user.Active() {
		_ = s.sessionRepo.Revoke(ctx, sessionID)
		return nil, apperr.Unauthorized("invalid token")
	}
	var dev *devicedomain.Device
	if sess.DeviceID != "" {
		dev, _ = s.deviceRepo.GetByUser(ctx, userID)
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(identity(user, sessionID, dev))
	if err != nil {
		return nil, apperr.Internal("could not refresh", err)
	}
	s.emit(ctx, userID, deviceID(dev), sessionID, "token_refresh", nil)
	return &AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     newRefresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		User:             user,
	}, nil
}

func (s *AuthService) handleReuse(ctx context.Context, userID, sessionID string) error {
	_ = s.sessionRepo.RevokeAllByUser(ctx, userID)
	s.audit.LogEvent(ctx, userID, "refresh_reuse_detected", "session", sessionID)
	s.emit(ctx, userID, "", sessionID, "refresh_reuse_detected", nil)
	return apperr.Unauthorized("invalid token")
}

// Logout revokes the session behind the refresh token, falling back to the
// access-token session id. Idempotent: unknown or invalid tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken, sessionID string) error {
	if refreshToken != "" {
		if sid, _, userID, err := s.tokens.ValidateRefresh(refreshToken); err == nil {
			s.audit.LogEvent(ctx, userID, "logout", "session", sid)
			return s.sessionRepo.Revoke(ctx, sid)
		}
	}
	if sessionID == "" {
		return nil
	}
	s.audit.LogEvent(ctx, "", "logout", "session", sessionID)
	return s.sessionRepo.Revoke(ctx, sessionID)
}

// Me returns the authenticated user's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Unavailable("profile unavailable", err)
	}
	if user == nil || user.DeletedAt != nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

// openSession mints the token pair and persists the session. The session row
// is created before the tokens leave this function, so a delivery failure
// leaves at worst an unused session, never a live token without a row.
func (s *AuthService) openSession(ctx context.Context, user *userdomain.User, dev *devicedomain.Device, ip string) (*AuthResult, error) {
	sessionID := uuid.New().String()
	now := time.Now().UTC()
	refreshToken, jti, refreshExp, err := s.tokens.IssueRefresh(sessionID, user.ID)
	if err != nil {
		return nil, apperr.Internal("could not open session", err)
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(identity(user, sessionID, dev))
	if err != nil {
		return nil, apperr.Internal("could not open session", err)
	}
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		DeviceID:         deviceRowID(dev),
		ExpiresAt:        refreshExp,
		IPAddress:        ip,
		RefreshJti:       jti,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		CreatedAt:        now,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, apperr.Unavailable("could not open session", err)
	}
	return &AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		User:             user,
	}, nil
}

func (s *AuthService) checkAdmission(ctx context.Context, key, ip string) error {
	if s.guard == nil {
		return nil
	}
	err := s.guard.CheckAdmission(ctx, key, ip)
	if err == nil {
		return nil
	}
	if errors.Is(err, ratelimit.ErrThrottled) {
		return apperr.Throttled(throttledMessage)
	}
	// A broken counter store must not lock everyone out.
	log.Printf("auth: admission check degraded: %v", err)
	return nil
}

// guardKey derives the failure-counter key from whichever identifier the
// credential variant carries.
func guardKey(creds Credentials) string {
	switch c := creds.(type) {
	case PasswordCredentials:
		return normalizeLoginIdentifier(c.Identifier, c.Region)
	case OTPCredentials:
		return normalizeLoginIdentifier(c.Identifier, c.Region)
	case BiometricCredentials:
		return strings.TrimSpace(c.UniqueDeviceID)
	default:
		return ""
	}
}

func (s *AuthService) emit(ctx context.Context, userID, deviceID, sessionID, eventType string, metadata []byte) {
	if s.emitter == nil {
		return
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		UserID:    userID,
		DeviceID:  deviceID,
		SessionID: sessionID,
		EventType: eventType,
		Source:    "auth",
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})
}

// failLogin returns the one generic credential failure. Every password and
// OTP rejection must go through here.
func failLogin() error {
	return apperr.InvalidArg(genericLoginMessage)
}

// normalizeLoginIdentifier folds the identifier the same way stored values
// are folded: emails lowercase, phones to E.164, usernames lowercase.
func normalizeLoginIdentifier(value, region string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "@") {
		return identifier.NormalizeEmail(value)
	}
	if strings.HasPrefix(value, "+") || region != "" {
		return identifier.NormalizePhone(value, region)
	}
	return strings.ToLower(value)
}

func identity(u *userdomain.User, sessionID string, dev *devicedomain.Device) security.Identity {
	return security.Identity{
		UserID:        u.ID,
		Role:          string(u.Role),
		LoggingAdmin:  u.LoggingAdmin,
		SessionID:     sessionID,
		DeviceID:      deviceID(dev),
		DeviceTrusted: dev.BiometricCapable(),
	}
}

func deviceID(dev *devicedomain.Device) string {
	if dev == nil {
		return ""
	}
	return dev.UniqueDeviceID
}

func deviceRowID(dev *devicedomain.Device) string {
	if dev == nil {
		return ""
	}
	return dev.ID
}

// MarshalProfile renders the public profile shape shared by login, account
// creation, and the me endpoint.
func MarshalProfile(u *userdomain.User) map[string]any {
	contacts := make([]map[string]any, 0, len(u.Contacts))
	for _, c := range u.Contacts {
		contacts = append(contacts, map[string]any{
			"kind":     string(c.Kind),
			"value":    c.Value,
			"verified": c.Verified,
			"default":  c.Default,
			"label":    c.Label,
		})
	}
	return map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"role":         string(u.Role),
		"loggingAdmin": u.LoggingAdmin,
		"restrictions": u.Restrictions,
		"contacts":     contacts,
	}
}
