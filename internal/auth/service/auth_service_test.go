package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"authcore/internal/apperr"
	devicedomain "authcore/internal/device/domain"
	"authcore/internal/identifier"
	"authcore/internal/ratelimit"
	"authcore/internal/security"
	sessiondomain "authcore/internal/session/domain"
	userdomain "authcore/internal/user/domain"
)

// ---- fakes ----

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*userdomain.User // by id
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*userdomain.User{}}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByIdentifier(ctx context.Context, value string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == value {
			return u, nil
		}
		for _, c := range u.Contacts {
			if c.Verified && c.Value == value {
				return u, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) VerifiedContactExists(ctx context.Context, kind identifier.Kind, value string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		for _, c := range u.Contacts {
			if c.Verified && c.Kind == kind && c.Value == value {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakeUserRepo) CreateAccount(ctx context.Context, u *userdomain.User, c *userdomain.Contact, d *devicedomain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		for _, ec := range existing.Contacts {
			if ec.Verified && ec.Kind == c.Kind && ec.Value == c.Value {
				return apperr.AlreadyExists(c.Value + " is already in use")
			}
		}
	}
	stored := *u
	stored.Contacts = []userdomain.Contact{*c}
	r.users[u.ID] = &stored
	return nil
}

type fakeDeviceRepo struct {
	devices map[string]*devicedomain.Device // by unique device id
}

func (r *fakeDeviceRepo) GetByUniqueDeviceID(ctx context.Context, id string) (*devicedomain.Device, error) {
	return r.devices[id], nil
}

func (r *fakeDeviceRepo) GetByUser(ctx context.Context, userID string) (*devicedomain.Device, error) {
	for _, d := range r.devices {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, nil
}

type fakeSessionRepo struct {
	mu             sync.Mutex
	sessions       map[string]*sessiondomain.Session
	revokeAllCalls int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*sessiondomain.Session{}}
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.RevokedAt == nil {
		now := time.Now().UTC()
		s.RevokedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) RevokeAllByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revokeAllCalls++
	now := time.Now().UTC()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeSessionRepo) RotateRefresh(ctx context.Context, sessionID, oldJti, newJti, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.RevokedAt != nil || s.RefreshJti != oldJti {
		return false, nil
	}
	s.RefreshJti = newJti
	s.RefreshTokenHash = newHash
	return true, nil
}

func (r *fakeSessionRepo) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	return nil
}

type fakeChallenges struct {
	mu    sync.Mutex
	codes map[string]string // kind:value -> code
	next  string
}

func newFakeChallenges() *fakeChallenges {
	return &fakeChallenges{codes: map[string]string{}, next: "123456"}
}

func (f *fakeChallenges) Issue(ctx context.Context, channel identifier.Kind, value string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[string(channel)+":"+value] = f.next
	return f.next, nil
}

func (f *fakeChallenges) Consume(ctx context.Context, channel identifier.Kind, value, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(channel) + ":" + value
	if stored, ok := f.codes[key]; ok && stored == code {
		delete(f.codes, key)
		return true, nil
	}
	return false, nil
}

type fakeGuard struct {
	mu       sync.Mutex
	failures map[string]int
	max      int
}

func newFakeGuard(max int) *fakeGuard {
	return &fakeGuard{failures: map[string]int{}, max: max}
}

func (g *fakeGuard) CheckAdmission(ctx context.Context, id, ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failures[id] >= g.max {
		return ratelimit.ErrThrottled
	}
	return nil
}

func (g *fakeGuard) RecordFailure(ctx context.Context, id, ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[id]++
	return nil
}

func (g *fakeGuard) Reset(ctx context.Context, id, ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, id)
	return nil
}

// ---- harness ----

type harness struct {
	svc      *AuthService
	users    *fakeUserRepo
	devices  *fakeDeviceRepo
	sessions *fakeSessionRepo
	codes    *fakeChallenges
	guard    *fakeGuard
	hasher   *security.Hasher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	users := newFakeUserRepo()
	devices := &fakeDeviceRepo{devices: map[string]*devicedomain.Device{}}
	sessions := newFakeSessionRepo()
	codes := newFakeChallenges()
	guard := newFakeGuard(5)
	hasher := security.NewHasher(bcrypt.MinCost)
	tokens, err := security.NewTestTokenProvider(15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	svc := NewAuthService(users, devices, sessions, codes, guard, hasher, tokens, nil, nil, nil, false)
	return &harness{svc: svc, users: users, devices: devices, sessions: sessions, codes: codes, guard: guard, hasher: hasher}
}

func (h *harness) addUser(t *testing.T, id, username, password, email string) *userdomain.User {
	t.Helper()
	u := &userdomain.User{
		ID:       id,
		Username: username,
		Role:     userdomain.RoleUser,
		Status:   userdomain.UserStatusActive,
	}
	if password != "" {
		hash, err := h.hasher.Hash([]byte(password))
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		u.PasswordHash = hash
	}
	if email != "" {
		u.Contacts = []userdomain.Contact{{
			UserID: id, Kind: identifier.KindEmail, Value: email, Verified: true, Default: true,
		}}
	}
	h.users.mu.Lock()
	h.users.users[id] = u
	h.users.mu.Unlock()
	return u
}

func ed25519Device(t *testing.T, userID, uniqueID string) (*devicedomain.Device, []byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	sig := ed25519.Sign(priv, []byte(security.AssertionChallenge))
	return &devicedomain.Device{
		ID: "dev-row-" + uniqueID, UserID: userID, UniqueDeviceID: uniqueID,
		BiometricPublicKey: pemKey,
	}, sig
}

func passwordLogin(id, password string) LoginInput {
	return LoginInput{Credentials: PasswordCredentials{Identifier: id, Password: password}}
}

func otpLogin(id string, kind identifier.Kind, code string) LoginInput {
	return LoginInput{Credentials: OTPCredentials{Identifier: id, Kind: kind, Code: code}}
}

func biometricLogin(deviceID string, sig []byte) LoginInput {
	return LoginInput{Credentials: BiometricCredentials{UniqueDeviceID: deviceID, Signature: sig}}
}

// ---- lookup / otp send ----

func TestLookup_AvailableAndTaken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "", "alice@example.com")

	avail, err := h.svc.Lookup(ctx, identifier.KindEmail, "alice@example.com", "")
	if err != nil || avail {
		t.Fatalf("taken email: avail=%v err=%v, want false nil", avail, err)
	}
	avail, err = h.svc.Lookup(ctx, identifier.KindEmail, "bob@example.com", "")
	if err != nil || !avail {
		t.Fatalf("free email: avail=%v err=%v, want true nil", avail, err)
	}
}

func TestLookup_MalformedDegradesToUnavailable(t *testing.T) {
	h := newHarness(t)
	avail, err := h.svc.Lookup(context.Background(), identifier.KindEmail, "not-an-email", "")
	if err != nil {
		t.Fatalf("malformed lookup must not error, got %v", err)
	}
	if avail {
		t.Fatal("malformed lookup must report unavailable")
	}
}

func TestSendOTP_InvalidTargetReturnsEmptyCode(t *testing.T) {
	h := newHarness(t)
	code, err := h.svc.SendOTP(context.Background(), identifier.KindEmail, "garbage", "", "1.2.3.4")
	if err != nil {
		t.Fatalf("invalid target must not error, got %v", err)
	}
	if code != "" {
		t.Fatalf("invalid target must yield empty code, got %q", code)
	}
}

func TestSendOTP_CodeHiddenUnlessDevMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, err := h.svc.SendOTP(ctx, identifier.KindEmail, "a@example.com", "", "")
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if code != "" {
		t.Fatalf("code must be empty outside dev mode, got %q", code)
	}

	h.svc.returnCodeToClient = true
	code, err = h.svc.SendOTP(ctx, identifier.KindEmail, "a@example.com", "", "")
	if err != nil || code == "" {
		t.Fatalf("dev mode must return the code, got %q (%v)", code, err)
	}
}

func TestSendOTP_ThrottledDistinctFromInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = h.guard.RecordFailure(ctx, "a@example.com", "")
	}
	_, err := h.svc.SendOTP(ctx, identifier.KindEmail, "a@example.com", "", "")
	if apperr.CodeOf(err) != apperr.CodeResourceExhausted {
		t.Fatalf("expected throttled code, got %v", err)
	}
}

// ---- create account ----

func TestCreateAccount_EmptyPayloadRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateAccount(context.Background(), CreateAccountInput{})
	if apperr.MessageOf(err) != badDataMessage {
		t.Fatalf("expected %q, got %v", badDataMessage, err)
	}
}

func TestCreateAccount_RequiresConsumedChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := CreateAccountInput{
		Kind: identifier.KindEmail, Value: "new@example.com", OTPCode: "000000",
	}
	if _, err := h.svc.CreateAccount(ctx, in); err == nil {
		t.Fatal("account creation without a live challenge must fail")
	}
}

func TestCreateAccount_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code, err := h.codes.Issue(ctx, identifier.KindEmail, "new@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res, err := h.svc.CreateAccount(ctx, CreateAccountInput{
		Kind: identifier.KindEmail, Value: "New@Example.com", OTPCode: code,
		Username: "newuser", Password: "s3cret-password",
		Device: &DeviceInput{UniqueDeviceID: "dev-1"},
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if res.User == nil || len(res.User.Contacts) != 1 {
		t.Fatalf("expected user with one contact, got %+v", res.User)
	}
	c := res.User.Contacts[0]
	if !c.Verified || !c.Default || c.Value != "new@example.com" {
		t.Fatalf("contact not normalized+verified+default: %+v", c)
	}
	// The code is consumed: a second creation with the same code fails.
	if _, err := h.svc.CreateAccount(ctx, CreateAccountInput{
		Kind: identifier.KindEmail, Value: "new@example.com", OTPCode: code,
	}); err == nil {
		t.Fatal("reused challenge must fail")
	}
}

func TestCreateAccount_DuplicateIdentifier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "", "taken@example.com")
	code, _ := h.codes.Issue(ctx, identifier.KindEmail, "taken@example.com")
	_, err := h.svc.CreateAccount(ctx, CreateAccountInput{
		Kind: identifier.KindEmail, Value: "taken@example.com", OTPCode: code,
	})
	if apperr.CodeOf(err) != apperr.CodeAlreadyExists {
		t.Fatalf("expected already-exists, got %v", err)
	}
}

// ---- login ----

func TestLoginPassword_Success(t *testing.T) {
	h := newHarness(t)
	h.addUser(t, "u1", "alice", "correct horse", "alice@example.com")
	res, err := h.svc.Login(context.Background(), passwordLogin("alice", "correct horse"))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if _, ok := h.sessions.sessions[sessionIDOf(t, h, res.AccessToken)]; !ok {
		t.Fatal("session row not created")
	}
}

func sessionIDOf(t *testing.T, h *harness, accessToken string) string {
	t.Helper()
	// Reuse the provider to decode the access token; test-only convenience.
	id, err := h.svc.tokens.ValidateAccess(accessToken)
	if err != nil {
		t.Fatalf("decode access token: %v", err)
	}
	return id.SessionID
}

func TestLogin_FailureMessagesAreIdenticalAcrossModes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "alice@example.com")

	cases := []struct {
		name string
		in   LoginInput
	}{
		{"unknown user", passwordLogin("nobody", "x")},
		{"wrong password", passwordLogin("alice", "wrong")},
		{"empty password", passwordLogin("alice", "")},
		{"wrong otp", otpLogin("alice@example.com", identifier.KindEmail, "999999")},
		{"otp for unknown user", otpLogin("ghost@example.com", identifier.KindEmail, "999999")},
	}
	var messages []string
	for _, tc := range cases {
		_, err := h.svc.Login(ctx, tc.in)
		if err == nil {
			t.Fatalf("%s: expected failure", tc.name)
		}
		messages = append(messages, apperr.MessageOf(err))
	}
	for i, m := range messages {
		if m != genericLoginMessage {
			t.Errorf("%s: message %q, want the generic message", cases[i].name, m)
		}
	}
}

func TestLoginOTP_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "", "alice@example.com")
	code, _ := h.codes.Issue(ctx, identifier.KindEmail, "alice@example.com")

	res, err := h.svc.Login(ctx, otpLogin("alice@example.com", identifier.KindEmail, code))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.ID != "u1" {
		t.Fatalf("wrong user: %s", res.User.ID)
	}
	// Single use.
	_, err = h.svc.Login(ctx, otpLogin("alice@example.com", identifier.KindEmail, code))
	if apperr.MessageOf(err) != genericLoginMessage {
		t.Fatalf("second consume must fail generically, got %v", err)
	}
}

func TestLoginBiometric_SuccessAndDiagnosticFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "", "alice@example.com")
	dev, sig := ed25519Device(t, "u1", "device-abc")
	h.devices.devices[dev.UniqueDeviceID] = dev

	res, err := h.svc.Login(ctx, biometricLogin("device-abc", sig))
	if err != nil {
		t.Fatalf("biometric login: %v", err)
	}
	if res.User.ID != "u1" {
		t.Fatalf("wrong user: %s", res.User.ID)
	}

	// Unknown device: diagnostic, not the generic message.
	_, err = h.svc.Login(ctx, biometricLogin("missing", sig))
	if err == nil || apperr.MessageOf(err) == genericLoginMessage {
		t.Fatalf("unknown device should be diagnostic, got %v", err)
	}

	// A device without an enrolled key names the owning user.
	bare := &devicedomain.Device{ID: "dev-row-bare", UserID: "u1", UniqueDeviceID: "device-bare"}
	h.devices.devices[bare.UniqueDeviceID] = bare
	_, err = h.svc.Login(ctx, biometricLogin("device-bare", sig))
	if err == nil || !strings.Contains(apperr.MessageOf(err), "u1") {
		t.Fatalf("no-key rejection must name the user, got %v", err)
	}

	// Bad signature names the user and includes the stored public key.
	_, err = h.svc.Login(ctx, biometricLogin("device-abc", []byte("garbage")))
	if err == nil || apperr.MessageOf(err) == genericLoginMessage {
		t.Fatalf("bad signature should be diagnostic, got %v", err)
	}
	if msg := apperr.MessageOf(err); !strings.Contains(msg, "u1") || !strings.Contains(msg, dev.BiometricPublicKey) {
		t.Fatalf("mismatch diagnostic must carry user id and stored key, got %q", msg)
	}
}

func TestLogin_DispatchFollowsVariantNotFieldPresence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// An empty biometric variant still takes the biometric path: it gets the
	// biometric diagnostic, not the generic password rejection.
	_, err := h.svc.Login(ctx, biometricLogin("", nil))
	if apperr.MessageOf(err) != "insufficient data for biometric login" {
		t.Fatalf("empty biometric variant: got %v", err)
	}

	// No variant at all fails generically.
	_, err = h.svc.Login(ctx, LoginInput{})
	if apperr.MessageOf(err) != genericLoginMessage {
		t.Fatalf("missing credentials: got %v", err)
	}
}

func TestLogin_ThrottledAfterSustainedFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "")

	for i := 0; i < 5; i++ {
		_, err := h.svc.Login(ctx, passwordLogin("alice", "wrong"))
		if apperr.MessageOf(err) != genericLoginMessage {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	_, err := h.svc.Login(ctx, passwordLogin("alice", "correct horse"))
	if apperr.CodeOf(err) != apperr.CodeResourceExhausted {
		t.Fatalf("expected throttle after budget exhausted, got %v", err)
	}
	if apperr.MessageOf(err) == genericLoginMessage {
		t.Fatal("throttle response must be distinct from the generic failure")
	}
}

func TestLogin_SuccessResetsFailureCounter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "")

	for i := 0; i < 4; i++ {
		_, _ = h.svc.Login(ctx, passwordLogin("alice", "wrong"))
	}
	if _, err := h.svc.Login(ctx, passwordLogin("alice", "correct horse")); err != nil {
		t.Fatalf("login within budget: %v", err)
	}
	if h.guard.failures["alice"] != 0 {
		t.Fatalf("failure counter not reset: %d", h.guard.failures["alice"])
	}
}

func TestLogin_SoftDeletedAccountRejected(t *testing.T) {
	h := newHarness(t)
	u := h.addUser(t, "u1", "alice", "correct horse", "")
	now := time.Now().UTC()
	u.DeletedAt = &now

	_, err := h.svc.Login(context.Background(), passwordLogin("alice", "correct horse"))
	if apperr.MessageOf(err) != genericLoginMessage {
		t.Fatalf("soft-deleted login must fail generically, got %v", err)
	}
}

// ---- refresh ----

func login(t *testing.T, h *harness) *AuthResult {
	t.Helper()
	res, err := h.svc.Login(context.Background(), passwordLogin("alice", "correct horse"))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

func TestRefresh_RotatesToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "")
	first := login(t, h)

	second, err := h.svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.AccessToken == "" || second.RefreshToken == "" {
		t.Fatal("expected rotated token pair")
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	// The rotated successor works.
	if _, err := h.svc.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("successor refresh: %v", err)
	}
}

func TestRefresh_ReuseRevokesAllSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "")
	first := login(t, h)
	other := login(t, h) // second session for the same user

	if _, err := h.svc.Refresh(ctx, first.RefreshToken); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	// Redeeming the rotated-out token is a compromise signal.
	_, err := h.svc.Refresh(ctx, first.RefreshToken)
	if apperr.CodeOf(err) != apperr.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated on reuse, got %v", err)
	}
	if h.sessions.revokeAllCalls == 0 {
		t.Fatal("reuse must revoke all user sessions")
	}
	// The unrelated session is dead too.
	if _, err := h.svc.Refresh(ctx, other.RefreshToken); err == nil {
		t.Fatal("sibling session must be revoked after reuse detection")
	}
}

func TestRefresh_ExpiredDistinctFromInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "")

	_, err := h.svc.Refresh(ctx, "not-a-token")
	if apperr.MessageOf(err) != "invalid token" {
		t.Fatalf("garbage token: got %v, want invalid token", err)
	}

	expired, err := security.NewTestTokenProvider(time.Minute, -time.Minute)
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	svc := NewAuthService(h.users, h.devices, h.sessions, h.codes, h.guard,
		h.hasher, expired, nil, nil, nil, false)
	token, _, _, err := expired.IssueRefresh("sess-x", "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = svc.Refresh(ctx, token)
	if apperr.MessageOf(err) != "expired token" {
		t.Fatalf("expired token: got %v, want expired token", err)
	}
}

func TestRefresh_ConcurrentRedemptionHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "")
	first := login(t, h)

	const racers = 16
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.svc.Refresh(ctx, first.RefreshToken)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

// ---- logout ----

func TestLogout_IdempotentAndInvalidTokenIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "")
	res := login(t, h)

	if err := h.svc.Logout(ctx, res.RefreshToken, ""); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// Again: idempotent.
	if err := h.svc.Logout(ctx, res.RefreshToken, ""); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	// Garbage token: no-op, no error.
	if err := h.svc.Logout(ctx, "garbage", ""); err != nil {
		t.Fatalf("garbage logout: %v", err)
	}
	// The session is dead.
	if _, err := h.svc.Refresh(ctx, res.RefreshToken); err == nil {
		t.Fatal("refresh after logout must fail")
	}
}

// ---- me ----

func TestMe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "", "alice@example.com")

	u, err := h.svc.Me(ctx, "u1")
	if err != nil || u.Username != "alice" {
		t.Fatalf("Me: %v %+v", err, u)
	}
	if _, err := h.svc.Me(ctx, "missing"); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("missing user: %v", err)
	}
}

func TestLoginErrorDoesNotLeakIdentifierExistence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "u1", "alice", "correct horse", "")

	_, errKnown := h.svc.Login(ctx, passwordLogin("alice", "wrong"))
	_, errUnknown := h.svc.Login(ctx, passwordLogin("mallory", "wrong"))
	if errors.Is(errKnown, errUnknown) {
		// Values differ but messages and codes must match exactly.
		t.Log("identical error values")
	}
	if apperr.MessageOf(errKnown) != apperr.MessageOf(errUnknown) ||
		apperr.CodeOf(errKnown) != apperr.CodeOf(errUnknown) {
		t.Fatalf("existence leak: %v vs %v", errKnown, errUnknown)
	}
}
