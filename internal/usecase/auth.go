package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/cache"
	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/email"
	"github.com/ErlanBelekov/interview-genie/internal/hashing"
	"github.com/ErlanBelekov/interview-genie/internal/metrics"
	"github.com/ErlanBelekov/interview-genie/internal/ratelimit"
	"github.com/ErlanBelekov/interview-genie/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	resetTokenTTL   = 24 * time.Hour
	otpTTL          = 5 * time.Minute
	otpDigits       = 6
	resetTokenBytes = 32

	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores everything past 72 bytes
)

// PasswordHasher is the slow hash used for credentials. Satisfied by *hashing.Bcrypt.
type PasswordHasher interface {
	hashing.Hasher
	NeedsRehash(digest string) bool
}

// BreachChecker is satisfied by *breach.Checker.
type BreachChecker interface {
	IsBreached(ctx context.Context, password string) (bool, error)
}

type AuthDeps struct {
	Users        repository.UserRepository
	Tokens       repository.TokenRepository
	Sessions     repository.SessionRepository
	UserCache    *cache.UserCache
	SessionCache *cache.SessionCache
	Limiter      *ratelimit.Limiter
	Passwords    PasswordHasher
	Breach       BreachChecker
	Email        email.Sender
	Logger       *slog.Logger
}

type AuthConfig struct {
	JWTKey     []byte
	SessionTTL time.Duration
	AppBaseURL string

	LoginRule  ratelimit.Rule
	OTPRule    ratelimit.Rule
	ResendRule ratelimit.Rule
	ForgotRule ratelimit.Rule
}

type AuthUsecase struct {
	users        repository.UserRepository
	tokens       repository.TokenRepository
	sessions     repository.SessionRepository
	userCache    *cache.UserCache
	sessionCache *cache.SessionCache
	limiter      *ratelimit.Limiter
	passwords    PasswordHasher
	secrets      hashing.SHA256
	breach       BreachChecker
	email        email.Sender
	logger       *slog.Logger
	cfg          AuthConfig
	now          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthUsecase(deps AuthDeps, cfg AuthConfig) *AuthUsecase {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = cache.TTLSession
	}
	return &AuthUsecase{
		users:        deps.Users,
		tokens:       deps.Tokens,
		sessions:     deps.Sessions,
		userCache:    deps.UserCache,
		sessionCache: deps.SessionCache,
		limiter:      deps.Limiter,
		passwords:    deps.Passwords,
		breach:       deps.Breach,
		email:        deps.Email,
		logger:       deps.Logger.With("component", "auth_usecase"),
		cfg:          cfg,
		now:          time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (u *AuthUsecase) WithClock(now func() time.Time) *AuthUsecase {
	u.now = now
	return u
}

type SignupInput struct {
	Name     *string
	Email    string
	Password string
}

type LoginInput struct {
	Email     string
	Password  string
	ClientIP  string
	UserAgent string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.Profile
}

// Principal is the authenticated caller behind a session token.
type Principal struct {
	UserID    string
	SessionID string
}

// Signup creates an unverified user and emails an OTP.
func (u *AuthUsecase) Signup(ctx context.Context, in SignupInput) (*domain.Profile, error) {
	emailAddr := normalizeEmail(in.Email)
	if emailAddr == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := u.checkBreached(ctx, in.Password); err != nil {
		return nil, err
	}

	hash, err := u.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := u.users.Create(ctx, &domain.User{
		Email:              emailAddr,
		Name:               in.Name,
		HashedPassword:     &hash,
		IsVerified:         false,
		Credits:            domain.DefaultCredits,
		SubscriptionStatus: domain.SubscriptionFree,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			metrics.AuthAttemptsTotal.WithLabelValues("signup", "conflict").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// The account exists at this point; a lost email is recoverable through ResendOTP.
	if err := u.issueOTP(ctx, user); err != nil {
		u.logger.ErrorContext(ctx, "issue signup otp", "user_id", user.ID, "error", err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("signup", "success").Inc()
	p := user.Profile()
	return &p, nil
}

// Login verifies credentials and opens a session.
//
// Unknown emails, password-less accounts and wrong passwords all return
// domain.ErrInvalidCredentials. Only a caller who knows the password learns
// that the account is unverified.
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	emailAddr := normalizeEmail(in.Email)

	if err := u.limiter.Enforce(ctx, u.cfg.LoginRule, emailAddr, in.ClientIP); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			metrics.AuthAttemptsTotal.WithLabelValues("login", "rate_limited").Inc()
			return nil, err
		}
		// fail closed: an unreachable limiter must not allow unlimited guesses
		return nil, fmt.Errorf("login rate limit: %w", err)
	}

	user, err := u.users.FindByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if user == nil || !user.HasPassword() {
		// burn the same bcrypt time as a real comparison
		u.passwords.Verify(in.Password, u.dummyDigest())
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if !u.passwords.Verify(in.Password, *user.HashedPassword) {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsVerified {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "unverified").Inc()
		return nil, domain.ErrEmailNotVerified
	}

	if err := u.limiter.Reset(ctx, u.cfg.LoginRule, emailAddr, in.ClientIP); err != nil {
		u.logger.WarnContext(ctx, "clear login rate limit", "error", err)
	}

	if u.passwords.NeedsRehash(*user.HashedPassword) {
		u.rehash(ctx, user.ID, in.Password)
	}

	sess, err := u.sessions.Create(ctx, &domain.Session{
		UserID:    user.ID,
		UserAgent: in.UserAgent,
		IP:        in.ClientIP,
		ExpiresAt: u.now().Add(u.cfg.SessionTTL),
	}, user.PasswordChangedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUserNotFound) {
			// the password was reset while this login was in flight
			metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := u.sessionCache.Put(ctx, sess.ID, cache.SessionEntry{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt}); err != nil {
		u.logger.WarnContext(ctx, "cache session", "session_id", sess.ID, "error", err)
	}

	token, err := u.signSession(user, sess)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return &LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, User: user.Profile()}, nil
}

// VerifyOTP flips the user's verified flag when otp matches a live code.
func (u *AuthUsecase) VerifyOTP(ctx context.Context, userID, otp string) error {
	if err := uuid.Validate(userID); err != nil {
		return fmt.Errorf("%w: invalid user id", domain.ErrValidation)
	}
	if len(otp) != otpDigits {
		return fmt.Errorf("%w: otp must be %d characters", domain.ErrValidation, otpDigits)
	}

	if err := u.limiter.Enforce(ctx, u.cfg.OTPRule, userID); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			metrics.AuthAttemptsTotal.WithLabelValues("verify_otp", "rate_limited").Inc()
			return err
		}
		return fmt.Errorf("otp rate limit: %w", err)
	}

	codeHash, _ := u.secrets.Hash(otp)
	sessionIDs, err := u.tokens.VerifyOTP(ctx, userID, codeHash, u.now())
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) || errors.Is(err, domain.ErrUserNotFound) {
			metrics.AuthAttemptsTotal.WithLabelValues("verify_otp", "invalid").Inc()
			return domain.ErrTokenInvalid
		}
		return fmt.Errorf("verify otp: %w", err)
	}

	if err := u.limiter.Reset(ctx, u.cfg.OTPRule, userID); err != nil {
		u.logger.WarnContext(ctx, "clear otp rate limit", "error", err)
	}
	u.dropSessions(ctx, "verified", sessionIDs)
	u.invalidateUser(ctx, userID, "")

	metrics.AuthAttemptsTotal.WithLabelValues("verify_otp", "success").Inc()
	return nil
}

// ResendOTP replaces any outstanding codes for an unverified user and emails a new one.
func (u *AuthUsecase) ResendOTP(ctx context.Context, userID string) error {
	if err := uuid.Validate(userID); err != nil {
		return fmt.Errorf("%w: invalid user id", domain.ErrValidation)
	}

	if err := u.limiter.Enforce(ctx, u.cfg.ResendRule, userID); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			return err
		}
		return fmt.Errorf("resend rate limit: %w", err)
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.IsVerified {
		return fmt.Errorf("%w: email is already verified", domain.ErrValidation)
	}

	if err := u.issueOTP(ctx, user); err != nil {
		return err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("resend_otp", "success").Inc()
	return nil
}

// ForgotPassword emails a reset link when the address belongs to a user.
// The returned error never depends on whether the address is registered;
// only malformed input and storage failures surface.
func (u *AuthUsecase) ForgotPassword(ctx context.Context, emailAddr, clientIP string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}

	if err := u.limiter.Enforce(ctx, u.cfg.ForgotRule, clientIP); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			u.logger.InfoContext(ctx, "forgot password rate limited", "ip", clientIP)
			return nil
		}
		// fail open: the response is identical either way
		u.logger.WarnContext(ctx, "forgot password rate limit unavailable", "error", err)
	}

	userID, err := u.lookupUserID(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.AuthAttemptsTotal.WithLabelValues("forgot_password", "unknown").Inc()
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	rawToken, err := hashing.NewToken(resetTokenBytes)
	if err != nil {
		return err
	}
	tokenHash, _ := u.secrets.Hash(rawToken)

	if err := u.tokens.CreateResetToken(ctx, &domain.PasswordResetToken{
		UserID:    userID,
		Email:     emailAddr,
		TokenHash: tokenHash,
		ExpiresAt: u.now().Add(resetTokenTTL),
	}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := strings.TrimRight(u.cfg.AppBaseURL, "/") + "/reset-password?token=" + rawToken
	subject, body := email.ResetMessage(link, resetTokenTTL)
	if err := u.email.Send(ctx, emailAddr, subject, body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("forgot_password", "sent").Inc()
	return nil
}

// ResetPassword consumes a reset token, sets the new password and revokes
// every session of the user.
func (u *AuthUsecase) ResetPassword(ctx context.Context, rawToken, password string) error {
	if strings.TrimSpace(rawToken) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if err := u.checkBreached(ctx, password); err != nil {
		return err
	}

	hash, err := u.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tokenHash, _ := u.secrets.Hash(rawToken)
	res, err := u.tokens.ResetPassword(ctx, tokenHash, hash, u.now())
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			metrics.AuthAttemptsTotal.WithLabelValues("reset_password", "invalid").Inc()
			return err
		}
		return fmt.Errorf("reset password: %w", err)
	}

	u.dropSessions(ctx, "password_reset", res.SessionIDs)
	u.invalidateUser(ctx, res.UserID, res.Email)

	metrics.AuthAttemptsTotal.WithLabelValues("reset_password", "success").Inc()
	return nil
}

// Logout ends a single session.
func (u *AuthUsecase) Logout(ctx context.Context, sessionID string) error {
	if err := u.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	u.dropSessions(ctx, "logout", []string{sessionID})
	return nil
}

// Authenticate resolves a bearer session token to its principal. The token
// signature is checked first, then the session must still exist.
func (u *AuthUsecase) Authenticate(ctx context.Context, rawToken string) (*Principal, error) {
	userID, sessionID, err := u.parseSession(rawToken)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	entry, err := u.ResolveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if entry.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	return &Principal{UserID: userID, SessionID: sessionID}, nil
}

// ResolveSession looks a live session up in the cache, falling back to
// Postgres and repopulating the cache on a miss.
func (u *AuthUsecase) ResolveSession(ctx context.Context, sessionID string) (*cache.SessionEntry, error) {
	entry, err := u.sessionCache.Get(ctx, sessionID)
	if err == nil {
		if !entry.ExpiresAt.After(u.now()) {
			return nil, domain.ErrSessionNotFound
		}
		return &entry, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		u.logger.WarnContext(ctx, "session cache read", "error", err)
	}

	sess, err := u.sessions.FindLive(ctx, sessionID, u.now())
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	entry = cache.SessionEntry{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt}
	if err := u.sessionCache.Put(ctx, sess.ID, entry); err != nil {
		u.logger.WarnContext(ctx, "cache session", "session_id", sess.ID, "error", err)
	}
	return &entry, nil
}

func (u *AuthUsecase) issueOTP(ctx context.Context, user *domain.User) error {
	code, err := hashing.NewNumericCode(otpDigits)
	if err != nil {
		return err
	}
	codeHash, _ := u.secrets.Hash(code)

	if err := u.tokens.ReplaceOTP(ctx, &domain.OTPVerification{
		UserID:    user.ID,
		CodeHash:  codeHash,
		ExpiresAt: u.now().Add(otpTTL),
	}); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	subject, body := email.OTPMessage(code, otpTTL)
	if err := u.email.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

// checkBreached rejects known-breached passwords. The lookup is advisory: if
// the service is unreachable the password is accepted and the failure logged.
func (u *AuthUsecase) checkBreached(ctx context.Context, password string) error {
	breached, err := u.breach.IsBreached(ctx, password)
	if err != nil {
		u.logger.WarnContext(ctx, "breach check unavailable, continuing", "error", err)
		return nil
	}
	if breached {
		return domain.ErrPasswordBreached
	}
	return nil
}

func (u *AuthUsecase) lookupUserID(ctx context.Context, emailAddr string) (string, error) {
	if p, err := u.userCache.ByEmail(ctx, emailAddr); err == nil {
		return p.ID, nil
	}
	// not written back: the version guard needs the id before the read
	user, err := u.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (u *AuthUsecase) rehash(ctx context.Context, userID, password string) {
	hash, err := u.passwords.Hash(password)
	if err != nil {
		u.logger.WarnContext(ctx, "rehash password", "user_id", userID, "error", err)
		return
	}
	if err := u.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		u.logger.WarnContext(ctx, "store rehashed password", "user_id", userID, "error", err)
	}
}

// dropSessions removes already-deleted durable sessions from the cache.
func (u *AuthUsecase) dropSessions(ctx context.Context, reason string, ids []string) {
	if len(ids) == 0 {
		return
	}
	metrics.SessionsRevokedTotal.WithLabelValues(reason).Add(float64(len(ids)))
	if err := u.sessionCache.Delete(ctx, ids...); err != nil {
		// entries still expire with their TTL
		u.logger.ErrorContext(ctx, "evict sessions from cache", "count", len(ids), "error", err)
	}
}

// invalidateUser drops every cache key of a user. When email is unknown it is
// read back from Postgres so the email key cannot be left behind.
func (u *AuthUsecase) invalidateUser(ctx context.Context, userID, emailAddr string) {
	if emailAddr == "" {
		if user, err := u.users.FindByID(ctx, userID); err == nil {
			emailAddr = user.Email
		}
	}
	if err := u.userCache.Invalidate(ctx, userID, emailAddr); err != nil {
		u.logger.ErrorContext(ctx, "invalidate user cache", "user_id", userID, "error", err)
	}
}

func (u *AuthUsecase) signSession(user *domain.User, sess *domain.Session) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"sid":   sess.ID,
		"email": user.Email,
		"iat":   u.now().Unix(),
		"exp":   sess.ExpiresAt.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(u.cfg.JWTKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func (u *AuthUsecase) parseSession(rawToken string) (userID, sessionID string, err error) {
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return u.cfg.JWTKey, nil
	}, jwt.WithTimeFunc(u.now))
	if err != nil || !token.Valid {
		return "", "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", domain.ErrUnauthorized
	}
	userID, _ = claims["sub"].(string)
	sessionID, _ = claims["sid"].(string)
	if userID == "" || sessionID == "" {
		return "", "", domain.ErrUnauthorized
	}
	return userID, sessionID, nil
}

// dummyDigest is a bcrypt hash compared against when no user exists, so the
// response time does not reveal whether an email is registered.
func (u *AuthUsecase) dummyDigest() string {
	u.dummyOnce.Do(func() {
		h, err := u.passwords.Hash("interview-genie-dummy-password")
		if err == nil {
			u.dummyHash = h
		}
	})
	return u.dummyHash
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validatePassword(password string) error {
	switch {
	case len(password) < minPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	case len(password) > maxPasswordLen:
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, maxPasswordLen)
	}
	return nil
}
