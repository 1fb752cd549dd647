package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/repository"
	"github.com/google/uuid"
)

// memDB is an in-memory stand-in for Postgres shared by the fake repositories.
// The hooks run outside the lock, letting tests interleave a second request
// between a read and the write that follows it.
type memDB struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	otps     []domain.OTPVerification
	resets   []domain.PasswordResetToken
	sessions map[string]domain.Session

	afterFindByID       func(id string)
	beforeSessionCreate func(userID string)
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]*domain.User{},
		sessions: map[string]domain.Session{},
	}
}

func (db *memDB) userRepo() *memUsers       { return &memUsers{db} }
func (db *memDB) tokenRepo() *memTokens     { return &memTokens{db} }
func (db *memDB) sessionRepo() *memSessions { return &memSessions{db} }

func (db *memDB) user(id string) domain.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.users[id]
}

func (db *memDB) otpCount(userID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, o := range db.otps {
		if o.UserID == userID {
			n++
		}
	}
	return n
}

// once wraps hook so it fires a single time. Hooks may re-enter the repository.
func once[T any](hook func(T)) func(T) {
	var fired atomic.Bool
	return func(v T) {
		if fired.CompareAndSwap(false, true) {
			hook(v)
		}
	}
}

func (db *memDB) sessionCount(userID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, s := range db.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// deleteSessionsLocked expects db.mu to be held.
func (db *memDB) deleteSessionsLocked(userID string) []string {
	var ids []string
	for id, s := range db.sessions {
		if s.UserID == userID {
			ids = append(ids, id)
			delete(db.sessions, id)
		}
	}
	return ids
}

type memUsers struct{ db *memDB }

var _ repository.UserRepository = (*memUsers)(nil)

func (r *memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, domain.ErrEmailTaken
		}
	}
	cp := *u
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	cp.PasswordChangedAt = cp.CreatedAt
	r.db.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.db.mu.Lock()
	u, ok := r.db.users[id]
	var out domain.User
	if ok {
		out = *u
	}
	hook := r.db.afterFindByID
	r.db.mu.Unlock()

	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if hook != nil {
		hook(id)
	}
	return &out, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) UpdateProfile(_ context.Context, id string, name, image *string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if name != nil {
		u.Name = name
	}
	if image != nil {
		u.Image = image
	}
	out := *u
	return &out, nil
}

func (r *memUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.HashedPassword = &hash
	return nil
}

type memTokens struct{ db *memDB }

var _ repository.TokenRepository = (*memTokens)(nil)

func (r *memTokens) CreateResetToken(_ context.Context, t *domain.PasswordResetToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *t
	cp.ID = uuid.NewString()
	r.db.resets = append(r.db.resets, cp)
	return nil
}

func (r *memTokens) ResetPassword(_ context.Context, tokenHash, passwordHash string, now time.Time) (*repository.ResetResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, t := range r.db.resets {
		if t.TokenHash != tokenHash || !t.ExpiresAt.After(now) {
			continue
		}
		r.db.resets = append(r.db.resets[:i], r.db.resets[i+1:]...)
		u, ok := r.db.users[t.UserID]
		if !ok {
			return nil, domain.ErrTokenInvalid
		}
		u.HashedPassword = &passwordHash
		u.PasswordChangedAt = time.Now()
		return &repository.ResetResult{
			UserID:     u.ID,
			Email:      u.Email,
			SessionIDs: r.db.deleteSessionsLocked(u.ID),
		}, nil
	}
	return nil, domain.ErrTokenInvalid
}

func (r *memTokens) ReplaceOTP(_ context.Context, otp *domain.OTPVerification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[otp.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.IsVerified {
		return fmt.Errorf("%w: email is already verified", domain.ErrValidation)
	}
	kept := r.db.otps[:0]
	for _, o := range r.db.otps {
		if o.UserID != otp.UserID {
			kept = append(kept, o)
		}
	}
	cp := *otp
	cp.ID = uuid.NewString()
	r.db.otps = append(kept, cp)
	return nil
}

func (r *memTokens) VerifyOTP(_ context.Context, userID, codeHash string, now time.Time) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	found := false
	for _, o := range r.db.otps {
		if o.UserID == userID && o.CodeHash == codeHash && o.ExpiresAt.After(now) {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrTokenInvalid
	}
	u, ok := r.db.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.IsVerified = true
	kept := r.db.otps[:0]
	for _, o := range r.db.otps {
		if o.UserID != userID {
			kept = append(kept, o)
		}
	}
	r.db.otps = kept
	return r.db.deleteSessionsLocked(userID), nil
}

func (r *memTokens) DeleteExpiredResetTokens(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (r *memTokens) DeleteExpiredOTPs(context.Context, time.Time) (int64, error) { return 0, nil }

type memSessions struct{ db *memDB }

var _ repository.SessionRepository = (*memSessions)(nil)

func (r *memSessions) Create(_ context.Context, s *domain.Session, passwordChangedAt time.Time) (*domain.Session, error) {
	r.db.mu.Lock()
	hook := r.db.beforeSessionCreate
	r.db.mu.Unlock()
	if hook != nil {
		hook(s.UserID)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[s.UserID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if !u.PasswordChangedAt.Equal(passwordChangedAt) {
		return nil, domain.ErrInvalidCredentials
	}
	cp := *s
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	r.db.sessions[cp.ID] = cp
	return &cp, nil
}

func (r *memSessions) FindLive(_ context.Context, id string, now time.Time) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (r *memSessions) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, id)
	return nil
}

func (r *memSessions) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type sentEmail struct {
	to, subject, body string
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (s *fakeEmailSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (s *fakeEmailSender) last() (sentEmail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentEmail{}, false
	}
	return s.sent[len(s.sent)-1], true
}

func (s *fakeEmailSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeBreach struct {
	isBreached func(ctx context.Context, password string) (bool, error)
}

func (b *fakeBreach) IsBreached(ctx context.Context, password string) (bool, error) {
	if b.isBreached == nil {
		return false, nil
	}
	return b.isBreached(ctx, password)
}
