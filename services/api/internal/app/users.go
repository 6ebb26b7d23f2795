package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"learncircle/pkg/auth"
	"learncircle/pkg/domain"
	"learncircle/pkg/store"
)

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// UpdateCredentialsResult reports which credentials changed.
type UpdateCredentialsResult struct {
	EmailChanged    bool
	PasswordChanged bool
}

// Register creates an account with role user.
func (a *App) Register(_ context.Context, in RegisterInput) (domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return domain.User{}, ErrMissingFields
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, wrapError(invalidInput(err.Error()), err)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         plainText(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(_ context.Context, email, password string) (domain.User, string, error) {
	user, ok, err := a.store.GetUserByEmail(normalizeEmail(email))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Logout revokes the presented token.
func (a *App) Logout(_ context.Context, token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

func (a *App) GetProfile(_ context.Context, uid string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrProfileNotFound
	}
	return user, nil
}

// UpdateProfile changes the display name; an empty name leaves it as is.
func (a *App) UpdateProfile(ctx context.Context, uid, name string) (domain.User, error) {
	user, err := a.GetProfile(ctx, uid)
	if err != nil {
		return domain.User{}, err
	}
	if name = plainText(name); name != "" {
		user.Name = name
		user.UpdatedAt = a.now()
		if err := a.store.SaveUser(user); err != nil {
			return domain.User{}, fmt.Errorf("update user: %w", err)
		}
	}
	return user, nil
}

// UpdateCredentials changes email and/or password. A password change revokes
// every session issued up to now, including the caller's.
func (a *App) UpdateCredentials(ctx context.Context, uid, email, password string) (UpdateCredentialsResult, error) {
	email = normalizeEmail(email)
	if email == "" && password == "" {
		return UpdateCredentialsResult{}, ErrMissingFields
	}
	if password != "" {
		if err := auth.ValidatePassword(password); err != nil {
			return UpdateCredentialsResult{}, wrapError(invalidInput(err.Error()), err)
		}
	}
	user, err := a.GetProfile(ctx, uid)
	if err != nil {
		return UpdateCredentialsResult{}, err
	}
	var res UpdateCredentialsResult
	if email != "" && email != user.Email {
		existing, ok, err := a.store.GetUserByEmail(email)
		if err != nil {
			return UpdateCredentialsResult{}, fmt.Errorf("check email: %w", err)
		}
		if ok && existing.ID != user.ID {
			return UpdateCredentialsResult{}, ErrEmailAlreadyExists
		}
		user.Email = email
		res.EmailChanged = true
	} else if email != "" {
		res.EmailChanged = true
	}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return UpdateCredentialsResult{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
		res.PasswordChanged = true
	}
	revokeSince := a.now()
	user.UpdatedAt = revokeSince
	if err := a.store.SaveUser(user); err != nil {
		return UpdateCredentialsResult{}, fmt.Errorf("update user: %w", err)
	}
	if res.PasswordChanged {
		revoker, ok := a.sessions.(store.UserSessionRevoker)
		if !ok {
			return res, errors.New("session store does not support user token revocation")
		}
		if err := revoker.RevokeUserSessions(uid, revokeSince); err != nil {
			return res, fmt.Errorf("revoke user tokens: %w", err)
		}
	}
	return res, nil
}

// GetUserCourses lists published courses linked into any of the caller's
// circles, without duplicates.
func (a *App) GetUserCourses(_ context.Context, uid string) ([]domain.CourseSummary, error) {
	circles, err := a.store.ListCirclesByMember(uid)
	if err != nil {
		return nil, fmt.Errorf("list circles: %w", err)
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, circle := range circles {
		courseIDs, err := a.store.ListCourseIDsInCircle(circle.ID)
		if err != nil {
			return nil, fmt.Errorf("list circle courses: %w", err)
		}
		for _, id := range courseIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	courses, err := a.store.ListCoursesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("fetch courses: %w", err)
	}
	out := make([]domain.CourseSummary, 0, len(courses))
	for _, c := range courses {
		if c.Published {
			out = append(out, c.Summary())
		}
	}
	return out, nil
}

// RequestRoleChange files a request to become a creator. A pending request
// is returned instead of creating a second one.
func (a *App) RequestRoleChange(ctx context.Context, uid, message string) (domain.RoleRequest, error) {
	user, err := a.GetProfile(ctx, uid)
	if err != nil {
		return domain.RoleRequest{}, err
	}
	if user.Role == domain.RoleCreator {
		return domain.RoleRequest{}, ErrAlreadyCreator
	}
	pending, ok, err := a.store.GetPendingRoleRequest(uid)
	if err != nil {
		return domain.RoleRequest{}, fmt.Errorf("fetch role request: %w", err)
	}
	if ok {
		return pending, nil
	}
	req := domain.RoleRequest{
		ID:            uuid.NewString(),
		UserID:        uid,
		Message:       plainText(message),
		RequestedRole: domain.RoleCreator,
		Status:        domain.RoleRequestPending,
		RequestDate:   a.now(),
	}
	if err := a.store.SaveRoleRequest(req); err != nil {
		return domain.RoleRequest{}, fmt.Errorf("save role request: %w", err)
	}
	return req, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
