package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrUserExists      = errors.New("a user with this id already exists")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrRoleUnresolved  = errors.New("user role could not be resolved")
	ErrUpdateForbidden = errors.New("only students may update their profile")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, id string) (User, error)
		QueryUsers(ctx context.Context, filter *QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// EmailExists reports whether another profile (not in excludedIDs) uses email.
		EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error)
	}

	// Context bundles what model validation needs.
	Context struct {
		Ctx      context.Context
		Validate *validator.Validate
		Service  *Service
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) NewContext(ctx context.Context, validate *validator.Validate) Context {
	return Context{Ctx: ctx, Validate: validate, Service: svc}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if email == "" {
		return nil
	}
	ids := make([]string, 0, len(exclUsers))
	for _, u := range exclUsers {
		ids = append(ids, u.ID)
	}
	exists, err := svc.repo.EmailExists(ctx, email, ids...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	return svc.repo.CreateUser(ctx, User{
		ID:        nu.ID,
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter)
}

// Resolve maps an authenticated identity to its profile.
// The stored profile wins; a first-time caller gets a profile from the identity's claimed role.
func (svc *Service) Resolve(ctx context.Context, ident User) (User, error) {
	if !ident.IsAuthenticated() {
		return User{}, ErrRoleUnresolved
	}
	usr, err := svc.repo.GetUser(ctx, ident.ID)
	if err == nil {
		return usr, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "getting profile")
	}

	role := core.CleanString(ident.Role, true /* lower */)
	if role != RoleStudent && role != RoleTeacher {
		return User{}, ErrRoleUnresolved
	}

	// a claimed email owned by another profile is dropped, not fatal
	email := core.CleanString(ident.Email, true /* lower */)
	if err = svc.checkUniqueness(ctx, email); err != nil {
		if !isEmailTaken(err) {
			return User{}, err
		}
		email = ""
	}

	nu := NewUser{ID: ident.ID, Name: core.CleanString(ident.Name), Email: email, Role: role}
	usr, err = svc.Create(ctx, nu)
	if isEmailTaken(err) { // lost a race for the email
		nu.Email = ""
		usr, err = svc.Create(ctx, nu)
	}
	if errors.Cause(err) == ErrUserExists { // a concurrent first request created it
		return svc.repo.GetUser(ctx, ident.ID)
	}
	return usr, err
}

func isEmailTaken(err error) bool {
	var vErr *core.ValidationError
	return errors.As(err, &vErr) && vErr.Err == ErrEmailExists
}

// Update changes the caller's own name and email. Only students may edit their profile:
// teacher names are copied onto their projects.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if !usr.IsStudent() {
		return User{}, ErrUpdateForbidden
	}
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
