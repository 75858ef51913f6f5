package user

import (
	"time"

	"github.com/trezcool/takharruj/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

var AllRoles = []string{RoleStudent, RoleTeacher}

// User is a profile: the auth provider owns the account, we own the role and display fields.
type User struct {
	ID        string    `json:"id"` // auth subject
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (u User) IsAuthenticated() bool { return u.ID != "" }

func (u User) IsTeacher() bool { return u.Role == RoleTeacher }

func (u User) IsStudent() bool { return u.Role == RoleStudent }

// DisplayName falls back to the email when no name was set.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// NewUser contains information needed to create a profile.
type NewUser struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Role  string `json:"role" validate:"required,oneof=student teacher"`
}

func (nu *NewUser) Validate(ctx Context) error {
	nu.ID = core.CleanString(nu.ID)
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)

	if err := ctx.Validate.Struct(nu); err != nil {
		return err
	}
	return ctx.Service.checkUniqueness(ctx.Ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing profile.
type UpdateUser struct {
	Name  string `json:"name" validate:"required,notblank,max=120"`
	Email string `json:"email" validate:"required,email"`
}

func (uu *UpdateUser) Validate(ctx Context, origUsr User) error {
	uu.Name = core.CleanString(uu.Name)
	uu.Email = core.CleanString(uu.Email, true /* lower */)

	if err := ctx.Validate.Struct(uu); err != nil {
		return err
	}
	return ctx.Service.checkUniqueness(ctx.Ctx, uu.Email, origUsr)
}

type QueryFilter struct {
	Search string `query:"search"`
	Role   string `query:"role"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
