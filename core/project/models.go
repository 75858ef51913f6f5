package project

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/takharruj/core"
)

// OrderingFields lists the fields projects can be sorted on.
var OrderingFields = []string{"title", "created_at", "teacher_name"}

// Project is a graduation project offered by exactly one teacher.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"` // copied from the owner's profile at creation
	CreatedAt   time.Time `json:"created_at"`   // UTC
}

func (p Project) IsOwnedBy(userID string) bool {
	return userID != "" && p.TeacherID == userID
}

type NewProject struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"max=5000"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

type QueryFilter struct {
	Search    string `query:"search"` // case-insensitive match on title, description or teacher name
	TeacherID string `query:"teacher_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}
