package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/takharruj/core/user"
)

const userColumns = "id, name, email, role, created_at, updated_at"

type userRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Email     null.String `db:"email"`
	Role      string      `db:"role"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email.String,
		Role:      r.Role,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	exec sqlx.ExtContext
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sql.DB) user.Repository {
	return &userRepository{exec: sqlx.NewDb(db, "postgres")}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.exec, &row,
		`INSERT INTO profiles (id, name, email, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		usr.ID, usr.Name, null.NewString(usr.Email, usr.Email != ""), usr.Role,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.exec, &row, `SELECT `+userColumns+` FROM profiles WHERE id = $1`, id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Role != "" {
			args = append(args, filter.Role)
			where = append(where, fmt.Sprintf("role = $%d", len(args)))
		}
		if filter.Search != "" {
			args = append(args, "%"+escapeLike(filter.Search)+"%")
			n := len(args)
			where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", n, n))
		}
	}
	q := `SELECT ` + userColumns + ` FROM profiles`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"

	rows := make([]userRow, 0)
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, mapError(err)
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.exec, &row,
		`UPDATE profiles SET name = $1, email = $2, updated_at = $3 WHERE id = $4 RETURNING `+userColumns,
		usr.Name, null.NewString(usr.Email, usr.Email != ""), usr.UpdatedAt.UTC(), usr.ID,
	)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	if excludedIDs == nil {
		excludedIDs = []string{}
	}
	var exists bool
	err := sqlx.GetContext(ctx, repo.exec, &exists,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE lower(email) = lower($1) AND NOT (id = ANY($2)))`,
		email, pq.Array(excludedIDs),
	)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}
