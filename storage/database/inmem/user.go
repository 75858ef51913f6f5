package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/user"
)

type userRow struct {
	user.User
	seq int64
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault("CreateUser"); err != nil {
		return user.User{}, err
	}
	if _, ok := repo.db.users[usr.ID]; ok {
		return user.User{}, user.ErrUserExists
	}
	if repo.emailTaken(usr.Email) {
		return user.User{}, core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
	}
	repo.db.users[usr.ID] = userRow{User: usr, seq: repo.db.nextSeq()}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if err := repo.db.fault("GetUser"); err != nil {
		return user.User{}, err
	}
	if row, ok := repo.db.users[id]; ok {
		return row.User, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]userRow, 0, len(repo.db.users))
	for _, row := range repo.db.users {
		if filter != nil {
			if filter.Role != "" && row.Role != filter.Role {
				continue
			}
			if filter.Search != "" && !containsFold(filter.Search, row.Name, row.Email) {
				continue
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.User)
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fault("UpdateUser"); err != nil {
		return user.User{}, err
	}
	row, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	row.Name = usr.Name
	row.Email = usr.Email
	row.UpdatedAt = usr.UpdatedAt
	repo.db.users[usr.ID] = row
	return row.User, nil
}

func (repo *userRepository) EmailExists(_ context.Context, email string, excludedIDs ...string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.emailTaken(email, excludedIDs...), nil
}

// emailTaken must be called with db.mu held.
func (repo *userRepository) emailTaken(email string, excludedIDs ...string) bool {
	if email == "" {
		return false
	}
	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, row := range repo.db.users {
		if row.Email == email && !excluded[row.ID] {
			return true
		}
	}
	return false
}
