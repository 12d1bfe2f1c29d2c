package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/saas-access-core/internal/database"
	"github.com/iliyamo/saas-access-core/internal/model"
)

type UserRepo struct{ DB database.Querier }

func NewUserRepo(db database.Querier) *UserRepo { return &UserRepo{DB: db} }

// GetByEmail fetches a user by normalized email. A missing row surfaces as
// sql.ErrNoRows would elsewhere: through ErrNoUser.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,email,name,password_hash,status,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email)
	if err != nil {
		return model.User{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.User{}, err
		}
		return model.User{}, ErrNoUser
	}
	var u model.User
	if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,email,name,password_hash,status,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id)
	if err != nil {
		return model.User{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.User{}, err
		}
		return model.User{}, ErrNoUser
	}
	var u model.User
	if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}
