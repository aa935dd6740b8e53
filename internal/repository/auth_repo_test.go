package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewUserRepository(db), mock
}

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		expect  func(sqlmock.Sqlmock)
		wantID  int
		wantErr string
	}{
		{
			name: "inserted",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("gardener", "hash").
					WillReturnResult(sqlmock.NewResult(3, 1))
			},
			wantID: 3,
		},
		{
			name: "duplicate username",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("gardener", "hash").
					WillReturnError(errors.New("UNIQUE constraint failed: users.username"))
			},
			wantErr: "insert user",
		},
		{
			name: "no last insert id",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("gardener", "hash").
					WillReturnResult(sqlmock.NewErrorResult(errors.New("unsupported")))
			},
			wantErr: "last insert id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newUserRepo(t)
			tt.expect(mock)

			id, err := repo.Create("gardener", "hash")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || id != tt.wantID {
				t.Fatalf("Create = %d, %v; want %d", id, err, tt.wantID)
			}
		})
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("gardener").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).AddRow(1, "gardener", "h"))

		u, err := repo.GetByUsername("gardener")
		if err != nil || u == nil || u.ID != 1 || u.PasswordHash != "h" {
			t.Fatalf("GetByUsername = %+v, %v", u, err)
		}
	})

	t.Run("missing user is not an error", func(t *testing.T) {
		repo, mock := newUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("nobody").
			WillReturnError(sql.ErrNoRows)

		u, err := repo.GetByUsername("nobody")
		if err != nil || u != nil {
			t.Fatalf("GetByUsername = %+v, %v; want nil, nil", u, err)
		}
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("gardener").
			WillReturnError(errors.New("disk I/O error"))

		if _, err := repo.GetByUsername("gardener"); err == nil || !strings.Contains(err.Error(), "select user") {
			t.Fatalf("err = %v", err)
		}
	})
}
