package identity

import (
	"errors"
	"time"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
)

const defaultUserType = "USER"

// User maps to the usuarios table. The password hash never leaves the
// package.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Nome         string    `db:"nome" json:"nome"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"senha_hash" json:"-"`
	TipoUsuario  string    `db:"tipo_usuario" json:"tipo_usuario"`
	CPF          *string   `db:"cpf" json:"cpf,omitempty"`
	Ativo        bool      `db:"ativo" json:"ativo"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Name: u.Nome, Email: u.Email, Active: u.Ativo}
}

type RegisterInput struct {
	Nome  string  `json:"nome"`
	Email string  `json:"email"`
	Senha string  `json:"senha"`
	CPF   *string `json:"cpf"`
}

type LoginInput struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

var (
	ErrUserNotFound       = errors.New("Usuário não encontrado")
	ErrEmailTaken         = errors.New("Email já cadastrado")
	ErrInvalidCredentials = errors.New("Email ou senha inválidos")
	ErrInactive           = errors.New("Usuário inativo")
)

// ValidationError rejects a registration field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Message }
