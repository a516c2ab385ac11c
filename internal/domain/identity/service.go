package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
)

const minPasswordLen = 8

// Welcomer sends the post-registration email without blocking the request.
type Welcomer interface {
	NotifyWelcomeAsync(email, name string)
}

type Service struct {
	users    UserRepository
	tokens   *auth.TokenIssuer
	welcomer Welcomer
	hashCost int
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, welcomer Welcomer) *Service {
	return &Service{users: users, tokens: tokens, welcomer: welcomer, hashCost: bcrypt.DefaultCost}
}

// Register creates an active account and queues the welcome email once the
// row exists.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	nome := strings.TrimSpace(in.Nome)
	if nome == "" {
		return nil, &ValidationError{Field: "nome", Message: "Campo nome é obrigatório"}
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, &ValidationError{Field: "email", Message: "Email inválido"}
	}
	if utf8.RuneCountInString(in.Senha) < minPasswordLen {
		return nil, &ValidationError{Field: "senha", Message: fmt.Sprintf("A senha deve ter pelo menos %d caracteres", minPasswordLen)}
	}
	if in.CPF != nil {
		cpf := strings.TrimSpace(*in.CPF)
		if cpf == "" {
			in.CPF = nil
		} else {
			in.CPF = &cpf
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Senha), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Nome:         nome,
		Email:        email,
		PasswordHash: string(hash),
		TipoUsuario:  defaultUserType,
		CPF:          in.CPF,
		Ativo:        true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if s.welcomer != nil {
		s.welcomer.NotifyWelcomeAsync(u.Email, u.Nome)
	}
	return u, nil
}

// Login checks the password and issues an access token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Senha)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Ativo {
		return nil, ErrInactive
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: exp, User: u}, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// ResolvePrincipal implements auth.PrincipalResolver.
func (s *Service) ResolvePrincipal(ctx context.Context, userID int64) (auth.Principal, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return auth.Principal{}, auth.ErrUnknownPrincipal
	}
	if err != nil {
		return auth.Principal{}, err
	}
	return u.Principal(), nil
}
