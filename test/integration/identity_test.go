//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/SamuelFortes/plataforma-virtual/internal/domain/identity"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
)

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

func TestIdentity_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newIdentityService()
	email := uniqueEmail("maria")

	u, err := svc.Register(ctx, identity.RegisterInput{Nome: "Maria", Email: strings.ToUpper(email), Senha: "segredo123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != email || !u.Ativo || u.ID == 0 {
		t.Errorf("unexpected user %+v", u)
	}

	tok, err := svc.Login(ctx, identity.LoginInput{Email: email, Senha: "segredo123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok.AccessToken == "" || tok.User.ID != u.ID {
		t.Errorf("unexpected token response %+v", tok)
	}

	if _, err := svc.Login(ctx, identity.LoginInput{Email: email, Senha: "errada123"}); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
}

func TestIdentity_DuplicateEmailIgnoresCase(t *testing.T) {
	ctx := context.Background()
	svc := newIdentityService()
	email := uniqueEmail("joao")

	if _, err := svc.Register(ctx, identity.RegisterInput{Nome: "João", Email: email, Senha: "segredo123"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(ctx, identity.RegisterInput{Nome: "Outro", Email: strings.ToUpper(email), Senha: "segredo123"})
	if !errors.Is(err, identity.ErrEmailTaken) {
		t.Errorf("expected email taken, got %v", err)
	}
}

func TestIdentity_ResolvePrincipal(t *testing.T) {
	ctx := context.Background()
	svc := newIdentityService()

	u, err := svc.Register(ctx, identity.RegisterInput{Nome: "Ana", Email: uniqueEmail("ana"), Senha: "segredo123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	p, err := svc.ResolvePrincipal(ctx, u.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.ID != u.ID || p.Name != "Ana" || !p.Active {
		t.Errorf("unexpected principal %+v", p)
	}

	if _, err := globalPool.Exec(ctx, `UPDATE usuarios SET ativo = FALSE WHERE id = $1`, u.ID); err != nil {
		t.Fatal(err)
	}
	p, err = svc.ResolvePrincipal(ctx, u.ID)
	if err != nil || p.Active {
		t.Errorf("expected an inactive principal, got %+v (%v)", p, err)
	}

	if _, err := svc.ResolvePrincipal(ctx, 1<<40); !errors.Is(err, auth.ErrUnknownPrincipal) {
		t.Errorf("expected unknown principal, got %v", err)
	}
}
