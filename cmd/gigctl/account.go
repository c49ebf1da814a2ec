package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sudo-init-do/gighub/internal/gateway"
	"github.com/sudo-init-do/gighub/internal/session"
)

func signIn(ctx context.Context, a *app, res *gateway.AuthResponse) error {
	id := session.Identity{ID: res.User.ID, Email: res.User.Email, FullName: res.User.FullName, Role: res.User.Role}
	if err := a.session.SignIn(ctx, res.Token, id); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", id.Email, id.Role)
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var req gateway.RegisterRequest
	fs.StringVar(&req.Email, "email", "", "email")
	fs.StringVar(&req.Password, "password", "", "password")
	fs.StringVar(&req.FullName, "name", "", "full name")
	fs.StringVar(&req.Role, "role", "client", "client or freelancer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.api.Auth().Register(ctx, req)
	if err != nil {
		return err
	}
	return signIn(ctx, a, res)
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	var req gateway.LoginRequest
	fs.StringVar(&req.Email, "email", "", "email")
	fs.StringVar(&req.Password, "password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.api.Auth().Login(ctx, req)
	if err != nil {
		return err
	}
	return signIn(ctx, a, res)
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

// cmdWhoami re-reads the account so a revoked token is noticed.
func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	if _, err := a.require(""); err != nil {
		return err
	}
	u, err := a.api.Auth().Me(ctx)
	if err != nil {
		return err
	}
	if err := a.session.SetIdentity(ctx, &session.Identity{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}); err != nil {
		return err
	}
	fmt.Printf("%s  %s <%s>  %s\n", u.ID, u.FullName, u.Email, u.Role)
	return nil
}
