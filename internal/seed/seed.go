// Package seed loads initial users, typically the bootstrap ADMIN, from a YAML file.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"devboard/internal/logger"
	"devboard/internal/models/user"
	"devboard/internal/service"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type File struct {
	Users []User `yaml:"users"`
}

type User struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Role      string `yaml:"role"`
	IsActive  *bool  `yaml:"isActive"`
}

type UserCreator interface {
	EnsureUser(ctx context.Context, in service.CreateUserInput) (*user.User, bool, error)
}

type Result struct {
	Created []string
	Skipped []string
}

func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply creates every user whose email is not yet registered. It stops at the first
// invalid entry; users created before it are kept.
func Apply(ctx context.Context, users UserCreator, f *File) (Result, error) {
	var res Result
	for i, u := range f.Users {
		created, isNew, err := users.EnsureUser(ctx, service.CreateUserInput{
			Email:     u.Email,
			Password:  u.Password,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      user.Role(u.Role),
			IsActive:  u.IsActive,
		})
		if err != nil {
			return res, fmt.Errorf("seed user #%d (%s): %w", i+1, u.Email, err)
		}
		if !isNew {
			res.Skipped = append(res.Skipped, created.Email)
			continue
		}
		res.Created = append(res.Created, created.Email)
		logger.Info("Seed: user created",
			zap.String("email", created.Email),
			zap.String("role", string(created.Role)))
	}
	return res, nil
}

// ApplyFile loads path and applies it.
func ApplyFile(ctx context.Context, users UserCreator, path string) (Result, error) {
	f, err := LoadFile(path)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, users, f)
}
