// Package account implements chart-of-accounts rules: numeric codes, a shared
// tree with no cycles, immutable identity fields, and soft-deletes.
package account

import (
    "context"
    "errors"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
    ListAccounts(ctx context.Context, userID uuid.UUID) ([]ledger.Account, error)
    GetAccount(ctx context.Context, userID, accountID uuid.UUID) (ledger.Account, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
    CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
    UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
}

// Service exposes validation and lifecycle operations for accounts.
type Service interface {
    ValidateCreate(ctx context.Context, a ledger.Account) error
    Create(ctx context.Context, a ledger.Account) (ledger.Account, error)
    List(ctx context.Context, userID uuid.UUID) ([]ledger.Account, error)
    Get(ctx context.Context, userID, accountID uuid.UUID) (ledger.Account, error)
    Update(ctx context.Context, a ledger.Account) (ledger.Account, error)
    Deactivate(ctx context.Context, userID, accountID uuid.UUID) error
}

type service struct {
    repo   Repo
    writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// ErrCodeExists indicates an account with the same code already exists for the user.
var ErrCodeExists = errors.New("account code already exists for user")

func (s *service) ValidateCreate(ctx context.Context, a ledger.Account) error {
    if a.UserID == uuid.Nil {
        return errs.ErrInvalid
    }
    if a.Name == "" {
        return errs.Invalidf("name is required")
    }
    if a.Code <= 0 {
        return errs.Invalidf("code must be a positive number")
    }
    if !a.Type.Valid() {
        return errs.Invalidf("invalid account type")
    }
    if a.ParentID != nil {
        return s.validateParent(ctx, a, *a.ParentID)
    }
    return nil
}

// validateParent checks the parent link: it must exist, share the account's
// type, sit strictly lower in the chart (smaller code), and not close a cycle.
func (s *service) validateParent(ctx context.Context, a ledger.Account, parentID uuid.UUID) error {
    if parentID == a.ID {
        return errs.Invalidf("account cannot be its own parent")
    }
    parent, err := s.repo.GetAccount(ctx, a.UserID, parentID)
    if err != nil {
        if errors.Is(err, errs.ErrNotFound) {
            return errs.Invalidf("parent account not found")
        }
        return err
    }
    if !parent.Active {
        return errs.Invalidf("parent account is inactive")
    }
    if parent.Type != a.Type {
        return errs.Invalidf("parent account type must match")
    }
    if parent.Code >= a.Code {
        return errs.Invalidf("parent code must be lower than child code")
    }
    // Walk up to the root; hitting the account again means a cycle.
    seen := map[uuid.UUID]struct{}{a.ID: {}}
    cur := parent
    for cur.ParentID != nil {
        next := *cur.ParentID
        if _, ok := seen[next]; ok {
            return errs.Invalidf("parent link would create a cycle")
        }
        seen[cur.ID] = struct{}{}
        var err error
        cur, err = s.repo.GetAccount(ctx, a.UserID, next)
        if err != nil {
            return err
        }
    }
    return nil
}

func (s *service) Create(ctx context.Context, a ledger.Account) (ledger.Account, error) {
    if err := s.ValidateCreate(ctx, a); err != nil {
        return ledger.Account{}, err
    }
    existing, err := s.repo.ListAccounts(ctx, a.UserID)
    if err != nil {
        return ledger.Account{}, err
    }
    for _, other := range existing {
        if other.Code == a.Code {
            return ledger.Account{}, ErrCodeExists
        }
    }
    a.ID = uuid.New()
    a.Active = true
    return s.writer.CreateAccount(ctx, a)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]ledger.Account, error) {
    if userID == uuid.Nil {
        return nil, errs.ErrInvalid
    }
    return s.repo.ListAccounts(ctx, userID)
}

func (s *service) Get(ctx context.Context, userID, accountID uuid.UUID) (ledger.Account, error) {
    if userID == uuid.Nil || accountID == uuid.Nil {
        return ledger.Account{}, errs.ErrInvalid
    }
    return s.repo.GetAccount(ctx, userID, accountID)
}

// Update applies changes to name and parent. Code and type are identity and
// stay fixed once the account exists.
func (s *service) Update(ctx context.Context, a ledger.Account) (ledger.Account, error) {
    if a.UserID == uuid.Nil || a.ID == uuid.Nil {
        return ledger.Account{}, errs.ErrInvalid
    }
    current, err := s.repo.GetAccount(ctx, a.UserID, a.ID)
    if err != nil {
        return ledger.Account{}, err
    }
    if current.Type != a.Type || current.Code != a.Code {
        return ledger.Account{}, errs.ErrImmutable
    }
    if a.Name == "" {
        return ledger.Account{}, errs.Invalidf("name is required")
    }
    if a.ParentID != nil {
        if err := s.validateParent(ctx, a, *a.ParentID); err != nil {
            return ledger.Account{}, err
        }
    }
    a.Active = current.Active
    return s.writer.UpdateAccount(ctx, a)
}

// Deactivate sets Active=false (soft delete). Rows are never physically
// removed so historical journal lines keep a valid account reference.
func (s *service) Deactivate(ctx context.Context, userID, accountID uuid.UUID) error {
    if userID == uuid.Nil || accountID == uuid.Nil {
        return errs.ErrInvalid
    }
    acc, err := s.repo.GetAccount(ctx, userID, accountID)
    if err != nil {
        return err
    }
    acc.Active = false
    _, err = s.writer.UpdateAccount(ctx, acc)
    return err
}
