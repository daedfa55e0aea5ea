package account

import (
    "context"
    "testing"

    "github.com/google/uuid"
    "github.com/stretchr/testify/require"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
    "github.com/finbooks/ledger/internal/storage/memory"
)

func setup(t *testing.T) (Service, *memory.Store, uuid.UUID) {
    t.Helper()
    store := memory.New()
    user := ledger.User{ID: uuid.New()}
    store.SeedUser(user)
    return New(store, store), store, user.ID
}

func TestCreateAccount(t *testing.T) {
    svc, _, userID := setup(t)
    ctx := context.Background()

    created, err := svc.Create(ctx, ledger.Account{
        UserID: userID,
        Code:   1000,
        Name:   "Cash",
        Type:   ledger.AccountTypeAsset,
    })
    require.NoError(t, err)
    require.NotEqual(t, uuid.Nil, created.ID)
    require.True(t, created.Active)

    got, err := svc.Get(ctx, userID, created.ID)
    require.NoError(t, err)
    require.Equal(t, created.ID, got.ID)
}

func TestCreateAccount_DuplicateCode(t *testing.T) {
    svc, _, userID := setup(t)
    ctx := context.Background()

    _, err := svc.Create(ctx, ledger.Account{UserID: userID, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)

    _, err = svc.Create(ctx, ledger.Account{UserID: userID, Code: 1000, Name: "Petty Cash", Type: ledger.AccountTypeAsset})
    require.ErrorIs(t, err, ErrCodeExists)
}

func TestValidateCreate(t *testing.T) {
    svc, _, userID := setup(t)
    ctx := context.Background()

    cases := []struct {
        name string
        in   ledger.Account
    }{
        {"missing user", ledger.Account{Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset}},
        {"missing name", ledger.Account{UserID: userID, Code: 1000, Type: ledger.AccountTypeAsset}},
        {"zero code", ledger.Account{UserID: userID, Name: "Cash", Type: ledger.AccountTypeAsset}},
        {"bad type", ledger.Account{UserID: userID, Code: 1000, Name: "Cash", Type: "piggybank"}},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            require.Error(t, svc.ValidateCreate(ctx, tc.in))
        })
    }
}

func TestCreateAccount_ParentRules(t *testing.T) {
    svc, _, userID := setup(t)
    ctx := context.Background()

    parent, err := svc.Create(ctx, ledger.Account{UserID: userID, Code: 1000, Name: "Current Assets", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)

    child, err := svc.Create(ctx, ledger.Account{UserID: userID, Code: 1010, Name: "Cash", Type: ledger.AccountTypeAsset, ParentID: &parent.ID})
    require.NoError(t, err)
    require.Equal(t, parent.ID, *child.ParentID)

    // Parent must exist.
    missing := uuid.New()
    _, err = svc.Create(ctx, ledger.Account{UserID: userID, Code: 1020, Name: "Savings", Type: ledger.AccountTypeAsset, ParentID: &missing})
    require.Error(t, err)

    // Parent type must match.
    _, err = svc.Create(ctx, ledger.Account{UserID: userID, Code: 4000, Name: "Sales", Type: ledger.AccountTypeRevenue, ParentID: &parent.ID})
    require.Error(t, err)

    // Parent code must be strictly lower.
    _, err = svc.Create(ctx, ledger.Account{UserID: userID, Code: 900, Name: "Vault", Type: ledger.AccountTypeAsset, ParentID: &parent.ID})
    require.Error(t, err)

    // Inactive parents cannot take new children.
    require.NoError(t, svc.Deactivate(ctx, userID, parent.ID))
    _, err = svc.Create(ctx, ledger.Account{UserID: userID, Code: 1030, Name: "Deposits", Type: ledger.AccountTypeAsset, ParentID: &parent.ID})
    require.Error(t, err)
}

func TestUpdateAccount_ParentCycle(t *testing.T) {
    svc, _, userID := setup(t)
    ctx := context.Background()

    a, err := svc.Create(ctx, ledger.Account{UserID: userID, Code: 1000, Name: "A", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)
    b, err := svc.Create(ctx, ledger.Account{UserID: userID, Code: 1010, Name: "B", Type: ledger.AccountTypeAsset, ParentID: &a.ID})
    require.NoError(t, err)

    // Re-pointing A under B would close a loop.
    a.ParentID = &b.ID
    _, err = svc.Update(ctx, a)
    require.Error(t, err)

    a.ParentID = &a.ID
    _, err = svc.Update(ctx, a)
    require.Error(t, err)
}

func TestUpdateAccount_IdentityImmutable(t *testing.T) {
    svc, _, userID := setup(t)
    ctx := context.Background()

    acc, err := svc.Create(ctx, ledger.Account{UserID: userID, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)

    changed := acc
    changed.Code = 1111
    _, err = svc.Update(ctx, changed)
    require.ErrorIs(t, err, errs.ErrImmutable)

    changed = acc
    changed.Type = ledger.AccountTypeExpense
    _, err = svc.Update(ctx, changed)
    require.ErrorIs(t, err, errs.ErrImmutable)

    acc.Name = "Cash on Hand"
    updated, err := svc.Update(ctx, acc)
    require.NoError(t, err)
    require.Equal(t, "Cash on Hand", updated.Name)
}

func TestDeactivateAccount(t *testing.T) {
    svc, _, userID := setup(t)
    ctx := context.Background()

    acc, err := svc.Create(ctx, ledger.Account{UserID: userID, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset})
    require.NoError(t, err)

    require.NoError(t, svc.Deactivate(ctx, userID, acc.ID))
    got, err := svc.Get(ctx, userID, acc.ID)
    require.NoError(t, err)
    require.False(t, got.Active)

    require.ErrorIs(t, svc.Deactivate(ctx, userID, uuid.New()), errs.ErrNotFound)
}
