package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestAccountStore_CreateAndGet(t *testing.T) {
	store := NewAccountStore(testDB(t))
	ctx := context.Background()

	a := &Account{
		Nipol: "jdupont",
		Profile: Profile{
			FirstName: "Jean",
			LastName:  "Dupont",
			Email:     "jean@example.com",
			RPGrade:   "Brigadier",
			RPServer:  "FR-1",
		},
		Rank:         RankPlayer,
		TempPassword: true,
		PasswordHash: "$argon2id$placeholder",
	}
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.ID == 0 {
		t.Fatal("Create() should assign an id")
	}
	if a.InscriptionStatus != InscriptionPending {
		t.Errorf("InscriptionStatus = %q, want pending", a.InscriptionStatus)
	}

	got, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Nipol != "jdupont" || got.Rank != RankPlayer || got.Version != 0 {
		t.Errorf("GetByID() = %s/%s/v%d", got.Nipol, got.Rank, got.Version)
	}
	if got.Profile != a.Profile {
		t.Errorf("Profile = %+v, want %+v", got.Profile, a.Profile)
	}
	if !got.TempPassword {
		t.Error("TempPassword should round-trip")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	byNipol, err := store.GetByNipol(ctx, "jdupont")
	if err != nil {
		t.Fatalf("GetByNipol() error = %v", err)
	}
	if byNipol.ID != a.ID {
		t.Errorf("GetByNipol() id = %d, want %d", byNipol.ID, a.ID)
	}
}

func TestAccountStore_DuplicateNipol(t *testing.T) {
	store := NewAccountStore(testDB(t))
	seedAccount(t, store, "jdupont", RankPlayer)

	err := store.Create(context.Background(), &Account{Nipol: "jdupont", Rank: RankMod, PasswordHash: "x"})
	if !errors.Is(err, ErrNipolExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrNipolExists", err)
	}
}

func TestAccountStore_GetByIDAndNipol(t *testing.T) {
	store := NewAccountStore(testDB(t))
	ctx := context.Background()
	a := seedAccount(t, store, "alpha", RankPlayer)
	b := seedAccount(t, store, "bravo", RankPlayer)

	if _, err := store.GetByIDAndNipol(ctx, a.ID, "alpha"); err != nil {
		t.Fatalf("matching pair: %v", err)
	}
	if _, err := store.GetByIDAndNipol(ctx, a.ID, "bravo"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("id of alpha with nipol of bravo: error = %v, want ErrAccountNotFound", err)
	}
	if _, err := store.GetByIDAndNipol(ctx, b.ID+100, "bravo"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("unknown id: error = %v, want ErrAccountNotFound", err)
	}
}

func TestAccountStore_ListCountDelete(t *testing.T) {
	store := NewAccountStore(testDB(t))
	ctx := context.Background()

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("List() on empty store = %d accounts", len(list))
	}

	a := seedAccount(t, store, "alpha", RankAdmin)
	seedAccount(t, store, "bravo", RankPlayer)

	list, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Nipol != "alpha" || list[1].Nipol != "bravo" {
		t.Errorf("List() = %+v", list)
	}

	if err := store.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, a.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("second Delete() error = %v, want ErrAccountNotFound", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestAccountStore_BumpVersion(t *testing.T) {
	store := NewAccountStore(testDB(t))
	ctx := context.Background()
	a := seedAccount(t, store, "jdupont", RankPlayer)

	for want := int64(1); want <= 3; want++ {
		got, err := store.BumpVersion(ctx, a.ID, nil)
		if err != nil {
			t.Fatalf("BumpVersion() error = %v", err)
		}
		if got != want {
			t.Errorf("BumpVersion() = %d, want %d", got, want)
		}
	}

	hash, temp, rank := "$argon2id$new", false, RankMod
	got, err := store.BumpVersion(ctx, a.ID, &AccountChange{PasswordHash: &hash, TempPassword: &temp, Rank: &rank})
	if err != nil {
		t.Fatalf("BumpVersion(change) error = %v", err)
	}
	if got != 4 {
		t.Errorf("BumpVersion(change) = %d, want 4", got)
	}

	stored, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Version != 4 || stored.PasswordHash != hash || stored.TempPassword || stored.Rank != RankMod {
		t.Errorf("stored = v%d %q temp=%v %s", stored.Version, stored.PasswordHash, stored.TempPassword, stored.Rank)
	}
}

func TestAccountStore_BumpVersionUnknown(t *testing.T) {
	store := NewAccountStore(testDB(t))

	if _, err := store.BumpVersion(context.Background(), 999, nil); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("BumpVersion(999) error = %v, want ErrAccountNotFound", err)
	}
}

func TestAccountStore_ConcurrentBumpsAreNotLost(t *testing.T) {
	store := NewAccountStore(testDB(t))
	a := seedAccount(t, store, "jdupont", RankPlayer)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.BumpVersion(context.Background(), a.ID, nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("BumpVersion() error = %v", err)
	}

	stored, err := store.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Version != workers {
		t.Errorf("Version = %d, want %d", stored.Version, workers)
	}
}

func TestAccountStore_BumpAllVersions(t *testing.T) {
	store := NewAccountStore(testDB(t))
	ctx := context.Background()
	a := seedAccount(t, store, "alpha", RankOwner)
	b := seedAccount(t, store, "bravo", RankPlayer)
	if _, err := store.BumpVersion(ctx, b.ID, nil); err != nil {
		t.Fatalf("BumpVersion() error = %v", err)
	}

	n, err := store.BumpAllVersions(ctx)
	if err != nil {
		t.Fatalf("BumpAllVersions() error = %v", err)
	}
	if n != 2 {
		t.Errorf("BumpAllVersions() = %d, want 2", n)
	}

	for id, want := range map[int64]int64{a.ID: 1, b.ID: 2} {
		got, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%d) error = %v", id, err)
		}
		if got.Version != want {
			t.Errorf("account %d version = %d, want %d", id, got.Version, want)
		}
	}
}
