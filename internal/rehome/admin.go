package rehome

import (
	"context"
	"crypto/md5" // nolint:gosec
	"encoding/hex"

	"github.com/lodthe/container-from-sqldump/internal/sitedb"
	"github.com/lodthe/container-from-sqldump/pkg/phpserialize"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// registeredPlaceholder is stored as user_registered of the seeded admin.
const registeredPlaceholder = "2011-06-07 00:00:00"

// adminUserLevel is the legacy numeric level of administrators.
const adminUserLevel = "10"

// Account is the known administrative account injected into the restored site.
type Account struct {
	Login    string
	Email    string
	Password string

	// DisplayName defaults to Login.
	DisplayName string
}

// PasswordHasher produces the value stored in user_pass.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// MD5Hasher produces plain md5 hex digests. WordPress accepts them
// and rehashes the password on the first successful login.
type MD5Hasher struct{}

func (MD5Hasher) Hash(password string) (string, error) {
	sum := md5.Sum([]byte(password)) // nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}

// BcryptHasher produces bcrypt hashes, they are verified by WordPress 6.8+ through password_verify().
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt failed")
	}

	return string(hash), nil
}

// NewHasher returns a hasher by its scheme name: md5 (default) or bcrypt.
func NewHasher(scheme string) (PasswordHasher, error) {
	switch scheme {
	case "", "md5":
		return MD5Hasher{}, nil

	case "bcrypt":
		return BcryptHasher{}, nil

	default:
		return nil, errors.Errorf("unknown password hash scheme %s (supported: md5, bcrypt)", scheme)
	}
}

// SeedAdmin inserts the account into {prefix}users, finds its ID by email and grants it
// the administrator capability in {prefix}usermeta.
//
// An existing login makes the insert a no-op. ErrAdminNotFound is returned when nothing was inserted
// or when the row found by email is not the inserted one, e.g. an older account shares the email.
func SeedAdmin(ctx context.Context, store Store, hasher PasswordHasher, prefix string, account Account) (int64, error) {
	hash, err := hasher.Hash(account.Password)
	if err != nil {
		return 0, errors.Wrap(err, "failed to hash password")
	}

	displayName := account.DisplayName
	if displayName == "" {
		displayName = account.Login
	}

	insertedID, err := store.InsertUser(ctx, prefix, sitedb.User{
		Login:         account.Login,
		PasswordHash:  hash,
		Nicename:      account.Login,
		Email:         account.Email,
		Registered:    registeredPlaceholder,
		ActivationKey: "",
		Status:        0,
		DisplayName:   displayName,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert admin")
	}
	if insertedID == 0 {
		return 0, errors.Wrapf(ErrAdminNotFound, "insert of %s affected no rows", account.Login)
	}

	userID, found, err := store.FindUserIDByEmail(ctx, prefix, account.Email)
	if err != nil {
		return 0, errors.Wrap(err, "failed to find admin")
	}
	if !found {
		return 0, errors.Wrapf(ErrAdminNotFound, "no user with email %s", account.Email)
	}
	if userID != insertedID {
		return 0, errors.Wrapf(ErrAdminNotFound, "email %s belongs to user %d, inserted %d", account.Email, userID, insertedID)
	}

	meta := []sitedb.UserMeta{
		{
			UserID: userID,
			Key:    prefix + "capabilities",
			Value:  phpserialize.EncodeStringMap([]phpserialize.Pair{{Key: "administrator", Value: "1"}}),
		},
		{
			UserID: userID,
			Key:    prefix + "user_level",
			Value:  adminUserLevel,
		},
	}

	for _, m := range meta {
		err = store.InsertUserMeta(ctx, prefix, m)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to grant %s", m.Key)
		}
	}

	return userID, nil
}
