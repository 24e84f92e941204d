// Package services – UserService
//
// UserService owns registration, email verification, profile maintenance, and
// account deletion. A user, its profile, and its first verification code are
// created in one transaction. Emails are sent after commit; a failed send is
// logged and never undoes the write. Replaced or orphaned profile images are
// removed from the asset store after commit with failures swallowed.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/assets"
	"github.com/tbourn/go-sufi-platform/internal/domain"
	smail "github.com/tbourn/go-sufi-platform/internal/mail"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/utils"
)

const (
	maxUsernameRunes = 150
	maxProfileRunes  = 100
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength       = 6
)

var errNoAssetStore = errors.New("asset store not configured")

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9@.+_-]+$`)

// UserService implements identity and profile use-cases.
type UserService struct {
	DB     *gorm.DB
	Mailer smail.Mailer
	Assets assets.Store

	// Now is the clock used for birth date checks; time.Now when nil.
	Now func() time.Time
}

// ProfileInput carries a partial profile update. Nil pointers leave the
// stored value untouched.
type ProfileInput struct {
	Username        *string
	Email           *string
	BirthDate       *time.Time
	ClearBirthDate  bool
	BirthPlace      *string
	CurrentLocation *string
	Education       *string
	Profession      *string
	About           *string

	// Image, when set, replaces the profile image.
	Image     io.Reader
	ImageName string
}

// ProfileView is everything shown on a public profile page.
type ProfileView struct {
	User        *domain.User
	Profile     *domain.Profile
	Contents    []domain.Content
	Total       int64
	Followers   int64
	Following   int64
	IsFollowing bool
}

// Register creates a user with an empty profile and mails a verification
// code.
func (s *UserService) Register(ctx context.Context, username, email string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var (
		user *domain.User
		code string
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(ctx, tx, username, email, ""); err != nil {
			return err
		}
		u, err := repo.CreateUser(ctx, tx, username, email)
		if err != nil {
			if repo.IsUniqueViolation(err) {
				return fieldErr("username", ErrUsernameTaken)
			}
			return err
		}
		if _, err := repo.CreateProfile(ctx, tx, u.ID); err != nil {
			return err
		}
		code, err = newCode()
		if err != nil {
			return err
		}
		if _, err := repo.UpsertVerification(ctx, tx, u.ID, code); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))
	s.sendCode(ctx, user.Email, code)
	return user, nil
}

// Verify marks the user owning code as verified.
func (s *UserService) Verify(ctx context.Context, code string) (*domain.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return nil, fieldErr("code", ErrInvalidCode)
	}
	var user *domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := repo.FindPendingVerification(ctx, tx, code)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fieldErr("code", ErrInvalidCode)
			}
			return err
		}
		if err := repo.SetUserVerified(ctx, tx, v.UserID, true); err != nil {
			return err
		}
		user, err = repo.GetUser(ctx, tx, v.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ResendVerification issues a fresh code for an unverified address.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.IsVerified {
		return ErrAlreadyVerified
	}
	code, err := newCode()
	if err != nil {
		return err
	}
	if _, err := repo.UpsertVerification(ctx, s.DB, u.ID, code); err != nil {
		return err
	}
	s.sendCode(ctx, u.Email, code)
	return nil
}

// GetByID returns a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByUsername returns a user by handle.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := repo.GetUserByUsername(ctx, s.DB, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Profile returns the profile of userID.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return p, nil
}

// UpdateProfile applies in to the user and profile of userID.
//
// Changing the email clears the verified flag and mails a new code. A new
// image is stored before the transaction; the previous image is deleted
// after commit, or the new one when the transaction fails.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*domain.User, *domain.Profile, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "UpdateProfile",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if err := s.validateProfile(&in); err != nil {
		return nil, nil, err
	}

	var newImage string
	if in.Image != nil {
		if s.Assets == nil {
			return nil, nil, errNoAssetStore
		}
		id, err := s.Assets.Put(ctx, in.ImageName, in.Image)
		if err != nil {
			return nil, nil, err
		}
		newImage = id
	}

	var (
		user     *domain.User
		profile  *domain.Profile
		oldImage string
		code     string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		p, err := repo.GetProfile(ctx, tx, userID)
		if err != nil {
			return err
		}

		if in.Username != nil && *in.Username != u.Username {
			if taken, err := repo.UsernameTaken(ctx, tx, *in.Username, u.ID); err != nil {
				return err
			} else if taken {
				return fieldErr("username", ErrUsernameTaken)
			}
			if err := repo.UpdateUsername(ctx, tx, u.ID, *in.Username); err != nil {
				return err
			}
			u.Username = *in.Username
		}
		if in.Email != nil && !strings.EqualFold(*in.Email, u.Email) {
			if taken, err := repo.EmailTaken(ctx, tx, *in.Email, u.ID); err != nil {
				return err
			} else if taken {
				return fieldErr("email", ErrEmailTaken)
			}
			if err := repo.UpdateUserEmail(ctx, tx, u.ID, *in.Email); err != nil {
				return err
			}
			if code, err = newCode(); err != nil {
				return err
			}
			if _, err := repo.UpsertVerification(ctx, tx, u.ID, code); err != nil {
				return err
			}
			u.Email, u.IsVerified = *in.Email, false
		}

		applyProfile(p, in)
		if newImage != "" {
			oldImage, p.Image = p.Image, newImage
		}
		if err := repo.SaveProfile(ctx, tx, p); err != nil {
			return err
		}
		user, profile = u, p
		return nil
	})
	if err != nil {
		if newImage != "" {
			assets.DeleteQuietly(ctx, s.Assets, newImage)
		}
		return nil, nil, err
	}

	if oldImage != "" && oldImage != newImage {
		assets.DeleteQuietly(ctx, s.Assets, oldImage)
	}
	if code != "" {
		s.sendCode(ctx, user.Email, code)
	}
	return user, profile, nil
}

// Delete removes the account of userID. Authored content, comments, likes,
// messages, and notifications survive without the reference.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	var image string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p, err := repo.GetProfile(ctx, tx, userID); err == nil {
			image = p.Image
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := repo.DeleteUser(ctx, tx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	assets.DeleteQuietly(ctx, s.Assets, image)
	return nil
}

// ProfileView loads a public profile with its published contents (newest
// first, optionally filtered by content type), follow counts, and whether
// viewerID follows the user. viewerID may be empty.
func (s *UserService) ProfileView(ctx context.Context, username, viewerID, contentType string, page, pageSize int) (*ProfileView, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "ProfileView",
		trace.WithAttributes(attribute.String("username", username)),
	)
	defer span.End()

	if contentType != "" && !domain.ValidChoice(contentType, domain.ContentTypes) {
		return nil, fieldErr("content_type", ErrInvalidChoice)
	}
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	p, err := repo.GetProfile(ctx, s.DB, u.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	v := &ProfileView{User: u, Profile: p, Contents: []domain.Content{}}
	if v.Followers, err = repo.CountFollowers(ctx, s.DB, u.ID); err != nil {
		return nil, err
	}
	if v.Following, err = repo.CountFollowing(ctx, s.DB, u.ID); err != nil {
		return nil, err
	}
	if viewerID != "" && viewerID != u.ID {
		if v.IsFollowing, err = repo.IsFollowing(ctx, s.DB, viewerID, u.ID); err != nil {
			return nil, err
		}
	}

	f := repo.ContentFilter{AuthorID: u.ID, ContentType: contentType}
	_, size, offset := utils.PageBounds(page, pageSize, 0)
	if v.Total, err = repo.CountContents(ctx, s.DB, f); err != nil {
		return nil, err
	}
	if v.Total > 0 {
		if v.Contents, err = repo.ListContentsPage(ctx, s.DB, f, offset, size); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s *UserService) validateProfile(in *ProfileInput) error {
	if in.Username != nil {
		u, err := normalizeUsername(*in.Username)
		if err != nil {
			return err
		}
		in.Username = &u
	}
	if in.Email != nil {
		e, err := normalizeEmail(*in.Email)
		if err != nil {
			return err
		}
		in.Email = &e
	}
	if in.BirthDate != nil {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		y, m, d := now().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		by, bm, bd := in.BirthDate.Date()
		if time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).After(today) {
			return fieldErr("birth_date", ErrBirthDateInFuture)
		}
	}
	for field, v := range map[string]*string{
		"birth_place":      in.BirthPlace,
		"current_location": in.CurrentLocation,
		"education":        in.Education,
		"profession":       in.Profession,
	} {
		if v == nil {
			continue
		}
		t := plainText(*v)
		if tooLong(t, maxProfileRunes) {
			return fieldErr(field, ErrFieldTooLong)
		}
		*v = t
	}
	if in.About != nil {
		a := sanitizeRich(*in.About)
		in.About = &a
	}
	return nil
}

func applyProfile(p *domain.Profile, in ProfileInput) {
	switch {
	case in.ClearBirthDate:
		p.BirthDate = nil
	case in.BirthDate != nil:
		bd := in.BirthDate.UTC()
		p.BirthDate = &bd
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.BirthPlace, in.BirthPlace)
	set(&p.CurrentLocation, in.CurrentLocation)
	set(&p.Education, in.Education)
	set(&p.Profession, in.Profession)
	set(&p.About, in.About)
}

func (s *UserService) sendCode(ctx context.Context, to, code string) {
	if s.Mailer == nil {
		return
	}
	err := s.Mailer.Send(ctx, []string{to}, "Email Verification", "Your verification code is "+code+".")
	if err != nil {
		logger(ctx).Error().Err(err).Msg("send verification email")
	}
}

func ensureUnique(ctx context.Context, tx *gorm.DB, username, email, exceptID string) error {
	if taken, err := repo.UsernameTaken(ctx, tx, username, exceptID); err != nil {
		return err
	} else if taken {
		return fieldErr("username", ErrUsernameTaken)
	}
	if taken, err := repo.EmailTaken(ctx, tx, email, exceptID); err != nil {
		return err
	} else if taken {
		return fieldErr("email", ErrEmailTaken)
	}
	return nil
}

func normalizeUsername(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || tooLong(s, maxUsernameRunes) || !usernameRE.MatchString(s) {
		return "", fieldErr("username", ErrInvalidUsername)
	}
	return s, nil
}

func normalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || tooLong(s, 254) {
		return "", fieldErr("email", ErrInvalidEmail)
	}
	return s, nil
}

// newCode returns a random verification code of codeLength characters from
// codeAlphabet.
func newCode() (string, error) {
	b := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
