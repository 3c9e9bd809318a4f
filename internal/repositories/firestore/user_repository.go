package firestore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/foodhub/api/internal/domain"
	pfirestore "github.com/foodhub/api/internal/platform/firestore"
	"github.com/foodhub/api/internal/repositories"
)

const usersCollection = "users"

// UserRepository reads user profiles and maintains their push tokens.
type UserRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.Collection[domain.User]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		provider: provider,
		users:    pfirestore.NewCollection(provider, usersCollection, decodeUser),
	}, nil
}

// FindByID loads a user.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	return r.users.Get(ctx, userID)
}

// FindByIDs batch-loads users in request order; missing users are skipped.
func (r *UserRepository) FindByIDs(ctx context.Context, userIDs []string) ([]domain.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		ref, err := r.users.Doc(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("users.getAll", err)
	}
	users := make([]domain.User, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		user, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// ListByType pages through users of one type in document ID order.
func (r *UserRepository) ListByType(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.User], error) {
	cursor, err := pageCursor(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.User]{}, err
	}
	page, err := r.users.Paginate(ctx, func(q firestore.Query) firestore.Query {
		if filter.Type != "" {
			q = q.Where("type", "==", string(filter.Type))
		}
		return q.OrderBy(firestore.DocumentID, firestore.Asc)
	}, filter.Pagination.PageSize, cursor)
	if err != nil {
		return domain.CursorPage[domain.User]{}, err
	}
	return toCursorPage(page.Items, page.NextCursor), nil
}

// AddFCMToken appends the token as the newest entry, evicting the oldest beyond max.
func (r *UserRepository) AddFCMToken(ctx context.Context, userID string, token string, max int) ([]string, error) {
	ref, err := r.users.Doc(ctx, userID)
	if err != nil {
		return nil, err
	}
	var tokens []string
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		user, err := r.users.GetTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		tokens = appendToken(user.FCMTokens, token, max)
		return tx.Update(ref, []firestore.Update{
			{Path: "fcmTokens", Value: tokens},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return nil, pfirestore.WrapError("users.addFcmToken", err)
	}
	return tokens, nil
}

func appendToken(current []string, token string, max int) []string {
	tokens := slices.DeleteFunc(slices.Clone(current), func(t string) bool { return t == token })
	tokens = append(tokens, token)
	if max > 0 && len(tokens) > max {
		tokens = tokens[len(tokens)-max:]
	}
	return tokens
}

// RemoveFCMTokens drops the given tokens from the user.
func (r *UserRepository) RemoveFCMTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	ref, err := r.users.Doc(ctx, userID)
	if err != nil {
		return err
	}
	values := make([]any, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t)
	}
	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "fcmTokens", Value: firestore.ArrayRemove(values...)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return pfirestore.WrapError("users.removeFcmTokens", err)
}

type userDocument struct {
	Name          string    `firestore:"name"`
	Email         string    `firestore:"email,omitempty"`
	Phone         string    `firestore:"phone,omitempty"`
	EmailVerified bool      `firestore:"emailVerified"`
	PhoneVerified bool      `firestore:"phoneVerified"`
	Type          string    `firestore:"type"`
	RefreshToken  string    `firestore:"refreshToken,omitempty"`
	FCMTokens     []string  `firestore:"fcmTokens"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func decodeUser(snap *firestore.DocumentSnapshot) (domain.User, error) {
	var doc userDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.User{}, err
	}
	userType := domain.UserType(doc.Type)
	if !userType.Valid() {
		userType = domain.UserTypeCustomer
	}
	return domain.User{
		ID:            snap.Ref.ID,
		Name:          doc.Name,
		Email:         doc.Email,
		Phone:         doc.Phone,
		EmailVerified: doc.EmailVerified,
		PhoneVerified: doc.PhoneVerified,
		Type:          userType,
		LoggedIn:      doc.RefreshToken != "",
		FCMTokens:     cloneStrings(doc.FCMTokens),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}
