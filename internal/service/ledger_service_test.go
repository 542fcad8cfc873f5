package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fund-directory/internal/model"
	"fund-directory/internal/repository"
	"fund-directory/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===== MOCKS =====

type MockRefreshTokenStore struct {
	mock.Mock
}

func (m *MockRefreshTokenStore) Insert(ctx context.Context, token *model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenStore) FindByID(ctx context.Context, id string) (*model.RefreshToken, error) {
	args := m.Called(ctx, id)
	if token, ok := args.Get(0).(*model.RefreshToken); ok {
		return token, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefreshTokenStore) Rotate(ctx context.Context, presentedID string, successor *model.RefreshToken) error {
	args := m.Called(ctx, presentedID, successor)
	return args.Error(0)
}

func (m *MockRefreshTokenStore) RevokeFamily(ctx context.Context, family string, at time.Time) (int64, error) {
	args := m.Called(ctx, family, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) ([]string, error) {
	args := m.Called(ctx, userID, at)
	families, _ := args.Get(0).([]string)
	return families, args.Error(1)
}

// ===== HELPERS =====

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

var testClient = model.ClientInfo{UserAgent: "test-agent", IpAddress: "127.0.0.1"}

func newTestLedger(clock *testClock) (*service.LedgerService, *repository.MemoryRefreshTokenRepository) {
	store := repository.NewMemoryRefreshTokenRepository()
	return service.NewLedgerService(store, time.Hour).WithClock(clock.Now), store
}

// ===== TESTS =====

// 1. Цепочка из N ротаций: одно семейство, каждая строка ссылается на следующую
func TestLedger_RotationChain(t *testing.T) {
	ctx := context.Background()
	ledger, store := newTestLedger(&testClock{current: t0})
	family := uuid.NewString()

	first, err := ledger.RecordIssuance(ctx, "user-1", family, testClient)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), first.ExpiresAt)

	chain := []*model.RefreshToken{first}
	for i := 0; i < 5; i++ {
		next, err := ledger.Rotate(ctx, chain[len(chain)-1].ID, testClient)
		require.NoError(t, err)
		assert.Equal(t, family, next.TokenFamily)
		assert.Equal(t, "user-1", next.UserID)
		chain = append(chain, next)
	}

	for i := 0; i < len(chain)-1; i++ {
		stored, err := store.FindByID(ctx, chain[i].ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ReplacedByTokenID)
		assert.Equal(t, chain[i+1].ID, *stored.ReplacedByTokenID)
		assert.Nil(t, stored.RevokedAt)
	}

	last, err := store.FindByID(ctx, chain[len(chain)-1].ID)
	require.NoError(t, err)
	assert.True(t, last.IsCurrent())
	assert.Len(t, store.Family(family), 6)
}

// 2. Повторное предъявление заменённого токена убивает всё семейство
func TestLedger_ReuseRevokesFamily(t *testing.T) {
	ctx := context.Background()
	ledger, store := newTestLedger(&testClock{current: t0})
	family := uuid.NewString()

	t0Token, err := ledger.RecordIssuance(ctx, "user-1", family, testClient)
	require.NoError(t, err)
	t1Token, err := ledger.Rotate(ctx, t0Token.ID, testClient)
	require.NoError(t, err)

	_, err = ledger.Rotate(ctx, t0Token.ID, testClient)
	require.ErrorIs(t, err, model.ErrTokenReused)

	var reuseErr *model.ReuseError
	require.True(t, errors.As(err, &reuseErr))
	assert.Equal(t, family, reuseErr.TokenFamily)
	assert.Equal(t, "user-1", reuseErr.UserID)
	assert.Equal(t, t0Token.ID, reuseErr.TokenID)

	for _, token := range store.Family(family) {
		assert.NotNil(t, token.RevokedAt, "токен %s не отозван", token.ID)
	}

	// законный преемник тоже мёртв
	_, err = ledger.Rotate(ctx, t1Token.ID, testClient)
	assert.ErrorIs(t, err, model.ErrTokenReused)
}

// 3. Одновременная ротация одного токена: ровно один победитель
func TestLedger_ConcurrentRotation(t *testing.T) {
	const racers = 10

	ctx := context.Background()
	ledger, _ := newTestLedger(&testClock{current: t0})

	presented, err := ledger.RecordIssuance(ctx, "user-1", uuid.NewString(), testClient)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		mu        sync.Mutex
		successes int
		reused    int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := ledger.Rotate(ctx, presented.ID, testClient)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, model.ErrTokenReused):
				reused++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, reused)
}

// 4. Просроченный токен не ротируется и не меняется
func TestLedger_Expired(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{current: t0}
	ledger, store := newTestLedger(clock)

	token, err := ledger.RecordIssuance(ctx, "user-1", uuid.NewString(), testClient)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = ledger.Rotate(ctx, token.ID, testClient)
	assert.ErrorIs(t, err, model.ErrRefreshExpired)

	stored, err := store.FindByID(ctx, token.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCurrent())
}

func TestLedger_NotFound(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(&testClock{current: t0})

	_, err := ledger.Rotate(ctx, uuid.NewString(), testClient)
	assert.ErrorIs(t, err, model.ErrTokenNotFound)

	_, err = ledger.Rotate(ctx, "not-a-uuid", testClient)
	assert.ErrorIs(t, err, model.ErrTokenNotFound)
}

func TestLedger_RecordIssuance(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(&testClock{current: t0})
	family := uuid.NewString()

	_, err := ledger.RecordIssuance(ctx, "user-1", family, testClient)
	require.NoError(t, err)

	_, err = ledger.RecordIssuance(ctx, "user-1", family, testClient)
	assert.ErrorIs(t, err, model.ErrFamilyExists)

	_, err = ledger.RecordIssuance(ctx, "", uuid.NewString(), testClient)
	assert.ErrorIs(t, err, model.ErrInvalidSubject)

	_, err = ledger.RecordIssuance(ctx, "user-1", "family", testClient)
	assert.ErrorIs(t, err, model.ErrInvalidSubject)
}

// 5. Отзыв идемпотентен
func TestLedger_Revoke(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(&testClock{current: t0})
	family := uuid.NewString()

	first, err := ledger.RecordIssuance(ctx, "user-1", family, testClient)
	require.NoError(t, err)
	_, err = ledger.Rotate(ctx, first.ID, testClient)
	require.NoError(t, err)
	_, err = ledger.RecordIssuance(ctx, "user-1", uuid.NewString(), testClient)
	require.NoError(t, err)
	_, err = ledger.RecordIssuance(ctx, "user-2", uuid.NewString(), testClient)
	require.NoError(t, err)

	revoked, err := ledger.RevokeFamily(ctx, family)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	revoked, err = ledger.RevokeFamily(ctx, family)
	require.NoError(t, err)
	assert.Zero(t, revoked)

	families, err := ledger.RevokeAllForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, families, 1)
	assert.NotContains(t, families, family)

	families, err = ledger.RevokeAllForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, families)
}

// 6. Сбой хранилища не проглатывается
func TestLedger_Unavailable(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")
	presentedID := uuid.NewString()
	family := uuid.NewString()

	tests := []struct {
		name       string
		setupMocks func(store *MockRefreshTokenStore)
		call       func(ledger *service.LedgerService) error
	}{
		{
			name: "запись нового семейства",
			setupMocks: func(store *MockRefreshTokenStore) {
				store.On("Insert", ctx, mock.Anything).Return(storeErr)
			},
			call: func(ledger *service.LedgerService) error {
				_, err := ledger.RecordIssuance(ctx, "user-1", family, testClient)
				return err
			},
		},
		{
			name: "поиск токена",
			setupMocks: func(store *MockRefreshTokenStore) {
				store.On("FindByID", ctx, presentedID).Return(nil, storeErr)
			},
			call: func(ledger *service.LedgerService) error {
				_, err := ledger.Rotate(ctx, presentedID, testClient)
				return err
			},
		},
		{
			name: "ротация",
			setupMocks: func(store *MockRefreshTokenStore) {
				store.On("FindByID", ctx, presentedID).Return(&model.RefreshToken{
					ID:          presentedID,
					UserID:      "user-1",
					TokenFamily: family,
					IssuedAt:    t0,
					ExpiresAt:   t0.Add(time.Hour),
				}, nil)
				store.On("Rotate", ctx, presentedID, mock.Anything).Return(storeErr)
			},
			call: func(ledger *service.LedgerService) error {
				_, err := ledger.Rotate(ctx, presentedID, testClient)
				return err
			},
		},
		{
			name: "отзыв семейства",
			setupMocks: func(store *MockRefreshTokenStore) {
				store.On("RevokeFamily", ctx, family, mock.Anything).Return(int64(0), storeErr)
			},
			call: func(ledger *service.LedgerService) error {
				_, err := ledger.RevokeFamily(ctx, family)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockRefreshTokenStore)
			tt.setupMocks(store)
			ledger := service.NewLedgerService(store, time.Hour).WithClock((&testClock{current: t0}).Now)

			err := tt.call(ledger)

			assert.ErrorIs(t, err, model.ErrLedgerUnavailable)
			assert.ErrorIs(t, err, storeErr)
			store.AssertExpectations(t)
		})
	}
}

// 7. Проигравший гонку на уровне хранилища получает ReuseDetected
func TestLedger_RotationConflictIsReuse(t *testing.T) {
	ctx := context.Background()
	store := new(MockRefreshTokenStore)
	presentedID := uuid.NewString()
	family := uuid.NewString()

	store.On("FindByID", ctx, presentedID).Return(&model.RefreshToken{
		ID:          presentedID,
		UserID:      "user-1",
		TokenFamily: family,
		IssuedAt:    t0,
		ExpiresAt:   t0.Add(time.Hour),
	}, nil)
	store.On("Rotate", ctx, presentedID, mock.Anything).Return(model.ErrRotationConflict)
	store.On("RevokeFamily", ctx, family, mock.Anything).Return(int64(2), nil)

	ledger := service.NewLedgerService(store, time.Hour).WithClock((&testClock{current: t0}).Now)

	_, err := ledger.Rotate(ctx, presentedID, testClient)

	assert.ErrorIs(t, err, model.ErrTokenReused)
	store.AssertExpectations(t)
}
