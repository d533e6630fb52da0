package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evekb/killfeed/internal/domain/auth"
	"github.com/evekb/killfeed/internal/domain/job"
	"github.com/evekb/killfeed/internal/domain/model"
	apperrors "github.com/evekb/killfeed/internal/errors"
	"github.com/evekb/killfeed/internal/queue"
)

type mockAccountStore struct {
	mock.Mock
}

func (m *mockAccountStore) Upsert(ctx context.Context, account model.Account) (int64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAccountStore) ListAll(ctx context.Context) ([]model.Account, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountStore) ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.Account, error) {
	args := m.Called(ctx, window)
	if v := args.Get(0); v != nil {
		return v.([]model.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountStore) SetLastFetched(ctx context.Context, characterID int64, fetchedAt time.Time) error {
	args := m.Called(ctx, characterID, fetchedAt)
	return args.Error(0)
}

type mockKillmailStore struct {
	mock.Mock
}

func (m *mockKillmailStore) InsertIfAbsent(ctx context.Context, ref model.KillmailRef) (int64, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockKillmailStore) UpdateStatus(ctx context.Context, killmailID int64, status model.KillmailStatus) (int64, error) {
	args := m.Called(ctx, killmailID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockKillmailStore) ListPending(ctx context.Context) ([]model.KillmailRef, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.KillmailRef), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEntityStore struct {
	mock.Mock
}

func (m *mockEntityStore) InsertIfAbsent(ctx context.Context, entity model.Entity) (int64, error) {
	args := m.Called(ctx, entity)
	return args.Get(0).(int64), args.Error(1)
}

type mockTokenService struct {
	mock.Mock
}

func (m *mockTokenService) BuildAuthorizationURL() (string, string) {
	args := m.Called()
	return args.String(0), args.String(1)
}

func (m *mockTokenService) Exchange(ctx context.Context, input auth.TokenInput) (model.Account, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *mockTokenService) Validate(ctx context.Context, accessToken string) (auth.Claims, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(auth.Claims), args.Error(1)
}

func (m *mockTokenService) Refresh(ctx context.Context, accounts []model.Account) {
	m.Called(ctx, accounts)
}

type mockKillmailSource struct {
	mock.Mock
}

func (m *mockKillmailSource) RecentKillmails(ctx context.Context, account model.Account) ([]model.KillmailRef, error) {
	args := m.Called(ctx, account)
	if v := args.Get(0); v != nil {
		return v.([]model.KillmailRef), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockKillmailSource) KillmailDetail(ctx context.Context, killmailID int64, hash string) (*model.KillmailDocument, error) {
	args := m.Called(ctx, killmailID, hash)
	if v := args.Get(0); v != nil {
		return v.(*model.KillmailDocument), args.Error(1)
	}
	return nil, args.Error(1)
}

type processorFixture struct {
	queue     *queue.Queue
	accounts  *mockAccountStore
	killmails *mockKillmailStore
	entities  *mockEntityStore
	tokens    *mockTokenService
	source    *mockKillmailSource
	processor *Processor
}

func newProcessorFixture(refreshWindow time.Duration) *processorFixture {
	f := &processorFixture{
		queue:     queue.New(32),
		accounts:  &mockAccountStore{},
		killmails: &mockKillmailStore{},
		entities:  &mockEntityStore{},
		tokens:    &mockTokenService{},
		source:    &mockKillmailSource{},
	}
	f.processor = NewProcessor(ProcessorOptions{
		Queue:         f.queue,
		Accounts:      f.accounts,
		Killmails:     f.killmails,
		Entities:      f.entities,
		Tokens:        f.tokens,
		Source:        f.source,
		RefreshWindow: refreshWindow,
	})
	return f
}

// runUntilStop enqueues the given jobs followed by a stop sentinel and runs
// the processor to completion.
func (f *processorFixture) runUntilStop(t *testing.T, jobs ...job.Job) {
	t.Helper()
	for _, j := range jobs {
		require.NoError(t, f.queue.TryEnqueue(j))
	}
	require.NoError(t, f.queue.TryEnqueue(job.Stop()))

	done := make(chan error, 1)
	go func() { done <- f.processor.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestProcessor_StopSentinelExitsLoop(t *testing.T) {
	f := newProcessorFixture(0)
	f.runUntilStop(t)
}

func TestProcessor_ContextCancellationExitsLoop(t *testing.T) {
	f := newProcessorFixture(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.processor.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("processor did not exit on cancellation")
	}
}

func TestProcessor_RefreshUsesExpiryWindow(t *testing.T) {
	f := newProcessorFixture(20 * time.Minute)

	expiring := []model.Account{{CharacterID: 123}}
	f.accounts.On("ListExpiringWithin", mock.Anything, 20*time.Minute).Return(expiring, nil).Once()
	f.tokens.On("Refresh", mock.Anything, expiring).Once()

	f.runUntilStop(t, job.Refresh())

	f.accounts.AssertExpectations(t)
	f.tokens.AssertExpectations(t)
	f.accounts.AssertNotCalled(t, "ListAll", mock.Anything)
}

func TestProcessor_RefreshWithoutWindowListsAll(t *testing.T) {
	f := newProcessorFixture(0)

	all := []model.Account{{CharacterID: 1}, {CharacterID: 2}}
	f.accounts.On("ListAll", mock.Anything).Return(all, nil).Once()
	f.tokens.On("Refresh", mock.Anything, all).Once()

	f.runUntilStop(t, job.Refresh())

	f.accounts.AssertExpectations(t)
	f.tokens.AssertExpectations(t)
}

func TestProcessor_RefreshSkipsEmptyBatch(t *testing.T) {
	f := newProcessorFixture(0)

	f.accounts.On("ListAll", mock.Anything).Return([]model.Account{}, nil).Once()

	f.runUntilStop(t, job.Refresh())

	f.tokens.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestProcessor_FetchEnqueuesSaveJobs(t *testing.T) {
	f := newProcessorFixture(0)

	account := model.Account{CharacterID: 42, AccessToken: "tok"}
	refs := []model.KillmailRef{
		{KillmailID: 100, KillmailHash: "aaa", Status: model.KillmailStatusNew},
		{KillmailID: 101, KillmailHash: "bbb", Status: model.KillmailStatusNew},
	}

	f.accounts.On("ListAll", mock.Anything).Return([]model.Account{account}, nil).Once()
	f.source.On("RecentKillmails", mock.Anything, account).Return(refs, nil).Once()
	f.accounts.On("SetLastFetched", mock.Anything, int64(42), mock.Anything).Return(nil).Once()

	// The save jobs land behind the fetch job and are processed before stop.
	f.killmails.On("InsertIfAbsent", mock.Anything, refs[0]).Return(int64(1), nil).Once()
	f.killmails.On("InsertIfAbsent", mock.Anything, refs[1]).Return(int64(1), nil).Once()

	f.runUntilStop(t, job.FetchKillmails())

	f.accounts.AssertExpectations(t)
	f.source.AssertExpectations(t)
	f.killmails.AssertExpectations(t)
}

func TestProcessor_FetchFailureIsolatedPerAccount(t *testing.T) {
	f := newProcessorFixture(0)

	bad := model.Account{CharacterID: 1}
	good := model.Account{CharacterID: 2}
	ref := model.KillmailRef{KillmailID: 7, KillmailHash: "h", Status: model.KillmailStatusNew}

	f.accounts.On("ListAll", mock.Anything).Return([]model.Account{bad, good}, nil).Once()
	f.source.On("RecentKillmails", mock.Anything, bad).Return(nil, apperrors.HTTP("listing returned 502")).Once()
	f.source.On("RecentKillmails", mock.Anything, good).Return([]model.KillmailRef{ref}, nil).Once()
	f.accounts.On("SetLastFetched", mock.Anything, int64(2), mock.Anything).Return(nil).Once()
	f.killmails.On("InsertIfAbsent", mock.Anything, ref).Return(int64(1), nil).Once()

	f.runUntilStop(t, job.FetchKillmails())

	f.source.AssertExpectations(t)
	f.killmails.AssertExpectations(t)
	// The failing account must not get its fetch timestamp advanced.
	f.accounts.AssertNotCalled(t, "SetLastFetched", mock.Anything, int64(1), mock.Anything)
}

func TestProcessor_ResolveExtractsAndMarksResolved(t *testing.T) {
	f := newProcessorFixture(0)

	ref := model.KillmailRef{KillmailID: 500, KillmailHash: "abc", Status: model.KillmailStatusNew}
	doc := &model.KillmailDocument{
		KillmailID:    500,
		SolarSystemID: ptr(30000142),
		Victim:        &model.Participant{CharacterID: ptr(1), ShipTypeID: ptr(10)},
	}

	f.killmails.On("ListPending", mock.Anything).Return([]model.KillmailRef{ref}, nil).Once()
	f.source.On("KillmailDetail", mock.Anything, int64(500), "abc").Return(doc, nil).Once()
	f.killmails.On("UpdateStatus", mock.Anything, int64(500), model.KillmailStatusResolved).Return(int64(1), nil).Once()

	f.entities.On("InsertIfAbsent", mock.Anything, model.Entity{ID: 30000142, Type: model.EntityTypeSolarSystem}).Return(int64(1), nil).Once()
	f.entities.On("InsertIfAbsent", mock.Anything, model.Entity{ID: 1, Type: model.EntityTypeCharacter}).Return(int64(1), nil).Once()
	f.entities.On("InsertIfAbsent", mock.Anything, model.Entity{ID: 10, Type: model.EntityTypeShipType}).Return(int64(1), nil).Once()

	f.runUntilStop(t, job.ResolveKillmails())

	f.killmails.AssertExpectations(t)
	f.source.AssertExpectations(t)
	f.entities.AssertExpectations(t)
}

func TestProcessor_ResolveDetailFailureMarksFailed(t *testing.T) {
	f := newProcessorFixture(0)

	ref := model.KillmailRef{KillmailID: 600, KillmailHash: "xyz", Status: model.KillmailStatusNew}

	f.killmails.On("ListPending", mock.Anything).Return([]model.KillmailRef{ref}, nil).Once()
	f.source.On("KillmailDetail", mock.Anything, int64(600), "xyz").Return(nil, apperrors.HTTP("detail returned 404")).Once()
	f.killmails.On("UpdateStatus", mock.Anything, int64(600), model.KillmailStatusFailed).Return(int64(1), nil).Once()

	f.runUntilStop(t, job.ResolveKillmails())

	f.killmails.AssertExpectations(t)
	f.entities.AssertNotCalled(t, "InsertIfAbsent", mock.Anything, mock.Anything)
}

func TestProcessor_SaveAccountFailureDoesNotStopLoop(t *testing.T) {
	f := newProcessorFixture(0)

	account := model.Account{CharacterID: 9}
	entity := model.Entity{ID: 4, Type: model.EntityTypeCharacter}

	f.accounts.On("Upsert", mock.Anything, account).Return(int64(0), apperrors.Persistence("insert failed")).Once()
	f.entities.On("InsertIfAbsent", mock.Anything, entity).Return(int64(1), nil).Once()

	f.runUntilStop(t, job.SaveAccount(account), job.SaveEntity(entity))

	f.accounts.AssertExpectations(t)
	f.entities.AssertExpectations(t)
}

func TestProcessor_SaveKillmailDuplicateIsNoop(t *testing.T) {
	f := newProcessorFixture(0)

	f.killmails.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(int64(0), nil).Once()

	f.runUntilStop(t, job.SaveKillmail(777, "dup"))

	f.killmails.AssertExpectations(t)
}

func TestProcessor_DrainsQueueBeforeStop(t *testing.T) {
	f := newProcessorFixture(0)

	var order []int64
	for _, id := range []int64{1, 2, 3} {
		f.killmails.On("InsertIfAbsent", mock.Anything, mock.MatchedBy(func(ref model.KillmailRef) bool {
			return ref.KillmailID == id
		})).Run(func(args mock.Arguments) {
			order = append(order, args.Get(1).(model.KillmailRef).KillmailID)
		}).Return(int64(1), nil).Once()
	}

	f.runUntilStop(t,
		job.SaveKillmail(1, "a"),
		job.SaveKillmail(2, "b"),
		job.SaveKillmail(3, "c"),
	)

	assert.Equal(t, []int64{1, 2, 3}, order)
}
