// Package ports defines the interfaces (hexagonal ports) between the
// processor, the persistence layer, and the remote-API adapters.
// Implementations live in internal/data and internal/adapters.
package ports

import (
	"context"
	"time"

	"github.com/evekb/killfeed/internal/domain/auth"
	"github.com/evekb/killfeed/internal/domain/job"
	"github.com/evekb/killfeed/internal/domain/model"
)

// AccountStore is the persistence contract for character accounts.
// All writes are upserts keyed by the character identifier.
type AccountStore interface {
	// Upsert inserts the account or replaces its tokens, expiry, and
	// updated-at timestamp when a record for the character already exists.
	Upsert(ctx context.Context, account model.Account) (int64, error)

	// ListAll returns every stored account.
	ListAll(ctx context.Context) ([]model.Account, error)

	// ListExpiringWithin returns accounts whose access token expires within
	// the given window from now.
	ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.Account, error)

	// SetLastFetched records when a killmail listing was last fetched for
	// the character, feeding the conditional-fetch header.
	SetLastFetched(ctx context.Context, characterID int64, fetchedAt time.Time) error
}

// KillmailStore is the persistence contract for killmail references.
type KillmailStore interface {
	// InsertIfAbsent inserts the reference, returning 0 affected rows when
	// the killmail identifier already exists.
	InsertIfAbsent(ctx context.Context, ref model.KillmailRef) (int64, error)

	// UpdateStatus advances the processing status of a killmail reference.
	UpdateStatus(ctx context.Context, killmailID int64, status model.KillmailStatus) (int64, error)

	// ListPending returns references still awaiting resolution.
	ListPending(ctx context.Context) ([]model.KillmailRef, error)
}

// EntityStore is the persistence contract for extracted entity references.
type EntityStore interface {
	// InsertIfAbsent inserts the entity, returning 0 affected rows when the
	// (identifier, type) pair already exists. Existing names are never updated.
	InsertIfAbsent(ctx context.Context, entity model.Entity) (int64, error)
}

// TokenService performs OAuth2 exchanges against the authorization provider
// and validates access tokens against its live signing-key set.
type TokenService interface {
	// BuildAuthorizationURL returns the provider authorization URL with a
	// freshly generated state nonce bound to this login attempt. The caller
	// persists the nonce and must verify it on callback before exchanging.
	BuildAuthorizationURL() (authURL, state string)

	// Exchange performs a code or refresh-token exchange, validates the
	// returned access token, and builds the resulting account.
	Exchange(ctx context.Context, input auth.TokenInput) (model.Account, error)

	// Validate verifies an access token's signature, required claims,
	// audience, and issuer. It fails closed.
	Validate(ctx context.Context, accessToken string) (auth.Claims, error)

	// Refresh sequentially re-exchanges each account's refresh token and
	// enqueues a save job per success. Per-account failures are logged and
	// skipped; the batch never aborts.
	Refresh(ctx context.Context, accounts []model.Account)
}

// KillmailSource is the remote game-data API surface consumed here.
type KillmailSource interface {
	// RecentKillmails lists the account's recent killmails. The account's
	// last-fetch timestamp is sent as a conditional-fetch header; a
	// not-modified response yields an empty list.
	RecentKillmails(ctx context.Context, account model.Account) ([]model.KillmailRef, error)

	// KillmailDetail fetches the full killmail document by id and hash.
	KillmailDetail(ctx context.Context, killmailID int64, hash string) (*model.KillmailDocument, error)
}

// JobEnqueuer is the job submission surface handed to producers.
type JobEnqueuer interface {
	// Enqueue blocks until the job is accepted or ctx is canceled.
	Enqueue(ctx context.Context, j job.Job) error

	// TryEnqueue never blocks; it returns a queue_full error when rejected.
	TryEnqueue(j job.Job) error
}

// LoginStateStore persists outstanding login state nonces so the callback
// can reject replayed or forged exchanges.
type LoginStateStore interface {
	// Save records a freshly issued state nonce with a short TTL.
	Save(ctx context.Context, state string) error

	// Consume atomically checks and removes a state nonce, returning whether
	// it was present. A nonce can be consumed at most once.
	Consume(ctx context.Context, state string) (bool, error)
}
