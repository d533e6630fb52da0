// Package job defines the closed set of work items dispatched by the processor.
package job

import (
	"errors"
	"fmt"

	"github.com/evekb/killfeed/internal/domain/model"
)

// Kind identifies a job variant.
type Kind string

const (
	// KindRefresh re-exchanges refresh tokens for accounts nearing expiry.
	KindRefresh Kind = "refresh"
	// KindFetchKillmails discovers recent killmail references for all accounts.
	KindFetchKillmails Kind = "fetch_killmails"
	// KindResolveKillmails fetches pending killmail details and extracts entities.
	KindResolveKillmails Kind = "resolve_killmails"
	// KindSaveAccount upserts an account record.
	KindSaveAccount Kind = "save_account"
	// KindSaveKillmail inserts a killmail reference if absent.
	KindSaveKillmail Kind = "save_killmail"
	// KindSaveEntity inserts an entity reference if absent.
	KindSaveEntity Kind = "save_entity"
	// KindStop is the terminal sentinel: the processor exits its consume loop.
	KindStop Kind = "stop"
)

// Valid returns true if the Kind is a known value.
func (k Kind) Valid() bool {
	switch k {
	case KindRefresh, KindFetchKillmails, KindResolveKillmails,
		KindSaveAccount, KindSaveKillmail, KindSaveEntity, KindStop:
		return true
	default:
		return false
	}
}

// Job is a tagged union: exactly the payload field matching the kind is set,
// all others are nil. Use the constructors below rather than building Jobs
// by hand.
type Job struct {
	Kind     Kind
	Account  *model.Account
	Killmail *model.KillmailRef
	Entity   *model.Entity
}

// Refresh builds a refresh job.
func Refresh() Job { return Job{Kind: KindRefresh} }

// FetchKillmails builds a killmail-discovery job.
func FetchKillmails() Job { return Job{Kind: KindFetchKillmails} }

// ResolveKillmails builds a killmail-resolution job.
func ResolveKillmails() Job { return Job{Kind: KindResolveKillmails} }

// SaveAccount builds a job persisting the given account.
func SaveAccount(account model.Account) Job {
	return Job{Kind: KindSaveAccount, Account: &account}
}

// SaveKillmail builds a job persisting a killmail reference.
func SaveKillmail(killmailID int64, hash string) Job {
	return Job{Kind: KindSaveKillmail, Killmail: &model.KillmailRef{
		KillmailID:   killmailID,
		KillmailHash: hash,
		Status:       model.KillmailStatusNew,
	}}
}

// SaveEntity builds a job persisting an entity reference.
func SaveEntity(entity model.Entity) Job {
	return Job{Kind: KindSaveEntity, Entity: &entity}
}

// Stop builds the terminal sentinel job.
func Stop() Job { return Job{Kind: KindStop} }

// Validate checks that the kind is known and the payload matches it.
func (j Job) Validate() error {
	if !j.Kind.Valid() {
		return fmt.Errorf("invalid job kind: %q", j.Kind)
	}
	switch j.Kind {
	case KindSaveAccount:
		if j.Account == nil {
			return errors.New("save_account job requires an account payload")
		}
	case KindSaveKillmail:
		if j.Killmail == nil {
			return errors.New("save_killmail job requires a killmail payload")
		}
	case KindSaveEntity:
		if j.Entity == nil {
			return errors.New("save_entity job requires an entity payload")
		}
	case KindRefresh, KindFetchKillmails, KindResolveKillmails, KindStop:
		if j.Account != nil || j.Killmail != nil || j.Entity != nil {
			return fmt.Errorf("%s job carries no payload", j.Kind)
		}
	}
	return nil
}
