package model

// KillmailStatus tracks how far a killmail reference has been processed.
type KillmailStatus string

const (
	// KillmailStatusNew marks a reference discovered from a recent-killmails listing.
	KillmailStatusNew KillmailStatus = "new"
	// KillmailStatusResolved marks a reference whose entities have been extracted.
	KillmailStatusResolved KillmailStatus = "resolved"
	// KillmailStatusFailed marks a reference whose detail fetch failed.
	KillmailStatusFailed KillmailStatus = "failed"
)

// Valid returns true if the KillmailStatus is a known value.
func (s KillmailStatus) Valid() bool {
	return s == KillmailStatusNew || s == KillmailStatusResolved || s == KillmailStatusFailed
}

// KillmailRef identifies a single killmail by its natural key. The identifier
// plus opaque hash are enough to fetch the full document; duplicate insertion
// is a no-op.
type KillmailRef struct {
	KillmailID   int64          `db:"killmail_id"   json:"killmail_id"`
	KillmailHash string         `db:"killmail_hash" json:"killmail_hash"`
	Status       KillmailStatus `db:"status"        json:"status"`
}

// KillmailDocument is the decoded detail payload of a single killmail.
// Every entity sub-field is optional in the wire format, so absence is
// represented with nil pointers rather than zero values.
type KillmailDocument struct {
	KillmailID    int64         `json:"killmail_id"`
	SolarSystemID *int64        `json:"solar_system_id"`
	Victim        *Participant  `json:"victim"`
	Attackers     []Participant `json:"attackers"`
}

// Participant is the shared shape of the victim object and each attacker entry.
type Participant struct {
	CharacterID   *int64 `json:"character_id"`
	CorporationID *int64 `json:"corporation_id"`
	AllianceID    *int64 `json:"alliance_id"`
	WeaponTypeID  *int64 `json:"weapon_type_id"`
	ShipTypeID    *int64 `json:"ship_type_id"`
}
