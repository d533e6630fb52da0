package model

// EntityType tags the kind of game object an entity reference points at.
type EntityType string

const (
	// EntityTypeSolarSystem is the system a killmail occurred in.
	EntityTypeSolarSystem EntityType = "solar_system"
	// EntityTypeCharacter is a player character.
	EntityTypeCharacter EntityType = "character"
	// EntityTypeCorporation is a player corporation.
	EntityTypeCorporation EntityType = "corporation"
	// EntityTypeAlliance is an alliance of corporations.
	EntityTypeAlliance EntityType = "alliance"
	// EntityTypeShipType is the hull type flown by a participant.
	EntityTypeShipType EntityType = "ship_type"
	// EntityTypeWeaponType is the weapon type used on the victim.
	EntityTypeWeaponType EntityType = "weapon_type"
)

// Valid returns true if the EntityType is a known value.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeSolarSystem, EntityTypeCharacter, EntityTypeCorporation,
		EntityTypeAlliance, EntityTypeShipType, EntityTypeWeaponType:
		return true
	default:
		return false
	}
}

// Entity is a normalized reference to a game object extracted from a
// killmail. Names are not resolved here and default to empty.
type Entity struct {
	ID   int64      `db:"id"   json:"id"`
	Name string     `db:"name" json:"name"`
	Type EntityType `db:"type" json:"type"`
}

// Persistable reports whether the entity may be saved. Identifier 0 is the
// sentinel for an absent field and must never reach storage.
func (e Entity) Persistable() bool {
	return e.ID != 0
}
