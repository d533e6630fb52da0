// Package service holds the processor, the scheduler, and the entity
// extraction logic that turns killmail documents into normalized references.
package service

import (
	"github.com/evekb/killfeed/internal/domain/model"
)

// ExtractEntities turns a killmail document into an ordered list of entity
// candidates. It is pure and deterministic: one solar_system entity first
// (identifier 0 when the field is absent), then the victim's
// character/corporation/alliance/weapon_type/ship_type when present, then the
// same categories minus weapon_type for every attacker in array order.
//
// The output is not deduplicated; the idempotent entity upsert is the dedup
// mechanism. Callers must filter out the sentinel identifier 0 before
// enqueueing save jobs; see PersistableEntities.
func ExtractEntities(doc *model.KillmailDocument) []model.Entity {
	if doc == nil {
		return nil
	}

	entities := make([]model.Entity, 0, 1+5+4*len(doc.Attackers))

	system := model.Entity{Type: model.EntityTypeSolarSystem}
	if doc.SolarSystemID != nil {
		system.ID = *doc.SolarSystemID
	}
	entities = append(entities, system)

	if doc.Victim != nil {
		entities = appendParticipant(entities, *doc.Victim, true)
	}
	for _, attacker := range doc.Attackers {
		entities = appendParticipant(entities, attacker, false)
	}
	return entities
}

// appendParticipant emits the participant's entity references in fixed field
// order. The weapon type only exists on the victim side of the document.
func appendParticipant(entities []model.Entity, p model.Participant, includeWeapon bool) []model.Entity {
	if p.CharacterID != nil {
		entities = append(entities, model.Entity{ID: *p.CharacterID, Type: model.EntityTypeCharacter})
	}
	if p.CorporationID != nil {
		entities = append(entities, model.Entity{ID: *p.CorporationID, Type: model.EntityTypeCorporation})
	}
	if p.AllianceID != nil {
		entities = append(entities, model.Entity{ID: *p.AllianceID, Type: model.EntityTypeAlliance})
	}
	if includeWeapon && p.WeaponTypeID != nil {
		entities = append(entities, model.Entity{ID: *p.WeaponTypeID, Type: model.EntityTypeWeaponType})
	}
	if p.ShipTypeID != nil {
		entities = append(entities, model.Entity{ID: *p.ShipTypeID, Type: model.EntityTypeShipType})
	}
	return entities
}

// PersistableEntities filters out sentinel (identifier 0) candidates,
// preserving order. Only the result may be handed to the job queue.
func PersistableEntities(entities []model.Entity) []model.Entity {
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Persistable() {
			out = append(out, e)
		}
	}
	return out
}
