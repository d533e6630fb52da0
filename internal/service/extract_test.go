package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evekb/killfeed/internal/domain/model"
)

func ptr(v int64) *int64 { return &v }

func TestExtractEntities_NilDocument(t *testing.T) {
	assert.Nil(t, ExtractEntities(nil))
}

func TestExtractEntities_FullDocument(t *testing.T) {
	doc := &model.KillmailDocument{
		KillmailID:    100,
		SolarSystemID: ptr(30000142),
		Victim: &model.Participant{
			CharacterID:  ptr(1),
			ShipTypeID:   ptr(10),
			WeaponTypeID: ptr(55),
		},
		Attackers: []model.Participant{
			{CharacterID: ptr(2), CorporationID: ptr(600)},
		},
	}

	got := ExtractEntities(doc)

	want := []model.Entity{
		{ID: 30000142, Type: model.EntityTypeSolarSystem},
		{ID: 1, Type: model.EntityTypeCharacter},
		{ID: 55, Type: model.EntityTypeWeaponType},
		{ID: 10, Type: model.EntityTypeShipType},
		{ID: 2, Type: model.EntityTypeCharacter},
		{ID: 600, Type: model.EntityTypeCorporation},
	}
	assert.Equal(t, want, got)
}

func TestExtractEntities_AttackerWeaponIgnored(t *testing.T) {
	doc := &model.KillmailDocument{
		SolarSystemID: ptr(31000001),
		Attackers: []model.Participant{
			{CharacterID: ptr(7), WeaponTypeID: ptr(99), ShipTypeID: ptr(33)},
		},
	}

	got := ExtractEntities(doc)

	require.Len(t, got, 3)
	for _, e := range got {
		assert.NotEqual(t, model.EntityTypeWeaponType, e.Type)
	}
}

func TestExtractEntities_MissingSolarSystemYieldsSentinel(t *testing.T) {
	doc := &model.KillmailDocument{
		Victim: &model.Participant{CharacterID: ptr(5)},
	}

	got := ExtractEntities(doc)

	require.NotEmpty(t, got)
	assert.Equal(t, model.Entity{ID: 0, Type: model.EntityTypeSolarSystem}, got[0])
	assert.False(t, got[0].Persistable())
}

func TestExtractEntities_VictimMissingAlliance(t *testing.T) {
	doc := &model.KillmailDocument{
		SolarSystemID: ptr(30002187),
		Victim: &model.Participant{
			CharacterID:   ptr(11),
			CorporationID: ptr(12),
			ShipTypeID:    ptr(13),
		},
	}

	got := ExtractEntities(doc)

	want := []model.Entity{
		{ID: 30002187, Type: model.EntityTypeSolarSystem},
		{ID: 11, Type: model.EntityTypeCharacter},
		{ID: 12, Type: model.EntityTypeCorporation},
		{ID: 13, Type: model.EntityTypeShipType},
	}
	assert.Equal(t, want, got)
}

func TestExtractEntities_AttackersInArrayOrder(t *testing.T) {
	doc := &model.KillmailDocument{
		SolarSystemID: ptr(30000001),
		Attackers: []model.Participant{
			{CharacterID: ptr(100)},
			{CharacterID: ptr(200)},
			{CharacterID: ptr(300)},
		},
	}

	got := ExtractEntities(doc)

	require.Len(t, got, 4)
	assert.Equal(t, int64(100), got[1].ID)
	assert.Equal(t, int64(200), got[2].ID)
	assert.Equal(t, int64(300), got[3].ID)
}

func TestPersistableEntities_FiltersSentinels(t *testing.T) {
	in := []model.Entity{
		{ID: 0, Type: model.EntityTypeSolarSystem},
		{ID: 1, Type: model.EntityTypeCharacter},
		{ID: 0, Type: model.EntityTypeCorporation},
		{ID: 2, Type: model.EntityTypeShipType},
	}

	got := PersistableEntities(in)

	want := []model.Entity{
		{ID: 1, Type: model.EntityTypeCharacter},
		{ID: 2, Type: model.EntityTypeShipType},
	}
	assert.Equal(t, want, got)
}
