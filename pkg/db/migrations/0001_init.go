package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Session struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Title             string     `gorm:"type:text;not null"`
	HostName          string     `gorm:"type:text;not null"`
	Status            string     `gorm:"type:text;not null;default:'active'"`
	CenterLat         *float64   `gorm:"type:double precision"`
	CenterLng         *float64   `gorm:"type:double precision"`
	CenterDisplayName string     `gorm:"type:text"`
	SelectedPlaceID   string     `gorm:"type:text"`
	CreatedAt         time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	ExpiresAt         time.Time  `gorm:"type:timestamptz;not null;index"`
	CompletedAt       *time.Time `gorm:"type:timestamptz"`
}

type Participant struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID         `gorm:"type:uuid;not null;index"`
	Name      string            `gorm:"type:text;not null"`
	Location  datatypes.JSONMap `gorm:"type:jsonb"`
	JoinedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Session   Session           `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Place struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:text;not null"`
	Lat       float64   `gorm:"type:double precision"`
	Lng       float64   `gorm:"type:double precision"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Session   Session   `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Vote struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey"`
	SessionID     uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_votes_session_participant"`
	ParticipantID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_votes_session_participant"`
	PlaceID       string      `gorm:"type:text;not null"`
	CastAt        time.Time   `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Session       Session     `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Participant   Participant `gorm:"foreignKey:ParticipantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Session{},
		&Participant{},
		&Place{},
		&Vote{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&Participant{}, "Session"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Place{}, "Session"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Vote{}, "Session"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Vote{}, "Participant"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&Vote{},
		&Place{},
		&Participant{},
		&Session{},
	); err != nil {
		return err
	}

	return nil
}
