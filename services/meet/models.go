package meet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type sessionModel struct {
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

func (sessionModel) TableName() string { return "sessions" }

func (m sessionModel) toAPI() *Session {
	s := &Session{
		ID:                m.ID,
		Title:             m.Title,
		HostName:          m.HostName,
		Status:            Status(m.Status),
		CenterDisplayName: m.CenterDisplayName,
		SelectedPlaceID:   m.SelectedPlaceID,
		CreatedAt:         m.CreatedAt,
		ExpiresAt:         m.ExpiresAt,
		CompletedAt:       m.CompletedAt,
	}
	if m.CenterLat != nil && m.CenterLng != nil {
		s.CenterPoint = &GeoPoint{Lat: *m.CenterLat, Lng: *m.CenterLng}
	}
	return s
}

func sessionToModel(s *Session) sessionModel {
	m := sessionModel{
		ID:                s.ID,
		Title:             s.Title,
		HostName:          s.HostName,
		Status:            string(s.Status),
		CenterDisplayName: s.CenterDisplayName,
		SelectedPlaceID:   s.SelectedPlaceID,
		CreatedAt:         s.CreatedAt,
		ExpiresAt:         s.ExpiresAt,
		CompletedAt:       s.CompletedAt,
	}
	if s.CenterPoint != nil {
		lat, lng := s.CenterPoint.Lat, s.CenterPoint.Lng
		m.CenterLat, m.CenterLng = &lat, &lng
	}
	return m
}

type participantModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID         `gorm:"type:uuid;not null;index"`
	Name      string            `gorm:"type:text;not null"`
	Location  datatypes.JSONMap `gorm:"type:jsonb"`
	JoinedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (participantModel) TableName() string { return "participants" }

func participantToModel(p *Participant) participantModel {
	m := participantModel{
		ID:        p.ID,
		SessionID: p.SessionID,
		Name:      p.Name,
		JoinedAt:  p.JoinedAt,
	}
	if p.Location != nil {
		m.Location = datatypes.JSONMap{
			"lat": p.Location.Lat,
			"lng": p.Location.Lng,
		}
		if p.Location.DisplayName != "" {
			m.Location["displayName"] = p.Location.DisplayName
		}
	}
	return m
}

type voteModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_votes_session_participant"`
	ParticipantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_session_participant"`
	PlaceID       string    `gorm:"type:text;not null"`
	CastAt        time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (voteModel) TableName() string { return "votes" }

// gormStore is the Postgres-backed DurableStore.
type gormStore struct {
	orm *gorm.DB
}

var _ DurableStore = (*gormStore)(nil)

// NewDurableStore wraps a gorm connection as a DurableStore.
func NewDurableStore(orm *gorm.DB) DurableStore {
	return &gormStore{orm: orm}
}

func (g *gormStore) SaveSession(ctx context.Context, s *Session) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	orm := g.orm.WithContext(ctx)
	model := sessionToModel(s)

	var existing sessionModel
	err := orm.Where("id = ?", s.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return orm.Create(&model).Error
	case err != nil:
		return err
	default:
		updates := map[string]any{
			"status":              model.Status,
			"center_lat":          model.CenterLat,
			"center_lng":          model.CenterLng,
			"center_display_name": model.CenterDisplayName,
			"selected_place_id":   model.SelectedPlaceID,
			"completed_at":        model.CompletedAt,
		}
		return orm.Model(&existing).Updates(updates).Error
	}
}

func (g *gormStore) FindSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var model sessionModel
	err := g.orm.WithContext(ctx).Where("id = ?", id).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}

	s := model.toAPI()
	if s.Expired(time.Now().UTC()) {
		// The row outlived the session; treat it as gone.
		return nil, nil
	}
	return s, nil
}

// DeleteSession removes the session row. Participant, place, and vote
// rows go with it via the schema's ON DELETE CASCADE constraints.
func (g *gormStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return g.orm.WithContext(ctx).Delete(&sessionModel{}, "id = ?", id).Error
}

func (g *gormStore) SaveParticipant(ctx context.Context, p *Participant) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	orm := g.orm.WithContext(ctx)
	model := participantToModel(p)

	var existing participantModel
	err := orm.Where("id = ?", p.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return orm.Create(&model).Error
	case err != nil:
		return err
	default:
		return orm.Model(&existing).Updates(map[string]any{
			"name":     model.Name,
			"location": model.Location,
		}).Error
	}
}

func (g *gormStore) SaveVote(ctx context.Context, v *Vote) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	orm := g.orm.WithContext(ctx)

	var existing voteModel
	err := orm.Where("session_id = ? AND participant_id = ?", v.SessionID, v.ParticipantID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return orm.Create(&voteModel{
			ID:            uuid.New(),
			SessionID:     v.SessionID,
			ParticipantID: v.ParticipantID,
			PlaceID:       v.PlaceID,
			CastAt:        v.CastAt,
		}).Error
	case err != nil:
		return err
	default:
		return orm.Model(&existing).Updates(map[string]any{
			"place_id": v.PlaceID,
			"cast_at":  v.CastAt,
		}).Error
	}
}
