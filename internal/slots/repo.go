package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lxlibrary/lx-backend/pkg/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Slot is one durable snapshot owned by a browser origin.
type Slot struct {
	OriginID  string    `gorm:"column:origin_id;primaryKey;size:128"`
	SlotKey   string    `gorm:"column:slot_key;primaryKey;size:64"`
	Payload   string    `gorm:"column:payload;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Slot) TableName() string { return "storage_slots" }

// Repository persists per-origin slots in the storage_slots table.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Find returns the slot for origin/key or gorm.ErrRecordNotFound.
func (r *Repository) Find(ctx context.Context, originID, key string) (*Slot, error) {
	var slot Slot
	err := r.db.WithContext(ctx).
		Where("origin_id = ? AND slot_key = ?", originID, key).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// Upsert overwrites the payload stored for origin/key.
func (r *Repository) Upsert(ctx context.Context, originID, key string, payload []byte) error {
	slot := Slot{
		OriginID:  originID,
		SlotKey:   key,
		Payload:   string(payload),
		UpdatedAt: r.now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "origin_id"}, {Name: "slot_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&slot).Error
}

// Scope returns the storage.Slots view owned by originID.
func (r *Repository) Scope(originID string) storage.Slots {
	return &originSlots{repo: r, originID: originID}
}

type originSlots struct {
	repo     *Repository
	originID string
}

func (o *originSlots) Load(ctx context.Context, key string) ([]byte, bool, error) {
	slot, err := o.repo.Find(ctx, o.originID, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load slot %s: %w", key, err)
	}
	return []byte(slot.Payload), true, nil
}

func (o *originSlots) Save(ctx context.Context, key string, payload []byte) error {
	if err := o.repo.Upsert(ctx, o.originID, key, payload); err != nil {
		return fmt.Errorf("save slot %s: %w", key, err)
	}
	return nil
}
